package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var termsCmd = &cobra.Command{
	Use:   "terms <question>",
	Short: "Show the candidate search terms for a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		terms := services.Candidates.Build(cmd.Context(), strings.Join(args, " "))
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string][]string{"terms": terms})
		}
		for i, term := range terms {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, term)
		}
		return nil
	},
}
