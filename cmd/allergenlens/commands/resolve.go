package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/allergenlens/backend/internal/domain"
)

var sessionID string

var resolveCmd = &cobra.Command{
	Use:   "resolve <question>",
	Short: "Resolve a question into grounding context and sources",
	Example: `  allergenlens resolve "does Nutella contain milk?"
  allergenlens resolve 3017620422003 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		res := services.Resolutions.Resolve(cmd.Context(), sessionID, query)
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		printResolution(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&sessionID, "session", "", "session id scoping the resolution cache")
}

func printResolution(w io.Writer, res *domain.Resolution) {
	if !res.Matched {
		fmt.Fprintln(w, "No matching product found.")
		return
	}

	fmt.Fprintf(w, "Matched by %s on %q\n\n", res.MatchType, res.Candidate)
	fmt.Fprintln(w, res.Context)
	printSources(w, res.Sources)
}

func printSources(w io.Writer, sources []domain.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, s := range sources {
		fmt.Fprintf(w, "  [%d] %s\n      %s\n", i+1, s.Label, s.URL)
	}
}
