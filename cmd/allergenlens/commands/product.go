package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/usecase"
)

var productCmd = &cobra.Command{
	Use:   "product <barcode>",
	Short: "Look up a product by barcode and print its allergen context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := args[0]
		if usecase.ExtractBarcode(code) != code {
			return fmt.Errorf("%q is not an 8 to 14 digit barcode", code)
		}

		product, err := services.Products.GetProduct(cmd.Context(), code)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", code, err)
		}

		text, canonicalURL := services.Formatter.Format(cmd.Context(), product)
		sources := usecase.BuildSourcesFromMatch(&domain.Match{
			Product:      product,
			Context:      text,
			MatchType:    domain.MatchTypeBarcode,
			Candidate:    code,
			CanonicalURL: canonicalURL,
		})

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"product": product,
				"context": text,
				"sources": sources,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		printSources(cmd.OutOrStdout(), sources)
		return nil
	},
}
