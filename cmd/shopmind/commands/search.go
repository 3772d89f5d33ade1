package commands

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder for --image files
	_ "image/jpeg" // register JPEG decoder for --image files
	_ "image/png"  // register PNG decoder for --image files
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lmarban/shopmind-go/internal/engine"
	"github.com/lmarban/shopmind-go/internal/logging"
)

// NewSearchCmd constructs the `shopmind search` command: a one-shot product
// search printing the final scored candidates to stdout.
func NewSearchCmd() *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the product catalog with a text or image query",
		Long: `Search the product catalog using multimodal vector search.

Text queries pass through the cross-encoder reranker when one is configured;
image queries keep their nearest-neighbor order.

Examples:
  shopmind search "blue running shoes for men"
  shopmind search --image ./query.jpg
  RERANKER_ENDPOINT= shopmind search "casual summer dress"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithLogger(cmd.Context(), logging.New())

			if imagePath == "" && len(args) == 0 {
				return fmt.Errorf("search: provide a text query or --image")
			}

			eng, _, cleanup, err := buildEngine(ctx, logging.FromContext(ctx))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer cleanup()

			var query engine.Query
			if imagePath != "" {
				f, err := os.Open(imagePath)
				if err != nil {
					return fmt.Errorf("search: open image: %w", err)
				}
				defer f.Close()
				img, _, err := image.Decode(f)
				if err != nil {
					return fmt.Errorf("search: decode %s: %w", imagePath, err)
				}
				query = engine.ImageQuery{Image: img}
			} else {
				query = engine.TextQuery(strings.Join(args, " "))
			}

			cands, err := eng.Search(ctx, query)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(cands) == 0 {
				fmt.Println("No matching products found.")
				return nil
			}
			printCandidates(cands)
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Path to a query image (PNG, JPEG, or GIF)")

	return cmd
}

// printCandidates renders a candidate set as a numbered list on stdout.
func printCandidates(cands engine.CandidateSet) {
	for i, c := range cands {
		p := c.Product
		fmt.Printf("%d. %s  (score %.4f)\n", i+1, p.Name, c.Score)
		var details []string
		for _, d := range []string{p.Brand, p.Category, p.SubCategory, p.ProductType, p.Colour, p.Usage, p.Gender} {
			if d != "" {
				details = append(details, d)
			}
		}
		if len(details) > 0 {
			fmt.Printf("   %s\n", strings.Join(details, " · "))
		}
	}
}
