package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSuggestCmd() *cobra.Command {
	var tenant string
	var limit int

	cmd := &cobra.Command{
		Use:   "suggest [prefix]",
		Short: "Autocomplete a prefix against the suggestion index",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if tenant == "" {
				return fmt.Errorf("--tenant is required")
			}

			ctx := c.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			suggestions, err := a.Suggest.Suggest(ctx, tenant, args[0], limit)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Println("no suggestions")
				return nil
			}
			for _, s := range suggestions {
				fmt.Printf("%-8s %5.2f  %s\n", s.Type, s.Score, s.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of suggestions")
	return cmd
}
