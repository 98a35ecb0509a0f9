package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsearch/internal/search"
	"github.com/custodia-labs/docsearch/internal/telemetry"
)

func newSearchCmd() *cobra.Command {
	var tenant string
	var limit int
	var mode string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a hybrid keyword/semantic search against a tenant's index",
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

			query := args[0]
			start := time.Now()
			resp := a.Search.Search(ctx, search.Request{
				Query:    query,
				TenantID: tenant,
				Limit:    limit,
				Mode:     search.Mode(mode),
			})
			elapsed := time.Since(start)

			if a.Metrics != nil {
				a.Metrics.Record(telemetry.QueryEvent{
					Query:       query,
					TenantID:    tenant,
					QueryType:   queryTypeFor(resp.Mode),
					ResultCount: len(resp.Results),
					Latency:     elapsed,
					Timestamp:   start,
				})
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			if resp.Error != "" {
				fmt.Printf("search failed: %s\n", resp.Error)
				return nil
			}
			if len(resp.Results) == 0 {
				fmt.Println("no results")
				return nil
			}
			for i, r := range resp.Results {
				fmt.Printf("%2d. [%5.3f %-18s] %s  %s\n", i+1, r.Score, r.MatchType, r.FileName, r.OpenURL)
				if r.ChunkPreview != "" {
					fmt.Printf("    %s\n", strings.ReplaceAll(r.ChunkPreview, "\n", " "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	cmd.Flags().StringVar(&mode, "mode", "auto", "search mode: auto|semantic|keyword|hybrid|compound")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func queryTypeFor(mode search.Mode) telemetry.QueryType {
	switch mode {
	case search.ModeSemantic:
		return telemetry.QueryTypeSemantic
	case search.ModeHybrid, search.ModeCompound:
		return telemetry.QueryTypeMixed
	default:
		return telemetry.QueryTypeLexical
	}
}
