package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsearch/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var tenant string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index configuration and statistics for a tenant",
		Args:  cobra.NoArgs,
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

			info, err := a.Stats(ctx, tenant)
			if err != nil {
				return err
			}

			suggestStatus := "ready"
			if err := a.Suggest.Ping(ctx); err != nil {
				suggestStatus = "offline"
			}

			embedderStatus := "ready"
			if !info.Compatible {
				embedderStatus = "error"
			}

			status := ui.StatusInfo{
				TenantID:       info.TenantID,
				TotalFiles:     info.ArtifactCount,
				TotalChunks:    info.ChunkCount,
				LastIndexed:    info.UpdatedAt,
				MetadataSize:   info.IndexSizeBytes - info.BM25SizeBytes - info.VectorSizeBytes,
				BM25Size:       info.BM25SizeBytes,
				VectorSize:     info.VectorSizeBytes,
				TotalSize:      info.IndexSizeBytes,
				EmbedderType:   a.Config.Embeddings.Provider,
				EmbedderStatus: embedderStatus,
				EmbedderModel:  info.CurrentModel,
				SuggestStatus:  suggestStatus,
			}

			r := ui.NewStatusRenderer(c.OutOrStdout(), ui.DetectNoColor())
			if asJSON {
				return r.RenderJSON(status)
			}
			if err := r.Render(status); err != nil {
				return err
			}

			if !info.Compatible {
				fmt.Fprintf(c.OutOrStdout(),
					"\nIndex was built with %s (%d dims) but the configured embedder is %s (%d dims).\n"+
						"Semantic search is disabled for this tenant until a reindex rebuilds its vectors.\n",
					info.IndexModel, info.IndexDimensions, info.CurrentModel, info.CurrentDimensions)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}
