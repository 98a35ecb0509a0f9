package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsearch/internal/async"
	"github.com/custodia-labs/docsearch/internal/output"
	"github.com/custodia-labs/docsearch/internal/ui"
)

func newIngestCmd() *cobra.Command {
	var tenant, owner string
	var tags []string
	var plain bool

	cmd := &cobra.Command{
		Use:   "ingest [path]...",
		Short: "Ingest one or more files (or a directory) into a tenant's index",
		Args:  cobra.MinimumNArgs(1),
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

			var paths []string
			for _, p := range args {
				info, statErr := os.Stat(p)
				if statErr != nil {
					return statErr
				}
				if !info.IsDir() {
					paths = append(paths, p)
					continue
				}
				walkErr := filepath.Walk(p, func(path string, fi os.FileInfo, err error) error {
					if err != nil || fi.IsDir() {
						return err
					}
					paths = append(paths, path)
					return nil
				})
				if walkErr != nil {
					return walkErr
				}
			}

			renderer := ui.NewRenderer(ui.NewConfig(os.Stdout,
				ui.WithForcePlain(plain),
				ui.WithProjectDir(args[0]),
			))
			if err := renderer.Start(ctx); err != nil {
				return err
			}

			start := time.Now()
			var ingested, failed int

			indexer := a.StartBackgroundIndexer(ctx, func(ctx context.Context, progress *async.IndexProgress) error {
				progress.SetStage(async.StageEmbedding, len(paths))
				for i, p := range paths {
					renderer.UpdateProgress(ui.ProgressEvent{
						Stage:       ui.StageEmbedding,
						Current:     i,
						Total:       len(paths),
						CurrentFile: p,
					})

					data, readErr := os.ReadFile(p)
					if readErr != nil {
						renderer.AddError(ui.ErrorEvent{File: p, Err: readErr, IsWarn: true})
						failed++
						progress.UpdateFiles(i + 1)
						continue
					}
					mimeType := mime.TypeByExtension(filepath.Ext(p))
					if mimeType == "" {
						mimeType = "application/octet-stream"
					} else if idx := strings.Index(mimeType, ";"); idx >= 0 {
						mimeType = mimeType[:idx]
					}

					if _, ingestErr := a.Ingest.IngestFile(ctx, data, filepath.Base(p), mimeType, tenant, owner, tags, nil); ingestErr != nil {
						renderer.AddError(ui.ErrorEvent{File: p, Err: ingestErr, IsWarn: true})
						failed++
					} else {
						ingested++
					}
					progress.UpdateFiles(i + 1)
				}
				return nil
			})

			for indexer.IsRunning() {
				time.Sleep(100 * time.Millisecond)
			}
			waitErr := indexer.Wait()

			chunkCount, _ := a.Store.CountChunks(ctx, tenant)
			renderer.Complete(ui.CompletionStats{
				Files:    ingested,
				Chunks:   chunkCount,
				Duration: time.Since(start),
				Errors:   failed,
				Embedder: ui.EmbedderInfo{
					Backend:    a.Config.Embeddings.Provider,
					Model:      a.Embed.ModelName(),
					Dimensions: a.Embed.Dimensions(),
				},
			})
			if err := renderer.Stop(); err != nil {
				return err
			}

			if failed > 0 {
				output.New(os.Stdout).Warningf("%d of %d files failed to ingest", failed, len(paths))
			}
			if waitErr != nil {
				return waitErr
			}
			return a.SaveVectorIndexes()
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&owner, "owner", "", "owner ID")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach to every ingested artifact")
	cmd.Flags().BoolVar(&plain, "plain", false, "force plain-text progress output (no TUI)")
	return cmd
}
