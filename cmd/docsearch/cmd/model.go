package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsearch/internal/embed"
	"github.com/custodia-labs/docsearch/internal/output"
	"github.com/custodia-labs/docsearch/internal/ui"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage the locally cached embedding model",
		Long: "Downloads, inspects, or removes the quantized embedding model cached under\n" +
			"~/.docsearch/models. Pre-downloading is useful before moving to an air-gapped\n" +
			"host; the download is flock-guarded so concurrent instances do not race.",
	}
	cmd.AddCommand(newModelStatusCmd(), newModelDownloadCmd(), newModelDeleteCmd())
	return cmd
}

func newModelStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the embedding model is downloaded",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			m := embed.NewModelManager(embed.DefaultModelsDir())
			if m.ModelExists() {
				fmt.Fprintf(c.OutOrStdout(), "model ready: %s\n", m.ModelPath())
			} else {
				fmt.Fprintf(c.OutOrStdout(), "model not downloaded (expected at %s)\n", m.ModelPath())
			}
			return nil
		},
	}
}

func newModelDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download the embedding model if it is not already cached",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			w := output.New(c.OutOrStdout())
			m := embed.NewModelManager(embed.DefaultModelsDir())

			path, err := m.EnsureModel(c.Context(), func(downloaded, total int64) {
				if total > 0 {
					w.Progress(int(downloaded/(1<<20)), int(total/(1<<20)), "downloading model (MiB)")
				}
			})
			w.ProgressDone()
			if err != nil {
				return err
			}
			w.Successf("model ready: %s (%s)", path, ui.FormatBytes(fileSizeOf(path)))
			return nil
		},
	}
}

func fileSizeOf(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func newModelDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the cached embedding model",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			m := embed.NewModelManager(embed.DefaultModelsDir())
			if !m.ModelExists() {
				fmt.Fprintln(c.OutOrStdout(), "no cached model to delete")
				return nil
			}
			if err := m.DeleteModel(); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), "deleted cached model")
			return nil
		},
	}
}
