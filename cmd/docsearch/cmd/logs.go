package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsearch/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var level string
	var pattern string
	var noColor bool
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail or follow the engine's structured log file",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg := logging.ViewerConfig{Level: level, NoColor: noColor, ShowSource: true}
			if pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid --grep pattern: %w", err)
				}
				cfg.Pattern = re
			}

			v := logging.NewViewer(cfg, c.OutOrStdout())
			path := logging.DefaultLogPath()

			entries, err := v.Tail(path, lines)
			if err != nil {
				return fmt.Errorf("tail log: %w", err)
			}
			v.Print(entries)

			if !follow {
				return nil
			}

			ch := make(chan logging.LogEntry, 64)
			ctx, cancel := context.WithCancel(c.Context())
			defer cancel()
			go func() {
				for entry := range ch {
					v.Print([]logging.LogEntry{entry})
				}
			}()
			return v.Follow(ctx, path, ch)
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "filter by minimum level: debug|info|warn|error")
	cmd.Flags().StringVar(&pattern, "grep", "", "filter by regular expression")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep following the log file for new entries")
	cmd.Flags().IntVar(&lines, "lines", 100, "number of trailing lines to show")
	return cmd
}
