// Package cmd provides the CLI commands for docsearch, the contextual
// document search engine: ingest, search, suggest, reindex, stats, and
// logs, each a thin driver over internal/app's wired components.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsearch/internal/logging"
	"github.com/custodia-labs/docsearch/internal/profiling"
	"github.com/custodia-labs/docsearch/pkg/version"
)

var (
	dataDir     string
	redisAddr   string
	debugMode   bool
	profileCPU  string
	profileMem  string

	logger       *slog.Logger
	loggingDone  func()
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
)

// NewRootCmd builds the root "docsearch" command and attaches every
// subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "docsearch",
		Short:         "Multi-tenant contextual document search engine",
		Long:          "docsearch ingests heterogeneous artifacts (PDF, CSV, text, images, snippets) and serves low-latency hybrid keyword/semantic search over them.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			cfg := logging.DefaultConfig()
			if debugMode {
				cfg = logging.DebugConfig()
			}
			l, cleanup, err := logging.Setup(cfg)
			if err != nil {
				return fmt.Errorf("set up logging: %w", err)
			}
			logger = l
			loggingDone = cleanup
			slog.SetDefault(l)

			if profileCPU != "" {
				cleanup, err := profiler.StartCPU(profileCPU)
				if err != nil {
					return fmt.Errorf("start cpu profile: %w", err)
				}
				cpuCleanup = cleanup
			}
			return nil
		},
		PersistentPostRunE: func(c *cobra.Command, args []string) error {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			if profileMem != "" {
				if err := profiler.WriteHeap(profileMem); err != nil {
					fmt.Fprintf(os.Stderr, "write heap profile: %v\n", err)
				}
			}
			if loggingDone != nil {
				loggingDone()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory for the metadata, vector, and BM25 stores")
	cmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "suggestion store Redis address (empty keeps the configured redis.addr)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "write a CPU profile to this path")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "write a heap profile to this path on exit")

	cmd.AddCommand(
		newInitCmd(),
		newIngestCmd(),
		newSearchCmd(),
		newSuggestCmd(),
		newReindexCmd(),
		newStatsCmd(),
		newModelCmd(),
		newLogsCmd(),
		newServeCmd(),
	)
	return cmd
}

// Execute runs the root command, printing the error cobra suppressed
// (SilenceErrors) so the caller only has to map it to an exit code.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docsearch"
	}
	return home + "/.local/share/docsearch"
}
