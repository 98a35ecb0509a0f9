package cmd

import (
	"context"

	"github.com/custodia-labs/docsearch/internal/app"
	"github.com/custodia-labs/docsearch/internal/config"
)

// buildApp loads configuration from dataDir/redisAddr flags and wires a
// full *app.App. Each subcommand that needs the stores (ingest, search,
// suggest, reindex, stats, serve) calls this once, runs its operation,
// then defers Close.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}
	if redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}

	return app.New(ctx, cfg, logger, app.Options{DataDir: dataDir})
}
