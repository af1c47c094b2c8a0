// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/scopekit/scopekit/internal/access/policy"
	pstore "github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/config"
)

// loadConfig layers the config file named by the global --config flag
// (or its default location) under the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}

// databaseURL resolves the connection string from config, falling back
// to the DATABASE_URL environment variable.
func databaseURL(cfg *config.Config) (string, error) {
	if cfg.Database.URL != "" {
		return cfg.Database.URL, nil
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", oops.Code("CONFIG_INVALID").
		Errorf("database URL is required (set database.url, --database-url, or DATABASE_URL)")
}

// openPool connects a pgx pool to the configured database.
func openPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping database").Wrap(err)
	}
	return pool, nil
}

// newEngine builds a policy engine over the given store with a freshly
// loaded role snapshot.
func newEngine(ctx context.Context, s pstore.Store, cfg *config.Config, opts ...policy.EngineOption) (*policy.Engine, *policy.Cache, error) {
	cache := policy.NewCache(s,
		policy.WithStalenessThreshold(cfg.Cache.StalenessThreshold),
		policy.WithLastUpdateGauge(policy.SnapshotLastUpdateGauge()),
	)
	if err := cache.Reload(ctx); err != nil {
		return nil, nil, err
	}
	return policy.NewEngine(s, cache, opts...), cache, nil
}
