// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	pstore "github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the permission catalog and system roles",
		Long: `Runs pending migrations and installs the built-in permission catalog
and system roles. This command is idempotent - existing system roles are
updated in place rather than duplicated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL (overrides config)")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, cfg *seedConfig) error {
	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url, err := databaseURL(appCfg)
	if err != nil {
		return err
	}

	// Add timeout to prevent indefinite hangs
	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Running migrations...")
	migrator, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}

	cmd.Println("Connecting to database...")
	pool, err := openPool(ctx, url)
	if err != nil {
		return err
	}
	defer pool.Close()

	engine, _, err := newEngine(ctx, pstore.NewPostgresStore(pool), appCfg)
	if err != nil {
		return err
	}

	cmd.Println("Seeding permission catalog and system roles...")
	if err := engine.Seed(ctx); err != nil {
		return oops.Code("SEED_FAILED").With("operation", "seed catalog").Wrap(err)
	}

	cmd.Println("Seed completed successfully")
	return nil
}
