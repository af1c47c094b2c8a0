// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	pstore "github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/store"
)

// Default timeout for status command.
const defaultStatusTimeout = 10 * time.Second

// statusConfig holds configuration for the status command.
type statusConfig struct {
	timeout time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database and catalog status",
		Long: `Shows the migration state of the configured database and the sizes
of the permission catalog, the role set, and pending migrations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultStatusTimeout, "timeout for database operations")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL (overrides config)")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string, cfg *statusConfig) error {
	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url, err := databaseURL(appCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	migrator, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}

	if version == 0 {
		cmd.Println("Migrations: none applied")
	} else {
		name, nameErr := store.MigrationName(version)
		if nameErr != nil {
			return nameErr
		}
		cmd.Printf("Migrations: version %d (%s)\n", version, name)
	}
	if dirty {
		cmd.Println("Migration state: DIRTY")
	}
	cmd.Printf("Pending migrations: %d\n", len(pending))

	// Catalog counts are only meaningful once the schema exists.
	if version == 0 {
		return nil
	}

	pool, err := openPool(ctx, url)
	if err != nil {
		return err
	}
	defer pool.Close()

	s := pstore.NewPostgresStore(pool)
	perms, err := s.ListPermissions(ctx)
	if err != nil {
		return err
	}
	roles, err := s.ListRoles(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("Permissions: %d\n", len(perms))
	cmd.Printf("Roles: %d\n", len(roles))
	return nil
}
