// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scopekit/scopekit/internal/access"
	pstore "github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

// Default timeout for check command.
const defaultCheckTimeout = 10 * time.Second

// checkConfig holds configuration for the check command.
type checkConfig struct {
	user         string
	tenant       string
	workspace    string
	resource     string
	resourceType string
	op           string
	memory       bool
	timeout      time.Duration
}

// Validate checks that the configuration is valid.
func (cfg *checkConfig) Validate() error {
	if cfg.user == "" {
		return fmt.Errorf("--user is required")
	}
	if cfg.op != "any" && cfg.op != "all" {
		return fmt.Errorf("--op must be 'any' or 'all', got %q", cfg.op)
	}
	return nil
}

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	cfg := &checkConfig{}

	cmd := &cobra.Command{
		Use:   "check [permission]...",
		Short: "Evaluate one or more permission checks",
		Long: `Evaluate whether a user holds the named permissions in the given
access context. Multiple permissions are combined with --op (any/all).
The command exits non-zero when the decision is a denial.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.user, "user", "", "user id to evaluate (required)")
	cmd.Flags().StringVar(&cfg.tenant, "tenant", "", "tenant id of the access context")
	cmd.Flags().StringVar(&cfg.workspace, "workspace", "", "workspace id of the access context")
	cmd.Flags().StringVar(&cfg.resource, "resource", "", "resource id of the access context")
	cmd.Flags().StringVar(&cfg.resourceType, "resource-type", "", "resource type of the access context")
	cmd.Flags().StringVar(&cfg.op, "op", "any", "combine multiple permissions with 'any' (OR) or 'all' (AND)")
	cmd.Flags().BoolVar(&cfg.memory, "memory", false, "evaluate against an in-memory store with the seed catalog")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultCheckTimeout, "timeout for evaluation (e.g., 10s)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL (overrides config)")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string, cfg *checkConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	var s pstore.Store
	if cfg.memory {
		s = pstore.NewMemoryStore()
	} else {
		url, err := databaseURL(appCfg)
		if err != nil {
			return err
		}
		pool, err := openPool(ctx, url)
		if err != nil {
			return err
		}
		defer pool.Close()
		s = pstore.NewPostgresStore(pool)
	}

	engine, _, err := newEngine(ctx, s, appCfg)
	if err != nil {
		return err
	}
	if cfg.memory {
		if err := engine.Seed(ctx); err != nil {
			return err
		}
	}

	actx := access.Context{
		UserID:       cfg.user,
		TenantID:     cfg.tenant,
		WorkspaceID:  cfg.workspace,
		ResourceID:   cfg.resource,
		ResourceType: cfg.resourceType,
	}

	var res types.Result
	if len(args) == 1 {
		res, err = engine.Check(ctx, actx, args[0])
	} else {
		op := types.BulkOR
		if cfg.op == "all" {
			op = types.BulkAND
		}
		res, err = engine.CheckBulk(ctx, actx, args, op)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	cmd.Println(string(out))

	if !res.Allowed {
		cmd.SilenceUsage = true
		return fmt.Errorf("denied: %s", res.Reason)
	}
	return nil
}
