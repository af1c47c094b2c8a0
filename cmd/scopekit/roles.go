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
	"github.com/scopekit/scopekit/internal/access/policy"
	pstore "github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

// Default timeout for role management commands.
const defaultRolesTimeout = 30 * time.Second

// rolesConfig holds configuration shared by the roles subcommands.
type rolesConfig struct {
	memory  bool
	actor   string
	timeout time.Duration
}

// NewRolesCmd creates the roles subcommand tree.
func NewRolesCmd() *cobra.Command {
	cfg := &rolesConfig{}

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage roles and role assignments",
		Long: `Inspect and manage roles, their granted permissions, and user
assignments. System roles are immutable and cannot be changed or deleted.`,
	}

	cmd.PersistentFlags().BoolVar(&cfg.memory, "memory", false, "operate on an in-memory store with the seed catalog")
	cmd.PersistentFlags().StringVar(&cfg.actor, "actor", "cli", "actor id recorded in the audit trail")
	cmd.PersistentFlags().DurationVar(&cfg.timeout, "timeout", defaultRolesTimeout, "timeout for database operations")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (overrides config)")

	cmd.AddCommand(newRolesListCmd(cfg))
	cmd.AddCommand(newRolesGetCmd(cfg))
	cmd.AddCommand(newRolesCreateCmd(cfg))
	cmd.AddCommand(newRolesDeleteCmd(cfg))
	cmd.AddCommand(newRolesAssignCmd(cfg))
	cmd.AddCommand(newRolesRevokeCmd(cfg))

	return cmd
}

// withEngine builds an engine for the configured store and runs fn with it.
func withEngine(cmd *cobra.Command, cfg *rolesConfig, fn func(ctx context.Context, engine *policy.Engine) error) error {
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

	return fn(ctx, engine)
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	cmd.Println(string(out))
	return nil
}

func newRolesListCmd(cfg *rolesConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all roles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, cfg, func(ctx context.Context, engine *policy.Engine) error {
				return printJSON(cmd, engine.ListRoles(ctx))
			})
		},
	}
}

func newRolesGetCmd(cfg *rolesConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "get <role-id>",
		Short: "Show a single role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, cfg, func(ctx context.Context, engine *policy.Engine) error {
				role, err := engine.GetRole(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, role)
			})
		},
	}
}

func newRolesCreateCmd(cfg *rolesConfig) *cobra.Command {
	var (
		id          string
		name        string
		description string
		permissions []string
		inherits    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a custom role",
		Long: `Create a custom role with the given granted permissions. The role id
is generated when omitted. Custom roles may inherit from one parent role.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, cfg, func(ctx context.Context, engine *policy.Engine) error {
				role := types.Role{
					ID:            id,
					Name:          name,
					Description:   description,
					Permissions:   permissions,
					InheritedFrom: inherits,
				}
				created, err := engine.CreateRole(ctx, cfg.actor, role)
				if err != nil {
					return err
				}
				return printJSON(cmd, created)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "role id (generated when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "human-readable role name (required)")
	cmd.Flags().StringVar(&description, "description", "", "role description")
	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "granted permission id or pattern (repeatable)")
	cmd.Flags().StringVar(&inherits, "inherits", "", "parent role id to inherit permissions from")

	return cmd
}

func newRolesDeleteCmd(cfg *rolesConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <role-id>",
		Short: "Delete a custom role",
		Long: `Delete a custom role. Roles with active assignments cannot be deleted;
revoke the assignments first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, cfg, func(ctx context.Context, engine *policy.Engine) error {
				if err := engine.DeleteRole(ctx, cfg.actor, args[0]); err != nil {
					return err
				}
				cmd.Printf("Role %q deleted\n", args[0])
				return nil
			})
		},
	}
}

func newRolesAssignCmd(cfg *rolesConfig) *cobra.Command {
	var (
		user         string
		role         string
		scope        string
		scopeID      string
		resourceType string
	)

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a role to a user at a scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, cfg, func(ctx context.Context, engine *policy.Engine) error {
				a := types.Assignment{
					UserID:       user,
					RoleID:       role,
					Scope:        access.Scope(scope),
					ScopeID:      scopeID,
					ResourceType: resourceType,
				}
				if err := engine.AssignRole(ctx, cfg.actor, a); err != nil {
					return err
				}
				cmd.Printf("Assigned role %q to user %q at %s scope\n", role, user, scope)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().StringVar(&role, "role", "", "role id (required)")
	cmd.Flags().StringVar(&scope, "scope", "system", "assignment scope (system, tenant, workspace, resource)")
	cmd.Flags().StringVar(&scopeID, "scope-id", "", "scope instance id (required for non-system scopes)")
	cmd.Flags().StringVar(&resourceType, "resource-type", "", "resource type (resource scope only)")

	return cmd
}

func newRolesRevokeCmd(cfg *rolesConfig) *cobra.Command {
	var (
		user    string
		role    string
		scope   string
		scopeID string
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a role assignment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, cfg, func(ctx context.Context, engine *policy.Engine) error {
				err := engine.RemoveRole(ctx, cfg.actor, user, role, access.Scope(scope), scopeID)
				if err != nil {
					return err
				}
				cmd.Printf("Revoked role %q from user %q at %s scope\n", role, user, scope)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().StringVar(&role, "role", "", "role id (required)")
	cmd.Flags().StringVar(&scope, "scope", "system", "assignment scope (system, tenant, workspace, resource)")
	cmd.Flags().StringVar(&scopeID, "scope-id", "", "scope instance id (required for non-system scopes)")

	return cmd
}
