package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the scopekit CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scopekit",
		Short: "Scopekit - scoped role and permission policy engine",
		Long: `Scopekit evaluates role-based permissions across a scope hierarchy
(system, tenant, workspace, resource) with wildcard grants and
single-parent role inheritance.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewRolesCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
