// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package policy

import (
	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

// perm builds a seed permission. Seed entries are system-owned and their id
// is the canonical resource.action encoding.
func perm(resource string, action types.Action, scope access.Scope, category, name, description string) types.Permission {
	return types.Permission{
		ID:          access.JoinID(resource, string(action)),
		Name:        name,
		Description: description,
		Resource:    resource,
		Action:      action,
		Scope:       scope,
		Category:    category,
		IsSystem:    true,
	}
}

// SeedPermissions returns the built-in permission catalog. Every entry
// passes ValidatePermission; the seed smoke test keeps that honest.
func SeedPermissions() []types.Permission {
	return []types.Permission{
		// Tenant administration.
		perm("tenant", types.ActionCreate, access.ScopeSystem, "administration", "Create tenants", "Provision a new tenant"),
		perm("tenant", types.ActionRead, access.ScopeTenant, "administration", "View tenant", "Read tenant details and membership"),
		perm("tenant", types.ActionUpdate, access.ScopeTenant, "administration", "Update tenant", "Change tenant settings and profile"),
		perm("tenant", types.ActionDelete, access.ScopeSystem, "administration", "Delete tenant", "Remove a tenant and all its data"),
		perm("tenant", types.ActionManage, access.ScopeTenant, "administration", "Manage tenant", "Full control over a tenant"),

		// Workspace lifecycle.
		perm("workspace", types.ActionCreate, access.ScopeTenant, "workspaces", "Create workspaces", "Create a workspace within a tenant"),
		perm("workspace", types.ActionRead, access.ScopeWorkspace, "workspaces", "View workspace", "Read workspace contents"),
		perm("workspace", types.ActionUpdate, access.ScopeWorkspace, "workspaces", "Update workspace", "Change workspace settings"),
		perm("workspace", types.ActionDelete, access.ScopeTenant, "workspaces", "Delete workspace", "Remove a workspace"),
		perm("workspace", types.ActionManage, access.ScopeWorkspace, "workspaces", "Manage workspace", "Full control over a workspace"),

		// User administration.
		perm("user", types.ActionCreate, access.ScopeTenant, "users", "Invite users", "Invite a user into a tenant"),
		perm("user", types.ActionRead, access.ScopeTenant, "users", "View users", "List and read user profiles"),
		perm("user", types.ActionUpdate, access.ScopeTenant, "users", "Update users", "Edit user profiles"),
		perm("user", types.ActionDelete, access.ScopeTenant, "users", "Remove users", "Remove a user from a tenant"),

		// Role management.
		perm("role", types.ActionCreate, access.ScopeTenant, "roles", "Create roles", "Define custom roles"),
		perm("role", types.ActionRead, access.ScopeTenant, "roles", "View roles", "List roles and their permissions"),
		perm("role", types.ActionUpdate, access.ScopeTenant, "roles", "Update roles", "Edit custom roles"),
		perm("role", types.ActionDelete, access.ScopeTenant, "roles", "Delete roles", "Remove custom roles"),
		perm("role", types.ActionAssign, access.ScopeTenant, "roles", "Assign roles", "Grant and revoke role assignments"),

		// Reports.
		perm("report", types.ActionRead, access.ScopeWorkspace, "reports", "View reports", "Read reports in a workspace"),
		perm("report", types.ActionCreate, access.ScopeWorkspace, "reports", "Create reports", "Create reports in a workspace"),
		perm("report", types.ActionExport, access.ScopeWorkspace, "reports", "Export reports", "Export report data"),

		// Audit and settings.
		perm("audit", types.ActionRead, access.ScopeTenant, "compliance", "View audit log", "Read the tenant audit trail"),
		perm("audit", types.ActionExport, access.ScopeTenant, "compliance", "Export audit log", "Export audit records"),
		perm("settings", types.ActionRead, access.ScopeTenant, "settings", "View settings", "Read tenant settings"),
		perm("settings", types.ActionUpdate, access.ScopeTenant, "settings", "Update settings", "Change tenant settings"),
	}
}

// SeedRoles returns the built-in system roles. Inheritance is single-parent:
// each chain (viewer → tenant-member → tenant-admin, viewer →
// workspace-member → workspace-admin) stays a forest, and the seed smoke
// test asserts the graph is acyclic.
func SeedRoles() []types.Role {
	return []types.Role{
		{
			ID:          "super-admin",
			Name:        "Super Administrator",
			Description: "Unrestricted access to every resource and action",
			Permissions: []string{access.Wildcard},
			IsSystem:    true,
		},
		{
			ID:          "viewer",
			Name:        "Viewer",
			Description: "Read-only access to tenants, workspaces and reports",
			Permissions: []string{"tenant.read", "workspace.read", "report.read"},
			IsSystem:    true,
		},
		{
			ID:            "tenant-member",
			Name:          "Tenant Member",
			Description:   "Regular member of a tenant",
			Permissions:   []string{"user.read", "settings.read"},
			InheritedFrom: "viewer",
			IsSystem:      true,
		},
		{
			ID:            "tenant-admin",
			Name:          "Tenant Administrator",
			Description:   "Full control within a tenant",
			Permissions:   []string{"tenant.*", "user.*", "role.*", "workspace.create", "workspace.delete", "audit.read", "audit.export", "settings.update"},
			InheritedFrom: "tenant-member",
			IsSystem:      true,
		},
		{
			ID:            "workspace-member",
			Name:          "Workspace Member",
			Description:   "Contributor within a workspace",
			Permissions:   []string{"report.create", "report.export"},
			InheritedFrom: "viewer",
			IsSystem:      true,
		},
		{
			ID:            "workspace-admin",
			Name:          "Workspace Administrator",
			Description:   "Full control within a workspace",
			Permissions:   []string{"workspace.*", "report.*"},
			InheritedFrom: "workspace-member",
			IsSystem:      true,
		},
	}
}
