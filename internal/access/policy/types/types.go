// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

// Package types defines the core types for the scoped RBAC policy engine.
package types

import (
	"fmt"
	"time"

	"github.com/scopekit/scopekit/internal/access"
)

// Action is the verb half of a permission id.
type Action string

// Known actions.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
	ActionAssign Action = "assign"
	ActionExport Action = "export"
)

// KnownActions returns the closed action enum in declaration order.
func KnownActions() []Action {
	return []Action{
		ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionManage, ActionAssign, ActionExport,
	}
}

// Known reports whether a is a member of the action enum.
func (a Action) Known() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionManage, ActionAssign, ActionExport:
		return true
	default:
		return false
	}
}

// String returns the action name.
func (a Action) String() string {
	return string(a)
}

// Permission is an atomic (resource, action) grant. ID uses the dotted
// "resource.action" encoding and is unique within the catalog. System
// permissions are seeded at startup and immutable.
type Permission struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Resource    string       `json:"resource"`
	Action      Action       `json:"action"`
	Scope       access.Scope `json:"scope"`
	Category    string       `json:"category"`
	IsSystem    bool         `json:"is_system"`
}

// Role is a named bundle of permission ids, optionally inheriting a single
// parent role's bundle through InheritedFrom. Permission entries need not
// exist in the catalog; unresolved ids are inert. System roles are seeded
// at startup and immutable.
type Role struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Permissions   []string  `json:"permissions"`
	IsSystem      bool      `json:"is_system"`
	InheritedFrom string    `json:"inherited_from,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Assignment binds a role to a user within a concrete scope instance. The
// composite key is (UserID, RoleID, Scope, ScopeID). ScopeID is required
// for every scope but system, where it must be empty. Assignments are
// created and removed, never mutated.
type Assignment struct {
	UserID       string       `json:"user_id"`
	RoleID       string       `json:"role_id"`
	Scope        access.Scope `json:"scope"`
	ScopeID      string       `json:"scope_id,omitempty"`
	ResourceType string       `json:"resource_type,omitempty"`
	AssignedAt   time.Time    `json:"assigned_at"`
	AssignedBy   string       `json:"assigned_by"`
}

// Binding converts the assignment's scope instance into an access.Binding
// for applicability checks.
func (a Assignment) Binding() access.Binding {
	b := access.Binding{Scope: a.Scope}
	switch a.Scope {
	case access.ScopeTenant:
		b.TenantID = a.ScopeID
	case access.ScopeWorkspace:
		b.WorkspaceID = a.ScopeID
	case access.ScopeResource:
		b.ResourceID = a.ScopeID
		b.ResourceType = a.ResourceType
	}
	return b
}

// Key returns the composite identity of the assignment.
func (a Assignment) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", a.UserID, a.RoleID, a.Scope, a.ScopeID)
}

// Result is the outcome of a permission check. Denial is a normal result
// with a human-readable reason, never an error. On an allow, Role and
// Permission identify the grant that produced the decision, for audit.
type Result struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason"`
	Role       *Role  `json:"role,omitempty"`
	Permission string `json:"permission,omitempty"`
}

// Allow builds an allowed Result naming the granting role and pattern.
func Allow(reason string, role *Role, permission string) Result {
	return Result{Allowed: true, Reason: reason, Role: role, Permission: permission}
}

// Deny builds a denied Result with a diagnostic reason.
func Deny(reason string) Result {
	return Result{Allowed: false, Reason: reason}
}

// ContextualPermission annotates a catalog permission with its grant state
// for a specific user and context. GrantedBy names the granting role id
// when Granted is true. This is the materialized view used for permission
// enumeration, not for access decisions.
type ContextualPermission struct {
	Permission
	Granted   bool   `json:"granted"`
	GrantedBy string `json:"granted_by,omitempty"`
}

// BulkOperator combines the per-permission results of a bulk check.
type BulkOperator string

// Bulk combinators.
const (
	BulkAND BulkOperator = "AND"
	BulkOR  BulkOperator = "OR"
)

// Known reports whether op is a valid combinator.
func (op BulkOperator) Known() bool {
	return op == BulkAND || op == BulkOR
}
