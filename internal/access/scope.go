// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

// Package access provides the scope hierarchy and permission matching
// primitives for scopekit.
//
// Permission ids use dotted "resource.action" format:
//   - exact grant: "tenant.read"
//   - action wildcard: "tenant.*"
//   - universal wildcard: "*"
//
// Scopes narrow from system through tenant and workspace down to resource;
// a wider scope contains every narrower one.
package access

// Scope is the breadth at which a permission or role assignment applies.
type Scope string

// Scope levels, widest to narrowest.
const (
	ScopeSystem    Scope = "system"
	ScopeTenant    Scope = "tenant"
	ScopeWorkspace Scope = "workspace"
	ScopeResource  Scope = "resource"
)

// scopeOrder fixes the containment index for each level. Lower index is wider.
var scopeOrder = map[Scope]int{
	ScopeSystem:    0,
	ScopeTenant:    1,
	ScopeWorkspace: 2,
	ScopeResource:  3,
}

// ScopePrecedence lists the scopes in the fixed order evaluation walks them:
// a system-level grant is always checked before narrower ones.
var ScopePrecedence = []Scope{ScopeSystem, ScopeTenant, ScopeWorkspace, ScopeResource}

// Known reports whether s is one of the four scope levels.
func (s Scope) Known() bool {
	_, ok := scopeOrder[s]
	return ok
}

// String returns the scope name.
func (s Scope) String() string {
	return string(s)
}

// ScopeContains reports whether parent contains child. A scope contains
// itself and every narrower scope. Unknown scopes contain nothing and are
// contained by nothing (fail closed).
func ScopeContains(parent, child Scope) bool {
	pi, ok := scopeOrder[parent]
	if !ok {
		return false
	}
	ci, ok := scopeOrder[child]
	if !ok {
		return false
	}
	return pi <= ci
}

// Binding pins a grant to a concrete scope instance. A system binding has no
// instance ids; a tenant binding carries the tenant id, and so on.
type Binding struct {
	Scope        Scope
	TenantID     string
	WorkspaceID  string
	ResourceID   string
	ResourceType string
}

// Applicable reports whether the binding applies to the given evaluation
// context. System bindings always apply; a binding at any narrower scope
// applies only when its instance ids match the context. Unknown scope
// values never apply.
func (b Binding) Applicable(c Context) bool {
	switch b.Scope {
	case ScopeSystem:
		return true
	case ScopeTenant:
		return b.TenantID != "" && b.TenantID == c.TenantID
	case ScopeWorkspace:
		return b.WorkspaceID != "" && b.WorkspaceID == c.WorkspaceID
	case ScopeResource:
		return b.ResourceID != "" && b.ResourceID == c.ResourceID &&
			b.ResourceType == c.ResourceType
	default:
		return false
	}
}
