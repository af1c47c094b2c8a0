// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package access

// Context describes the situational scope of a single permission check. It
// is a value object: never persisted, total over all field combinations.
type Context struct {
	UserID       string
	TenantID     string
	WorkspaceID  string
	ResourceID   string
	ResourceType string
}

// Scope derives the narrowest scope level the context addresses:
// resource when both resource id and type are set, then workspace, then
// tenant, and system when no instance ids are present.
func (c Context) Scope() Scope {
	switch {
	case c.ResourceID != "" && c.ResourceType != "":
		return ScopeResource
	case c.WorkspaceID != "":
		return ScopeWorkspace
	case c.TenantID != "":
		return ScopeTenant
	default:
		return ScopeSystem
	}
}

// ScopeID returns the instance id for the context's derived scope, or empty
// for a system-level context.
func (c Context) ScopeID() string {
	switch c.Scope() {
	case ScopeResource:
		return c.ResourceID
	case ScopeWorkspace:
		return c.WorkspaceID
	case ScopeTenant:
		return c.TenantID
	default:
		return ""
	}
}
