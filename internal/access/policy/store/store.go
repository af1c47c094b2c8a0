// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

// Package store defines the repository interface for roles, permissions and
// role assignments, with an in-memory adapter and a PostgreSQL adapter.
// The engine depends only on the Store interface; a persistent adapter is a
// drop-in replacement for the in-memory one.
package store

import (
	"context"

	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

// Store is the durable repository behind the policy engine. Implementations
// must be safe for concurrent use; a reader must observe either the
// pre-write or the post-write state of any single operation, never a torn
// intermediate.
type Store interface {
	// Permissions (the catalog's durable form).
	PutPermission(ctx context.Context, p types.Permission) error
	ListPermissions(ctx context.Context) ([]types.Permission, error)

	// Roles.
	CreateRole(ctx context.Context, r types.Role) error
	GetRole(ctx context.Context, id string) (types.Role, error)
	UpdateRole(ctx context.Context, r types.Role) error
	DeleteRole(ctx context.Context, id string) error
	ListRoles(ctx context.Context) ([]types.Role, error)

	// Assignments.
	CreateAssignment(ctx context.Context, a types.Assignment) error
	DeleteAssignment(ctx context.Context, userID, roleID string, scope access.Scope, scopeID string) error
	ListAssignments(ctx context.Context, userID string) ([]types.Assignment, error)
	CountAssignmentsByRole(ctx context.Context, roleID string) (int, error)
}
