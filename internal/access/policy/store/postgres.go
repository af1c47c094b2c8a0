// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

// NotifyChannel is the PostgreSQL channel role and assignment mutations
// publish on. Engine caches LISTEN on it to invalidate their snapshots.
const NotifyChannel = "scopekit_policy_changed"

// PgxPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it, which keeps the unit tests database-free.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const roleColumns = `id, name, description, permissions, is_system, inherited_from, created_at, updated_at`

func scanRole(row pgx.Row) (types.Role, error) {
	var r types.Role
	var inheritedFrom *string
	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.Permissions,
		&r.IsSystem, &inheritedFrom, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return types.Role{}, err
	}
	if inheritedFrom != nil {
		r.InheritedFrom = *inheritedFrom
	}
	return r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// PutPermission upserts a catalog permission record.
func (s *PostgresStore) PutPermission(ctx context.Context, p types.Permission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO permissions (id, name, description, resource, action, scope, category, is_system)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			resource = EXCLUDED.resource,
			action = EXCLUDED.action,
			scope = EXCLUDED.scope,
			category = EXCLUDED.category,
			is_system = EXCLUDED.is_system
	`, p.ID, p.Name, p.Description, p.Resource, string(p.Action), string(p.Scope), p.Category, p.IsSystem)
	if err != nil {
		return oops.In("store").With("id", p.ID).Wrap(err)
	}
	return nil
}

// ListPermissions returns all permission records ordered by id.
func (s *PostgresStore) ListPermissions(ctx context.Context) ([]types.Permission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, resource, action, scope, category, is_system
		FROM permissions ORDER BY id
	`)
	if err != nil {
		return nil, oops.In("store").Wrap(err)
	}
	defer rows.Close()

	var perms []types.Permission
	for rows.Next() {
		var p types.Permission
		var action, scope string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Resource, &action, &scope, &p.Category, &p.IsSystem); err != nil {
			return nil, oops.In("store").Wrap(err)
		}
		p.Action = types.Action(action)
		p.Scope = access.Scope(scope)
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("store").Wrap(err)
	}
	return perms, nil
}

// CreateRole inserts a new role and notifies listeners in one statement
// batch. A duplicate id maps to ROLE_CONFLICT.
func (s *PostgresStore) CreateRole(ctx context.Context, r types.Role) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO roles (id, name, description, permissions, is_system, inherited_from, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, r.ID, r.Name, r.Description, r.Permissions, r.IsSystem, nullable(r.InheritedFrom))
	if err != nil {
		if isUniqueViolation(err) {
			return oops.In("store").
				Code(CodeRoleConflict).
				With("id", r.ID).
				Errorf("role %q already exists", r.ID)
		}
		return oops.In("store").With("id", r.ID).Wrap(err)
	}
	return s.notify(ctx)
}

// GetRole fetches a role by id.
func (s *PostgresStore) GetRole(ctx context.Context, id string) (types.Role, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	r, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Role{}, oops.In("store").
				Code(CodeRoleNotFound).
				With("id", id).
				Errorf("role %q not found", id)
		}
		return types.Role{}, oops.In("store").With("id", id).Wrap(err)
	}
	return r, nil
}

// UpdateRole replaces an existing role.
func (s *PostgresStore) UpdateRole(ctx context.Context, r types.Role) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE roles SET
			name = $2, description = $3, permissions = $4,
			inherited_from = $5, updated_at = now()
		WHERE id = $1
	`, r.ID, r.Name, r.Description, r.Permissions, nullable(r.InheritedFrom))
	if err != nil {
		return oops.In("store").With("id", r.ID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.In("store").
			Code(CodeRoleNotFound).
			With("id", r.ID).
			Errorf("role %q not found", r.ID)
	}
	return s.notify(ctx)
}

// DeleteRole removes a role by id.
func (s *PostgresStore) DeleteRole(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return oops.In("store").With("id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.In("store").
			Code(CodeRoleNotFound).
			With("id", id).
			Errorf("role %q not found", id)
	}
	return s.notify(ctx)
}

// ListRoles returns all roles ordered by id.
func (s *PostgresStore) ListRoles(ctx context.Context) ([]types.Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, oops.In("store").Wrap(err)
	}
	defer rows.Close()

	var roles []types.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, oops.In("store").Wrap(err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("store").Wrap(err)
	}
	return roles, nil
}

// CreateAssignment inserts a new role assignment.
func (s *PostgresStore) CreateAssignment(ctx context.Context, a types.Assignment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO role_assignments (user_id, role_id, scope, scope_id, resource_type, assigned_at, assigned_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.UserID, a.RoleID, string(a.Scope), a.ScopeID, nullable(a.ResourceType), a.AssignedAt, a.AssignedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.In("store").
				Code(CodeAssignmentConflict).
				With("user_id", a.UserID).
				With("role_id", a.RoleID).
				Errorf("assignment already exists")
		}
		return oops.In("store").Wrap(err)
	}
	return s.notify(ctx)
}

// DeleteAssignment removes an assignment by composite key.
func (s *PostgresStore) DeleteAssignment(ctx context.Context, userID, roleID string, scope access.Scope, scopeID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM role_assignments
		WHERE user_id = $1 AND role_id = $2 AND scope = $3 AND scope_id = $4
	`, userID, roleID, string(scope), scopeID)
	if err != nil {
		return oops.In("store").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.In("store").
			Code(CodeAssignmentNotFound).
			With("user_id", userID).
			With("role_id", roleID).
			Errorf("assignment not found")
	}
	return s.notify(ctx)
}

// ListAssignments returns the user's assignments in scope-precedence order.
func (s *PostgresStore) ListAssignments(ctx context.Context, userID string) ([]types.Assignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, role_id, scope, scope_id, resource_type, assigned_at, assigned_by
		FROM role_assignments WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, oops.In("store").Wrap(err)
	}
	defer rows.Close()

	var assignments []types.Assignment
	for rows.Next() {
		var a types.Assignment
		var scope string
		var resourceType *string
		if err := rows.Scan(&a.UserID, &a.RoleID, &scope, &a.ScopeID, &resourceType, &a.AssignedAt, &a.AssignedBy); err != nil {
			return nil, oops.In("store").Wrap(err)
		}
		a.Scope = access.Scope(scope)
		if resourceType != nil {
			a.ResourceType = *resourceType
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("store").Wrap(err)
	}
	SortAssignments(assignments)
	return assignments, nil
}

// CountAssignmentsByRole returns how many assignments reference the role.
func (s *PostgresStore) CountAssignmentsByRole(ctx context.Context, roleID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM role_assignments WHERE role_id = $1`, roleID).Scan(&n)
	if err != nil {
		return 0, oops.In("store").With("role_id", roleID).Wrap(err)
	}
	return n, nil
}

// notify publishes a cache-invalidation event. A failed notify is not a
// failed write: the mutation is durable, follower caches fall back to
// their staleness handling.
func (s *PostgresStore) notify(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, '')`, NotifyChannel); err != nil {
		slog.WarnContext(ctx, "policy change notify failed", "error", err)
	}
	return nil
}
