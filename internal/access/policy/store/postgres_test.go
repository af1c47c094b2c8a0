// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

func newMockStore(t *testing.T) (*store.PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock pool")
	t.Cleanup(mock.Close)
	return store.NewPostgresStore(mock), mock
}

func TestPostgresStore_GetRole(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		notFound  bool
	}{
		{
			name: "role found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				parent := "viewer"
				rows := pgxmock.NewRows([]string{
					"id", "name", "description", "permissions",
					"is_system", "inherited_from", "created_at", "updated_at",
				}).AddRow(
					"tenant-member", "Tenant Member", "member",
					[]string{"user.read", "settings.read"},
					true, &parent, now, now,
				)
				mock.ExpectQuery(`SELECT (.+) FROM roles WHERE id = \$1`).
					WithArgs("tenant-member").
					WillReturnRows(rows)
			},
		},
		{
			name: "role missing",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM roles WHERE id = \$1`).
					WithArgs("tenant-member").
					WillReturnRows(pgxmock.NewRows([]string{
						"id", "name", "description", "permissions",
						"is_system", "inherited_from", "created_at", "updated_at",
					}))
			},
			wantErr:  true,
			notFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps, mock := newMockStore(t)
			tt.setupMock(mock)

			got, err := ps.GetRole(context.Background(), "tenant-member")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.notFound, store.IsNotFound(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "tenant-member", got.ID)
				assert.Equal(t, "viewer", got.InheritedFrom)
				assert.Equal(t, []string{"user.read", "settings.read"}, got.Permissions)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_CreateRole_Conflict(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO roles`).
		WithArgs("viewer", "Viewer", "read-only", []string{"tenant.read"}, false, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := ps.CreateRole(context.Background(), types.Role{
		ID: "viewer", Name: "Viewer", Description: "read-only",
		Permissions: []string{"tenant.read"},
	})
	require.Error(t, err)
	assert.True(t, store.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRole_Notifies(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO roles`).
		WithArgs("viewer", "Viewer", "read-only", []string{"tenant.read"}, false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`SELECT pg_notify`).
		WithArgs(store.NotifyChannel).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err := ps.CreateRole(context.Background(), types.Role{
		ID: "viewer", Name: "Viewer", Description: "read-only",
		Permissions: []string{"tenant.read"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteRole_NotFound(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM roles WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := ps.DeleteRole(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAssignments_ScopeOrder(t *testing.T) {
	ps, mock := newMockStore(t)
	now := time.Now()

	// Rows arrive in insertion order; the store re-sorts by scope precedence.
	rows := pgxmock.NewRows([]string{
		"user_id", "role_id", "scope", "scope_id", "resource_type", "assigned_at", "assigned_by",
	}).
		AddRow("u1", "workspace-member", "workspace", "w1", nil, now, "admin").
		AddRow("u1", "super-admin", "system", "", nil, now, "admin").
		AddRow("u1", "tenant-member", "tenant", "t1", nil, now, "admin")

	mock.ExpectQuery(`SELECT (.+) FROM role_assignments WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(rows)

	got, err := ps.ListAssignments(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, access.ScopeSystem, got[0].Scope)
	assert.Equal(t, access.ScopeTenant, got[1].Scope)
	assert.Equal(t, access.ScopeWorkspace, got[2].Scope)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountAssignmentsByRole(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM role_assignments WHERE role_id = \$1`).
		WithArgs("tenant-member").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := ps.CountAssignmentsByRole(context.Background(), "tenant-member")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
