// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/access/policy/types"
	migrations "github.com/scopekit/scopekit/internal/store"
)

// setupPostgres starts a PostgreSQL container, runs the migrations, and
// returns a connected store.
func setupPostgres() (*store.PostgresStore, *pgxpool.Pool, string, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("scopekit_test"),
		postgres.WithUsername("scopekit"),
		postgres.WithPassword("scopekit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, "", nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, "", nil, err
	}

	migrator, err := migrations.NewMigrator(connStr)
	if err != nil {
		return nil, nil, "", nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, "", nil, err
	}
	_ = migrator.Close()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, nil, "", nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return store.NewPostgresStore(pool), pool, connStr, cleanup, nil
}

var _ = Describe("PostgresStore", func() {
	var s *store.PostgresStore
	var connStr string
	var cleanup func()

	BeforeEach(func() {
		var err error
		s, _, connStr, cleanup, err = setupPostgres()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("permission catalog", func() {
		It("upserts and lists permissions", func() {
			ctx := context.Background()
			p := types.Permission{
				ID: "tenant.read", Name: "View tenant", Resource: "tenant",
				Action: types.ActionRead, Scope: access.ScopeTenant,
				Category: "administration", IsSystem: true,
			}
			Expect(s.PutPermission(ctx, p)).To(Succeed())

			p.Name = "View tenant details"
			Expect(s.PutPermission(ctx, p)).To(Succeed())

			perms, err := s.ListPermissions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(1))
			Expect(perms[0].Name).To(Equal("View tenant details"))
		})
	})

	Describe("role lifecycle", func() {
		It("round-trips a role with inheritance", func() {
			ctx := context.Background()
			parent := types.Role{ID: "viewer", Name: "Viewer", Description: "read only", Permissions: []string{"tenant.read"}}
			Expect(s.CreateRole(ctx, parent)).To(Succeed())

			child := types.Role{ID: "member", Name: "Member", Description: "member", Permissions: []string{"settings.read"}, InheritedFrom: "viewer"}
			Expect(s.CreateRole(ctx, child)).To(Succeed())

			got, err := s.GetRole(ctx, "member")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.InheritedFrom).To(Equal("viewer"))
			Expect(got.Permissions).To(Equal([]string{"settings.read"}))
		})

		It("rejects duplicate role ids", func() {
			ctx := context.Background()
			r := types.Role{ID: "viewer", Name: "Viewer", Description: "d"}
			Expect(s.CreateRole(ctx, r)).To(Succeed())

			err := s.CreateRole(ctx, r)
			Expect(err).To(HaveOccurred())
			Expect(store.IsConflict(err)).To(BeTrue())
		})

		It("reports missing roles as not found", func() {
			_, err := s.GetRole(context.Background(), "ghost")
			Expect(err).To(HaveOccurred())
			Expect(store.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("assignments", func() {
		BeforeEach(func() {
			ctx := context.Background()
			Expect(s.CreateRole(ctx, types.Role{ID: "viewer", Name: "Viewer", Description: "d"})).To(Succeed())
			Expect(s.CreateRole(ctx, types.Role{ID: "admin", Name: "Admin", Description: "d"})).To(Succeed())
		})

		It("orders a user's assignments by scope precedence", func() {
			ctx := context.Background()
			Expect(s.CreateAssignment(ctx, types.Assignment{
				UserID: "u1", RoleID: "viewer", Scope: access.ScopeWorkspace, ScopeID: "w1",
				AssignedAt: time.Now(), AssignedBy: "test",
			})).To(Succeed())
			Expect(s.CreateAssignment(ctx, types.Assignment{
				UserID: "u1", RoleID: "admin", Scope: access.ScopeSystem,
				AssignedAt: time.Now(), AssignedBy: "test",
			})).To(Succeed())

			assignments, err := s.ListAssignments(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(assignments).To(HaveLen(2))
			Expect(assignments[0].Scope).To(Equal(access.ScopeSystem))
			Expect(assignments[1].Scope).To(Equal(access.ScopeWorkspace))
		})

		It("enforces the composite key", func() {
			ctx := context.Background()
			a := types.Assignment{
				UserID: "u1", RoleID: "viewer", Scope: access.ScopeTenant, ScopeID: "t1",
				AssignedAt: time.Now(), AssignedBy: "test",
			}
			Expect(s.CreateAssignment(ctx, a)).To(Succeed())

			err := s.CreateAssignment(ctx, a)
			Expect(err).To(HaveOccurred())
			Expect(store.IsConflict(err)).To(BeTrue())
		})

		It("deletes by composite key and counts by role", func() {
			ctx := context.Background()
			Expect(s.CreateAssignment(ctx, types.Assignment{
				UserID: "u1", RoleID: "viewer", Scope: access.ScopeTenant, ScopeID: "t1",
				AssignedAt: time.Now(), AssignedBy: "test",
			})).To(Succeed())

			n, err := s.CountAssignmentsByRole(ctx, "viewer")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			Expect(s.DeleteAssignment(ctx, "u1", "viewer", access.ScopeTenant, "t1")).To(Succeed())

			err = s.DeleteAssignment(ctx, "u1", "viewer", access.ScopeTenant, "t1")
			Expect(err).To(HaveOccurred())
			Expect(store.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("change notifications", func() {
		It("delivers a notification after a mutation", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			listener := store.NewPgListener(connStr)
			ch, err := listener.Listen(ctx)
			Expect(err).NotTo(HaveOccurred())

			// Give the LISTEN session a moment to be established.
			time.Sleep(500 * time.Millisecond)

			Expect(s.CreateRole(ctx, types.Role{ID: "notified", Name: "N", Description: "d"})).To(Succeed())

			Eventually(ch, "10s").Should(Receive())
		})
	})
})
