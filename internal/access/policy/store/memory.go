// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

// MemoryStore is the in-process Store adapter. All state lives behind a
// single RWMutex: reads take the read lock and return copies, writes take
// the write lock, so no reader ever observes a half-applied mutation.
type MemoryStore struct {
	mu          sync.RWMutex
	permissions map[string]types.Permission
	roles       map[string]types.Role
	assignments map[string]types.Assignment // keyed by Assignment.Key()
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		permissions: make(map[string]types.Permission),
		roles:       make(map[string]types.Role),
		assignments: make(map[string]types.Assignment),
	}
}

// PutPermission inserts or replaces a catalog permission record.
func (s *MemoryStore) PutPermission(_ context.Context, p types.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[p.ID] = p
	return nil
}

// ListPermissions returns all permission records sorted by id.
func (s *MemoryStore) ListPermissions(_ context.Context) ([]types.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateRole inserts a new role. A duplicate id is a ROLE_CONFLICT.
func (s *MemoryStore) CreateRole(_ context.Context, r types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.roles[r.ID]; exists {
		return oops.In("store").
			Code(CodeRoleConflict).
			With("id", r.ID).
			Errorf("role %q already exists", r.ID)
	}
	s.roles[r.ID] = cloneRole(r)
	return nil
}

// GetRole fetches a role by id.
func (s *MemoryStore) GetRole(_ context.Context, id string) (types.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok {
		return types.Role{}, oops.In("store").
			Code(CodeRoleNotFound).
			With("id", id).
			Errorf("role %q not found", id)
	}
	return cloneRole(r), nil
}

// UpdateRole replaces an existing role.
func (s *MemoryStore) UpdateRole(_ context.Context, r types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[r.ID]; !ok {
		return oops.In("store").
			Code(CodeRoleNotFound).
			With("id", r.ID).
			Errorf("role %q not found", r.ID)
	}
	s.roles[r.ID] = cloneRole(r)
	return nil
}

// DeleteRole removes a role by id.
func (s *MemoryStore) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[id]; !ok {
		return oops.In("store").
			Code(CodeRoleNotFound).
			With("id", id).
			Errorf("role %q not found", id)
	}
	delete(s.roles, id)
	return nil
}

// ListRoles returns all roles sorted by id.
func (s *MemoryStore) ListRoles(_ context.Context) ([]types.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, cloneRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateAssignment inserts a new assignment. The same composite key twice
// is an ASSIGNMENT_CONFLICT.
func (s *MemoryStore) CreateAssignment(_ context.Context, a types.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.Key()
	if _, exists := s.assignments[key]; exists {
		return oops.In("store").
			Code(CodeAssignmentConflict).
			With("user_id", a.UserID).
			With("role_id", a.RoleID).
			Errorf("assignment already exists")
	}
	s.assignments[key] = a
	return nil
}

// DeleteAssignment removes an assignment by composite key.
func (s *MemoryStore) DeleteAssignment(_ context.Context, userID, roleID string, scope access.Scope, scopeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := types.Assignment{UserID: userID, RoleID: roleID, Scope: scope, ScopeID: scopeID}.Key()
	if _, ok := s.assignments[key]; !ok {
		return oops.In("store").
			Code(CodeAssignmentNotFound).
			With("user_id", userID).
			With("role_id", roleID).
			Errorf("assignment not found")
	}
	delete(s.assignments, key)
	return nil
}

// ListAssignments returns the user's assignments ordered system first, then
// tenant, workspace, resource, with ties broken by role id. Evaluation
// relies on this fixed precedence.
func (s *MemoryStore) ListAssignments(_ context.Context, userID string) ([]types.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Assignment, 0, 4)
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	SortAssignments(out)
	return out, nil
}

// CountAssignmentsByRole returns how many assignments reference the role.
func (s *MemoryStore) CountAssignmentsByRole(_ context.Context, roleID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.assignments {
		if a.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

// SortAssignments orders assignments by scope precedence (system, tenant,
// workspace, resource), then role id, then scope id. Shared by adapters so
// every Store presents the same evaluation order.
func SortAssignments(assignments []types.Assignment) {
	rank := make(map[access.Scope]int, len(access.ScopePrecedence))
	for i, s := range access.ScopePrecedence {
		rank[s] = i
	}
	sort.SliceStable(assignments, func(i, j int) bool {
		ri, rj := rank[assignments[i].Scope], rank[assignments[j].Scope]
		if ri != rj {
			return ri < rj
		}
		if assignments[i].RoleID != assignments[j].RoleID {
			return assignments[i].RoleID < assignments[j].RoleID
		}
		return assignments[i].ScopeID < assignments[j].ScopeID
	})
}

func cloneRole(r types.Role) types.Role {
	out := r
	out.Permissions = make([]string, len(r.Permissions))
	copy(out.Permissions, r.Permissions)
	return out
}
