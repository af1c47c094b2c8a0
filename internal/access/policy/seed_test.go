// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

func TestSeedPermissionsAllValid(t *testing.T) {
	seen := make(map[string]struct{})
	for _, p := range SeedPermissions() {
		assert.Empty(t, ValidatePermission(p), p.ID)
		assert.True(t, p.IsSystem, p.ID)

		_, dup := seen[p.ID]
		assert.False(t, dup, "duplicate seed permission %s", p.ID)
		seen[p.ID] = struct{}{}
	}
}

func TestSeedRolesAllValid(t *testing.T) {
	graph := make(map[string]types.Role)
	for _, r := range SeedRoles() {
		graph[r.ID] = r
	}

	for _, r := range SeedRoles() {
		assert.Empty(t, ValidateRole(r, graph), r.ID)
		assert.True(t, r.IsSystem, r.ID)
		assert.False(t, HasCycle(r, graph), r.ID)
	}
}

func TestSeedRoles_NonWildcardGrantsResolveInCatalog(t *testing.T) {
	catalog, err := NewCatalog(SeedPermissions())
	require.NoError(t, err)

	for _, r := range SeedRoles() {
		for _, grant := range r.Permissions {
			if resource, _, ok := splitGrant(grant); ok {
				_, found := catalog.Get(grant)
				assert.True(t, found, "role %s grants %s which is not in the seed catalog (resource %s)", r.ID, grant, resource)
			}
		}
	}
}

// splitGrant reports exact (non-wildcard) grants only.
func splitGrant(grant string) (string, string, bool) {
	for i := len(grant) - 1; i >= 0; i-- {
		if grant[i] == '*' {
			return "", "", false
		}
		if grant[i] == '.' {
			return grant[:i], grant[i+1:], true
		}
	}
	return "", "", false
}

func TestSuperAdminCoversEverySeedPermission(t *testing.T) {
	graph := make(map[string]types.Role)
	for _, r := range SeedRoles() {
		graph[r.ID] = r
	}

	expanded := ExpandPermissions("super-admin", graph)
	require.NotEmpty(t, expanded)

	set, err := access.CompileSet(expanded)
	require.NoError(t, err)
	for _, p := range SeedPermissions() {
		assert.True(t, set.Covers(p.ID), p.ID)
	}
}
