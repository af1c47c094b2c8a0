// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopekit/scopekit/internal/access"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		candidate string
		pattern   string
		want      bool
	}{
		{"workspace.read", "*", true},
		{"anything.at.all", "*", true},
		{"workspace.read", "workspace.*", true},
		{"tenant.read", "workspace.*", false},
		{"tenant.read", "tenant.read", true},
		{"tenant.read", "tenant.write", false},
		// Prefix includes the dot: "tenants.read" is not under "tenant.*".
		{"tenants.read", "tenant.*", false},
		// Case-sensitive, no normalization.
		{"Tenant.read", "tenant.read", false},
		{"tenant.read", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.candidate, func(t *testing.T) {
			assert.Equal(t, tt.want, access.Matches(tt.candidate, tt.pattern))
		})
	}
}

func TestHasPermission_GrantedSideWildcard(t *testing.T) {
	granted := []string{"tenant.*", "workspace.read"}

	assert.True(t, access.HasPermission(granted, "tenant.read"))
	assert.True(t, access.HasPermission(granted, "tenant.delete"))
	assert.True(t, access.HasPermission(granted, "workspace.read"))
	assert.False(t, access.HasPermission(granted, "workspace.update"))

	// The orientation matters: a requested wildcard never expands.
	assert.False(t, access.HasPermission([]string{"tenant.read"}, "tenant.*"))
}

func TestHasAnyHasAll(t *testing.T) {
	granted := []string{"tenant.read", "workspace.*"}

	assert.True(t, access.HasAny(granted, []string{"tenant.read", "user.delete"}))
	assert.False(t, access.HasAny(granted, []string{"user.delete", "role.assign"}))

	assert.True(t, access.HasAll(granted, []string{"tenant.read", "workspace.update"}))
	assert.False(t, access.HasAll(granted, []string{"tenant.read", "user.delete"}))
	assert.True(t, access.HasAll(granted, nil))
}

func TestSplitID(t *testing.T) {
	res, act, ok := access.SplitID("tenant.read")
	require.True(t, ok)
	assert.Equal(t, "tenant", res)
	assert.Equal(t, "read", act)

	// Dotted resources split at the last dot.
	res, act, ok = access.SplitID("tenant.members.read")
	require.True(t, ok)
	assert.Equal(t, "tenant.members", res)
	assert.Equal(t, "read", act)

	for _, bad := range []string{"", "tenant", ".read", "tenant."} {
		_, _, ok := access.SplitID(bad)
		assert.False(t, ok, "SplitID(%q)", bad)
	}
}

func TestResourceMatches_Hierarchy(t *testing.T) {
	assert.True(t, access.ResourceMatches("tenant", "tenant"))
	assert.True(t, access.ResourceMatches("tenant", "tenant.members"))
	assert.True(t, access.ResourceMatches("tenant", "tenant.members.invites"))
	assert.False(t, access.ResourceMatches("tenant", "tenants"))
	assert.False(t, access.ResourceMatches("tenant.members", "tenant"))
}

func TestPermissionCovers_BothAxes(t *testing.T) {
	// Wildcard axis.
	assert.True(t, access.PermissionCovers("tenant.*", "tenant.read"))
	assert.True(t, access.PermissionCovers("*", "user.delete"))

	// Resource-hierarchy axis: declared resource is a dotted prefix of the
	// requested one, with an equal action.
	assert.True(t, access.PermissionCovers("tenant.read", "tenant.members.read"))
	assert.False(t, access.PermissionCovers("tenant.read", "tenant.members.update"))
	assert.False(t, access.PermissionCovers("tenant.members.read", "tenant.read"))

	// Neither axis.
	assert.False(t, access.PermissionCovers("workspace.read", "tenant.read"))
}

func TestCompileSet_MatchesPlainSemantics(t *testing.T) {
	set, err := access.CompileSet([]string{"tenant.*", "workspace.read", "*"})
	require.NoError(t, err)

	for _, id := range []string{"tenant.read", "workspace.read", "user.delete"} {
		assert.True(t, set.Covers(id), "set should cover %s", id)
	}

	pattern, ok := set.Match("tenant.update")
	require.True(t, ok)
	assert.Equal(t, "tenant.*", pattern)

	// First matching grant wins, in grant order.
	pattern, ok = set.Match("workspace.read")
	require.True(t, ok)
	assert.Equal(t, "workspace.read", pattern)
}

func TestCompileSet_HierarchyAxis(t *testing.T) {
	set, err := access.CompileSet([]string{"tenant.read"})
	require.NoError(t, err)

	pattern, ok := set.Match("tenant.members.read")
	require.True(t, ok)
	assert.Equal(t, "tenant.read", pattern)

	assert.False(t, set.Covers("tenant.members.update"))
}

func TestCompileSet_InvalidPattern(t *testing.T) {
	_, err := access.CompileSet([]string{"tenant.["})
	require.Error(t, err)
}

func TestCompileSet_Patterns(t *testing.T) {
	granted := []string{"tenant.*", "workspace.read"}
	set, err := access.CompileSet(granted)
	require.NoError(t, err)
	assert.Equal(t, granted, set.Patterns())
}
