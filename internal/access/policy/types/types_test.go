// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

func TestAction_Known(t *testing.T) {
	for _, a := range types.KnownActions() {
		assert.True(t, a.Known(), "action %s", a)
	}
	assert.False(t, types.Action("fly").Known())
	assert.False(t, types.Action("").Known())
}

func TestAssignment_Binding(t *testing.T) {
	tenant := types.Assignment{UserID: "u1", RoleID: "r1", Scope: access.ScopeTenant, ScopeID: "t1"}
	assert.Equal(t, access.Binding{Scope: access.ScopeTenant, TenantID: "t1"}, tenant.Binding())

	system := types.Assignment{UserID: "u1", RoleID: "r1", Scope: access.ScopeSystem}
	assert.Equal(t, access.Binding{Scope: access.ScopeSystem}, system.Binding())

	resource := types.Assignment{
		UserID: "u1", RoleID: "r1", Scope: access.ScopeResource,
		ScopeID: "res1", ResourceType: "report",
	}
	b := resource.Binding()
	assert.Equal(t, "res1", b.ResourceID)
	assert.Equal(t, "report", b.ResourceType)
}

func TestResult_Constructors(t *testing.T) {
	role := &types.Role{ID: "tenant-admin"}
	allowed := types.Allow("granted by role tenant-admin", role, "tenant.*")
	assert.True(t, allowed.Allowed)
	assert.Equal(t, "tenant.*", allowed.Permission)
	assert.Same(t, role, allowed.Role)

	denied := types.Deny("missing permission")
	assert.False(t, denied.Allowed)
	assert.Nil(t, denied.Role)
}

func TestBulkOperator_Known(t *testing.T) {
	assert.True(t, types.BulkAND.Known())
	assert.True(t, types.BulkOR.Known())
	assert.False(t, types.BulkOperator("XOR").Known())
}
