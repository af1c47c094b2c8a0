// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scopekit/scopekit/internal/access"
)

func TestContext_Scope(t *testing.T) {
	tests := []struct {
		name string
		ctx  access.Context
		want access.Scope
	}{
		{"empty context is system", access.Context{UserID: "u1"}, access.ScopeSystem},
		{"tenant only", access.Context{UserID: "u1", TenantID: "t1"}, access.ScopeTenant},
		{"workspace wins over tenant", access.Context{TenantID: "t1", WorkspaceID: "w1"}, access.ScopeWorkspace},
		{"resource wins over workspace", access.Context{
			TenantID: "t1", WorkspaceID: "w1", ResourceID: "r1", ResourceType: "report",
		}, access.ScopeResource},
		{"resource id without type stays workspace", access.Context{
			WorkspaceID: "w1", ResourceID: "r1",
		}, access.ScopeWorkspace},
		{"resource id without type or workspace stays tenant", access.Context{
			TenantID: "t1", ResourceID: "r1",
		}, access.ScopeTenant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ctx.Scope())
		})
	}
}

func TestContext_ScopeID(t *testing.T) {
	assert.Empty(t, access.Context{UserID: "u1"}.ScopeID())
	assert.Equal(t, "t1", access.Context{TenantID: "t1"}.ScopeID())
	assert.Equal(t, "w1", access.Context{TenantID: "t1", WorkspaceID: "w1"}.ScopeID())
	assert.Equal(t, "r1", access.Context{
		WorkspaceID: "w1", ResourceID: "r1", ResourceType: "report",
	}.ScopeID())
}
