// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package policy

import (
	"sort"

	"github.com/scopekit/scopekit/internal/access/policy/types"
)

// ExpandPermissions returns the role's permission closure: its own grants
// unioned with those of its InheritedFrom ancestors. The result is deduped
// and sorted so expansion is deterministic. A visited-id guard makes the
// walk cycle-safe: on a cycle the permissions accumulated so far are
// returned rather than looping. Cycles are rejected at write time by the
// validator; the guard here is a read-time backstop, not the contract.
func ExpandPermissions(roleID string, roles map[string]types.Role) []string {
	seen := make(map[string]struct{})
	visited := make(map[string]struct{})

	id := roleID
	for id != "" {
		if _, ok := visited[id]; ok {
			break
		}
		visited[id] = struct{}{}

		role, ok := roles[id]
		if !ok {
			break
		}
		for _, p := range role.Permissions {
			seen[p] = struct{}{}
		}
		id = role.InheritedFrom
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasCycle walks the InheritedFrom chain starting at role and reports
// whether any role id is revisited, including role's own id. A chain that
// terminates (no parent, or parent not found) has no cycle. This is the
// authoritative check the validator runs before any write that sets or
// changes InheritedFrom.
func HasCycle(role types.Role, roles map[string]types.Role) bool {
	visited := map[string]struct{}{role.ID: {}}

	id := role.InheritedFrom
	for id != "" {
		if _, ok := visited[id]; ok {
			return true
		}
		visited[id] = struct{}{}

		parent, ok := roles[id]
		if !ok {
			return false
		}
		id = parent.InheritedFrom
	}
	return false
}

// InheritsFrom reports whether ancestorID is the role's direct parent.
// Transitive inheritance is exercised through ExpandPermissions.
func InheritsFrom(role types.Role, ancestorID string) bool {
	return ancestorID != "" && role.InheritedFrom == ancestorID
}
