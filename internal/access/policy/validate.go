// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

// permissionIDPattern is the canonical id format: two lowercase dot-joined
// segments, "resource.action".
var permissionIDPattern = regexp.MustCompile(`^[a-z]+\.[a-z]+$`)

// KnownResources is the validated resource set for catalog admission. The
// set is open by design (hosts extend it through their own seed catalogs)
// but a permission entering this catalog must name one of these.
var KnownResources = []string{
	"system", "tenant", "workspace", "resource",
	"user", "role", "permission", "audit", "settings", "report",
}

func knownResource(r string) bool {
	for _, known := range KnownResources {
		if r == known {
			return true
		}
	}
	return false
}

// ValidatePermission checks a candidate permission's shape before catalog
// admission: id format, non-empty name, and membership of the action,
// resource, and scope enums. Returns an empty list iff valid. Validation
// performs no mutation and is idempotent.
func ValidatePermission(p types.Permission) []string {
	var problems []string

	if !permissionIDPattern.MatchString(p.ID) {
		problems = append(problems, fmt.Sprintf("permission id %q must match resource.action format", p.ID))
	}
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "permission name must not be empty")
	}
	if !p.Action.Known() {
		problems = append(problems, fmt.Sprintf("unknown action %q", p.Action))
	}
	if !knownResource(p.Resource) {
		problems = append(problems, fmt.Sprintf("unknown resource %q", p.Resource))
	}
	if !p.Scope.Known() {
		problems = append(problems, fmt.Sprintf("unknown scope %q", p.Scope))
	}

	return problems
}

// ValidateRole checks a candidate role before it enters the role graph:
// non-empty name and description, well-formed grant patterns, and, when
// InheritedFrom is set, an existing parent and an acyclic chain. allRoles
// is the current graph keyed by role id; the candidate replaces any entry
// with the same id for the cycle check, so updates are validated against
// the state they would create. Returns an empty list iff valid.
func ValidateRole(r types.Role, allRoles map[string]types.Role) []string {
	var problems []string

	if strings.TrimSpace(r.ID) == "" {
		problems = append(problems, "role id must not be empty")
	}
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "role name must not be empty")
	}
	if strings.TrimSpace(r.Description) == "" {
		problems = append(problems, "role description must not be empty")
	}

	for _, p := range r.Permissions {
		if strings.TrimSpace(p) == "" {
			problems = append(problems, "role permissions must not contain empty entries")
			continue
		}
		if _, err := glob.Compile(p); err != nil {
			problems = append(problems, fmt.Sprintf("permission pattern %q does not compile: %v", p, err))
		}
	}

	if r.InheritedFrom != "" {
		if r.InheritedFrom == r.ID {
			problems = append(problems, fmt.Sprintf("role %q cannot inherit from itself", r.ID))
		} else if _, ok := allRoles[r.InheritedFrom]; !ok {
			problems = append(problems, fmt.Sprintf("parent role %q does not exist", r.InheritedFrom))
		} else {
			// Check the graph as it would be after the write.
			next := make(map[string]types.Role, len(allRoles)+1)
			for id, role := range allRoles {
				next[id] = role
			}
			next[r.ID] = r
			if HasCycle(r, next) {
				problems = append(problems, fmt.Sprintf("inheriting from %q would create a cycle", r.InheritedFrom))
			}
		}
	}

	return problems
}

// ValidateAssignment checks the scope invariant for a role assignment:
// a known scope, a scope id for every scope but system, and no scope id at
// system scope. Resource-scope assignments also need a resource type.
func ValidateAssignment(a types.Assignment) []string {
	var problems []string

	if strings.TrimSpace(a.UserID) == "" {
		problems = append(problems, "assignment user id must not be empty")
	}
	if strings.TrimSpace(a.RoleID) == "" {
		problems = append(problems, "assignment role id must not be empty")
	}

	switch {
	case !a.Scope.Known():
		problems = append(problems, fmt.Sprintf("unknown scope %q", a.Scope))
	case a.Scope == access.ScopeSystem && a.ScopeID != "":
		problems = append(problems, "system-scope assignments must not carry a scope id")
	case a.Scope != access.ScopeSystem && a.ScopeID == "":
		problems = append(problems, fmt.Sprintf("%s-scope assignments require a scope id", a.Scope))
	case a.Scope == access.ScopeResource && a.ResourceType == "":
		problems = append(problems, "resource-scope assignments require a resource type")
	}

	return problems
}
