// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package access

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Wildcard is the universal permission pattern. It covers every permission id.
const Wildcard = "*"

// Matches reports whether pattern covers the candidate permission id.
// Rules, in order: "*" matches everything; a pattern ending in ".*" matches
// any candidate sharing its dotted prefix; otherwise exact equality.
// Case-sensitive, no normalization. The wildcard always lives on the
// granted side, never on the requested side.
func Matches(candidate, pattern string) bool {
	if pattern == Wildcard {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(candidate, pattern[:len(pattern)-1])
	}
	return candidate == pattern
}

// HasPermission reports whether any granted pattern covers the required id.
func HasPermission(granted []string, required string) bool {
	for _, g := range granted {
		if PermissionCovers(g, required) {
			return true
		}
	}
	return false
}

// HasAny reports whether at least one required id is covered by the grants.
func HasAny(granted, required []string) bool {
	for _, r := range required {
		if HasPermission(granted, r) {
			return true
		}
	}
	return false
}

// HasAll reports whether every required id is covered by the grants.
// Vacuously true for an empty required list.
func HasAll(granted, required []string) bool {
	for _, r := range required {
		if !HasPermission(granted, r) {
			return false
		}
	}
	return true
}

// SplitID splits a permission id at its last dot into resource and action.
// The resource segment may itself be dotted ("tenant.members"). Returns
// ok=false for ids without a dot or with an empty segment.
func SplitID(id string) (resource, action string, ok bool) {
	i := strings.LastIndex(id, ".")
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}

// JoinID builds a permission id from resource and action.
func JoinID(resource, action string) string {
	return resource + "." + action
}

// ResourceMatches reports whether the declared resource covers the requested
// one. A declared resource covers itself and any dotted descendant: "tenant"
// covers "tenant.members" but not "tenants".
func ResourceMatches(declared, requested string) bool {
	if declared == requested {
		return true
	}
	return strings.HasPrefix(requested, declared+".")
}

// PermissionCovers reports whether the granted pattern covers the required
// permission id on either matching axis: full-id wildcard matching, or
// resource-hierarchy prefix matching with an equal action. The two axes are
// independent; a hit on either grants the permission.
func PermissionCovers(granted, required string) bool {
	if Matches(required, granted) {
		return true
	}
	gRes, gAct, ok := SplitID(granted)
	if !ok {
		return false
	}
	rRes, rAct, ok := SplitID(required)
	if !ok {
		return false
	}
	if gAct != rAct {
		return false
	}
	return ResourceMatches(gRes, rRes)
}

// compiledPattern pairs a granted pattern with its compiled glob. Globs are
// compiled without a separator rune, so "tenant.*" is a plain dotted-prefix
// match and "*" covers everything, matching the semantics of Matches.
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// CompiledSet holds a role's granted patterns compiled for repeated checks.
// It is immutable after construction and safe for concurrent use.
type CompiledSet struct {
	patterns []compiledPattern
}

// CompileSet compiles the granted patterns into a CompiledSet. Returns an
// INVALID_PERMISSION_PATTERN error if any pattern fails to compile.
func CompileSet(granted []string) (*CompiledSet, error) {
	compiled := make([]compiledPattern, 0, len(granted))
	for _, p := range granted {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.In("access").
				Code("INVALID_PERMISSION_PATTERN").
				With("pattern", p).
				Wrap(err)
		}
		compiled = append(compiled, compiledPattern{pattern: p, glob: g})
	}
	return &CompiledSet{patterns: compiled}, nil
}

// Match returns the first granted pattern covering the required id, checking
// the wildcard axis first and the resource-hierarchy axis second for each
// pattern in grant order.
func (s *CompiledSet) Match(required string) (pattern string, ok bool) {
	rRes, rAct, rSplit := SplitID(required)
	for _, cp := range s.patterns {
		if cp.glob.Match(required) {
			return cp.pattern, true
		}
		if !rSplit {
			continue
		}
		gRes, gAct, gSplit := SplitID(cp.pattern)
		if gSplit && gAct == rAct && ResourceMatches(gRes, rRes) {
			return cp.pattern, true
		}
	}
	return "", false
}

// Covers reports whether any granted pattern covers the required id.
func (s *CompiledSet) Covers(required string) bool {
	_, ok := s.Match(required)
	return ok
}

// Patterns returns a copy of the granted patterns in grant order.
func (s *CompiledSet) Patterns() []string {
	out := make([]string, len(s.patterns))
	for i, cp := range s.patterns {
		out[i] = cp.pattern
	}
	return out
}
