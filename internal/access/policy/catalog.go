// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package policy

import (
	"sort"

	"github.com/samber/oops"

	"github.com/scopekit/scopekit/internal/access/policy/types"
)

// Catalog is an immutable registry of known permissions, keyed by id.
// Construct a new catalog rather than mutating one; snapshots hand the
// same catalog to arbitrarily many concurrent readers.
type Catalog struct {
	byID    map[string]types.Permission
	ordered []types.Permission
}

// NewCatalog builds a catalog from the given permissions. Ids must be
// unique; a duplicate yields a PERMISSION_CONFLICT error. Shape validation
// is the admission path's job, not the catalog's.
func NewCatalog(perms []types.Permission) (*Catalog, error) {
	byID := make(map[string]types.Permission, len(perms))
	for _, p := range perms {
		if _, exists := byID[p.ID]; exists {
			return nil, oops.In("policy").
				Code(CodePermissionConflict).
				With("id", p.ID).
				Errorf("duplicate permission id %q", p.ID)
		}
		byID[p.ID] = p
	}

	ordered := make([]types.Permission, len(perms))
	copy(ordered, perms)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	return &Catalog{byID: byID, ordered: ordered}, nil
}

// Get returns the permission with the given id.
func (c *Catalog) Get(id string) (types.Permission, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// List returns all permissions sorted by id. The slice is a copy.
func (c *Catalog) List() []types.Permission {
	out := make([]types.Permission, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of permissions in the catalog.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// Resources returns the distinct resource names present in the catalog,
// sorted.
func (c *Catalog) Resources() []string {
	seen := make(map[string]struct{})
	for _, p := range c.ordered {
		seen[p.Resource] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
