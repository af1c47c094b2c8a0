// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/audit"
	"github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/access/policy/types"
)

// AuditSink receives one record per mutating operation and, when audit-on-
// check is enabled, one per check decision. *audit.Logger satisfies it.
type AuditSink interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// EngineOption configures Engine behavior.
type EngineOption func(*engineConfig)

type engineConfig struct {
	auditSink    AuditSink
	auditOnCheck bool
}

// WithAuditSink wires an audit sink. Without one the engine emits no audit
// records.
func WithAuditSink(sink AuditSink) EngineOption {
	return func(c *engineConfig) {
		c.auditSink = sink
	}
}

// WithAuditOnCheck enables an audit record per check decision. Mutations
// are always audited when a sink is wired.
func WithAuditOnCheck(enabled bool) EngineOption {
	return func(c *engineConfig) {
		c.auditOnCheck = enabled
	}
}

// Engine is the policy evaluator: it decides, for an actor in a scoped
// context, whether a requested permission is granted, and hosts the
// validator-gated management operations for roles, permissions and
// assignments. Decisions read only the immutable snapshot held by the
// cache, so checks never block behind mutations.
type Engine struct {
	store store.Store
	cache *Cache
	cfg   engineConfig
}

// NewEngine creates an Engine over the given store and cache. The caller
// owns the cache's reload lifecycle; NewEngine does not reload.
func NewEngine(s store.Store, cache *Cache, opts ...EngineOption) *Engine {
	cfg := engineConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{store: s, cache: cache, cfg: cfg}
}

// Check decides whether the actor identified by c.UserID holds the
// requested permission in context c. Denial is a normal result with a
// diagnostic reason, never an error; the error return is reserved for
// repository failures.
func (e *Engine) Check(ctx context.Context, c access.Context, permissionID string) (types.Result, error) {
	start := time.Now()
	result, err := e.check(ctx, c, permissionID)
	if err != nil {
		return types.Result{}, err
	}

	elapsed := time.Since(start)
	RecordCheckMetrics(elapsed, result.Allowed, string(c.Scope()))
	if e.cfg.auditSink != nil && e.cfg.auditOnCheck {
		roleID := ""
		if result.Role != nil {
			roleID = result.Role.ID
		}
		e.auditLog(ctx, audit.Entry{
			Action:     audit.ActionChecked,
			ActorID:    c.UserID,
			TargetID:   c.UserID,
			RoleID:     roleID,
			Permission: permissionID,
			Scope:      string(c.Scope()),
			ScopeID:    c.ScopeID(),
			Allowed:    result.Allowed,
			Reason:     result.Reason,
			DurationUS: elapsed.Microseconds(),
			Timestamp:  time.Now(),
		})
	}

	return result, nil
}

func (e *Engine) check(ctx context.Context, c access.Context, permissionID string) (types.Result, error) {
	if strings.TrimSpace(permissionID) == "" {
		return types.Deny("no permission requested"), nil
	}
	if strings.TrimSpace(c.UserID) == "" {
		return types.Deny("no actor in context"), nil
	}

	if e.cache.IsStale() {
		RecordStaleDenial()
		return types.Deny("role snapshot is stale"), nil
	}

	snap := e.cache.Snapshot()

	// A permission registered in the catalog carries a declared scope; the
	// context must reach that scope level or the grant cannot apply there.
	// Ids absent from the catalog (wildcard families, host extensions) are
	// unconstrained.
	if p, ok := snap.Catalog.Get(permissionID); ok {
		if !scopeReachable(p.Scope, c) {
			return types.Deny(fmt.Sprintf("permission %q requires %s scope, context provides %s", permissionID, p.Scope, c.Scope())), nil
		}
	}

	assignments, err := e.store.ListAssignments(ctx, c.UserID)
	if err != nil {
		return types.Result{}, oops.In("policy").With("user", c.UserID).Wrap(err)
	}
	store.SortAssignments(assignments)

	for _, a := range assignments {
		if !a.Binding().Applicable(c) {
			continue
		}
		role, ok := snap.Roles[a.RoleID]
		if !ok {
			// Assignment to a role the snapshot no longer knows is inert.
			continue
		}
		if pattern, matched := role.Set.Match(permissionID); matched {
			r := role.Role
			return types.Allow(
				fmt.Sprintf("granted by role %q via %q", r.ID, pattern),
				&r,
				pattern,
			), nil
		}
	}

	resource, action, _ := access.SplitID(permissionID)
	return types.Deny(fmt.Sprintf("no role grants permission %q (action %q on %q)", permissionID, action, resource)), nil
}

// scopeReachable reports whether context c operates at declared scope s or
// narrower. Unknown scopes fail closed.
func scopeReachable(s access.Scope, c access.Context) bool {
	if !s.Known() {
		return false
	}
	return access.ScopeContains(s, c.Scope())
}

// CheckBulk evaluates each permission id and reduces with op: OR allows if
// any id is allowed, AND only if all are. The reduction is exhaustive, not
// short-circuiting, so the reason can name the decisive permission.
func (e *Engine) CheckBulk(ctx context.Context, c access.Context, permissionIDs []string, op types.BulkOperator) (types.Result, error) {
	if !op.Known() {
		return types.Result{}, oops.In("policy").
			Code(CodeValidationFailed).
			With("operator", op).
			Errorf("unknown bulk operator %q", op)
	}
	if len(permissionIDs) == 0 {
		return types.Deny("no permissions requested"), nil
	}

	var firstAllow *types.Result
	var firstDeny *types.Result
	for _, id := range permissionIDs {
		result, err := e.Check(ctx, c, id)
		if err != nil {
			return types.Result{}, err
		}
		if result.Allowed && firstAllow == nil {
			r := result
			firstAllow = &r
		}
		if !result.Allowed && firstDeny == nil {
			r := result
			firstDeny = &r
		}
	}

	switch op {
	case types.BulkOR:
		if firstAllow != nil {
			return *firstAllow, nil
		}
		return types.Deny(fmt.Sprintf("none of %d permissions granted", len(permissionIDs))), nil
	default: // BulkAND
		if firstDeny != nil {
			return *firstDeny, nil
		}
		return *firstAllow, nil
	}
}

// CanPerformAction is a convenience wrapper over Check for callers that
// hold a (resource, action) pair rather than a permission id.
func (e *Engine) CanPerformAction(ctx context.Context, c access.Context, resource string, action types.Action) (types.Result, error) {
	return e.Check(ctx, c, access.JoinID(resource, action.String()))
}

// EffectivePermissions materializes the full catalog annotated with grant
// status for the actor in context c. It walks the same assignment and
// matching path as Check, so the annotation agrees with what Check would
// decide for each id.
func (e *Engine) EffectivePermissions(ctx context.Context, c access.Context) ([]types.ContextualPermission, error) {
	snap := e.cache.Snapshot()

	assignments, err := e.store.ListAssignments(ctx, c.UserID)
	if err != nil {
		return nil, oops.In("policy").With("user", c.UserID).Wrap(err)
	}
	store.SortAssignments(assignments)

	var applicable []CompiledRole
	for _, a := range assignments {
		if !a.Binding().Applicable(c) {
			continue
		}
		if role, ok := snap.Roles[a.RoleID]; ok {
			applicable = append(applicable, role)
		}
	}

	catalog := snap.Catalog.List()
	out := make([]types.ContextualPermission, 0, len(catalog))
	stale := e.cache.IsStale()
	for _, p := range catalog {
		cp := types.ContextualPermission{Permission: p}
		if !stale && scopeReachable(p.Scope, c) {
			for _, role := range applicable {
				if role.Set.Covers(p.ID) {
					cp.Granted = true
					cp.GrantedBy = role.Role.ID
					break
				}
			}
		}
		out = append(out, cp)
	}
	return out, nil
}

// RegisterPermission admits a permission into the catalog, validator-gated.
// Registering an id that already exists with identical content is
// idempotent; a conflicting redefinition is rejected.
func (e *Engine) RegisterPermission(ctx context.Context, actorID string, p types.Permission) error {
	if problems := ValidatePermission(p); len(problems) > 0 {
		return ValidationError("permission", problems)
	}
	if err := e.store.PutPermission(ctx, p); err != nil {
		return mapStoreErr(err)
	}
	if err := e.cache.Reload(ctx); err != nil {
		return err
	}
	e.auditLog(ctx, audit.Entry{
		Action:     audit.ActionCreated,
		ActorID:    actorID,
		TargetID:   p.ID,
		Permission: p.ID,
		Allowed:    true,
		Timestamp:  time.Now(),
	})
	return nil
}

// ListPermissions returns the current catalog sorted by id.
func (e *Engine) ListPermissions(_ context.Context) []types.Permission {
	return e.cache.Snapshot().Catalog.List()
}

// ListRoles returns all roles in the current snapshot sorted by id.
func (e *Engine) ListRoles(_ context.Context) []types.Role {
	snap := e.cache.Snapshot()
	out := make([]types.Role, 0, len(snap.Roles))
	for _, cr := range snap.Roles {
		out = append(out, cr.Role)
	}
	sortRoles(out)
	return out
}

// GetRole returns one role by id from the current snapshot.
func (e *Engine) GetRole(_ context.Context, id string) (types.Role, error) {
	if cr, ok := e.cache.Snapshot().Roles[id]; ok {
		return cr.Role, nil
	}
	return types.Role{}, oops.In("policy").
		Code(CodeRoleNotFound).
		With("role", id).
		Errorf("role %q not found", id)
}

// CreateRole admits a custom role, validator-gated. An empty id gets a
// generated ULID. System roles enter only through Seed.
func (e *Engine) CreateRole(ctx context.Context, actorID string, r types.Role) (types.Role, error) {
	if r.ID == "" {
		r.ID = strings.ToLower(ulid.Make().String())
	}
	r.IsSystem = false
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	if problems := ValidateRole(r, e.roleGraph()); len(problems) > 0 {
		return types.Role{}, ValidationError("role", problems)
	}
	if err := e.store.CreateRole(ctx, r); err != nil {
		return types.Role{}, mapStoreErr(err)
	}
	if err := e.cache.Reload(ctx); err != nil {
		return types.Role{}, err
	}
	e.auditLog(ctx, audit.Entry{
		Action:    audit.ActionCreated,
		ActorID:   actorID,
		TargetID:  r.ID,
		RoleID:    r.ID,
		Allowed:   true,
		Timestamp: time.Now(),
	})
	return r, nil
}

// UpdateRole replaces a custom role's definition, validator-gated. System
// roles are immutable.
func (e *Engine) UpdateRole(ctx context.Context, actorID string, r types.Role) (types.Role, error) {
	existing, err := e.store.GetRole(ctx, r.ID)
	if err != nil {
		return types.Role{}, mapStoreErr(err)
	}
	if existing.IsSystem {
		return types.Role{}, oops.In("policy").
			Code(CodeRoleConflict).
			With("role", r.ID).
			Errorf("system role %q is immutable", r.ID)
	}

	r.IsSystem = false
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now()

	if problems := ValidateRole(r, e.roleGraph()); len(problems) > 0 {
		return types.Role{}, ValidationError("role", problems)
	}
	if err := e.store.UpdateRole(ctx, r); err != nil {
		return types.Role{}, mapStoreErr(err)
	}
	if err := e.cache.Reload(ctx); err != nil {
		return types.Role{}, err
	}
	e.auditLog(ctx, audit.Entry{
		Action:    audit.ActionUpdated,
		ActorID:   actorID,
		TargetID:  r.ID,
		RoleID:    r.ID,
		Allowed:   true,
		Timestamp: time.Now(),
	})
	return r, nil
}

// DeleteRole removes a custom role. Deletion is rejected while assignments
// to the role exist, and system roles are immutable.
func (e *Engine) DeleteRole(ctx context.Context, actorID, roleID string) error {
	existing, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return mapStoreErr(err)
	}
	if existing.IsSystem {
		return oops.In("policy").
			Code(CodeRoleConflict).
			With("role", roleID).
			Errorf("system role %q is immutable", roleID)
	}

	count, err := e.store.CountAssignmentsByRole(ctx, roleID)
	if err != nil {
		return mapStoreErr(err)
	}
	if count > 0 {
		return oops.In("policy").
			Code(CodeRoleConflict).
			With("role", roleID).
			With("assignments", count).
			Errorf("role %q still has %d active assignments", roleID, count)
	}

	if err := e.store.DeleteRole(ctx, roleID); err != nil {
		return mapStoreErr(err)
	}
	if err := e.cache.Reload(ctx); err != nil {
		return err
	}
	e.auditLog(ctx, audit.Entry{
		Action:    audit.ActionDeleted,
		ActorID:   actorID,
		TargetID:  roleID,
		RoleID:    roleID,
		Allowed:   true,
		Timestamp: time.Now(),
	})
	return nil
}

// AssignRole grants a role to a user within a scope instance, validator-
// gated. The role must exist.
func (e *Engine) AssignRole(ctx context.Context, actorID string, a types.Assignment) error {
	a.AssignedBy = actorID
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}

	if problems := ValidateAssignment(a); len(problems) > 0 {
		return ValidationError("assignment", problems)
	}
	if _, err := e.store.GetRole(ctx, a.RoleID); err != nil {
		return mapStoreErr(err)
	}
	if err := e.store.CreateAssignment(ctx, a); err != nil {
		return mapStoreErr(err)
	}
	e.auditLog(ctx, audit.Entry{
		Action:    audit.ActionGranted,
		ActorID:   actorID,
		TargetID:  a.UserID,
		RoleID:    a.RoleID,
		Scope:     string(a.Scope),
		ScopeID:   a.ScopeID,
		Allowed:   true,
		Timestamp: time.Now(),
	})
	return nil
}

// RemoveRole revokes a role assignment identified by its composite key.
func (e *Engine) RemoveRole(ctx context.Context, actorID, userID, roleID string, scope access.Scope, scopeID string) error {
	if err := e.store.DeleteAssignment(ctx, userID, roleID, scope, scopeID); err != nil {
		return mapStoreErr(err)
	}
	e.auditLog(ctx, audit.Entry{
		Action:    audit.ActionRevoked,
		ActorID:   actorID,
		TargetID:  userID,
		RoleID:    roleID,
		Scope:     string(scope),
		ScopeID:   scopeID,
		Allowed:   true,
		Timestamp: time.Now(),
	})
	return nil
}

// ListAssignments returns all of a user's assignments in scope-precedence
// order.
func (e *Engine) ListAssignments(ctx context.Context, userID string) ([]types.Assignment, error) {
	assignments, err := e.store.ListAssignments(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	store.SortAssignments(assignments)
	return assignments, nil
}

// Seed loads the built-in permission catalog and system roles into the
// store, then reloads the snapshot. Existing entries are overwritten with
// their canonical definitions; custom roles are untouched.
func (e *Engine) Seed(ctx context.Context) error {
	for _, p := range SeedPermissions() {
		if err := e.store.PutPermission(ctx, p); err != nil {
			return mapStoreErr(err)
		}
	}
	now := time.Now()
	for _, r := range SeedRoles() {
		r.CreatedAt = now
		r.UpdatedAt = now
		err := e.store.CreateRole(ctx, r)
		if err != nil && store.IsConflict(err) {
			err = e.store.UpdateRole(ctx, r)
		}
		if err != nil {
			return mapStoreErr(err)
		}
	}
	return e.cache.Reload(ctx)
}

// roleGraph snapshots the role set keyed by id for the validator.
func (e *Engine) roleGraph() map[string]types.Role {
	snap := e.cache.Snapshot()
	graph := make(map[string]types.Role, len(snap.Roles))
	for id, cr := range snap.Roles {
		graph[id] = cr.Role
	}
	return graph
}

func (e *Engine) auditLog(ctx context.Context, entry audit.Entry) {
	if e.cfg.auditSink == nil {
		return
	}
	//nolint:errcheck // The sink does its own failure accounting
	_ = e.cfg.auditSink.Log(ctx, entry)
}

// mapStoreErr re-wraps a store error into the engine's domain. Store
// adapters use the same code vocabulary, so the code is preserved.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() != "" {
		return oops.In("policy").Code(oopsErr.Code()).Wrap(err)
	}
	return oops.In("policy").Wrap(err)
}

func sortRoles(roles []types.Role) {
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
}
