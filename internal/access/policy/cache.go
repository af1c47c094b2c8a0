// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package policy

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/scopekit/scopekit/internal/access"
	"github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/access/policy/types"
	"github.com/scopekit/scopekit/pkg/errutil"
)

// Listener abstracts the PostgreSQL LISTEN/NOTIFY mechanism so the reload
// loop can be tested without a database. Implementations return a channel
// that emits notification payloads and close it when ctx is cancelled.
type Listener interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// CompiledRole pairs a role with its expanded permission closure and the
// compiled pattern set used for matching.
type CompiledRole struct {
	Role     types.Role
	Expanded []string
	Set      *access.CompiledSet
}

// Snapshot is an immutable view of the compiled role graph and the
// permission catalog. It is safe for concurrent reads without locking.
type Snapshot struct {
	Roles     map[string]CompiledRole
	Catalog   *Catalog
	CreatedAt time.Time
}

// CacheOption configures Cache behavior.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	stalenessThreshold time.Duration
	lastUpdateGauge    prometheus.Gauge
}

// WithStalenessThreshold marks the snapshot stale when no reload succeeded
// within d. Stale snapshots fail closed: every check denies. Zero (the
// default) disables staleness, which is correct for single-process stores
// where every mutation reloads inline.
func WithStalenessThreshold(d time.Duration) CacheOption {
	return func(c *cacheConfig) {
		c.stalenessThreshold = d
	}
}

// WithLastUpdateGauge records the last successful reload time on g.
func WithLastUpdateGauge(g prometheus.Gauge) CacheOption {
	return func(c *cacheConfig) {
		c.lastUpdateGauge = g
	}
}

// Cache compiles the role graph and catalog from a Store into immutable
// snapshots. Reads never serialize against each other: the write lock is
// held only for the pointer swap, and readers keep using the snapshot they
// already hold.
type Cache struct {
	store store.Store
	cfg   cacheConfig

	mu       sync.RWMutex
	snapshot *Snapshot

	// lastUpdate is the Unix nanosecond timestamp of the last successful
	// reload; zero means never reloaded.
	lastUpdate atomic.Int64

	wg sync.WaitGroup
}

// NewCache creates a Cache over the given store. Call Reload before first
// use; until then the snapshot is empty and, with staleness enabled, stale.
func NewCache(s store.Store, opts ...CacheOption) *Cache {
	cfg := cacheConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cache{
		store:    s,
		cfg:      cfg,
		snapshot: &Snapshot{Roles: map[string]CompiledRole{}, Catalog: &Catalog{byID: map[string]types.Permission{}}},
	}
}

// Snapshot returns the current snapshot. The returned value is immutable
// and safe to use for the whole of one evaluation.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Reload fetches roles and permissions from the store, expands inheritance,
// compiles pattern sets, and atomically swaps the snapshot. Fetch and
// compilation happen outside the lock; the write lock guards only the
// pointer assignment, so concurrent checks see either the old or the new
// snapshot in its entirety.
func (c *Cache) Reload(ctx context.Context) error {
	roles, err := c.store.ListRoles(ctx)
	if err != nil {
		return oops.In("policy").With("operation", "list roles").Wrap(err)
	}
	perms, err := c.store.ListPermissions(ctx)
	if err != nil {
		return oops.In("policy").With("operation", "list permissions").Wrap(err)
	}

	catalog, err := NewCatalog(perms)
	if err != nil {
		return err
	}

	graph := make(map[string]types.Role, len(roles))
	for _, r := range roles {
		graph[r.ID] = r
	}

	compiled := make(map[string]CompiledRole, len(roles))
	for _, r := range roles {
		expanded := ExpandPermissions(r.ID, graph)
		set, err := access.CompileSet(expanded)
		if err != nil {
			return oops.In("policy").With("role", r.ID).Wrap(err)
		}
		compiled[r.ID] = CompiledRole{Role: r, Expanded: expanded, Set: set}
	}

	snap := &Snapshot{
		Roles:     compiled,
		Catalog:   catalog,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	now := time.Now()
	c.lastUpdate.Store(now.UnixNano())
	if c.cfg.lastUpdateGauge != nil {
		c.cfg.lastUpdateGauge.Set(float64(now.Unix()))
	}
	return nil
}

// IsStale reports whether the snapshot has outlived the staleness
// threshold. With staleness enabled a never-reloaded cache is stale;
// callers must fail closed on a stale snapshot.
func (c *Cache) IsStale() bool {
	if c.cfg.stalenessThreshold <= 0 {
		return false
	}
	last := c.lastUpdate.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(0, last)) > c.cfg.stalenessThreshold
}

// StartWithListener spawns a goroutine that reloads the snapshot on every
// notification. Used with store.PgListener in multi-process deployments;
// tests supply a mock Listener.
func (c *Cache) StartWithListener(ctx context.Context, listener Listener) error {
	ch, err := listener.Listen(ctx)
	if err != nil {
		return oops.In("policy").With("operation", "start listener").Wrap(err)
	}

	c.wg.Add(1)
	go c.listenLoop(ctx, ch)
	return nil
}

// StartRefresh spawns a goroutine that reloads the snapshot every interval
// until ctx is cancelled. Hosts use it to honor a configured permission
// refresh interval alongside (or instead of) notification-driven reloads.
func (c *Cache) StartRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Reload(ctx); err != nil {
					errutil.LogError(slog.Default(), "role snapshot refresh failed", err)
				}
			}
		}
	}()
}

// Wait blocks until all background goroutines have exited.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) listenLoop(ctx context.Context, ch <-chan string) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := c.Reload(ctx); err != nil {
				errutil.LogError(slog.Default(), "role snapshot reload on notification failed", err)
			}
		}
	}
}
