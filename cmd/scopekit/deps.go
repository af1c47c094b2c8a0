// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package main

import (
	"context"

	"github.com/scopekit/scopekit/internal/access/policy"
	"github.com/scopekit/scopekit/internal/access/policy/audit"
	pstore "github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendFactory opens the policy store and audit writer for a
	// database URL. Default: pgx pool backed implementations.
	BackendFactory func(ctx context.Context, url string) (*Backend, error)

	// ListenerFactory creates the notification listener that drives cache
	// reloads. Returning nil skips the listener.
	// Default: store.NewPgListener.
	ListenerFactory func(url string) policy.Listener

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// Backend bundles the storage-facing pieces of the serve command.
// Close releases the underlying connections.
type Backend struct {
	Store       pstore.Store
	AuditWriter audit.Writer
	Close       func()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}
