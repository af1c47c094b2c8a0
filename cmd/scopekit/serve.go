// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scopekit/scopekit/internal/access/policy"
	"github.com/scopekit/scopekit/internal/access/policy/audit"
	pstore "github.com/scopekit/scopekit/internal/access/policy/store"
	"github.com/scopekit/scopekit/internal/config"
	"github.com/scopekit/scopekit/internal/logging"
	"github.com/scopekit/scopekit/internal/observability"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the policy engine as a long-lived process",
		Long: `Runs the policy engine against the PostgreSQL store: keeps the role
snapshot fresh via LISTEN/NOTIFY and periodic refresh, replays any audit
write-ahead log, and exposes metrics and health probes over HTTP.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	d := config.Default()
	cmd.Flags().String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", d.Log.Format, "log format (json or text)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL (overrides config)")
	cmd.Flags().String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().Bool("audit-enabled", d.Audit.Enabled, "write audit entries to the database")
	cmd.Flags().String("audit-mode", d.Audit.Mode, "audit mode (minimal, denials_only, all)")
	cmd.Flags().Bool("audit-on-check", d.Audit.OnCheck, "record permission checks in the audit trail")
	cmd.Flags().String("audit-wal-path", "", "audit WAL fallback path (default: XDG state directory)")
	cmd.Flags().Duration("cache-staleness-threshold", d.Cache.StalenessThreshold, "deny checks when the snapshot is older than this (0 = never stale)")
	cmd.Flags().Duration("cache-refresh-interval", d.Cache.RefreshInterval, "periodic snapshot reload interval (0 = disabled)")

	return cmd
}

// runServeWithDeps starts the serve process with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}

	// Set up default factories
	if deps.BackendFactory == nil {
		deps.BackendFactory = func(ctx context.Context, url string) (*Backend, error) {
			pool, err := openPool(ctx, url)
			if err != nil {
				return nil, err
			}
			return &Backend{
				Store:       pstore.NewPostgresStore(pool),
				AuditWriter: audit.NewPostgresWriter(pool),
				Close:       pool.Close,
			}, nil
		}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = func(url string) policy.Listener {
			return pstore.NewPgListener(url)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.SetDefault("scopekit", version, cfg.Log.Format, level)

	slog.Info("starting serve process",
		"metrics_addr", cfg.Metrics.Addr,
		"audit_mode", cfg.Audit.Mode,
		"log_format", cfg.Log.Format,
	)

	url, err := databaseURL(cfg)
	if err != nil {
		return err
	}

	backend, err := deps.BackendFactory(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to open policy store: %w", err)
	}
	defer backend.Close()

	slog.Info("connected to database")

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cache := policy.NewCache(backend.Store,
		policy.WithStalenessThreshold(cfg.Cache.StalenessThreshold),
		policy.WithLastUpdateGauge(policy.SnapshotLastUpdateGauge()),
	)
	if err := cache.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load role snapshot: %w", err)
	}

	slog.Info("role snapshot loaded")

	if listener := deps.ListenerFactory(url); listener != nil {
		if err := cache.StartWithListener(ctx, listener); err != nil {
			slog.Warn("notification listener unavailable, relying on periodic refresh", "error", err)
		} else {
			slog.Info("listening for policy change notifications", "channel", pstore.NotifyChannel)
		}
	}
	if cfg.Cache.RefreshInterval > 0 {
		cache.StartRefresh(ctx, cfg.Cache.RefreshInterval)
	}

	// Replay any audit entries stranded in the WAL by earlier runs.
	var auditLogger *audit.Logger
	if cfg.Audit.Enabled && backend.AuditWriter != nil {
		auditLogger = audit.NewLogger(audit.Mode(cfg.Audit.Mode), backend.AuditWriter, cfg.Audit.WALPath)
		if err := auditLogger.ReplayWAL(ctx); err != nil {
			slog.Warn("audit WAL replay failed", "error", err)
		}
	}

	// Start observability server if configured
	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
			return !cache.IsStale()
		})
		obsErrChan, err := obsServer.Start()
		if err != nil {
			if auditLogger != nil {
				if closeErr := auditLogger.Close(); closeErr != nil {
					slog.Warn("error closing audit logger during cleanup", "error", closeErr)
				}
			}
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Serve process started")
	slog.Info("serve process ready")

	// Wait for shutdown signal or cancellation
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")
	cancel()
	cache.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	if auditLogger != nil {
		if err := auditLogger.Close(); err != nil {
			slog.Warn("error closing audit logger", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
