// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/scopekit/scopekit/internal/access/policy"
	"github.com/scopekit/scopekit/internal/access/policy/audit"
	pstore "github.com/scopekit/scopekit/internal/access/policy/store"
)

func TestServeCommand_Flags(t *testing.T) {
	cmd := NewServeCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()

	expectedFlags := []string{
		"--log-level",
		"--log-format",
		"--database-url",
		"--metrics-addr",
		"--audit-enabled",
		"--audit-mode",
		"--audit-on-check",
		"--audit-wal-path",
		"--cache-staleness-threshold",
		"--cache-refresh-interval",
	}

	for _, flag := range expectedFlags {
		if !strings.Contains(output, flag) {
			t.Errorf("Help missing %q flag", flag)
		}
	}
}

func TestServeCommand_DefaultValues(t *testing.T) {
	cmd := NewServeCmd()

	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		t.Fatalf("Failed to get metrics-addr flag: %v", err)
	}
	if metricsAddr != "127.0.0.1:9100" {
		t.Errorf("metrics-addr default = %q, want %q", metricsAddr, "127.0.0.1:9100")
	}

	auditMode, err := cmd.Flags().GetString("audit-mode")
	if err != nil {
		t.Fatalf("Failed to get audit-mode flag: %v", err)
	}
	if auditMode != "denials_only" {
		t.Errorf("audit-mode default = %q, want %q", auditMode, "denials_only")
	}

	refresh, err := cmd.Flags().GetDuration("cache-refresh-interval")
	if err != nil {
		t.Fatalf("Failed to get cache-refresh-interval flag: %v", err)
	}
	if refresh != 30*time.Second {
		t.Errorf("cache-refresh-interval default = %v, want %v", refresh, 30*time.Second)
	}
}

func TestServeCommand_NoDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"serve", "--log-format", "text"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("Expected error when no database URL is configured")
	}
	if !strings.Contains(err.Error(), "database") {
		t.Errorf("Error should mention the database URL, got: %v", err)
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	cmd := NewServeCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	if err := cmd.ParseFlags([]string{
		"--database-url", "postgres://unused",
		"--metrics-addr", "127.0.0.1:0",
		"--log-format", "text",
		"--cache-refresh-interval", "10ms",
	}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	deps := &ServeDeps{
		BackendFactory: func(_ context.Context, _ string) (*Backend, error) {
			return &Backend{
				Store:       pstore.NewMemoryStore(),
				AuditWriter: audit.NewMemoryWriter(),
				Close:       func() {},
			}, nil
		},
		ListenerFactory: func(string) policy.Listener { return nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServeWithDeps(ctx, cmd, deps)
	}()

	// Give the process time to start, then trigger shutdown.
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServeWithDeps() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for graceful shutdown")
	}

	if !strings.Contains(buf.String(), "Serve process started") {
		t.Errorf("Expected startup message, got: %s", buf.String())
	}
}
