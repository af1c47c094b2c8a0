// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

// Package audit provides audit logging for permission checks and role
// mutations.
//
// # Overview
//
// The audit package implements configurable audit logging with sync/async
// writes and WAL (Write-Ahead Log) fallback for resilience. It supports
// three logging modes and provides PostgreSQL storage.
//
// # Audit Modes
//
//   - ModeMinimal: Logs role mutations only (sync)
//   - ModeDenialsOnly: Logs mutations and denied checks (sync)
//   - ModeAll: Logs everything - mutations and denials sync, allows async
//
// Role mutations (grants, revocations, role create/update/delete) are
// always written synchronously regardless of mode: a lost grant record is
// a compliance gap, a lost allowed-check record is not.
//
// # Resilience
//
// When sync writes fail, entries are written to a WAL file at
// $XDG_STATE_HOME/scopekit/audit-wal.jsonl. The ReplayWAL method can be
// used to recover entries after outages.
//
// # Metrics
//
//   - scopekit_audit_channel_full_total: Channel overflow counter
//   - scopekit_audit_failures_total{reason}: Failure counter by reason
//   - scopekit_audit_wal_entries: Current WAL entry count
//
// # Example Usage
//
//	writer := audit.NewPostgresWriter(pool)
//	logger := audit.NewLogger(audit.ModeAll, writer, "")
//	defer logger.Close()
//
//	logger.Log(ctx, audit.Entry{
//	    Action:     audit.ActionChecked,
//	    ActorID:    "u1",
//	    TargetID:   "u1",
//	    Permission: "tenant.read",
//	    Scope:      "tenant",
//	    ScopeID:    "t1",
//	    Allowed:    true,
//	    Reason:     "granted by role tenant-admin",
//	    DurationUS: 150,
//	    Timestamp:  time.Now(),
//	})
package audit
