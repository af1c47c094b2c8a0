// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/oops"

	"github.com/scopekit/scopekit/internal/xdg"
)

// Mode controls which check decisions are logged. Role mutations are
// always logged regardless of mode.
type Mode string

// Audit logging modes.
const (
	ModeMinimal     Mode = "minimal"      // mutations only
	ModeDenialsOnly Mode = "denials_only" // mutations + denied checks
	ModeAll         Mode = "all"          // everything
)

// Audit entry actions.
const (
	ActionChecked = "checked"
	ActionGranted = "granted"
	ActionRevoked = "revoked"
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Entry represents a single auditable event: a permission check decision
// or a role/assignment mutation.
type Entry struct {
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id"`
	TargetID   string    `json:"target_id"`
	RoleID     string    `json:"role_id,omitempty"`
	Permission string    `json:"permission,omitempty"`
	Scope      string    `json:"scope,omitempty"`
	ScopeID    string    `json:"scope_id,omitempty"`
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason,omitempty"`
	DurationUS int64     `json:"duration_us,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Writer is the interface for writing audit entries to a backend.
type Writer interface {
	WriteSync(ctx context.Context, entry Entry) error
	WriteAsync(entry Entry) error
	Close() error
}

var (
	channelFullCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scopekit_audit_channel_full_total",
		Help: "Total number of times async audit channel was full",
	})

	failuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scopekit_audit_failures_total",
		Help: "Total number of audit logging failures",
	}, []string{"reason"})

	walEntriesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scopekit_audit_wal_entries",
		Help: "Current number of entries in the WAL",
	})
)

// Logger routes audit entries based on mode and entry kind.
type Logger struct {
	mode      Mode
	writer    Writer
	walPath   string
	walFile   *os.File
	walMu     sync.Mutex
	asyncChan chan Entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewLogger creates a Logger with the given mode, writer, and WAL path.
// If walPath is empty, a default path in the XDG state directory is used.
func NewLogger(mode Mode, writer Writer, walPath string) *Logger {
	if walPath == "" {
		stateDir, err := xdg.StateDir()
		if err != nil {
			slog.Error("failed to get state directory for WAL", "error", err)
			walPath = "/tmp/scopekit-audit-wal.jsonl"
		} else {
			if err := xdg.EnsureDir(stateDir); err != nil {
				slog.Error("failed to ensure state directory", "error", err)
			}
			walPath = filepath.Join(stateDir, "audit-wal.jsonl")
		}
	}

	logger := &Logger{
		mode:      mode,
		writer:    writer,
		walPath:   walPath,
		asyncChan: make(chan Entry, 1000),
		stopChan:  make(chan struct{}),
	}

	logger.wg.Add(1)
	go logger.asyncConsumer()

	return logger
}

// Log routes an audit entry based on the configured mode. Mutations and
// denials go through the synchronous path with WAL fallback; allowed
// checks in ModeAll go through the async channel and are droppable under
// pressure.
func (l *Logger) Log(ctx context.Context, entry Entry) error {
	shouldLog, useSync := l.shouldLog(entry)
	if !shouldLog {
		return nil
	}

	if useSync {
		if err := l.writer.WriteSync(ctx, entry); err != nil {
			if walErr := l.writeToWAL(entry); walErr != nil {
				slog.Error("audit write failed: both backend and WAL failed",
					"backend_error", err,
					"wal_error", walErr,
					"audit_action", entry.Action,
					"actor", entry.ActorID,
					"target", entry.TargetID,
				)
				failuresCounter.WithLabelValues("wal_failed").Inc()
			}
		}
		return nil
	}

	select {
	case l.asyncChan <- entry:
		return nil
	default:
		channelFullCounter.Inc()
		return nil
	}
}

// shouldLog determines whether an entry is logged and on which path.
func (l *Logger) shouldLog(entry Entry) (shouldLog, useSync bool) {
	// Mutations are always logged synchronously.
	if entry.Action != ActionChecked {
		return true, true
	}

	switch l.mode {
	case ModeMinimal:
		return false, false
	case ModeDenialsOnly:
		if !entry.Allowed {
			return true, true
		}
		return false, false
	case ModeAll:
		if !entry.Allowed {
			return true, true
		}
		return true, false
	default:
		return false, false
	}
}

// asyncConsumer processes async writes from the channel.
func (l *Logger) asyncConsumer() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.asyncChan:
			if err := l.writer.WriteAsync(entry); err != nil {
				slog.Error("async audit write failed",
					"error", err,
					"audit_action", entry.Action,
					"actor", entry.ActorID,
				)
				failuresCounter.WithLabelValues("async_write_failed").Inc()
			}
		case <-l.stopChan:
			l.drainAsync()
			return
		}
	}
}

// drainAsync processes all remaining entries in the channel.
func (l *Logger) drainAsync() {
	for {
		select {
		case entry := <-l.asyncChan:
			if err := l.writer.WriteAsync(entry); err != nil {
				slog.Error("async audit write failed during drain",
					"error", err,
					"actor", entry.ActorID,
				)
				failuresCounter.WithLabelValues("async_write_failed").Inc()
			}
		default:
			return
		}
	}
}

// writeToWAL appends an entry to the write-ahead log.
func (l *Logger) writeToWAL(entry Entry) error {
	l.walMu.Lock()
	defer l.walMu.Unlock()

	if l.walFile == nil {
		file, err := os.OpenFile(l.walPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY|os.O_SYNC, 0o600)
		if err != nil {
			return oops.With("path", l.walPath).Wrap(err)
		}
		l.walFile = file
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return oops.Wrap(err)
	}

	if _, err := fmt.Fprintf(l.walFile, "%s\n", data); err != nil {
		return oops.Wrap(err)
	}

	walEntriesGauge.Inc()
	return nil
}

// ReplayWAL reads all entries from the WAL and writes them to the writer.
// On success, truncates the WAL file.
func (l *Logger) ReplayWAL(ctx context.Context) error {
	l.walMu.Lock()
	defer l.walMu.Unlock()

	if _, err := os.Stat(l.walPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(l.walPath)
	if err != nil {
		return oops.With("path", l.walPath).Wrap(err)
	}

	if len(data) == 0 {
		return nil
	}

	lines := 0
	for _, line := range splitLines(string(data)) {
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			slog.Error("failed to unmarshal WAL entry", "error", err, "line", line)
			failuresCounter.WithLabelValues("wal_unmarshal_failed").Inc()
			continue
		}

		if err := l.writer.WriteSync(ctx, entry); err != nil {
			slog.Error("failed to replay WAL entry", "error", err, "entry", entry)
			failuresCounter.WithLabelValues("wal_replay_failed").Inc()
			// Continue with other entries
		}
		lines++
	}

	if err := os.Truncate(l.walPath, 0); err != nil {
		return oops.With("path", l.walPath).Wrap(err)
	}

	walEntriesGauge.Set(0)
	slog.Info("replayed WAL entries", "count", lines)
	return nil
}

// Close gracefully shuts down the logger.
func (l *Logger) Close() error {
	close(l.stopChan)
	l.wg.Wait()

	if err := l.writer.Close(); err != nil {
		return oops.Wrap(err)
	}

	l.walMu.Lock()
	defer l.walMu.Unlock()
	if l.walFile != nil {
		if err := l.walFile.Close(); err != nil {
			return oops.Wrap(err)
		}
		l.walFile = nil
	}

	return nil
}

// splitLines splits a string by newlines.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
