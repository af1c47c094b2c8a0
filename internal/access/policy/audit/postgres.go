// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

const insertEntrySQL = `
	INSERT INTO audit_log (
		audit_action, actor_id, target_id, role_id, permission,
		scope, scope_id, allowed, reason, duration_us, occurred_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// DB is the subset of pgxpool.Pool the writer needs. pgxmock satisfies it
// for unit tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresWriter implements Writer for PostgreSQL. Async writes are
// batched and flushed periodically.
type PostgresWriter struct {
	db          DB
	asyncChan   chan Entry
	stopChan    chan struct{}
	wg          sync.WaitGroup
	batchSize   int
	flushPeriod time.Duration
}

// NewPostgresWriter creates a PostgresWriter over the given pool.
func NewPostgresWriter(db DB) *PostgresWriter {
	writer := &PostgresWriter{
		db:          db,
		asyncChan:   make(chan Entry, 1000),
		stopChan:    make(chan struct{}),
		batchSize:   100,
		flushPeriod: 1 * time.Second,
	}

	writer.wg.Add(1)
	go writer.batchConsumer()

	return writer
}

// WriteSync performs a synchronous insert.
func (w *PostgresWriter) WriteSync(ctx context.Context, entry Entry) error {
	_, err := w.db.Exec(ctx, insertEntrySQL, entryArgs(entry)...)
	if err != nil {
		return oops.With("audit_action", entry.Action).
			With("actor", entry.ActorID).
			With("target", entry.TargetID).
			Wrap(err)
	}
	return nil
}

// WriteAsync queues an entry for batched writing.
func (w *PostgresWriter) WriteAsync(entry Entry) error {
	select {
	case w.asyncChan <- entry:
		return nil
	default:
		channelFullCounter.Inc()
		return oops.Errorf("async channel full")
	}
}

// batchConsumer flushes queued entries when the batch fills or the flush
// period elapses.
func (w *PostgresWriter) batchConsumer() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushPeriod)
	defer ticker.Stop()

	var batch []Entry

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.writeBatch(ctx, batch); err != nil {
			slog.Error("failed to write audit batch", "error", err, "count", len(batch))
			failuresCounter.WithLabelValues("batch_write_failed").Inc()
		}
		cancel()

		batch = batch[:0]
	}

	for {
		select {
		case entry := <-w.asyncChan:
			batch = append(batch, entry)
			if len(batch) >= w.batchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-w.stopChan:
			for {
				select {
				case entry := <-w.asyncChan:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// writeBatch inserts multiple entries in a single round trip.
func (w *PostgresWriter) writeBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for i := range entries {
		b.Queue(insertEntrySQL, entryArgs(entries[i])...)
	}

	results := w.db.SendBatch(ctx, b)
	defer func() {
		//nolint:errcheck // Close error duplicates the per-entry errors below
		_ = results.Close()
	}()

	for i := range entries {
		if _, err := results.Exec(); err != nil {
			slog.Error("failed to insert audit entry", "error", err, "entry", entries[i])
			// Continue with other entries
		}
	}

	return nil
}

// Close gracefully shuts down the writer, draining queued entries.
func (w *PostgresWriter) Close() error {
	close(w.stopChan)
	w.wg.Wait()
	return nil
}

func entryArgs(entry Entry) []any {
	return []any{
		entry.Action,
		entry.ActorID,
		entry.TargetID,
		nullable(entry.RoleID),
		nullable(entry.Permission),
		nullable(entry.Scope),
		nullable(entry.ScopeID),
		entry.Allowed,
		nullable(entry.Reason),
		entry.DurationUS,
		entry.Timestamp,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
