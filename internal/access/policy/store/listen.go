// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default reconnect backoff for the notification listener.
const (
	defaultListenInitial = 100 * time.Millisecond
	defaultListenMax     = 30 * time.Second
)

// PgListener listens on NotifyChannel with a dedicated (non-pooled)
// connection and surfaces notifications as channel receives. The connection
// is re-established with capped exponential backoff when it drops.
type PgListener struct {
	connStr string
	initial time.Duration
	max     time.Duration
}

// NewPgListener creates a listener for the given connection string.
func NewPgListener(connStr string) *PgListener {
	return &PgListener{
		connStr: connStr,
		initial: defaultListenInitial,
		max:     defaultListenMax,
	}
}

// Listen starts the background listen loop and returns the notification
// channel. The channel closes when ctx is cancelled.
func (l *PgListener) Listen(ctx context.Context) (<-chan string, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, oops.In("store").With("channel", NotifyChannel).Wrap(err)
	}

	ch := make(chan string, 16)
	go l.loop(ctx, conn, ch)
	return ch, nil
}

// connect dials and issues LISTEN, retrying with exponential backoff until
// ctx is cancelled.
func (l *PgListener) connect(ctx context.Context) (*pgx.Conn, error) {
	var conn *pgx.Conn
	backoff := retry.WithCappedDuration(l.max, retry.NewExponential(l.initial))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := pgx.Connect(ctx, l.connStr)
		if err != nil {
			return retry.RetryableError(err)
		}
		if _, err := c.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
			_ = c.Close(ctx)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	return conn, err
}

func (l *PgListener) loop(ctx context.Context, conn *pgx.Conn, ch chan<- string) {
	defer close(ch)
	defer func() {
		if conn != nil {
			_ = conn.Close(context.Background())
		}
	}()

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("policy listener connection lost, reconnecting", "error", err)
			_ = conn.Close(context.Background())
			conn, err = l.connect(ctx)
			if err != nil {
				// Only context cancellation breaks the backoff loop.
				return
			}
			continue
		}

		select {
		case ch <- notification.Payload:
		default:
			// Coalesce: a pending notification already forces a reload.
		}
	}
}
