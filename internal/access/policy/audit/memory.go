// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package audit

import (
	"context"
	"sync"
)

// MemoryWriter collects audit entries in memory. Used in tests and in
// ephemeral in-process deployments.
type MemoryWriter struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryWriter creates an empty MemoryWriter.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

// WriteSync implements Writer.
func (w *MemoryWriter) WriteSync(_ context.Context, entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)
	return nil
}

// WriteAsync implements Writer.
func (w *MemoryWriter) WriteAsync(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)
	return nil
}

// Close implements Writer.
func (w *MemoryWriter) Close() error { return nil }

// Entries returns a copy of all recorded entries.
func (w *MemoryWriter) Entries() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Reset discards all recorded entries.
func (w *MemoryWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
}
