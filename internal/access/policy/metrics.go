// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package policy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for permission check evaluation.
var (
	// checkDuration tracks the latency of Check() calls.
	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scopekit_check_duration_seconds",
		Help:    "Histogram of permission check latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// checksTotal counts checks by decision and scope.
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scopekit_checks_total",
		Help: "Total number of permission checks",
	}, []string{"decision", "scope"})

	// staleDenials counts checks denied because the role snapshot was stale.
	staleDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scopekit_stale_denials_total",
		Help: "Total number of checks denied due to a stale role snapshot",
	})

	// snapshotLastUpdate records the Unix time of the last successful
	// role snapshot reload.
	snapshotLastUpdate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scopekit_snapshot_last_update_timestamp_seconds",
		Help: "Unix timestamp of the last successful role snapshot reload",
	})
)

// RecordCheckMetrics records metrics for a completed permission check.
func RecordCheckMetrics(duration time.Duration, allowed bool, scope string) {
	checkDuration.Observe(duration.Seconds())
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	checksTotal.WithLabelValues(decision, scope).Inc()
}

// RecordStaleDenial records a check that was denied fail-closed because the
// snapshot outlived the staleness threshold.
func RecordStaleDenial() {
	staleDenials.Inc()
}

// SnapshotLastUpdateGauge exposes the reload timestamp gauge so the cache
// can be wired with WithLastUpdateGauge.
func SnapshotLastUpdateGauge() prometheus.Gauge {
	return snapshotLastUpdate
}
