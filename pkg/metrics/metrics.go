// Package metrics registers the Prometheus instruments exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerAppends counts persisted ledger entries by entry type.
	LedgerAppends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mzunguko",
		Name:      "ledger_appends_total",
		Help:      "Ledger entries appended, by entry type.",
	}, []string{"type"})

	// SequenceConflicts counts optimistic concurrency retries.
	SequenceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mzunguko",
		Name:      "sequence_conflicts_total",
		Help:      "Appends rejected because another writer advanced the circle sequence first.",
	})

	// PayoutsIssued counts issued round payouts.
	PayoutsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mzunguko",
		Name:      "payouts_issued_total",
		Help:      "Round payouts issued.",
	})

	// LateSweepsRan counts lateness sweeper passes.
	LateSweepsRan = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mzunguko",
		Name:      "late_sweeps_total",
		Help:      "Completed lateness sweeper passes over active circles.",
	})

	// HTTPRequests counts handled API requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mzunguko",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by method, route and status code.",
	}, []string{"method", "route", "status"})
)
