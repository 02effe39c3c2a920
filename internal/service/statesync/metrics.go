package statesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "party_statesync_deltas_total",
		Help: "Deltas written, by op type",
	}, []string{"op"})

	conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "party_statesync_conflicts_total",
		Help: "Concurrent writes detected, by outcome",
	}, []string{"outcome"})

	raceRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "party_statesync_race_retries_total",
		Help: "Optimistic transactions re-run after another owner committed first",
	})

	integrityFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "party_statesync_integrity_failures_total",
		Help: "Snapshots rejected on checksum mismatch",
	})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "party_statesync_cache_hits_total",
		Help: "Reads served from the local snapshot cache",
	})

	reconciledDeltas = promauto.NewCounter(prometheus.CounterOpts{
		Name: "party_statesync_reconciled_deltas_total",
		Help: "Remote deltas replayed into the local cache",
	})

	writeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "party_statesync_write_duration_seconds",
		Help:    "Latency of state writes including retries",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
)
