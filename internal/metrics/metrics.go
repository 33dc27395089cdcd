// Package metrics holds the Prometheus collectors for the ingestion
// pipeline. They are registered on the default registry and served at
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsProcessed counts records per source and outcome
	// (insert, update, skip, conflict, malformed, error).
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_total",
			Help: "Records processed by the ingestion pipeline",
		},
		[]string{"source", "outcome"},
	)

	SourceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_source_runs_total",
			Help: "Per-source sync runs by final status",
		},
		[]string{"source", "status"},
	)

	SourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_source_duration_seconds",
			Help:    "Wall time of one source's sync",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	TagsPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_movie_tags_pruned_total",
			Help: "Cinema tags removed from movies a chain no longer lists",
		},
		[]string{"source"},
	)

	OrphanMovies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_orphan_movies",
			Help: "Movies flagged as showing with no contributing source, as of the last audit",
		},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_circuit_breaker_state",
			Help: "Circuit breaker state per upstream source",
		},
		[]string{"source"},
	)
)
