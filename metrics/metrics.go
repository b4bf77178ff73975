package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snsm_events_ingested_total",
			Help: "Total number of events ingested",
		},
		[]string{"source"},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snsm_events_rejected_total",
			Help: "Total number of events rejected by input validation",
		},
		[]string{"source"},
	)

	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snsm_alerts_generated_total",
			Help: "Total number of alerts stored, including derived alerts",
		},
		[]string{"severity"},
	)

	ScoreUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snsm_threat_score_updates_total",
			Help: "Total number of per-IP threat score updates",
		},
		[]string{"source"},
	)

	ScoreUpdateFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snsm_threat_score_update_failures_total",
			Help: "Derived score updates dropped because the store was unavailable",
		},
		[]string{"source"},
	)

	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snsm_anomalies_detected_total",
			Help: "Total number of metric anomalies detected",
		},
		[]string{"type"},
	)

	BlocksIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snsm_blocks_issued_total",
			Help: "Total number of blocklist upserts",
		},
		[]string{"source"},
	)

	BlockFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snsm_block_failures_total",
			Help: "Blocklist upserts that failed; a missed auto-block is a security degradation",
		},
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snsm_ingest_duration_seconds",
			Help:    "Time taken to process one ingestion batch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snsm_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snsm_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snsm_cache_errors_total",
			Help: "Total number of cache errors",
		},
		[]string{"operation"},
	)
)
