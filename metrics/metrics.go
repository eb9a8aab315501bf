// Package metrics exposes Prometheus counters/histograms/gauges for the
// editing core, wired the way the retrieval pack's other services expose
// theirs (apex-build-platform, zfogg-sidechain): package-level collectors
// registered against the default registry, scraped via an HTTP handler the
// caller mounts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_operations_ingested_total",
		Help: "Operations accepted by the document session, by outcome.",
	}, []string{"outcome"})

	TransformLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collab_transform_latency_seconds",
		Help:    "Time spent transforming an operation against concurrent history.",
		Buckets: prometheus.DefBuckets,
	})

	BroadcastFanout = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collab_broadcast_fanout",
		Help:    "Number of subscribers a single operation broadcast reached.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collab_room_members",
		Help: "Current member count per document room.",
	}, []string{"document_id"})

	PersistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_persistence_failures_total",
		Help: "TRANSIENT_PERSISTENCE_FAILURE occurrences during ingest.",
	})
)
