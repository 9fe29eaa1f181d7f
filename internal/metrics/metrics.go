package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesProcessed counts reconciled batches by outcome
	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_batches_processed_total",
			Help: "Total number of processed batches",
		},
		[]string{"status"},
	)

	// EventsProcessed counts decoded registrar events by kind
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_events_processed_total",
			Help: "Total number of processed registrar events",
		},
		[]string{"kind"},
	)

	// BatchDuration tracks end-to-end batch processing time
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexer_batch_duration_seconds",
			Help:    "Batch processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// EnrichmentCalls counts metadata enrichment attempts by outcome
	EnrichmentCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_enrichment_calls_total",
			Help: "Total number of metadata enrichment attempts",
		},
		[]string{"status"},
	)

	// LastProcessedBlock tracks the newest block folded into storage
	LastProcessedBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_last_processed_block",
			Help: "Last block number persisted by the indexer",
		},
	)

	// ChainHead tracks the chain head as last observed from the node
	ChainHead = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_chain_head_block",
			Help: "Chain head block number as last observed",
		},
	)

	// PublishedEvents counts events published to the stream by outcome
	PublishedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_published_events_total",
			Help: "Total number of registrar events published to the stream",
		},
		[]string{"status"},
	)
)
