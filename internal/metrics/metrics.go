// Package metrics exposes Prometheus instrumentation for the transcription
// queue and fallback subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus collectors for voxnote.
type Metrics struct {
	// Queue metrics
	QueueDepth     prometheus.Gauge
	QueueProcessed prometheus.Counter

	// Transcription outcome metrics
	TranscriptionsCompleted prometheus.Counter
	TranscriptionsFailed    prometheus.Counter
	TranscriptionRetries    prometheus.Counter

	// Fallback metrics
	CacheHits               prometheus.Counter
	DraftsSynced            prometheus.Counter
	RecoveryActionsReplayed prometheus.Counter
}

// New registers all collectors against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxnote_queue_depth",
			Help: "Number of recordings waiting for transcription",
		}),
		QueueProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_queue_processed_total",
			Help: "Total recordings drained from the queue",
		}),
		TranscriptionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_transcriptions_completed_total",
			Help: "Total successful transcriptions",
		}),
		TranscriptionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_transcriptions_failed_total",
			Help: "Total failed transcriptions",
		}),
		TranscriptionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_transcription_retries_total",
			Help: "Total retry attempts against the remote service",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_transcript_cache_hits_total",
			Help: "Total transcription requests served from the local cache",
		}),
		DraftsSynced: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_drafts_synced_total",
			Help: "Total offline drafts synced into documents",
		}),
		RecoveryActionsReplayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_recovery_actions_replayed_total",
			Help: "Total recovery actions replayed after reconnect",
		}),
	}
}
