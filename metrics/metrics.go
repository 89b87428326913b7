// Package metrics exposes pipeline instrumentation for prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ChunksEnqueued     prometheus.Counter
	ChunksRejected     prometheus.Counter
	ChunksTranscribed  prometheus.Counter
	ChunksFailed       prometheus.Counter
	RetriesTotal       prometheus.Counter
	QueueLength        prometheus.Gauge
	QueueBytes         prometheus.Gauge
	MemoryUsageRatio   prometheus.Gauge
	TranscribeDuration prometheus.Histogram
	ChunkSizeBytes     prometheus.Histogram

	registry *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)
	m.registry = reg
	return m
}

// NewWith registers on the given registerer; tests pass their own so
// repeated construction never collides.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_chunks_enqueued_total",
			Help: "Chunks accepted into the transcription queue.",
		}),
		ChunksRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_chunks_rejected_total",
			Help: "Chunks rejected by the queue for capacity reasons.",
		}),
		ChunksTranscribed: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_chunks_transcribed_total",
			Help: "Chunks successfully transcribed.",
		}),
		ChunksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_chunks_failed_total",
			Help: "Chunks whose transcription failed after retries.",
		}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_transcription_retries_total",
			Help: "Transcription attempts beyond the first.",
		}),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scribe_queue_length",
			Help: "Chunks currently queued.",
		}),
		QueueBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scribe_queue_bytes",
			Help: "Bytes currently accounted to the queue.",
		}),
		MemoryUsageRatio: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scribe_memory_usage_ratio",
			Help: "Last sampled memory usage ratio.",
		}),
		TranscribeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_transcribe_duration_seconds",
			Help:    "Wall time per chunk transcription.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		ChunkSizeBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_chunk_size_bytes",
			Help:    "Encoded chunk sizes.",
			Buckets: prometheus.ExponentialBuckets(64<<10, 2, 10),
		}),
	}
}

// Handler serves the registry; nil when built with NewWith.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
