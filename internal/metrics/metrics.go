package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for the relay.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionsClosed  *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	AudioBytesReceived prometheus.Counter
	SegmentsForwarded  prometheus.Counter
	BufferOverflows    prometheus.Counter

	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	TranslationRequests  prometheus.Counter
	TranslationSuccesses prometheus.Counter
	TranslationFailures  prometheus.Counter
	TranslationRetries   prometheus.Counter
	TranslationDuration  prometheus.Histogram
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Current number of live transcription sessions",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_sessions_started_total",
			Help: "Total number of sessions that reached the active state",
		}),
		SessionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_sessions_closed_total",
			Help: "Total number of sessions closed, by stop reason",
		}, []string{"reason"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_session_duration_seconds",
			Help:    "Duration of sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_audio_bytes_received_total",
			Help: "Total audio bytes received from clients",
		}),
		SegmentsForwarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_audio_segments_forwarded_total",
			Help: "Total audio segments forwarded to the transcription stream",
		}),
		BufferOverflows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_audio_buffer_overflows_total",
			Help: "Total frame buffer overflows",
		}),
		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_transcripts_partial_total",
			Help: "Total partial transcript events emitted to clients",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_transcripts_final_total",
			Help: "Total final transcript events emitted to clients",
		}),
		TranslationRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_translation_requests_total",
			Help: "Total translation requests dispatched",
		}),
		TranslationSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_translation_successes_total",
			Help: "Total translations delivered to clients",
		}),
		TranslationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_translation_failures_total",
			Help: "Total translations that failed permanently",
		}),
		TranslationRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_translation_retries_total",
			Help: "Total translation request retries",
		}),
		TranslationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_translation_duration_seconds",
			Help:    "Latency of successful translation requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}
