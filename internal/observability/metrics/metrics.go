// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "call_sentiment"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Call session metrics
	CallsTotal   prometheus.Counter
	CallsActive  prometheus.Gauge
	CallDuration prometheus.Histogram

	// Audio metrics
	AudioBytesRelayed  prometheus.Counter
	AudioFramesRelayed prometheus.Counter
	AudioFramesDropped *prometheus.CounterVec

	// Transcript metrics
	TranscriptsInterim prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Transcription session metrics
	TranscriptionSessionsTotal  prometheus.Counter
	TranscriptionSessionsFailed prometheus.Counter

	// Tone analysis metrics
	ToneCallsTotal prometheus.Counter
	ToneErrors     prometheus.Counter
	ToneLatency    prometheus.Histogram

	// Dashboard metrics
	DashboardClients      prometheus.Gauge
	BroadcastsTotal       prometheus.Counter
	BroadcastSendFailures prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		CallsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of inbound call sessions opened",
		}),
		CallsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of currently active call sessions",
		}),
		CallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of call sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		AudioBytesRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_relayed_total",
			Help:      "Total audio bytes relayed to transcription",
		}),
		AudioFramesRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_relayed_total",
			Help:      "Total audio frames relayed to transcription",
		}),
		AudioFramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Total audio frames dropped before reaching transcription",
		}, []string{"reason"}),

		TranscriptsInterim: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_interim_total",
			Help:      "Total number of interim transcripts received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcripts received",
		}),

		TranscriptionSessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_sessions_total",
			Help:      "Total number of transcription sessions created",
		}),
		TranscriptionSessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_sessions_failed_total",
			Help:      "Total number of transcription session handshakes that failed",
		}),

		ToneCallsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tone_calls_total",
			Help:      "Total number of tone analysis round trips",
		}),
		ToneErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tone_errors_total",
			Help:      "Total number of failed tone analysis round trips",
		}),
		ToneLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tone_latency_seconds",
			Help:      "Tone analysis round trip latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		DashboardClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dashboard_clients",
			Help:      "Number of currently registered dashboard observers",
		}),
		BroadcastsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of dashboard broadcasts",
		}),
		BroadcastSendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_send_failures_total",
			Help:      "Total number of per-client dashboard send failures",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordCallStart records a new call session opening.
func (m *Metrics) RecordCallStart() {
	m.CallsTotal.Inc()
	m.CallsActive.Inc()
}

// RecordCallEnd records a call session closing.
func (m *Metrics) RecordCallEnd(durationSeconds float64) {
	m.CallsActive.Dec()
	m.CallDuration.Observe(durationSeconds)
}

// RecordAudioRelayed records an audio frame forwarded to transcription.
func (m *Metrics) RecordAudioRelayed(bytes int) {
	m.AudioBytesRelayed.Add(float64(bytes))
	m.AudioFramesRelayed.Inc()
}

// RecordAudioDropped records an audio frame that never reached transcription.
func (m *Metrics) RecordAudioDropped(reason string) {
	m.AudioFramesDropped.WithLabelValues(reason).Inc()
}

// RecordTranscript records a transcript received from the endpoint.
func (m *Metrics) RecordTranscript(final bool) {
	if final {
		m.TranscriptsFinal.Inc()
	} else {
		m.TranscriptsInterim.Inc()
	}
}

// RecordTranscriptionSession records a transcription session handshake attempt.
func (m *Metrics) RecordTranscriptionSession(err error) {
	m.TranscriptionSessionsTotal.Inc()
	if err != nil {
		m.TranscriptionSessionsFailed.Inc()
	}
}

// RecordToneCall records a tone analysis round trip.
func (m *Metrics) RecordToneCall(err error, latencySeconds float64) {
	m.ToneCallsTotal.Inc()
	m.ToneLatency.Observe(latencySeconds)
	if err != nil {
		m.ToneErrors.Inc()
	}
}

// RecordDashboardRegister records an observer joining.
func (m *Metrics) RecordDashboardRegister() {
	m.DashboardClients.Inc()
}

// RecordDashboardUnregister records an observer leaving.
func (m *Metrics) RecordDashboardUnregister() {
	m.DashboardClients.Dec()
}

// RecordBroadcast records a fan-out with the number of per-client failures.
func (m *Metrics) RecordBroadcast(failures int) {
	m.BroadcastsTotal.Inc()
	if failures > 0 {
		m.BroadcastSendFailures.Add(float64(failures))
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
