// Package metrics provides Prometheus metrics for provider calls and live sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shift"

// Metrics holds all Prometheus collectors. All methods are safe on a nil receiver.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	DegradedReplies *prometheus.CounterVec
	FailuresTotal   *prometheus.CounterVec

	LiveSessionsActive prometheus.Gauge
	LiveFramesSent     prometheus.Counter
	LiveChunksReceived prometheus.Counter
	LiveInterruptions  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of provider requests",
			},
			[]string{"operation", "model", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Duration of provider requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		DegradedReplies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degraded_replies_total",
				Help:      "Replies where at least one section fell back to a placeholder",
			},
			[]string{"reason"},
		),
		FailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Failed sends by classified failure kind",
			},
			[]string{"kind"},
		),
		LiveSessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_sessions_active",
				Help:      "Number of live audio sessions currently active",
			},
		),
		LiveFramesSent: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "live_frames_sent_total",
				Help:      "Captured audio frames sent to the live session",
			},
		),
		LiveChunksReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "live_chunks_received_total",
				Help:      "Audio chunks received from the live session",
			},
		),
		LiveInterruptions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "live_interruptions_total",
				Help:      "Number of times the user interrupted model playback",
			},
		),
	}
}

func (m *Metrics) ObserveRequest(operation, model string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(operation, model, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncDegraded(reason string) {
	if m == nil {
		return
	}
	m.DegradedReplies.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncFailure(kind string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) LiveSessionStarted() {
	if m == nil {
		return
	}
	m.LiveSessionsActive.Inc()
}

func (m *Metrics) LiveSessionEnded() {
	if m == nil {
		return
	}
	m.LiveSessionsActive.Dec()
}

func (m *Metrics) IncFramesSent() {
	if m == nil {
		return
	}
	m.LiveFramesSent.Inc()
}

func (m *Metrics) IncChunksReceived() {
	if m == nil {
		return
	}
	m.LiveChunksReceived.Inc()
}

func (m *Metrics) IncInterruptions() {
	if m == nil {
		return
	}
	m.LiveInterruptions.Inc()
}
