package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRequest("send_text", "gemini-3-pro-preview", time.Now(), nil)
	m.ObserveRequest("send_text", "gemini-3-pro-preview", time.Now(), errors.New("boom"))
	m.IncDegraded("markdown")
	m.IncFailure("quota")
	m.LiveSessionStarted()
	m.IncFramesSent()
	m.IncFramesSent()
	m.IncChunksReceived()
	m.IncInterruptions()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("send_text", "gemini-3-pro-preview", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("send_text", "gemini-3-pro-preview", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedReplies.WithLabelValues("markdown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("quota")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveSessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LiveFramesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveChunksReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveInterruptions))

	m.LiveSessionEnded()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LiveSessionsActive))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("x", "y", time.Now(), nil)
		m.IncDegraded("x")
		m.IncFailure("x")
		m.LiveSessionStarted()
		m.LiveSessionEnded()
		m.IncFramesSent()
		m.IncChunksReceived()
		m.IncInterruptions()
	})
}
