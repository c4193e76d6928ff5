package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequestLabels(t *testing.T) {
	m := New("test")

	m.ObserveRequest("main", "list_inbounds", 200, 10*time.Millisecond)
	m.ObserveRequest("main", "list_inbounds", 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PanelRequests.WithLabelValues("main", "list_inbounds", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PanelRequests.WithLabelValues("main", "list_inbounds", "error")))
}

func TestObserveAuthAndCache(t *testing.T) {
	m := New("test")

	m.ObserveAuth("de", nil)
	m.ObserveAuth("de", errors.New("denied"))
	m.ObserveCache("clients", true)
	m.ObserveCache("clients", false)
	m.ObserveCache("clients", false)
	m.SetClients("de", 7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("de", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("de", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("clients", "miss")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ServerClients.WithLabelValues("de")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("main", "login", 200, time.Second)
		m.ObserveAuth("main", nil)
		m.ObserveCache("onlines", true)
		m.SetClients("main", 1)
		m.ObserveRetry("main", "login")
		m.ObserveSelection("main")
	})
}
