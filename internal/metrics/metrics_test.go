package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"canteen-occupancy-backend/internal/model"
)

func TestObserveFetch(t *testing.T) {
	m := New()

	m.ObserveFetch(model.NewSuccessReading(12, "2024-01-01T08:00:00Z"), 20*time.Millisecond)
	m.ObserveFetch(model.NewErrorReading(assert.AnError), time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.fetchTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.fetchTotal.WithLabelValues("error")))
	assert.Equal(t, float64(12), testutil.ToFloat64(m.occupancy), "error readings must not reset the gauge")
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/status", http.StatusOK)
	m.ObserveRequest("", http.StatusNotFound)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/status", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("unmatched", "404")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SampleRecorded()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "canteen_samples_recorded_total 1")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch(model.NewSuccessReading(1, ""), time.Millisecond)
		m.ObserveRequest("/", http.StatusOK)
		m.SampleRecorded()
		m.NotificationSent("sent")
	})
	assert.Nil(t, m.Registry())
}
