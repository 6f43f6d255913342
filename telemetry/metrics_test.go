package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.Sweep("value-iteration", 0.5)
	m.Sweep("value-iteration", 0.1)
	m.PolicyChanges("policy-iteration", 3)
	m.QUpdate(0.01)
	m.QUpdate(0.02)
	m.Episode("q-learning", 12, 0.52)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sweeps.WithLabelValues("value-iteration")))
	assert.Equal(t, 0.1, testutil.ToFloat64(m.sweepDelta.WithLabelValues("value-iteration")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.policyChanges.WithLabelValues("policy-iteration")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.qUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.episodes.WithLabelValues("q-learning")))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.QUpdate(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.qUpdates))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.qUpdates))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Sweep("value-iteration", 0.25)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `mdp_sweeps_total{algorithm="value-iteration"} 1`)
	assert.Contains(t, string(body), `mdp_sweep_delta{algorithm="value-iteration"} 0.25`)
}
