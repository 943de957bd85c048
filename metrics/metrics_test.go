package metrics_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-chatter-roster/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	m, err := metrics.New(metrics.Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	return m
}

func TestMetrics_AuthStateKeepsOneActiveLabel(t *testing.T) {
	m := newMetrics(t)

	m.SetAuthState("awaiting_approval")
	m.SetAuthState("authorized")

	require.Equal(t, 1, testutil.CollectAndCount(m.AuthState))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AuthState.WithLabelValues("authorized")))
}

func TestMetrics_Refreshes(t *testing.T) {
	m := newMetrics(t)

	m.RefreshResult(true)
	m.RefreshResult(true)
	m.RefreshResult(false)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("failure")))
}

func TestMetrics_Passes(t *testing.T) {
	m := newMetrics(t)

	m.ObservePass(metrics.PassOK, 2*time.Second)
	m.ObservePass(metrics.PassSkipped, 0)
	m.SetRosterSize(42)
	m.AddEvicted(3)
	m.AddEvicted(0)
	m.AddResolved(7)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Passes.WithLabelValues(metrics.PassOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Passes.WithLabelValues(metrics.PassSkipped)))
	require.Equal(t, 1, testutil.CollectAndCount(m.PassDuration))
	require.Equal(t, 42.0, testutil.ToFloat64(m.RosterSize))
	require.Equal(t, 3.0, testutil.ToFloat64(m.Evicted))
	require.Equal(t, 7.0, testutil.ToFloat64(m.NamesResolved))
}

func TestMetrics_ReuseRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := metrics.New(metrics.Options{Registerer: reg})
	require.NoError(t, err)
	second, err := metrics.New(metrics.Options{Registerer: reg})
	require.NoError(t, err)

	first.SetRosterSize(5)
	require.Equal(t, 5.0, testutil.ToFloat64(second.RosterSize))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.SetAuthState("failed")
		m.RefreshResult(false)
		m.ObservePass(metrics.PassError, time.Second)
		m.SetRosterSize(1)
		m.AddEvicted(1)
		m.AddResolved(1)
	})
}
