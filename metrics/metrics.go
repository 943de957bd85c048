// Package metrics holds the Prometheus collectors for the auth session and the
// roster sync worker. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Pass results recorded by ObservePass.
const (
	PassOK      = "ok"
	PassError   = "error"
	PassSkipped = "skipped"
)

// Options configures the collectors.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// Metrics exposes the collectors so tests can read them back.
type Metrics struct {
	AuthState     *prometheus.GaugeVec
	Refreshes     *prometheus.CounterVec
	RosterSize    prometheus.Gauge
	Passes        *prometheus.CounterVec
	PassDuration  prometheus.Histogram
	Evicted       prometheus.Counter
	NamesResolved prometheus.Counter
}

// New constructs the collectors and registers them. Collectors that are already
// registered are reused, so building Metrics twice against one registry is fine.
func New(opts Options) (*Metrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "chatter_roster"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}
	var err error

	if m.AuthState, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "state",
		Help:      "Current auth session state, 1 for the active state label.",
	}, []string{"state"})); err != nil {
		return nil, err
	}

	if m.Refreshes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "refreshes_total",
		Help:      "Token refresh attempts partitioned by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}

	if m.RosterSize, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "roster",
		Name:      "chatters",
		Help:      "Number of chatters currently cached.",
	})); err != nil {
		return nil, err
	}

	if m.Passes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "passes_total",
		Help:      "Roster sync passes partitioned by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}

	if m.PassDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "pass_duration_seconds",
		Help:      "Duration of roster sync passes in seconds.",
		Buckets:   prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}

	if m.Evicted, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "roster",
		Name:      "evicted_total",
		Help:      "Chatters evicted for not being seen within the eviction window.",
	})); err != nil {
		return nil, err
	}

	if m.NamesResolved, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "roster",
		Name:      "names_resolved_total",
		Help:      "Display names resolved through user lookups.",
	})); err != nil {
		return nil, err
	}

	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, errors.Wrap(err, "metrics.register")
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, errors.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// SetAuthState marks state as the only active auth state.
func (m *Metrics) SetAuthState(state string) {
	if m == nil {
		return
	}
	m.AuthState.Reset()
	m.AuthState.WithLabelValues(state).Set(1)
}

// RefreshResult counts one refresh attempt.
func (m *Metrics) RefreshResult(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.Refreshes.WithLabelValues(result).Inc()
}

// ObservePass records a finished sync pass.
func (m *Metrics) ObservePass(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(result).Inc()
	if result != PassSkipped {
		m.PassDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) SetRosterSize(n int) {
	if m == nil {
		return
	}
	m.RosterSize.Set(float64(n))
}

func (m *Metrics) AddEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Evicted.Add(float64(n))
}

func (m *Metrics) AddResolved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NamesResolved.Add(float64(n))
}
