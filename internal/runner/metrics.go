package runner

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-run scanner statistics in a private registry so
// they can be dropped next to the engagement artifacts as a
// node_exporter textfile.
type Metrics struct {
	registry      *prometheus.Registry
	phaseDuration *prometheus.HistogramVec
	phaseFailures *prometheus.CounterVec
	liveHosts     *prometheus.GaugeVec
}

// NewMetrics creates and registers the runner collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netscope_phase_duration_seconds",
			Help:    "Wall-clock duration of one scanner phase, including retries.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}, []string{"segment", "phase"}),
		phaseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netscope_phase_failures_total",
			Help: "Scanner phases that failed after all attempts.",
		}, []string{"segment", "phase"}),
		liveHosts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netscope_live_hosts",
			Help: "Hosts reported up by the discovery phase of a segment.",
		}, []string{"segment"}),
	}
	m.registry.MustRegister(m.phaseDuration, m.phaseFailures, m.liveHosts)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observePhase(segment, phase string, seconds float64, failed bool) {
	m.phaseDuration.WithLabelValues(segment, phase).Observe(seconds)
	if failed {
		m.phaseFailures.WithLabelValues(segment, phase).Inc()
	} else {
		// Touch the series so a clean run still reports zero failures.
		m.phaseFailures.WithLabelValues(segment, phase).Add(0)
	}
}

func (m *Metrics) setLiveHosts(segment string, n int) {
	m.liveHosts.WithLabelValues(segment).Set(float64(n))
}

// WriteTextfile atomically writes the metrics in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %q: %w", path, err)
	}
	return nil
}
