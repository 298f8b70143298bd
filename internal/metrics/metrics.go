// Package metrics exposes playback counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements player.Recorder on a private registry, so several
// instances can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	AttemptsTotal *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec
	SessionsTotal *prometheus.CounterVec
}

// New registers the playback collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidres_playback_attempts_total",
				Help: "Total number of playback attempts started",
			},
			[]string{"strategy"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidres_playback_failures_total",
				Help: "Total number of failed playback attempts",
			},
			[]string{"strategy"},
		),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidres_playback_sessions_total",
				Help: "Total number of finished playback sessions",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.AttemptsTotal,
		m.FailuresTotal,
		m.SessionsTotal,
	)
	return m
}

func (m *Metrics) AttemptStarted(strategy string) {
	m.AttemptsTotal.WithLabelValues(strategy).Inc()
}

func (m *Metrics) AttemptFailed(strategy string) {
	m.FailuresTotal.WithLabelValues(strategy).Inc()
}

func (m *Metrics) SessionFinished(outcome string) {
	m.SessionsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
