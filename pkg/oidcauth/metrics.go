package oidcauth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated on every state change.
// One Metrics may be shared by many providers: the gauges count providers.
type Metrics struct {
	ActionsTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	Authenticated   prometheus.Gauge
	NavigatorActive *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oidcauth_actions_total",
				Help: "Total number of reduced auth actions",
			},
			[]string{"type"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oidcauth_errors_total",
				Help: "Total number of auth errors by source",
			},
			[]string{"source"},
		),
		Authenticated: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "oidcauth_authenticated",
				Help: "Number of providers with an authenticated user",
			},
		),
		NavigatorActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oidcauth_navigator_active",
				Help: "Number of navigators in flight by kind",
			},
			[]string{"navigator"},
		),
	}

	reg.MustRegister(
		m.ActionsTotal,
		m.ErrorsTotal,
		m.Authenticated,
		m.NavigatorActive,
	)
	return m
}

func (m *Metrics) observe(a Action, prev, next State) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(string(a.Type)).Inc()
	if next.Error != nil && next.Error != prev.Error {
		m.ErrorsTotal.WithLabelValues(string(next.Error.Source)).Inc()
	}
	switch {
	case next.IsAuthenticated && !prev.IsAuthenticated:
		m.Authenticated.Inc()
	case prev.IsAuthenticated && !next.IsAuthenticated:
		m.Authenticated.Dec()
	}
	if prev.ActiveNavigator != next.ActiveNavigator {
		if prev.ActiveNavigator != "" {
			m.NavigatorActive.WithLabelValues(string(prev.ActiveNavigator)).Dec()
		}
		if next.ActiveNavigator != "" {
			m.NavigatorActive.WithLabelValues(string(next.ActiveNavigator)).Inc()
		}
	}
}
