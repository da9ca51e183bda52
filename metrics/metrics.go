// Package metrics exposes Prometheus counters for domain crashes and
// crash recovery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recovery outcomes.
const (
	OutcomeRecovered = "recovered"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	Crashes    *prometheus.CounterVec
	Recoveries *prometheus.CounterVec
	Restarts   *prometheus.CounterVec
}

// New registers the counters with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Crashes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "faultdomain_domain_crashes_total",
			Help: "Total number of calls that faulted inside a domain",
		}, []string{"domain", "op"}),
		Recoveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "faultdomain_recoveries_total",
			Help: "Total number of crash recovery attempts by outcome",
		}, []string{"domain", "outcome"}),
		Restarts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "faultdomain_domain_restarts_total",
			Help: "Total number of domain implementation restarts",
		}, []string{"domain"}),
	}
}

// The methods below are safe on a nil *Metrics.

func (m *Metrics) IncrementCrashes(domain, op string) {
	if m == nil {
		return
	}
	m.Crashes.WithLabelValues(domain, op).Inc()
}

func (m *Metrics) IncrementRecoveries(domain, outcome string) {
	if m == nil {
		return
	}
	m.Recoveries.WithLabelValues(domain, outcome).Inc()
}

func (m *Metrics) IncrementRestarts(domain string) {
	if m == nil {
		return
	}
	m.Restarts.WithLabelValues(domain).Inc()
}
