package ddns

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes reconciliation results to Prometheus.
type Metrics struct {
	cycles      *prometheus.CounterVec
	errors      *prometheus.CounterVec
	lastSuccess prometheus.Gauge
}

// NewMetrics creates the ddns collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddns",
			Name:      "cycles_total",
			Help:      "Reconciliation cycles by outcome.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddns",
			Name:      "cycle_errors_total",
			Help:      "Failed reconciliation cycles by error kind.",
		}, []string{"kind"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ddns",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that completed without error.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cycles, m.errors, m.lastSuccess)
	}
	return m
}

func (m *Metrics) observe(o Outcome, err error) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(o.Status.String()).Inc()
	if err != nil {
		m.errors.WithLabelValues(ErrorKind(err)).Inc()
		return
	}
	m.lastSuccess.Set(float64(time.Now().Unix()))
}
