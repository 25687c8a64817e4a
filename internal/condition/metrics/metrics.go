package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ConditionsResolved   *prometheus.CounterVec
	ConditionsUnresolved prometheus.Counter
	EscapesWithoutProof  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ConditionsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dealflow_conditions_resolved_total",
			Help: "Total number of conditions resolved, by level",
		}, []string{"level"}),
		ConditionsUnresolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealflow_conditions_unresolved_total",
			Help: "Total number of recommended conditions toggled back to pending",
		}),
		EscapesWithoutProof: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealflow_condition_escapes_total",
			Help: "Total number of blocking conditions resolved through the escape hatch",
		}),
	}
}

func (m *Metrics) IncrementResolved(level string) {
	m.ConditionsResolved.WithLabelValues(level).Inc()
}

func (m *Metrics) IncrementUnresolved() {
	m.ConditionsUnresolved.Inc()
}

func (m *Metrics) IncrementEscapes() {
	m.EscapesWithoutProof.Inc()
}
