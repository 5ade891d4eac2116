// Package metrics defines the prometheus instruments for the control layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every instrument the agent records. Create one per
// process with New and share it across adapters.
type Metrics struct {
	RoutingDecisions       *prometheus.CounterVec
	Executions             *prometheus.CounterVec
	GateVerdicts           *prometheus.CounterVec
	ClassifierDegradations prometheus.Counter
	RequestDuration        *prometheus.HistogramVec
}

// New registers all instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RoutingDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventagent",
			Name:      "routing_decisions_total",
			Help:      "Routing decisions by reason.",
		}, []string{"reason"}),
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventagent",
			Name:      "executions_total",
			Help:      "Execution requests by final status.",
		}, []string{"status"}),
		GateVerdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventagent",
			Name:      "gate_verdicts_total",
			Help:      "Confirmation gate verdicts.",
		}, []string{"verdict"}),
		ClassifierDegradations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "eventagent",
			Name:      "classifier_degradations_total",
			Help:      "Requests answered with keyword-only scoring after a classifier failure.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventagent",
			Name:      "request_duration_seconds",
			Help:      "End-to-end duration per operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}
