package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics counts upload and recognition workflow outcomes. It satisfies
// ports.WorkflowObserver.
type WorkflowMetrics struct {
	service string

	recognitionTotal  *prometheus.CounterVec
	compensationTotal *prometheus.CounterVec
	retryTotal        *prometheus.CounterVec
}

func NewWorkflowMetrics(service string, registerer prometheus.Registerer) *WorkflowMetrics {
	recognitionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recognition",
			Name:      "outcomes_total",
			Help:      "Recognition requests by outcome (fresh, cached, race_resolved, engine_failed, persist_failed).",
		},
		[]string{"service", "outcome"},
	)
	compensationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "compensations_total",
			Help:      "Compensating object deletes after a failed upload confirmation, by result.",
		},
		[]string{"service", "result"},
	)
	retryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Retries issued against upstream dependencies.",
		},
		[]string{"service", "operation"},
	)
	registerer.MustRegister(recognitionTotal, compensationTotal, retryTotal)

	return &WorkflowMetrics{
		service:           service,
		recognitionTotal:  recognitionTotal,
		compensationTotal: compensationTotal,
		retryTotal:        retryTotal,
	}
}

func (m *WorkflowMetrics) CompensationAttempted(_ context.Context, _ string, _ error, deleteErr error) {
	result := "deleted"
	if deleteErr != nil {
		result = "failed"
	}
	m.compensationTotal.WithLabelValues(m.service, result).Inc()
}

func (m *WorkflowMetrics) RecognitionFinished(_ context.Context, _ string, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.recognitionTotal.WithLabelValues(m.service, outcome).Inc()
}

// RecordRetry matches resilience.Config.OnRetry.
func (m *WorkflowMetrics) RecordRetry(operation string, _ int, _ error) {
	m.retryTotal.WithLabelValues(m.service, operation).Inc()
}
