package handlers

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashaw315/hotdog-diaries-sub014/pkg/monitoring"
)

// SchedulerMetrics wraps the engine's custom counters. All methods are
// nil-safe so tests can run without a registry.
type SchedulerMetrics struct {
	runs      *prometheus.CounterVec
	publishes *prometheus.CounterVec
	anomalies *prometheus.CounterVec
}

func NewSchedulerMetrics(mc *monitoring.MetricsCollector) *SchedulerMetrics {
	runs, publishes, anomalies := mc.CreateSchedulerMetrics()
	return &SchedulerMetrics{runs: runs, publishes: publishes, anomalies: anomalies}
}

func (m *SchedulerMetrics) IncRun(mode, status string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(mode, status).Inc()
}

func (m *SchedulerMetrics) IncPublish(status string) {
	if m == nil || m.publishes == nil {
		return
	}
	m.publishes.WithLabelValues(status).Inc()
}

func (m *SchedulerMetrics) IncAnomaly(kind string) {
	if m == nil || m.anomalies == nil {
		return
	}
	m.anomalies.WithLabelValues(kind).Inc()
}
