package core

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tendertriage/internal/triage"
	"tendertriage/pkg/domain"
)

// MetricsRecorder receives service outcomes.
type MetricsRecorder interface {
	// Observe records the outcome and latency of a service operation.
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	// ObserveCascade records the per-pass results of a completed run.
	ObserveCascade(ctx context.Context, report triage.Report)
	// ObserveStatuses publishes the current status distribution.
	ObserveStatuses(ctx context.Context, counts map[domain.Status]int)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration)   {}
func (noopMetrics) ObserveCascade(context.Context, triage.Report)          {}
func (noopMetrics) ObserveStatuses(context.Context, map[domain.Status]int) {}

// PrometheusMetrics exports service metrics through a Prometheus registry.
type PrometheusMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	flagged    *prometheus.CounterVec
	stamped    *prometheus.CounterVec
	locked     *prometheus.CounterVec
	records    *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tendertriage",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tendertriage",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"operation"}),
		flagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tendertriage",
			Subsystem: "cascade",
			Name:      "flagged_total",
			Help:      "Records flagged per cascade pass.",
		}, []string{"pass"}),
		stamped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tendertriage",
			Subsystem: "cascade",
			Name:      "stamped_total",
			Help:      "Statuses written by the cascade.",
		}, []string{"status"}),
		locked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tendertriage",
			Subsystem: "cascade",
			Name:      "locked_skips_total",
			Help:      "Flagged records left untouched because of a manual lock.",
		}, []string{"pass"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tendertriage",
			Name:      "records",
			Help:      "Records per status after the latest query.",
		}, []string{"status"}),
	}
	for _, c := range []prometheus.Collector{m.operations, m.latency, m.flagged, m.stamped, m.locked, m.records} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	result := "error"
	if success {
		result = "success"
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) ObserveCascade(_ context.Context, report triage.Report) {
	for _, p := range report.Passes {
		pass := strconv.Itoa(p.Pass)
		m.flagged.WithLabelValues(pass).Add(float64(p.Flagged))
		m.locked.WithLabelValues(pass).Add(float64(p.Locked))
		if p.Stamp != "" {
			m.stamped.WithLabelValues(p.Stamp).Add(float64(p.Stamped))
		}
	}
}

func (m *PrometheusMetrics) ObserveStatuses(_ context.Context, counts map[domain.Status]int) {
	for status, n := range counts {
		m.records.WithLabelValues(status.String()).Set(float64(n))
	}
}
