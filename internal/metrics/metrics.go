// Package metrics provides Prometheus metrics for the token store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation outcomes used as the result label.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// Metrics holds all Prometheus metrics of the token store.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	StoredRecords     prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenstore_operations_total",
				Help: "Total number of token store operations by operation and result.",
			},
			[]string{"operation", "result"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenstore_operation_duration_seconds",
				Help:    "Token store operation duration by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		StoredRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tokenstore_records",
				Help: "Number of stored token records at the last length call, expired ones included.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.OperationsTotal)
	reg.MustRegister(m.OperationDuration)
	reg.MustRegister(m.StoredRecords)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation increments the operation counter.
func (m *Metrics) RecordOperation(operation, result string) {
	m.OperationsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveDuration records operation duration.
func (m *Metrics) ObserveDuration(operation string, seconds float64) {
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// SetStoredRecords sets the stored record gauge.
func (m *Metrics) SetStoredRecords(count float64) {
	m.StoredRecords.Set(count)
}
