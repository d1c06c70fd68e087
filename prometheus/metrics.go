package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the domain collectors of the service. A nil *Metrics records nothing.
type Metrics struct {
	// Thing metrics
	ThingOperationsCounter *prometheus.CounterVec

	// Validation metrics
	ValidationFailuresCounter *prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter *prometheus.CounterVec
}

// NewMetrics creates the collectors with the configured prefix and registers them
func NewMetrics(prefix string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ThingOperationsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_thing_operations_total",
				Help: "Total number of thing operations",
			},
			[]string{"operation"},
		),
		ValidationFailuresCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_validation_failures_total",
				Help: "Total number of records rejected by validation",
			},
			[]string{"model"},
		),
		DbOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation_type"},
		),
		AuthAttemptsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_auth_attempts_total",
				Help: "Total number of sign-in attempts by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.ThingOperationsCounter,
		m.ValidationFailuresCounter,
		m.DbOperationDuration,
		m.AuthAttemptsCounter,
	)
	return m
}

// TrackDBOperation returns a function that records the duration of a database operation
func (m *Metrics) TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if m == nil {
			return
		}
		m.DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordThingOperation increments the counter for thing operations
func (m *Metrics) RecordThingOperation(operation string) {
	if m == nil {
		return
	}
	m.ThingOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordValidationFailure increments the counter for rejected records
func (m *Metrics) RecordValidationFailure(model string) {
	if m == nil {
		return
	}
	m.ValidationFailuresCounter.WithLabelValues(model).Inc()
}

// RecordAuthAttempt increments the sign-in counter; result is "success" or a failure reason
func (m *Metrics) RecordAuthAttempt(result string) {
	if m == nil {
		return
	}
	m.AuthAttemptsCounter.WithLabelValues(result).Inc()
}
