package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("things", reg)

	m.RecordThingOperation("create")
	m.RecordThingOperation("create")
	m.RecordValidationFailure("thing")
	m.RecordAuthAttempt("success")
	m.TrackDBOperation("insert")(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ThingOperationsCounter.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailuresCounter.WithLabelValues("thing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttemptsCounter.WithLabelValues("success")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DbOperationDuration, "things_db_operation_duration_seconds"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordThingOperation("create")
		m.RecordValidationFailure("thing")
		m.RecordAuthAttempt("failure")
		m.TrackDBOperation("query")(time.Now())
	})
}
