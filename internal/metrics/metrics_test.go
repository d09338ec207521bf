package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.LabelRendered(10 * time.Millisecond)
	m.LabelRendered(20 * time.Millisecond)
	m.LabelFailed()
	m.BarcodeMissed()
	m.BatchProcessed()
	m.Export("zip", nil)
	m.Export("pdf", errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.labelsRendered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.labelsFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.barcodeMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("zip", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("pdf", "error")))

	count, err := testutil.GatherAndCount(reg, "labeldrop_label_render_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LabelRendered(time.Second)
		m.LabelFailed()
		m.BarcodeMissed()
		m.BatchProcessed()
		m.BatchRejected()
		m.Export("zip", nil)
	})
}
