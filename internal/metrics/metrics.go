// Package metrics exposes LabelDrop's prometheus counters. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "labeldrop"

// Metrics groups the collectors updated during ingestion and export.
type Metrics struct {
	labelsRendered   prometheus.Counter
	labelsFailed     prometheus.Counter
	barcodeMisses    prometheus.Counter
	batchesProcessed prometheus.Counter
	batchesRejected  prometheus.Counter
	exports          *prometheus.CounterVec
	renderSeconds    prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		labelsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "labels_rendered_total",
			Help: "Labels rendered and stored.",
		}),
		labelsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "labels_failed_total",
			Help: "Dataset rows that could not be rendered.",
		}),
		barcodeMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "barcode_misses_total",
			Help: "Labels rendered without barcode artwork although a code was present.",
		}),
		batchesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "batches_processed_total",
			Help: "Batches processed end to end.",
		}),
		batchesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "batches_rejected_total",
			Help: "Batches whose dataset could not be read.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "exports_total",
			Help: "Exports produced, by kind and result.",
		}, []string{"kind", "result"}),
		renderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "label_render_seconds",
			Help:    "Time spent rendering one label.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.labelsRendered, m.labelsFailed, m.barcodeMisses,
			m.batchesProcessed, m.batchesRejected, m.exports, m.renderSeconds)
	}
	return m
}

func (m *Metrics) LabelRendered(d time.Duration) {
	if m == nil {
		return
	}
	m.labelsRendered.Inc()
	m.renderSeconds.Observe(d.Seconds())
}

func (m *Metrics) LabelFailed() {
	if m != nil {
		m.labelsFailed.Inc()
	}
}

func (m *Metrics) BarcodeMissed() {
	if m != nil {
		m.barcodeMisses.Inc()
	}
}

func (m *Metrics) BatchProcessed() {
	if m != nil {
		m.batchesProcessed.Inc()
	}
}

func (m *Metrics) BatchRejected() {
	if m != nil {
		m.batchesRejected.Inc()
	}
}

// Export records an export attempt of kind ("zip" or "pdf").
func (m *Metrics) Export(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.exports.WithLabelValues(kind, result).Inc()
}
