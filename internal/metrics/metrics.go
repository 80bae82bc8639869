package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters and histograms for the turn pipeline.
type TriageMetrics struct {
	turnsTotal         *prometheus.CounterVec
	turnLatency        *prometheus.HistogramVec
	extractionFailures prometheus.Counter
	imageAnalyses      *prometheus.CounterVec
	trainingAppends    *prometheus.CounterVec
	reconcileOutcomes  *prometheus.CounterVec
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "turn",
			Name:      "total",
			Help:      "Processed turns by kind and status",
		}, []string{"kind", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "triage",
			Subsystem: "turn",
			Name:      "latency_seconds",
			Help:      "End to end latency of a turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		extractionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "extractor",
			Name:      "failures_total",
			Help:      "Symptom extractions that degraded to an all-zero vector",
		}),
		imageAnalyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "vision",
			Name:      "analyses_total",
			Help:      "Image analyses by status",
		}, []string{"status"}),
		trainingAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "training",
			Name:      "appends_total",
			Help:      "Training rows appended by status",
		}, []string{"status"}),
		reconcileOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "reconciler",
			Name:      "outcomes_total",
			Help:      "Reconciliation outcomes",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.extractionFailures, m.imageAnalyses, m.trainingAppends, m.reconcileOutcomes)
	return m
}

func (m *TriageMetrics) ObserveTurn(kind string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.turnsTotal.WithLabelValues(kind, status).Inc()
	m.turnLatency.WithLabelValues(kind).Observe(seconds)
}

func (m *TriageMetrics) ExtractionFailed() {
	if m == nil {
		return
	}
	m.extractionFailures.Inc()
}

func (m *TriageMetrics) ObserveImageAnalysis(ok bool) {
	if m == nil {
		return
	}
	m.imageAnalyses.WithLabelValues(statusLabel(ok)).Inc()
}

func (m *TriageMetrics) ObserveTrainingAppend(ok bool) {
	if m == nil {
		return
	}
	m.trainingAppends.WithLabelValues(statusLabel(ok)).Inc()
}

func (m *TriageMetrics) ObserveReconcile(outcome string) {
	if m == nil {
		return
	}
	m.reconcileOutcomes.WithLabelValues(outcome).Inc()
}

func statusLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
