package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the decision pipeline.
type PipelineMetrics struct {
	decisionsTotal     *prometheus.CounterVec
	decisionLatency    *prometheus.HistogramVec
	duplicatesTotal    prometheus.Counter
	validationFailures prometheus.Counter
	transfersTotal     *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guestai",
			Subsystem: "pipeline",
			Name:      "decisions_total",
			Help:      "Total pipeline decisions by source",
		}, []string{"source", "bypassed_llm"}),
		decisionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "guestai",
			Subsystem: "pipeline",
			Name:      "decision_latency_seconds",
			Help:      "Latency of full message decisions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "guestai",
			Subsystem: "pipeline",
			Name:      "duplicates_suppressed_total",
			Help:      "Replies suppressed as duplicates",
		}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "guestai",
			Subsystem: "pipeline",
			Name:      "validation_failures_total",
			Help:      "Candidate replies rejected by validation",
		}),
		transfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guestai",
			Subsystem: "pipeline",
			Name:      "transfers_total",
			Help:      "Human transfers initiated, by reason",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.decisionsTotal, m.decisionLatency, m.duplicatesTotal, m.validationFailures, m.transfersTotal)
	return m
}

func (m *PipelineMetrics) ObserveDecision(source string, bypassedLLM bool, seconds float64) {
	if m == nil {
		return
	}
	label := "false"
	if bypassedLLM {
		label = "true"
	}
	m.decisionsTotal.WithLabelValues(source, label).Inc()
	m.decisionLatency.WithLabelValues(source).Observe(seconds)
}

func (m *PipelineMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.duplicatesTotal.Inc()
}

func (m *PipelineMetrics) ObserveValidationFailure() {
	if m == nil {
		return
	}
	m.validationFailures.Inc()
}

func (m *PipelineMetrics) ObserveTransfer(reason string) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(reason).Inc()
}
