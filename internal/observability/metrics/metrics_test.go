package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveDecision("direct_configuration", true, 0.02)
	m.ObserveDecision("llm_with_validation", false, 1.4)
	m.ObserveDuplicate()
	m.ObserveValidationFailure()
	m.ObserveTransfer("user_requested")

	if got := testutil.ToFloat64(m.duplicatesTotal); got != 1 {
		t.Errorf("duplicates = %v", got)
	}
	if got := testutil.ToFloat64(m.validationFailures); got != 1 {
		t.Errorf("validation failures = %v", got)
	}
	if got := testutil.ToFloat64(m.decisionsTotal.WithLabelValues("direct_configuration", "true")); got != 1 {
		t.Errorf("bypassed decisions = %v", got)
	}
	if got := testutil.ToFloat64(m.transfersTotal.WithLabelValues("user_requested")); got != 1 {
		t.Errorf("transfers = %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	exported := make([]string, 0, len(families))
	for _, fam := range families {
		exported = append(exported, fam.GetName())
	}
	joined := strings.Join(exported, ",")
	for _, name := range []string{
		"guestai_pipeline_decisions_total",
		"guestai_pipeline_duplicates_suppressed_total",
		"guestai_pipeline_validation_failures_total",
		"guestai_pipeline_transfers_total",
	} {
		if !strings.Contains(joined, name) {
			t.Errorf("metric %s not exported (got %s)", name, joined)
		}
	}
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	m.ObserveDecision("clarification", true, 0.1)
	m.ObserveDuplicate()
	m.ObserveValidationFailure()
	m.ObserveTransfer("emergency")
}
