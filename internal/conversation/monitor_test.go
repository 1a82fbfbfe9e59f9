package conversation

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestMonitor_LogResponseScoresAndRecords(t *testing.T) {
	store := &memoryAuditStore{}
	monitor := NewMonitor(store, NewValidator(), nil)

	entry := monitor.LogResponse(context.Background(),
		"tenant-1", "conv-1",
		"Can I get extra towels?",
		"Certainly! Housekeeping will bring fresh towels to your room shortly.",
		SourceLLM, true, 250*time.Millisecond)

	if entry.QualityScore != 100 {
		t.Errorf("quality score = %v, want 100 for a clean reply", entry.QualityScore)
	}
	if entry.HasProhibitedContent {
		t.Errorf("prohibited content flagged: %v", entry.ProhibitedPhrases)
	}
	if len(store.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(store.entries))
	}
	if store.entries[0].ResponseTime != 250*time.Millisecond {
		t.Errorf("recorded response time = %v", store.entries[0].ResponseTime)
	}
}

func TestMonitor_LogResponseFlagsGenericPhrasing(t *testing.T) {
	monitor := NewMonitor(&memoryAuditStore{}, NewValidator(), nil)

	entry := monitor.LogResponse(context.Background(),
		"tenant-1", "conv-1",
		"When does the restaurant open?",
		"Most hotels typically serve breakfast from seven, and in general dinner starts at six.",
		SourceLLM, true, 100*time.Millisecond)

	if !entry.HasProhibitedContent {
		t.Fatal("generic phrasing not flagged")
	}
	for _, want := range []string{"most hotels", "typically", "in general"} {
		found := false
		for _, phrase := range entry.ProhibitedPhrases {
			if phrase == want {
				found = true
			}
		}
		if !found {
			t.Errorf("phrase %q not detected in %v", want, entry.ProhibitedPhrases)
		}
	}
}

func TestMonitor_Acceptable(t *testing.T) {
	monitor := NewMonitor(nil, NewValidator(), nil)

	tests := []struct {
		name  string
		entry ResponseAuditLog
		want  bool
	}{
		{
			name:  "grounded model reply above floor",
			entry: ResponseAuditLog{QualityScore: 85, ResponseSource: SourceLLM, ConfigurationMatchFound: true},
			want:  true,
		},
		{
			name:  "score below floor",
			entry: ResponseAuditLog{QualityScore: 60, ResponseSource: SourceLLM, ConfigurationMatchFound: true},
		},
		{
			name:  "prohibited phrasing",
			entry: ResponseAuditLog{QualityScore: 95, ResponseSource: SourceLLM, ConfigurationMatchFound: true, HasProhibitedContent: true},
		},
		{
			name:  "ungrounded model reply",
			entry: ResponseAuditLog{QualityScore: 95, ResponseSource: SourceLLM},
		},
		{
			name:  "configured answer needs no grounding flag",
			entry: ResponseAuditLog{QualityScore: 95, ResponseSource: SourceDirectConfiguration},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := monitor.acceptable(&tt.entry); got != tt.want {
				t.Errorf("acceptable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonitor_QualityReport(t *testing.T) {
	store := &memoryAuditStore{}
	base := fixedTime()
	seed := []ResponseAuditLog{
		{TenantID: "tenant-1", QualityScore: 95, ConfigurationMatchFound: true, CreatedAt: base},
		{TenantID: "tenant-1", QualityScore: 85, ConfigurationMatchFound: true, CreatedAt: base, ValidationIssues: []string{"Warning: tone"}},
		{TenantID: "tenant-1", QualityScore: 75, CreatedAt: base, ValidationIssues: []string{"Warning: tone"}},
		{TenantID: "tenant-1", QualityScore: 40, CreatedAt: base, ValidationIssues: []string{"Error: length"}},
	}
	for i := range seed {
		_ = store.Append(context.Background(), &seed[i])
	}

	monitor := NewMonitor(store, NewValidator(), nil)
	report, err := monitor.QualityReport(context.Background(), "tenant-1", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("QualityReport: %v", err)
	}

	if report.TotalResponses != 4 {
		t.Errorf("total = %d, want 4", report.TotalResponses)
	}
	if report.AverageScore != 73.75 {
		t.Errorf("average = %v, want 73.75", report.AverageScore)
	}
	if report.ConfigurationUsageRate != 0.5 {
		t.Errorf("config usage = %v, want 0.5", report.ConfigurationUsageRate)
	}
	wantDist := map[string]int{"excellent": 1, "good": 1, "acceptable": 1, "poor": 1}
	for bucket, want := range wantDist {
		if report.Distribution[bucket] != want {
			t.Errorf("distribution[%s] = %d, want %d", bucket, report.Distribution[bucket], want)
		}
	}
	if len(report.CommonIssues) == 0 || !strings.HasPrefix(report.CommonIssues[0], "Warning: tone (2)") {
		t.Errorf("common issues = %v", report.CommonIssues)
	}
	// 0.5 usage is under the 0.80 floor and a quarter of replies scored poor.
	if len(report.Recommendations) < 2 {
		t.Errorf("recommendations = %v", report.Recommendations)
	}
}

func TestMonitor_QualityReportEmptyWindow(t *testing.T) {
	monitor := NewMonitor(&memoryAuditStore{}, NewValidator(), nil)
	report, err := monitor.QualityReport(context.Background(), "tenant-1", fixedTime(), fixedTime().Add(time.Hour))
	if err != nil {
		t.Fatalf("QualityReport: %v", err)
	}
	if report.TotalResponses != 0 || len(report.Recommendations) != 0 {
		t.Errorf("empty report = %+v", report)
	}
}

func TestMonitor_DetectGenericResponses(t *testing.T) {
	store := &memoryAuditStore{}
	base := fixedTime()
	seed := []ResponseAuditLog{
		{TenantID: "tenant-1", HasProhibitedContent: true, ProhibitedPhrases: []string{"typically", "most hotels", "in general"}, CreatedAt: base},
		{TenantID: "tenant-1", HasProhibitedContent: true, ProhibitedPhrases: []string{"usually"}, CreatedAt: base},
		{TenantID: "tenant-1", CreatedAt: base},
	}
	for i := range seed {
		_ = store.Append(context.Background(), &seed[i])
	}

	monitor := NewMonitor(store, NewValidator(), nil)
	monitor.now = func() time.Time { return base.Add(10 * time.Minute) }

	alert, err := monitor.DetectGenericResponses(context.Background(), "tenant-1", time.Hour)
	if err != nil {
		t.Fatalf("DetectGenericResponses: %v", err)
	}
	if alert == nil {
		t.Fatal("expected an alert")
	}
	if alert.Count != 2 {
		t.Errorf("count = %d, want 2", alert.Count)
	}
	if alert.Severity != "High" {
		t.Errorf("severity = %q, want High for 4 distinct phrases", alert.Severity)
	}
	if len(alert.Phrases) != 4 {
		t.Errorf("phrases = %v, want 4 distinct", alert.Phrases)
	}
}

func TestMonitor_DetectGenericResponsesNoneFound(t *testing.T) {
	store := &memoryAuditStore{}
	entry := ResponseAuditLog{TenantID: "tenant-1", CreatedAt: fixedTime()}
	_ = store.Append(context.Background(), &entry)

	monitor := NewMonitor(store, NewValidator(), nil)
	monitor.now = func() time.Time { return fixedTime().Add(time.Minute) }

	alert, err := monitor.DetectGenericResponses(context.Background(), "tenant-1", time.Hour)
	if err != nil {
		t.Fatalf("DetectGenericResponses: %v", err)
	}
	if alert != nil {
		t.Errorf("alert = %+v, want nil", alert)
	}
}

func TestMonitor_ConfigurationUsage(t *testing.T) {
	store := &memoryAuditStore{}
	base := fixedTime()
	seed := []ResponseAuditLog{
		{TenantID: "tenant-1", ResponseSource: SourceDirectConfiguration, ConfigurationMatchFound: true, CreatedAt: base},
		{TenantID: "tenant-1", ResponseSource: SourceLLM, ConfigurationMatchFound: true, CreatedAt: base},
		{TenantID: "tenant-1", ResponseSource: SourceLLM, OriginalMessage: "do you have a rooftop bar?", CreatedAt: base},
		{TenantID: "tenant-1", ResponseSource: SourceTemplate, OriginalMessage: "parking options?", CreatedAt: base},
	}
	for i := range seed {
		_ = store.Append(context.Background(), &seed[i])
	}

	monitor := NewMonitor(store, NewValidator(), nil)
	report, err := monitor.ConfigurationUsage(context.Background(), "tenant-1", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ConfigurationUsage: %v", err)
	}

	if report.ConfigMatched != 2 || report.ConfigMissed != 2 {
		t.Errorf("matched/missed = %d/%d, want 2/2", report.ConfigMatched, report.ConfigMissed)
	}
	if report.BySource[SourceLLM] != 2 || report.BySource[SourceDirectConfiguration] != 1 || report.BySource[SourceTemplate] != 1 {
		t.Errorf("by source = %v", report.BySource)
	}
	if len(report.MissedExamples) != 2 {
		t.Errorf("missed examples = %v", report.MissedExamples)
	}
}
