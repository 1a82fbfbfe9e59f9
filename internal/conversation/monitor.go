package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const (
	minAcceptableScore = 70.0
	minConfigUsageRate = 0.80
	maxGenericPerHour  = 5
)

// genericPhrases mark a reply that fell back to generic hotel knowledge
// instead of the property's configuration.
var genericPhrases = []string{
	"typically", "usually", "most hotels", "generally", "in general",
	"standard hotel", "common practice", "as an ai",
}

// QualityReport aggregates a tenant's audited responses over a window.
type QualityReport struct {
	TenantID               string
	From, To               time.Time
	TotalResponses         int
	AverageScore           float64
	ConfigurationUsageRate float64
	Distribution           map[string]int
	CommonIssues           []string
	Recommendations        []string
}

// GenericResponseAlert flags replies leaning on generic phrasing.
type GenericResponseAlert struct {
	TenantID string
	Severity string
	Count    int
	Phrases  []string
	Window   time.Duration
}

// ConfigurationUsageReport shows which response sources carry the load and
// where configuration gaps force model answers.
type ConfigurationUsageReport struct {
	TenantID       string
	BySource       map[string]int
	ConfigMatched  int
	ConfigMissed   int
	MissedExamples []string
}

// Monitor audits every reply the pipeline produces: scores it, records it,
// and raises alerts when quality slips. Audit persistence is best-effort;
// a failed insert never blocks the guest's reply.
type Monitor struct {
	store     AuditStore
	validator *Validator
	logger    *slog.Logger
	now       func() time.Time
}

func NewMonitor(store AuditStore, validator *Validator, logger *slog.Logger) *Monitor {
	if validator == nil {
		validator = NewValidator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{store: store, validator: validator, logger: logger, now: time.Now}
}

// LogResponse scores and records one reply. Returns the entry for callers
// that want the computed score.
func (m *Monitor) LogResponse(ctx context.Context, tenantID, conversationID, originalMessage, response, source string, configMatch bool, elapsed time.Duration) *ResponseAuditLog {
	result := m.validator.Validate(originalMessage, response)

	var issueDescriptions []string
	for _, issue := range result.Issues {
		issueDescriptions = append(issueDescriptions, fmt.Sprintf("%s: %s", issue.Severity, issue.Description))
	}

	prohibited := detectGenericPhrases(response)

	entry := &ResponseAuditLog{
		TenantID:                tenantID,
		ConversationID:          conversationID,
		OriginalMessage:         originalMessage,
		GeneratedResponse:       response,
		ResponseSource:          source,
		ConfigurationMatchFound: configMatch,
		QualityScore:            result.AccuracyScore * 100,
		HasProhibitedContent:    len(prohibited) > 0,
		ProhibitedPhrases:       prohibited,
		ValidationIssues:        issueDescriptions,
		ResponseTime:            elapsed,
		CreatedAt:               m.now().UTC(),
	}

	if !m.acceptable(entry) {
		m.logger.Warn("response quality below threshold",
			"tenant_id", tenantID,
			"conversation_id", conversationID,
			"score", entry.QualityScore,
			"source", source,
			"prohibited", entry.HasProhibitedContent,
		)
	}

	if m.store != nil {
		if err := m.store.Append(ctx, entry); err != nil {
			m.logger.Error("audit append failed", "conversation_id", conversationID, "error", err.Error())
		}
	}
	return entry
}

// acceptable applies the quality floor: score at threshold, no prohibited
// phrasing, and model-generated replies must have been grounded in
// configuration.
func (m *Monitor) acceptable(entry *ResponseAuditLog) bool {
	if entry.QualityScore < minAcceptableScore {
		return false
	}
	if entry.HasProhibitedContent {
		return false
	}
	if entry.ResponseSource == SourceLLM && !entry.ConfigurationMatchFound {
		return false
	}
	return true
}

// QualityReport summarizes the audit trail for a tenant and window.
func (m *Monitor) QualityReport(ctx context.Context, tenantID string, from, to time.Time) (*QualityReport, error) {
	entries, err := m.store.Query(ctx, AuditFilter{TenantID: tenantID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("conversation: quality report: %w", err)
	}

	report := &QualityReport{
		TenantID:     tenantID,
		From:         from,
		To:           to,
		Distribution: map[string]int{"excellent": 0, "good": 0, "acceptable": 0, "poor": 0},
	}
	if len(entries) == 0 {
		return report, nil
	}

	var scoreSum float64
	var configMatched int
	issueCounts := map[string]int{}
	for _, entry := range entries {
		scoreSum += entry.QualityScore
		if entry.ConfigurationMatchFound {
			configMatched++
		}
		switch {
		case entry.QualityScore >= 90:
			report.Distribution["excellent"]++
		case entry.QualityScore >= 80:
			report.Distribution["good"]++
		case entry.QualityScore >= minAcceptableScore:
			report.Distribution["acceptable"]++
		default:
			report.Distribution["poor"]++
		}
		for _, issue := range entry.ValidationIssues {
			issueCounts[issue]++
		}
	}

	report.TotalResponses = len(entries)
	report.AverageScore = scoreSum / float64(len(entries))
	report.ConfigurationUsageRate = float64(configMatched) / float64(len(entries))
	report.CommonIssues = topIssues(issueCounts, 5)
	report.Recommendations = recommendations(report)
	return report, nil
}

func topIssues(counts map[string]int, n int) []string {
	type pair struct {
		issue string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for issue, count := range counts {
		pairs = append(pairs, pair{issue, count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].issue < pairs[j].issue
	})
	var out []string
	for i, p := range pairs {
		if i >= n {
			break
		}
		out = append(out, fmt.Sprintf("%s (%d)", p.issue, p.count))
	}
	return out
}

func recommendations(report *QualityReport) []string {
	var recs []string
	if report.AverageScore < minAcceptableScore {
		recs = append(recs, "Average quality is below the acceptability floor; review recent low-scoring conversations.")
	}
	if report.ConfigurationUsageRate < minConfigUsageRate {
		recs = append(recs, "Configuration usage is low; add configured answers for the topics guests ask about most.")
	}
	if report.Distribution["poor"] > report.TotalResponses/10 {
		recs = append(recs, "More than 10% of responses scored poor; check validator findings for recurring issues.")
	}
	return recs
}

// DetectGenericResponses sweeps the recent audit trail for replies that
// leaned on generic hotel phrasing.
func (m *Monitor) DetectGenericResponses(ctx context.Context, tenantID string, lookback time.Duration) (*GenericResponseAlert, error) {
	from := m.now().Add(-lookback)
	entries, err := m.store.Query(ctx, AuditFilter{TenantID: tenantID, From: from})
	if err != nil {
		return nil, fmt.Errorf("conversation: generic response sweep: %w", err)
	}

	phraseSet := map[string]bool{}
	count := 0
	for _, entry := range entries {
		if !entry.HasProhibitedContent {
			continue
		}
		count++
		for _, phrase := range entry.ProhibitedPhrases {
			phraseSet[phrase] = true
		}
	}
	if count == 0 {
		return nil, nil
	}

	phrases := make([]string, 0, len(phraseSet))
	for phrase := range phraseSet {
		phrases = append(phrases, phrase)
	}
	sort.Strings(phrases)

	severity := "Medium"
	if len(phrases) > 2 {
		severity = "High"
	}
	if count > maxGenericPerHour {
		m.logger.Warn("generic response rate exceeded",
			"tenant_id", tenantID, "count", count, "window", lookback.String())
	}

	return &GenericResponseAlert{
		TenantID: tenantID,
		Severity: severity,
		Count:    count,
		Phrases:  phrases,
		Window:   lookback,
	}, nil
}

// ConfigurationUsage reports how often replies were grounded in configured
// data and where they were not.
func (m *Monitor) ConfigurationUsage(ctx context.Context, tenantID string, from, to time.Time) (*ConfigurationUsageReport, error) {
	entries, err := m.store.Query(ctx, AuditFilter{TenantID: tenantID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("conversation: configuration usage report: %w", err)
	}

	report := &ConfigurationUsageReport{
		TenantID: tenantID,
		BySource: map[string]int{},
	}
	for _, entry := range entries {
		report.BySource[entry.ResponseSource]++
		if entry.ConfigurationMatchFound {
			report.ConfigMatched++
			continue
		}
		report.ConfigMissed++
		if len(report.MissedExamples) < 10 {
			report.MissedExamples = append(report.MissedExamples, entry.OriginalMessage)
		}
	}
	return report, nil
}

func detectGenericPhrases(response string) []string {
	lower := strings.ToLower(response)
	var found []string
	for _, phrase := range genericPhrases {
		if strings.Contains(lower, phrase) {
			found = append(found, phrase)
		}
	}
	return found
}
