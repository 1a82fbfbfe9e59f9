package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RulesEngine classifies guest messages against the tenant's catalog and
// checks the result against semantic business rules. Classification is a
// single low-temperature structured model call; rule validation is pure.
type RulesEngine struct {
	llm    LLMClient
	model  string
	rules  []SemanticRule
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewRulesEngine(llm LLMClient, model string, rules []SemanticRule, logger *slog.Logger) *RulesEngine {
	if len(rules) == 0 {
		rules = DefaultSemanticRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RulesEngine{
		llm:    llm,
		model:  model,
		rules:  rules,
		logger: logger,
		tracer: otel.Tracer("guestai/rules-engine"),
		now:    time.Now,
	}
}

const classificationGuidance = `You classify hotel guest messages. Respond with ONLY a JSON object, no prose.

Categories: FOOD_BEVERAGE, MASSAGE, SPA, LOCAL_TOURS, CONFERENCE_ROOM, DINING, ACTIVITIES, MAINTENANCE, HOUSEKEEPING, CONCIERGE.

JSON fields:
{
  "primaryIntent": "REQUEST_ITEM|REQUEST_SERVICE|INQUIRY|COMPLAINT|BOOKING",
  "serviceCategory": "one of the categories above, or UNKNOWN",
  "specificItem": "the concrete item or service mentioned, if any",
  "overallConfidence": 0.0-1.0,
  "categoryConfidences": {"CATEGORY": 0.0-1.0},
  "contextFactors": {
    "timeRelevant": bool, "locationRelevant": bool,
    "guestStatusRelevant": bool, "conversationContextRelevant": bool,
    "relevantServices": [], "excludedServices": []
  },
  "detectedKeywords": []
}

Classify by meaning, not surface keywords: the word "spa" inside "sparkling water" is NOT spa services. Ordering a drink or food item is FOOD_BEVERAGE even when the item name contains a service word.`

// Analyze runs the structured classification. It never returns nil: model
// failures degrade to a low-confidence UNKNOWN analysis so the pipeline can
// keep moving.
func (e *RulesEngine) Analyze(ctx context.Context, message string, profile *TenantProfile, history []ChatMessage) *BusinessRuleAnalysis {
	ctx, span := e.tracer.Start(ctx, "rules.analyze")
	defer span.End()

	req := LLMRequest{
		Model:       e.model,
		System:      []string{classificationGuidance, e.catalogPrompt(profile)},
		Messages:    classificationMessages(message, history),
		MaxTokens:   400,
		Temperature: 0.2,
	}

	resp, err := e.llm.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("classification call failed, using fallback analysis", "error", err.Error())
		return fallbackAnalysis(message)
	}

	var analysis BusinessRuleAnalysis
	if err := decodeStructured(resp.Text, &analysis); err != nil {
		span.RecordError(err)
		e.logger.Warn("classification output unparseable, using fallback analysis", "error", err.Error())
		return fallbackAnalysis(message)
	}

	analysis.PrimaryIntent = strings.ToUpper(strings.TrimSpace(analysis.PrimaryIntent))
	if analysis.PrimaryIntent == "" {
		analysis.PrimaryIntent = IntentUnknown
	}
	analysis.ServiceCategory = NormalizeCategory(analysis.ServiceCategory)
	if analysis.ServiceCategory == "" {
		analysis.ServiceCategory = CategoryUnknown
	}

	span.SetAttributes(
		attribute.String("rules.intent", analysis.PrimaryIntent),
		attribute.String("rules.category", analysis.ServiceCategory),
		attribute.Float64("rules.confidence", analysis.OverallConfidence),
	)
	return &analysis
}

// catalogPrompt renders what the property actually offers so the classifier
// grounds categories in real inventory.
func (e *RulesEngine) catalogPrompt(profile *TenantProfile) string {
	var b strings.Builder
	b.WriteString("Property catalog:\n")

	if len(profile.Services) > 0 {
		b.WriteString("Services:\n")
		for _, svc := range profile.Services {
			if !svc.Available {
				continue
			}
			fmt.Fprintf(&b, "- %s (%s)\n", svc.Name, NormalizeCategory(svc.Category))
		}
	}
	if len(profile.MenuItems) > 0 {
		b.WriteString("Menu items:\n")
		for _, item := range profile.MenuItems {
			if !item.Available {
				continue
			}
			fmt.Fprintf(&b, "- %s (%s)\n", item.Name, NormalizeCategory(item.Category))
		}
	}
	if len(profile.RequestItems) > 0 {
		b.WriteString("Requestable items:\n")
		for _, item := range profile.RequestItems {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	return b.String()
}

func classificationMessages(message string, history []ChatMessage) []ChatMessage {
	const maxTurns = 6
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	msgs := make([]ChatMessage, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: message})
	return msgs
}

func fallbackAnalysis(message string) *BusinessRuleAnalysis {
	return &BusinessRuleAnalysis{
		PrimaryIntent:     IntentUnknown,
		ServiceCategory:   CategoryUnknown,
		SpecificItem:      message,
		OverallConfidence: 0.3,
	}
}

// Validate checks an analysis against the active rules for the tenant and
// returns every violation found.
func (e *RulesEngine) Validate(analysis *BusinessRuleAnalysis, profile *TenantProfile, status GuestStatus) []BusinessRuleViolation {
	if analysis == nil {
		return nil
	}

	var violations []BusinessRuleViolation
	for _, rule := range e.rules {
		if !rule.Active {
			continue
		}
		if !ruleAppliesTo(rule, status) {
			continue
		}
		if analysis.OverallConfidence < rule.MinimumConfidence {
			continue
		}
		if ruleExcluded(rule, analysis) {
			continue
		}
		if !ruleMatches(rule, analysis) {
			continue
		}
		if v, ok := e.evaluatePreconditions(rule, profile); ok {
			violations = append(violations, v)
		}
	}
	return violations
}

func ruleAppliesTo(rule SemanticRule, status GuestStatus) bool {
	if len(rule.ApplicableGuestTypes) == 0 {
		return true
	}
	for _, t := range rule.ApplicableGuestTypes {
		if t == status {
			return true
		}
	}
	return false
}

// ruleExcluded vetoes a rule when the analysis resolves to something the
// rule explicitly does not govern. Checked against the specific item, the
// category, and the classifier's own exclusion list.
func ruleExcluded(rule SemanticRule, analysis *BusinessRuleAnalysis) bool {
	for _, excluded := range rule.ExcludedCategories {
		if categoriesOverlap(excluded, analysis.ServiceCategory) {
			return true
		}
		if analysis.SpecificItem != "" && categoriesOverlap(excluded, analysis.SpecificItem) {
			return true
		}
	}
	for _, excluded := range analysis.ContextFactors.ExcludedServices {
		for _, cat := range rule.ApplicableCategories {
			if categoriesOverlap(excluded, cat) {
				return true
			}
		}
	}
	return false
}

func ruleMatches(rule SemanticRule, analysis *BusinessRuleAnalysis) bool {
	for _, cat := range rule.ApplicableCategories {
		if categoriesOverlap(cat, analysis.ServiceCategory) {
			return true
		}
		for _, relevant := range analysis.ContextFactors.RelevantServices {
			if categoriesOverlap(cat, relevant) {
				return true
			}
		}
	}
	return false
}

// evaluatePreconditions turns a matched rule into a concrete violation when
// the property cannot actually satisfy the request.
func (e *RulesEngine) evaluatePreconditions(rule SemanticRule, profile *TenantProfile) (BusinessRuleViolation, bool) {
	switch rule.Name {
	case "spa_services_availability":
		if !profile.OffersServiceLike("spa", "massage", "wellness") {
			return BusinessRuleViolation{
				RuleName: rule.Name,
				Type:     violationServiceAvailability,
				Severity: rule.Severity,
				Message:  "Spa services are not available at this property",
			}, true
		}
	case "room_service_hours":
		if !profile.WithinBusinessHours(e.now()) {
			return BusinessRuleViolation{
				RuleName: rule.Name,
				Type:     "SERVICE_HOURS",
				Severity: rule.Severity,
				Message:  "Room service is outside its operating hours",
			}, true
		}
	case "maintenance_priority":
		return BusinessRuleViolation{
			RuleName: rule.Name,
			Type:     "MAINTENANCE_ESCALATION",
			Severity: rule.Severity,
			Message:  "Maintenance issues are routed to staff directly",
		}, true
	}
	return BusinessRuleViolation{}, false
}
