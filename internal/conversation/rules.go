package conversation

// RuleSeverity dictates what the pipeline does with a violation.
type RuleSeverity string

const (
	// SeverityBlock refuses the request outright.
	SeverityBlock RuleSeverity = "BLOCK"
	// SeverityWarning lets the request through with reduced confidence.
	SeverityWarning RuleSeverity = "WARNING"
	// SeverityEscalate hands the conversation to a human.
	SeverityEscalate RuleSeverity = "ESCALATE"
)

// Primary intents the classifier distinguishes.
const (
	IntentRequestItem    = "REQUEST_ITEM"
	IntentRequestService = "REQUEST_SERVICE"
	IntentInquiry        = "INQUIRY"
	IntentComplaint      = "COMPLAINT"
	IntentBooking        = "BOOKING"
	IntentUnknown        = "UNKNOWN"
)

// ContextFactors are the classifier's situational judgments about a message.
type ContextFactors struct {
	TimeRelevant                bool     `json:"timeRelevant"`
	LocationRelevant            bool     `json:"locationRelevant"`
	GuestStatusRelevant         bool     `json:"guestStatusRelevant"`
	ConversationContextRelevant bool     `json:"conversationContextRelevant"`
	RelevantServices            []string `json:"relevantServices"`
	ExcludedServices            []string `json:"excludedServices"`
}

// BusinessRuleAnalysis is the structured classification of one guest message.
type BusinessRuleAnalysis struct {
	PrimaryIntent       string             `json:"primaryIntent"`
	ServiceCategory     string             `json:"serviceCategory"`
	SpecificItem        string             `json:"specificItem,omitempty"`
	OverallConfidence   float64            `json:"overallConfidence"`
	CategoryConfidences map[string]float64 `json:"categoryConfidences,omitempty"`
	ContextFactors      ContextFactors     `json:"contextFactors"`
	DetectedKeywords    []string           `json:"detectedKeywords,omitempty"`
}

// SemanticRule constrains what an analysis may resolve to for a tenant.
// Rules fire only when active, the analysis is confident enough, and the
// guest type qualifies; exclusions veto a match before preconditions are
// evaluated.
type SemanticRule struct {
	Name                 string
	Active               bool
	ApplicableCategories []string
	RequiredConditions   []string
	ExcludedCategories   []string
	ApplicableGuestTypes []GuestStatus
	MinimumConfidence    float64
	Severity             RuleSeverity
}

// BusinessRuleViolation reports one failed rule for a message.
type BusinessRuleViolation struct {
	RuleName string
	Type     string
	Severity RuleSeverity
	Message  string
}

const violationServiceAvailability = "SERVICE_AVAILABILITY"

// DefaultSemanticRules returns the property-agnostic rule set applied when a
// tenant has not configured its own.
func DefaultSemanticRules() []SemanticRule {
	return []SemanticRule{
		{
			Name:                 "spa_services_availability",
			Active:               true,
			ApplicableCategories: []string{"spa_services", "massage", "wellness", "beauty_treatments", "fitness"},
			RequiredConditions:   []string{"checked_in_guest", "business_hours"},
			ExcludedCategories:   []string{"food_items", "beverages", "room_amenities", "maintenance_requests"},
			ApplicableGuestTypes: []GuestStatus{GuestActive},
			MinimumConfidence:    0.8,
			Severity:             SeverityBlock,
		},
		{
			Name:                 "room_service_hours",
			Active:               true,
			ApplicableCategories: []string{"food_service", "room_service", "beverages"},
			RequiredConditions:   []string{"service_hours"},
			ExcludedCategories:   []string{"spa_services", "maintenance_requests"},
			MinimumConfidence:    0.7,
			Severity:             SeverityWarning,
		},
		{
			Name:                 "maintenance_priority",
			Active:               true,
			ApplicableCategories: []string{"maintenance", "repairs", "technical_issues"},
			RequiredConditions:   []string{"checked_in_guest"},
			ApplicableGuestTypes: []GuestStatus{GuestActive},
			MinimumConfidence:    0.6,
			Severity:             SeverityEscalate,
		},
	}
}
