package conversation

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ClarificationApproach is how we ask the guest to disambiguate.
type ClarificationApproach int

const (
	ApproachDirect ClarificationApproach = iota
	ApproachGuided
	ApproachContextual
	ApproachEducational
	ApproachEscalation
)

func (a ClarificationApproach) String() string {
	switch a {
	case ApproachDirect:
		return "direct"
	case ApproachGuided:
		return "guided"
	case ApproachContextual:
		return "contextual"
	case ApproachEducational:
		return "educational"
	case ApproachEscalation:
		return "escalation"
	default:
		return "unknown"
	}
}

// AmbiguityResult is what ambiguity detection hands to the selector: the
// detected types, a candidate clarifying question, options to offer, and a
// confidence grade for the detection itself.
type AmbiguityResult struct {
	Types      []AmbiguityType
	Question   string
	Options    []string
	Confidence ConfidenceLevel
}

func (r AmbiguityResult) primary() AmbiguityType {
	if len(r.Types) == 0 {
		return AmbiguityNone
	}
	return r.Types[0]
}

func (r AmbiguityResult) has(t AmbiguityType) bool {
	for _, candidate := range r.Types {
		if candidate == t {
			return true
		}
	}
	return false
}

// ClarificationStrategy is a fully rendered plan for the clarification turn.
type ClarificationStrategy struct {
	Approach            ClarificationApproach
	Question            string
	Options             []string
	Message             string
	Priority            int
	Urgent              bool
	ShouldEscalate      bool
	CanBeAutomated      bool
	EstimatedResolution time.Duration
}

// ClarificationSelector scores the possible approaches for an ambiguous
// message and renders the guest-facing clarification text.
type ClarificationSelector struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewClarificationSelector(logger *slog.Logger) *ClarificationSelector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClarificationSelector{logger: logger, now: time.Now}
}

// baseWeights are the static approach scores per primary ambiguity type.
// Unlisted approaches score zero.
func baseWeights(primary AmbiguityType) map[ClarificationApproach]int {
	switch primary {
	case AmbiguityMultipleOptions:
		return map[ClarificationApproach]int{ApproachDirect: 8, ApproachGuided: 6, ApproachContextual: 4}
	case AmbiguityMissingContext:
		return map[ClarificationApproach]int{ApproachGuided: 8, ApproachDirect: 6, ApproachEducational: 3}
	case AmbiguityTemporalVague:
		return map[ClarificationApproach]int{ApproachContextual: 8, ApproachGuided: 6, ApproachDirect: 4}
	case AmbiguityPrivacyViolation:
		return map[ClarificationApproach]int{ApproachEducational: 8, ApproachEscalation: 6, ApproachDirect: 2}
	case AmbiguityConflictingContext:
		return map[ClarificationApproach]int{ApproachEscalation: 8, ApproachDirect: 6, ApproachGuided: 4}
	case AmbiguityIncompleteRequest:
		return map[ClarificationApproach]int{ApproachGuided: 8, ApproachEducational: 5, ApproachDirect: 4}
	default:
		return map[ClarificationApproach]int{ApproachGuided: 5, ApproachDirect: 4, ApproachContextual: 3}
	}
}

// Select picks the approach for an ambiguous turn and renders the message.
// It never fails: internal problems degrade to a guided fallback strategy.
func (s *ClarificationSelector) Select(result AmbiguityResult, state *ConversationState, profile *TenantProfile) ClarificationStrategy {
	if state == nil || profile == nil {
		s.logger.Warn("clarification selection missing context, using fallback strategy")
		return fallbackClarification()
	}

	weights := baseWeights(result.primary())

	// Context adjustments.
	if state.MessageCount <= 2 {
		weights[ApproachGuided] += 3
		weights[ApproachEducational] += 2
	}
	if state.MessageCount >= 5 {
		weights[ApproachDirect] += 3
		weights[ApproachEscalation] += 2
	}
	if len(state.PendingClarifications) >= 2 {
		weights[ApproachEscalation] += 4
		weights[ApproachDirect] += 2
	}
	if result.Confidence == ConfidenceVeryHigh {
		weights[ApproachDirect] += 3
		weights[ApproachEscalation] += 2
	}
	if !profile.WithinBusinessHours(s.now()) {
		weights[ApproachEscalation] -= 3
		weights[ApproachGuided] += 2
	}

	// Ties resolve in declaration order: direct wins over guided, and so on.
	approach := ApproachDirect
	best := weights[ApproachDirect]
	for _, candidate := range []ClarificationApproach{ApproachGuided, ApproachContextual, ApproachEducational, ApproachEscalation} {
		if weights[candidate] > best {
			approach, best = candidate, weights[candidate]
		}
	}

	question := result.Question
	if strings.TrimSpace(question) == "" {
		question = "Could you tell me a bit more about what you need?"
	}
	options := result.Options
	if len(options) == 0 {
		options = followUpOptions(result.primary(), profile)
	}

	strategy := ClarificationStrategy{
		Approach:            approach,
		Question:            question,
		Options:             options,
		Message:             renderClarification(approach, question, options, state),
		Priority:            clarificationPriority(result),
		Urgent:              result.has(AmbiguityPrivacyViolation) || result.has(AmbiguityConflictingContext),
		ShouldEscalate:      s.ShouldEscalate(result, state),
		CanBeAutomated:      approach != ApproachEscalation,
		EstimatedResolution: estimatedResolution(approach),
	}
	return strategy
}

// ShouldEscalate decides whether the conversation needs a human for the
// clarification itself.
func (s *ClarificationSelector) ShouldEscalate(result AmbiguityResult, state *ConversationState) bool {
	if result.Confidence == ConfidenceVeryHigh {
		return true
	}
	if result.has(AmbiguityPrivacyViolation) || result.has(AmbiguityConflictingContext) {
		return true
	}
	if state != nil && len(state.PendingClarifications) >= 3 {
		return true
	}
	if len(result.Types) >= 3 {
		return true
	}
	return false
}

func clarificationPriority(result AmbiguityResult) int {
	priority := 5
	switch {
	case result.has(AmbiguityPrivacyViolation) || result.has(AmbiguityConflictingContext):
		priority = 1
	case result.has(AmbiguityMultipleOptions):
		priority = 2
	case result.has(AmbiguityTemporalVague):
		priority = 3
	case result.has(AmbiguityIncompleteRequest):
		priority = 4
	}

	switch result.Confidence {
	case ConfidenceVeryHigh:
		if priority > 1 {
			priority--
		}
	case ConfidenceLow:
		if priority < 5 {
			priority++
		}
	}
	return priority
}

func estimatedResolution(approach ClarificationApproach) time.Duration {
	switch approach {
	case ApproachDirect:
		return time.Minute
	case ApproachGuided:
		return 2 * time.Minute
	case ApproachContextual:
		return 90 * time.Second
	case ApproachEducational:
		return 3 * time.Minute
	case ApproachEscalation:
		return 5 * time.Minute
	default:
		return 2 * time.Minute
	}
}

func renderClarification(approach ClarificationApproach, question string, options []string, state *ConversationState) string {
	var b strings.Builder
	switch approach {
	case ApproachDirect:
		b.WriteString(question)
		if len(options) > 0 {
			b.WriteString("\n")
			for i, opt := range options {
				if i >= 5 {
					break
				}
				fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
			}
		}
	case ApproachGuided:
		b.WriteString("I'd be happy to help! Let me guide you through this step by step.\n\n")
		b.WriteString(question)
		if len(options) > 0 {
			b.WriteString("\n\nHere are some options:")
			for _, opt := range options {
				fmt.Fprintf(&b, "\n• %s", opt)
			}
		}
	case ApproachContextual:
		ref := state.LastUserMessage
		if len(ref) > 30 {
			ref = ref[:30] + "..."
		}
		if ref != "" {
			fmt.Fprintf(&b, "Just to make sure I understand your message \"%s\" — %s", ref, question)
		} else {
			b.WriteString(question)
		}
	case ApproachEducational:
		b.WriteString("I want to make sure I get this right for you.\n\n")
		b.WriteString(question)
		b.WriteString("\n\n💡 For faster service next time, include details like what you need and when you need it.")
	case ApproachEscalation:
		b.WriteString("I understand this might be complex. Let me connect you with a staff member who can assist you directly.")
		b.WriteString(" If you can share any additional details, I'll pass them along.")
	}
	return b.String()
}

// followUpOptions builds option lists when ambiguity detection supplied none.
// Catalog-backed types draw from the tenant's available services.
func followUpOptions(primary AmbiguityType, profile *TenantProfile) []string {
	switch primary {
	case AmbiguityTemporalVague:
		return []string{"Right now", "This evening (6-9 PM)", "Tomorrow morning", "Tomorrow evening", "A specific time"}
	case AmbiguityIncompleteRequest:
		return []string{"Room service request", "Housekeeping assistance", "Concierge service", "Technical support", "Restaurant reservation", "Spa booking"}
	case AmbiguityMultipleOptions, AmbiguityMissingContext:
		var options []string
		for _, svc := range profile.Services {
			if !svc.Available {
				continue
			}
			options = append(options, svc.Name)
			if len(options) == 6 {
				break
			}
		}
		if len(options) > 0 {
			return options
		}
	}
	return nil
}

func fallbackClarification() ClarificationStrategy {
	return ClarificationStrategy{
		Approach:            ApproachGuided,
		Question:            "I'd like to help! Could you provide a bit more detail about what you need?",
		Options:             []string{"Room service", "Housekeeping", "Concierge", "Technical support"},
		Message:             "I'd like to help! Could you provide a bit more detail about what you need?",
		Priority:            3,
		CanBeAutomated:      true,
		EstimatedResolution: 2 * time.Minute,
	}
}
