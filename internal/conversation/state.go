package conversation

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConfidenceLevel grades how sure the pipeline is about the guest's intent.
type ConfidenceLevel int

const (
	ConfidenceUnknown ConfidenceLevel = iota
	ConfidenceVeryLow
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
	ConfidenceVeryHigh
)

func (c ConfidenceLevel) String() string {
	switch c {
	case ConfidenceVeryLow:
		return "very_low"
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	case ConfidenceVeryHigh:
		return "very_high"
	default:
		return "unknown"
	}
}

// AmbiguityType labels why a guest message could not be handled directly.
type AmbiguityType int

const (
	AmbiguityNone AmbiguityType = iota
	AmbiguityMultipleOptions
	AmbiguityMissingContext
	AmbiguityTemporalVague
	AmbiguityPrivacyViolation
	AmbiguityConflictingContext
	AmbiguityIncompleteRequest
	AmbiguityMultipleIntents
	AmbiguityImpossibleRequest
)

func (a AmbiguityType) String() string {
	switch a {
	case AmbiguityMultipleOptions:
		return "multiple_options"
	case AmbiguityMissingContext:
		return "missing_context"
	case AmbiguityTemporalVague:
		return "temporal_vague"
	case AmbiguityPrivacyViolation:
		return "privacy_violation"
	case AmbiguityConflictingContext:
		return "conflicting_context"
	case AmbiguityIncompleteRequest:
		return "incomplete_request"
	case AmbiguityMultipleIntents:
		return "multiple_intents"
	case AmbiguityImpossibleRequest:
		return "impossible_request"
	default:
		return "none"
	}
}

// ConversationState is the per-conversation working memory the pipeline
// reads and writes on every turn. Variables hold JSON-serialized values so
// arbitrary structures survive the round trip through redis.
type ConversationState struct {
	ConversationID        string            `json:"conversation_id"`
	Variables             map[string]string `json:"variables"`
	PendingClarifications []string          `json:"pending_clarifications"`
	CurrentIntent         string            `json:"current_intent,omitempty"`
	IntentConfidence      ConfidenceLevel   `json:"intent_confidence"`
	LastUserMessage       string            `json:"last_user_message,omitempty"`
	LastBotResponse       string            `json:"last_bot_response,omitempty"`
	MessageCount          int               `json:"message_count"`
	RequiresClarification bool              `json:"requires_clarification"`
	LastInteraction       time.Time         `json:"last_interaction"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

func newConversationState(conversationID string, now time.Time) *ConversationState {
	return &ConversationState{
		ConversationID: conversationID,
		Variables:      map[string]string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SetVariable stores a value under key, JSON-encoded.
func (s *ConversationState) SetVariable(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("conversation: encode state variable %q: %w", key, err)
	}
	if s.Variables == nil {
		s.Variables = map[string]string{}
	}
	s.Variables[key] = string(raw)
	return nil
}

// GetVariable decodes the value stored under key into dst. Returns false
// when the key is absent.
func (s *ConversationState) GetVariable(key string, dst any) (bool, error) {
	raw, ok := s.Variables[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("conversation: decode state variable %q: %w", key, err)
	}
	return true, nil
}

// RecentHistory renders the last exchanged turns for prompt context. The
// state keeps only the latest pair; fuller transcripts live in the outbound
// history store.
func (s *ConversationState) RecentHistory() []ChatMessage {
	var history []ChatMessage
	if s.LastUserMessage != "" {
		history = append(history, ChatMessage{Role: ChatRoleUser, Content: s.LastUserMessage})
	}
	if s.LastBotResponse != "" {
		history = append(history, ChatMessage{Role: ChatRoleAssistant, Content: s.LastBotResponse})
	}
	return history
}
