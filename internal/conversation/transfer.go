package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TransferReason classifies why a conversation leaves the bot.
type TransferReason int

const (
	TransferUserRequested TransferReason = iota + 1
	TransferSystemEscalation
	TransferComplexityLimit
	TransferEmergencyHandoff
	TransferSpecialistRequired
	TransferQualityAssurance
)

func (r TransferReason) String() string {
	switch r {
	case TransferUserRequested:
		return "UserRequested"
	case TransferSystemEscalation:
		return "SystemEscalation"
	case TransferComplexityLimit:
		return "ComplexityLimit"
	case TransferEmergencyHandoff:
		return "EmergencyHandoff"
	case TransferSpecialistRequired:
		return "SpecialistRequired"
	case TransferQualityAssurance:
		return "QualityAssurance"
	default:
		return "Unknown"
	}
}

// TransferPriority orders the handoff queue.
type TransferPriority int

const (
	PriorityLow TransferPriority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityUrgent
	PriorityEmergency
)

func (p TransferPriority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityNormal:
		return "Normal"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	case PriorityEmergency:
		return "Emergency"
	default:
		return "Normal"
	}
}

// Departments a transfer can route to.
const (
	DepartmentGeneral      = "General"
	DepartmentFrontDesk    = "FrontDesk"
	DepartmentHousekeeping = "Housekeeping"
	DepartmentMaintenance  = "Maintenance"
	DepartmentConcierge    = "Concierge"
	DepartmentSecurity     = "Security"
)

// TransferDetection is the outcome of analyzing one guest message for a
// handoff request.
type TransferDetection struct {
	ShouldTransfer bool
	Confidence     float64
	Reason         TransferReason
	Priority       TransferPriority
	Department     string
	Reasoning      string
}

// TransferDetector decides whether a guest is asking for a human. The model
// analysis is authoritative; the keyword and regex tables only step in when
// the model call fails. The two signals are never blended.
type TransferDetector struct {
	llm    LLMClient
	model  string
	logger *slog.Logger
	tracer trace.Tracer
}

func NewTransferDetector(llm LLMClient, model string, logger *slog.Logger) *TransferDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferDetector{
		llm:    llm,
		model:  model,
		logger: logger,
		tracer: otel.Tracer("guestai/transfer-detector"),
	}
}

const transferGuidance = `You detect whether a hotel guest is asking to be handed to a HUMAN.

Analyze ONLY the latest guest message. Earlier turns are background context.

A message is a transfer request ONLY when it contains BOTH:
1. a communication verb (speak, talk, connect, call, reach), AND
2. a reference to a human (agent, manager, person, staff, someone, representative).

Requests for items or services are NEVER transfer requests, in any language:
"I want water", "I need towels", "quiero agua" — not transfers.
"I need help" by itself is NOT a transfer request.

Respond with ONLY a JSON object:
{
  "shouldTransfer": bool,
  "confidence": 0.0-1.0,
  "reason": "UserRequested|EmergencyHandoff|ComplexityLimit|SpecialistRequired",
  "priority": "Low|Normal|High|Urgent|Emergency",
  "department": "General|FrontDesk|Housekeeping|Maintenance|Concierge|Security",
  "reasoning": "one sentence"
}`

// Detect analyzes the latest guest message. Detection failures never block
// the pipeline: on error the result is simply "no transfer".
func (d *TransferDetector) Detect(ctx context.Context, message string, history []ChatMessage) TransferDetection {
	ctx, span := d.tracer.Start(ctx, "transfer.detect")
	defer span.End()

	detection, err := d.detectWithModel(ctx, message, history)
	if err != nil {
		span.RecordError(err)
		d.logger.Warn("transfer model analysis failed, falling back to patterns", "error", err.Error())
		detection = detectTransferPatterns(message)
	}

	span.SetAttributes(
		attribute.Bool("transfer.should_transfer", detection.ShouldTransfer),
		attribute.Float64("transfer.confidence", detection.Confidence),
		attribute.String("transfer.reason", detection.Reason.String()),
	)
	return detection
}

func (d *TransferDetector) detectWithModel(ctx context.Context, message string, history []ChatMessage) (TransferDetection, error) {
	const maxContext = 5
	if len(history) > maxContext {
		history = history[len(history)-maxContext:]
	}

	msgs := make([]ChatMessage, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: message})

	resp, err := d.llm.Complete(ctx, LLMRequest{
		Model:       d.model,
		System:      []string{transferGuidance},
		Messages:    msgs,
		MaxTokens:   200,
		Temperature: 0,
	})
	if err != nil {
		return TransferDetection{}, err
	}

	var decoded struct {
		ShouldTransfer bool    `json:"shouldTransfer"`
		Confidence     float64 `json:"confidence"`
		Reason         string  `json:"reason"`
		Priority       string  `json:"priority"`
		Department     string  `json:"department"`
		Reasoning      string  `json:"reasoning"`
	}
	if err := decodeStructured(resp.Text, &decoded); err != nil {
		return TransferDetection{}, err
	}

	if !decoded.ShouldTransfer {
		return TransferDetection{Confidence: decoded.Confidence, Reasoning: decoded.Reasoning}, nil
	}
	return TransferDetection{
		ShouldTransfer: true,
		Confidence:     decoded.Confidence,
		Reason:         parseTransferReason(decoded.Reason),
		Priority:       parseTransferPriority(decoded.Priority),
		Department:     parseDepartment(decoded.Department),
		Reasoning:      decoded.Reasoning,
	}, nil
}

func parseTransferReason(s string) TransferReason {
	switch strings.TrimSpace(s) {
	case "EmergencyHandoff":
		return TransferEmergencyHandoff
	case "ComplexityLimit":
		return TransferComplexityLimit
	case "SpecialistRequired":
		return TransferSpecialistRequired
	case "SystemEscalation":
		return TransferSystemEscalation
	case "QualityAssurance":
		return TransferQualityAssurance
	default:
		return TransferUserRequested
	}
}

func parseTransferPriority(s string) TransferPriority {
	switch strings.TrimSpace(s) {
	case "Low":
		return PriorityLow
	case "High":
		return PriorityHigh
	case "Urgent":
		return PriorityUrgent
	case "Emergency":
		return PriorityEmergency
	default:
		return PriorityNormal
	}
}

func parseDepartment(s string) string {
	switch strings.TrimSpace(s) {
	case DepartmentFrontDesk, DepartmentHousekeeping, DepartmentMaintenance, DepartmentConcierge, DepartmentSecurity:
		return s
	default:
		return DepartmentGeneral
	}
}

// transferKeywords is the fallback table, grouped by reason.
var transferKeywords = map[TransferReason][]string{
	TransferUserRequested: {
		"speak to someone", "talk to human", "human agent", "real person",
		"customer service", "representative", "manager", "supervisor",
		"human help", "live agent", "speak to agent", "transfer me",
		"not helpful", "need human", "actual person",
	},
	TransferEmergencyHandoff: {
		"emergency", "urgent", "immediate help", "critical",
		"serious problem", "life threatening", "medical emergency",
		"security issue", "fire", "ambulance",
	},
	TransferSpecialistRequired: {
		"speak to billing", "speak to housekeeping", "speak to maintenance",
		"speak to concierge", "speak to security", "connect me with",
		"transfer me to",
	},
}

var transferPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(can|could|may)\s+(i|we)\s+(speak|talk)\s+to\s+(someone|a\s+human|a\s+person|an?\s+agent|a\s+representative|a\s+manager)\b`),
	regexp.MustCompile(`(?i)\b(i|we)\s+(want|need|would\s+like)\s+to\s+(speak|talk)\s+(to|with)\s+(someone|a\s+human|a\s+person|an?\s+agent|a\s+manager|staff)\b`),
	regexp.MustCompile(`(?i)\b(get|put)\s+me\s+(a\s+)?(human|person|agent|manager|representative)\b`),
	regexp.MustCompile(`(?i)\bconnect\s+me\s+(to|with)\s+(a\s+)?(human|person|agent|staff|manager)\b`),
	regexp.MustCompile(`(?i)\bis\s+there\s+(a\s+)?(human|person|someone)\s+(i|we)\s+can\s+(speak|talk)\s+(to|with)\b`),
}

// detectTransferPatterns is the deterministic fallback for when the model is
// unreachable. Regex hits score higher than keyword hits.
func detectTransferPatterns(message string) TransferDetection {
	lower := strings.ToLower(message)

	for _, re := range transferPatterns {
		if re.MatchString(message) {
			return TransferDetection{
				ShouldTransfer: true,
				Confidence:     0.9,
				Reason:         TransferUserRequested,
				Priority:       PriorityNormal,
				Department:     DepartmentGeneral,
				Reasoning:      "matched explicit handoff phrasing",
			}
		}
	}

	for _, reason := range []TransferReason{TransferEmergencyHandoff, TransferUserRequested, TransferSpecialistRequired} {
		for _, keyword := range transferKeywords[reason] {
			if !strings.Contains(lower, keyword) {
				continue
			}
			priority := PriorityNormal
			if reason == TransferEmergencyHandoff {
				priority = PriorityEmergency
			}
			return TransferDetection{
				ShouldTransfer: true,
				Confidence:     0.8,
				Reason:         reason,
				Priority:       priority,
				Department:     departmentForReason(reason, keyword),
				Reasoning:      fmt.Sprintf("matched keyword %q", keyword),
			}
		}
	}

	return TransferDetection{}
}

func departmentForReason(reason TransferReason, keyword string) string {
	if reason == TransferEmergencyHandoff {
		return DepartmentSecurity
	}
	switch {
	case strings.Contains(keyword, "housekeeping"):
		return DepartmentHousekeeping
	case strings.Contains(keyword, "maintenance"):
		return DepartmentMaintenance
	case strings.Contains(keyword, "concierge"):
		return DepartmentConcierge
	case strings.Contains(keyword, "security"):
		return DepartmentSecurity
	case strings.Contains(keyword, "billing"):
		return DepartmentFrontDesk
	default:
		return DepartmentGeneral
	}
}
