package conversation

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationSeverity grades a single validation finding.
type ValidationSeverity int

const (
	ValidationInfo ValidationSeverity = iota
	ValidationWarning
	ValidationError
	ValidationCritical
)

func (s ValidationSeverity) String() string {
	switch s {
	case ValidationWarning:
		return "warning"
	case ValidationError:
		return "error"
	case ValidationCritical:
		return "critical"
	default:
		return "info"
	}
}

func (s ValidationSeverity) penalty() float64 {
	switch s {
	case ValidationWarning:
		return 0.15
	case ValidationError:
		return 0.30
	case ValidationCritical:
		return 0.50
	default:
		return 0.05
	}
}

// ValidationIssue is one finding against a candidate reply. Confidence is
// how sure the check is about the finding; the string checks here are
// deterministic, so they all report the same fixed level.
type ValidationIssue struct {
	Type        string
	Severity    ValidationSeverity
	Confidence  float64
	Description string
}

// issueConfidence is the confidence assigned to pattern-based findings.
const issueConfidence = 0.9

// ValidationResult scores a candidate reply. AccuracyScore starts at 1.0 and
// each issue subtracts its severity penalty, floored at zero. A reply is
// invalid below 0.60 or on any critical finding.
type ValidationResult struct {
	IsValid       bool
	AccuracyScore float64
	Issues        []ValidationIssue
}

const (
	minResponseLen = 10
	maxResponseLen = 1000
	validThreshold = 0.60
)

// topicRequiredContent maps a topic keyword in the guest message to words at
// least one of which must appear in the reply for it to count as on-topic.
var topicRequiredContent = map[string][]string{
	"menu":      {"menu", "food", "meal", "breakfast", "lunch", "dinner", "available", "options"},
	"wifi":      {"wifi", "password", "network", "internet", "connect", "access"},
	"towel":     {"towel", "deliver", "bring", "room", "housekeeping", "send"},
	"clean":     {"clean", "housekeeping", "room", "service", "arrange"},
	"emergency": {"help", "assist", "urgent", "immediately", "right away", "emergency"},
	"check":     {"check", "time", "reception", "desk", "process"},
}

// overPromisingPhrases commit the property to things the bot cannot promise.
var overPromisingPhrases = []string{
	"refund", "money back", "compensation", "free upgrade",
	"complimentary upgrade", "manager will call", "manager will contact",
	"definitely", "absolutely guarantee", "promise", "immediately",
	"right now", "instantly",
}

var hospitalityIndicators = []string{
	"happy to", "pleased to", "glad to", "help", "assist", "support",
	"thank you", "thanks", "sorry", "apologize", "please", "certainly",
	"of course",
}

var timePromises = []string{"5 minutes", "10 minutes", "right away", "immediately"}

var placeholderMarkers = []string{"[", "]", "{", "}", "xxx", "placeholder", "todo", "fixme"}

var technicalTerms = []string{"api", "endpoint", "server", "database", "config", "admin", "debug"}

var (
	roomNumberRe   = regexp.MustCompile(`(?i)\broom\s+#?\d+`)
	deliveryVerbRe = regexp.MustCompile(`(?i)\b(deliver to|bring to|send to)\b`)
	wordRe         = regexp.MustCompile(`[a-zA-Z]+`)
)

// Validator checks candidate replies before they reach the guest. It is pure
// string analysis; the same inputs always produce the same result.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(originalMessage, response string) ValidationResult {
	var issues []ValidationIssue

	issues = append(issues, checkLength(response)...)
	issues = append(issues, checkTopicCoverage(originalMessage, response)...)
	issues = append(issues, checkTone(response)...)
	issues = append(issues, checkPromises(response)...)
	issues = append(issues, checkArtifacts(response)...)

	score := 1.0
	critical := false
	for i := range issues {
		if issues[i].Confidence == 0 {
			issues[i].Confidence = issueConfidence
		}
		score -= issues[i].Severity.penalty()
		if issues[i].Severity == ValidationCritical {
			critical = true
		}
	}
	if score < 0 {
		score = 0
	}

	return ValidationResult{
		IsValid:       score >= validThreshold && !critical,
		AccuracyScore: score,
		Issues:        issues,
	}
}

func checkLength(response string) []ValidationIssue {
	trimmed := strings.TrimSpace(response)
	switch {
	case len(trimmed) < minResponseLen:
		return []ValidationIssue{{
			Type:        "length",
			Severity:    ValidationError,
			Description: "response is too short to be a useful answer",
		}}
	case len(trimmed) > maxResponseLen:
		return []ValidationIssue{{
			Type:        "length",
			Severity:    ValidationWarning,
			Description: "response exceeds the messaging length limit",
		}}
	}
	return nil
}

func checkTopicCoverage(originalMessage, response string) []ValidationIssue {
	msg := strings.ToLower(originalMessage)
	resp := strings.ToLower(response)

	var issues []ValidationIssue
	for topic, required := range topicRequiredContent {
		if !strings.Contains(msg, topic) {
			continue
		}
		covered := false
		for _, word := range required {
			if strings.Contains(resp, word) {
				covered = true
				break
			}
		}
		if !covered {
			issues = append(issues, ValidationIssue{
				Type:        "topic_coverage",
				Severity:    ValidationError,
				Description: fmt.Sprintf("guest asked about %q but the response does not address it", topic),
			})
		}
	}
	return issues
}

func checkTone(response string) []ValidationIssue {
	resp := strings.ToLower(response)

	var issues []ValidationIssue
	for _, phrase := range overPromisingPhrases {
		if strings.Contains(resp, phrase) {
			issues = append(issues, ValidationIssue{
				Type:        "over_promising",
				Severity:    ValidationError,
				Description: fmt.Sprintf("response commits to %q which staff may not honor", phrase),
			})
		}
	}

	// Longer replies are expected to carry hospitality language.
	if len(response) > 100 {
		friendly := false
		for _, indicator := range hospitalityIndicators {
			if strings.Contains(resp, indicator) {
				friendly = true
				break
			}
		}
		if !friendly {
			issues = append(issues, ValidationIssue{
				Type:        "tone",
				Severity:    ValidationWarning,
				Description: "long response lacks hospitality language",
			})
		}
	}
	return issues
}

func checkPromises(response string) []ValidationIssue {
	resp := strings.ToLower(response)

	var issues []ValidationIssue
	if roomNumberRe.MatchString(response) && !deliveryVerbRe.MatchString(response) {
		issues = append(issues, ValidationIssue{
			Type:        "room_reference",
			Severity:    ValidationWarning,
			Description: "mentions a room number without a delivery action",
		})
	}
	for _, promise := range timePromises {
		if strings.Contains(resp, promise) {
			issues = append(issues, ValidationIssue{
				Type:        "time_promise",
				Severity:    ValidationWarning,
				Description: fmt.Sprintf("promises %q which operations may not meet", promise),
			})
			break
		}
	}
	return issues
}

func checkArtifacts(response string) []ValidationIssue {
	resp := strings.ToLower(response)

	var issues []ValidationIssue
	for _, marker := range placeholderMarkers {
		if strings.Contains(resp, marker) {
			issues = append(issues, ValidationIssue{
				Type:        "placeholder",
				Severity:    ValidationError,
				Description: fmt.Sprintf("contains template artifact %q", marker),
			})
			break
		}
	}

	for _, term := range technicalTerms {
		if strings.Contains(resp, term) {
			issues = append(issues, ValidationIssue{
				Type:        "technical_leak",
				Severity:    ValidationWarning,
				Description: fmt.Sprintf("contains internal term %q", term),
			})
			break
		}
	}

	// Heavy word repetition reads as a generation loop.
	counts := map[string]int{}
	for _, word := range wordRe.FindAllString(resp, -1) {
		if len(word) <= 3 {
			continue
		}
		counts[word]++
		if counts[word] > 5 {
			issues = append(issues, ValidationIssue{
				Type:        "repetition",
				Severity:    ValidationWarning,
				Description: fmt.Sprintf("word %q repeats excessively", word),
			})
			break
		}
	}
	return issues
}
