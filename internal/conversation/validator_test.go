package conversation

import (
	"strings"
	"testing"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		message   string
		response  string
		wantValid bool
		wantIssue string
	}{
		{
			name:      "clean reply passes",
			message:   "Can I get extra towels?",
			response:  "Certainly! Housekeeping will bring fresh towels to your room shortly.",
			wantValid: true,
		},
		{
			// A single error issue costs 0.30, leaving the reply at 0.70 —
			// flagged but still above the approval threshold.
			name:      "too short is flagged but tolerated",
			message:   "hello",
			response:  "Hi",
			wantValid: true,
			wantIssue: "length",
		},
		{
			name:      "off-topic wifi reply is flagged",
			message:   "What is the wifi password?",
			response:  "Our restaurant serves breakfast from seven until ten each morning for all guests staying with us.",
			wantValid: true,
			wantIssue: "topic_coverage",
		},
		{
			name:      "over-promising a refund fails",
			message:   "My room was noisy last night",
			response:  "I'm so sorry about the noise. We will give you a refund and a free upgrade for the trouble you had.",
			wantValid: false,
			wantIssue: "over_promising",
		},
		{
			name:      "placeholder artifact is flagged",
			message:   "What time is breakfast?",
			response:  "Breakfast runs from [START_TIME] until ten, please join us in the lobby restaurant.",
			wantValid: true,
			wantIssue: "placeholder",
		},
		{
			name:      "technical leak is a warning only",
			message:   "Is the pool open?",
			response:  "Yes, the pool is open until 9 PM. Please let our admin know if you need anything else, happy to help!",
			wantValid: true,
			wantIssue: "technical_leak",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.message, tt.response)
			if result.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v (issues: %+v)", result.IsValid, tt.wantValid, result.Issues)
			}
			if tt.wantIssue != "" {
				found := false
				for _, issue := range result.Issues {
					if issue.Type == tt.wantIssue {
						found = true
					}
				}
				if !found {
					t.Errorf("expected issue %q, got %+v", tt.wantIssue, result.Issues)
				}
			}
			for _, issue := range result.Issues {
				if issue.Confidence != 0.9 {
					t.Errorf("issue %q confidence = %v, want 0.9", issue.Type, issue.Confidence)
				}
			}
		})
	}
}

func TestValidator_ScoreMonotonicity(t *testing.T) {
	v := NewValidator()

	clean := v.Validate("Can I get towels?", "Certainly! Housekeeping will bring fresh towels to your room shortly.")
	oneIssue := v.Validate("Can I get towels?", "Certainly! Housekeeping will bring fresh towels to your room right away.")
	twoIssues := v.Validate("Can I get towels?", "Certainly! Housekeeping will deliver to room 412 your towels right away, we promise.")

	if !(clean.AccuracyScore >= oneIssue.AccuracyScore && oneIssue.AccuracyScore >= twoIssues.AccuracyScore) {
		t.Errorf("score should not increase with more issues: %v, %v, %v",
			clean.AccuracyScore, oneIssue.AccuracyScore, twoIssues.AccuracyScore)
	}
	if clean.AccuracyScore != 1.0 {
		t.Errorf("clean reply score = %v, want 1.0", clean.AccuracyScore)
	}
}

func TestValidator_ScoreFloorsAtZero(t *testing.T) {
	v := NewValidator()

	// Stack enough findings that raw penalties exceed 1.0.
	bad := "refund money back compensation free upgrade [placeholder] api server database debug " +
		strings.Repeat("broken ", 8)
	result := v.Validate("wifi and menu and towel and clean and emergency and check please", bad)
	if result.AccuracyScore < 0 {
		t.Fatalf("score must floor at zero, got %v", result.AccuracyScore)
	}
	if result.IsValid {
		t.Fatalf("heavily penalized reply must be invalid")
	}
}

func TestValidator_LongReplyNeedsHospitalityTone(t *testing.T) {
	v := NewValidator()

	flat := "The fitness center is located on the second floor next to the business lounge and it is accessible around the clock with your key card."
	result := v.Validate("Where is the gym?", flat)

	found := false
	for _, issue := range result.Issues {
		if issue.Type == "tone" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected tone warning for long reply without hospitality language, got %+v", result.Issues)
	}
}
