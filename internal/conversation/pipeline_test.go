package conversation

import (
	"context"
	"strings"
	"testing"
)

type pipelineFixture struct {
	pipeline *Pipeline
	states   *RedisStateStore
	audit    *memoryAuditStore
	tenants  *fakeTenantStore
}

// newTestPipeline wires a pipeline against in-memory collaborators. Each
// model-backed component gets its own client so a test can prove exactly
// which ones ran.
func newTestPipeline(classifierLLM, transferLLM, genLLM LLMClient) *pipelineFixture {
	tenants := &fakeTenantStore{profiles: map[string]*TenantProfile{"tenant-1": hotelProfile()}}
	states := NewRedisStateStore(nil, nil)
	audit := &memoryAuditStore{}

	pipeline := NewPipeline(PipelineConfig{
		Tenants:     tenants,
		States:      states,
		Gate:        NewConfigGate(NewProfileConfiguredData(tenants), nil),
		Transfers:   NewTransferDetector(transferLLM, "test-model", nil),
		TransferSvc: NewTransferService(nil, nil),
		Rules:       NewRulesEngine(classifierLLM, "test-model", nil, nil),
		Selector:    NewClarificationSelector(nil),
		Validator:   NewValidator(),
		Dedup:       NewDeduplicator(NewAuditOutboundHistory(audit), nil),
		Monitor:     NewMonitor(audit, NewValidator(), nil),
		LLM:         genLLM,
		Model:       "test-model",
	})
	return &pipelineFixture{pipeline: pipeline, states: states, audit: audit, tenants: tenants}
}

func noTransferLLM() *fakeLLM {
	return &fakeLLM{responses: []string{`{"shouldTransfer": false, "confidence": 0.9, "reasoning": "service request"}`}}
}

func TestPipeline_ConfiguredAnswerBypassesModel(t *testing.T) {
	blocked := &failingLLM{fail: t.Errorf}
	fx := newTestPipeline(blocked, blocked, blocked)

	decision := fx.pipeline.ProcessMessage(context.Background(), InboundMessage{
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		GuestStatus:    GuestActive,
		Text:           "what's the wifi password?",
	})

	if decision.Source != DecisionDirectConfiguration {
		t.Fatalf("source = %s, want DirectConfiguration", decision.Source)
	}
	if !decision.BypassedLLM {
		t.Error("configured answer must bypass the model")
	}
	if !strings.Contains(decision.FinalReply, "Welcome123") {
		t.Errorf("reply = %q, want the configured wifi answer", decision.FinalReply)
	}
	if decision.Confidence != directAnswerConfidence {
		t.Errorf("confidence = %v, want %v", decision.Confidence, directAnswerConfidence)
	}

	if len(fx.audit.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(fx.audit.entries))
	}
	entry := fx.audit.entries[0]
	if entry.ResponseSource != SourceDirectConfiguration || !entry.ConfigurationMatchFound {
		t.Errorf("audit entry = %+v", entry)
	}
}

func TestPipeline_TransferRequestShortCircuits(t *testing.T) {
	transferLLM := &fakeLLM{responses: []string{`{
		"shouldTransfer": true, "confidence": 0.95,
		"reason": "UserRequested", "priority": "Normal",
		"department": "FrontDesk", "reasoning": "guest asked for a manager"
	}`}}
	blocked := &failingLLM{fail: t.Errorf}
	fx := newTestPipeline(blocked, transferLLM, blocked)

	decision := fx.pipeline.ProcessMessage(context.Background(), InboundMessage{
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		GuestStatus:    GuestActive,
		Text:           "I want to speak to a manager",
	})

	if decision.Source != DecisionTransfer {
		t.Fatalf("source = %s, want Transfer", decision.Source)
	}
	if decision.FinalReply != transferAck {
		t.Errorf("reply = %q", decision.FinalReply)
	}
	if decision.Transfer == nil {
		t.Fatal("decision carries no transfer request")
	}
	if decision.Transfer.Department != DepartmentFrontDesk {
		t.Errorf("department = %s", decision.Transfer.Department)
	}
	if !decision.BypassedLLM {
		t.Error("transfer must bypass generation")
	}
}

func TestPipeline_BlockedRuleRefusesWithoutGeneration(t *testing.T) {
	classifier := &fakeLLM{responses: []string{`{
		"primaryIntent": "REQUEST_SERVICE", "serviceCategory": "MASSAGE",
		"specificItem": "deep tissue massage", "overallConfidence": 0.9
	}`}}
	blocked := &failingLLM{fail: t.Errorf}
	fx := newTestPipeline(classifier, noTransferLLM(), blocked)

	decision := fx.pipeline.ProcessMessage(context.Background(), InboundMessage{
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		GuestStatus:    GuestActive,
		Text:           "Can I book a deep tissue massage?",
	})

	if !decision.BypassedLLM {
		t.Error("blocked request must not reach generation")
	}
	if len(decision.Violations) != 1 || decision.Violations[0].RuleName != "spa_services_availability" {
		t.Fatalf("violations = %+v", decision.Violations)
	}
	if !strings.Contains(decision.FinalReply, "spa services are not available") {
		t.Errorf("reply = %q, want the availability refusal", decision.FinalReply)
	}
}

func TestPipeline_EscalatingRuleHandsOff(t *testing.T) {
	classifier := &fakeLLM{responses: []string{`{
		"primaryIntent": "COMPLAINT", "serviceCategory": "MAINTENANCE",
		"specificItem": "broken shower", "overallConfidence": 0.8
	}`}}
	blocked := &failingLLM{fail: t.Errorf}
	fx := newTestPipeline(classifier, noTransferLLM(), blocked)

	decision := fx.pipeline.ProcessMessage(context.Background(), InboundMessage{
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		GuestStatus:    GuestActive,
		Text:           "My shower is broken",
	})

	if decision.Source != DecisionTransfer {
		t.Fatalf("source = %s, want Transfer", decision.Source)
	}
	if decision.Transfer == nil || decision.Transfer.Department != DepartmentMaintenance {
		t.Errorf("transfer = %+v, want maintenance routing", decision.Transfer)
	}
	if decision.Transfer.Priority != PriorityHigh {
		t.Errorf("priority = %s, want High", decision.Transfer.Priority)
	}
}

func TestPipeline_AmbiguousTurnAsksForClarification(t *testing.T) {
	classifier := &fakeLLM{responses: []string{`{
		"primaryIntent": "UNKNOWN", "serviceCategory": "UNKNOWN", "overallConfidence": 0.4
	}`}}
	blocked := &failingLLM{fail: t.Errorf}
	fx := newTestPipeline(classifier, noTransferLLM(), blocked)

	decision := fx.pipeline.ProcessMessage(context.Background(), InboundMessage{
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		GuestStatus:    GuestActive,
		Text:           "I need that thing",
	})

	if decision.Source != DecisionClarification {
		t.Fatalf("source = %s, want Clarification", decision.Source)
	}
	if decision.Clarification == nil {
		t.Fatal("decision carries no clarification strategy")
	}

	state, _ := fx.states.Get(context.Background(), "conv-1")
	if !state.RequiresClarification {
		t.Error("state must mark clarification pending")
	}
	if len(state.PendingClarifications) != 1 {
		t.Errorf("pending clarifications = %v", state.PendingClarifications)
	}
	if state.LastBotResponse != decision.FinalReply {
		t.Errorf("state last bot response = %q", state.LastBotResponse)
	}
}

func TestPipeline_GenerationAndDuplicateSuppression(t *testing.T) {
	const reply = "Absolutely! I'll have a club sandwich sent up to your room. Anything else I can get you?"
	classifier := &fakeLLM{responses: []string{`{
		"primaryIntent": "REQUEST_ITEM", "serviceCategory": "FOOD_BEVERAGE",
		"specificItem": "club sandwich", "overallConfidence": 0.9,
		"categoryConfidences": {"FOOD_BEVERAGE": 0.9}
	}`}}
	gen := &fakeLLM{responses: []string{reply}}
	fx := newTestPipeline(classifier, noTransferLLM(), gen)

	msg := InboundMessage{
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		GuestStatus:    GuestActive,
		Text:           "Can I order a club sandwich?",
	}

	decision := fx.pipeline.ProcessMessage(context.Background(), msg)
	if decision.Source != DecisionLLMWithValidation {
		t.Fatalf("source = %s, want LLMWithValidation (%+v)", decision.Source, decision)
	}
	if decision.FinalReply != reply {
		t.Errorf("reply = %q", decision.FinalReply)
	}
	if decision.BypassedLLM {
		t.Error("generated decision must not report a bypass")
	}
	if gen.calls != 1 {
		t.Errorf("generation calls = %d, want 1", gen.calls)
	}

	// The model repeats itself on the next turn; the pipeline must suppress
	// the duplicate instead of sending it again.
	second := fx.pipeline.ProcessMessage(context.Background(), msg)
	if second.Source != DecisionError {
		t.Fatalf("second source = %s, want Error", second.Source)
	}
	if second.FinalReply != frontDeskFallback {
		t.Errorf("second reply = %q, want front desk fallback", second.FinalReply)
	}

	state, _ := fx.states.Get(context.Background(), "conv-1")
	if state.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", state.MessageCount)
	}
}

func TestPipeline_GenerationRetriesOnceOnTransportError(t *testing.T) {
	const reply = "Of course! Housekeeping will drop off two extra blankets within the hour for you."
	classifier := &fakeLLM{responses: []string{`{
		"primaryIntent": "REQUEST_ITEM", "serviceCategory": "HOUSEKEEPING",
		"specificItem": "extra blankets", "overallConfidence": 0.9
	}`}}
	gen := &flakyLLM{failures: 1, response: reply}
	fx := newTestPipeline(classifier, noTransferLLM(), gen)

	decision := fx.pipeline.ProcessMessage(context.Background(), InboundMessage{
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		GuestStatus:    GuestActive,
		Text:           "Could I get extra blankets?",
	})

	if decision.Source != DecisionLLMWithValidation {
		t.Fatalf("source = %s, want LLMWithValidation", decision.Source)
	}
	if gen.calls != 2 {
		t.Errorf("generation calls = %d, want failed first + successful retry", gen.calls)
	}
}

func TestPipeline_InvalidCandidateFallsBack(t *testing.T) {
	classifier := &fakeLLM{responses: []string{`{
		"primaryIntent": "INQUIRY", "serviceCategory": "CONCIERGE",
		"specificItem": "airport shuttle", "overallConfidence": 0.9
	}`}}
	// Stacked over-promises push the score below the validity floor, and a
	// bad candidate must not trigger a second generation.
	gen := &fakeLLM{responses: []string{"We will process a full refund and arrange compensation plus a free upgrade for you."}}
	fx := newTestPipeline(classifier, noTransferLLM(), gen)

	decision := fx.pipeline.ProcessMessage(context.Background(), InboundMessage{
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		GuestStatus:    GuestActive,
		Text:           "Is there an airport shuttle?",
	})

	if decision.Source != DecisionError {
		t.Fatalf("source = %s, want Error", decision.Source)
	}
	if decision.FinalReply != frontDeskFallback {
		t.Errorf("reply = %q, want front desk fallback", decision.FinalReply)
	}
	if gen.calls != 1 {
		t.Errorf("generation calls = %d, want 1", gen.calls)
	}
}

func TestPipeline_UnknownTenantFailsSafe(t *testing.T) {
	blocked := &failingLLM{fail: t.Errorf}
	fx := newTestPipeline(blocked, blocked, blocked)

	decision := fx.pipeline.ProcessMessage(context.Background(), InboundMessage{
		TenantID:       "tenant-unknown",
		ConversationID: "conv-1",
		GuestStatus:    GuestActive,
		Text:           "hello",
	})

	if decision.Source != DecisionError {
		t.Fatalf("source = %s, want Error", decision.Source)
	}
	if decision.FinalReply != frontDeskFallback {
		t.Errorf("reply = %q", decision.FinalReply)
	}
}

func TestPipeline_PromptHistoryExcludesCurrentMessage(t *testing.T) {
	classifier := &fakeLLM{responses: []string{`{
		"primaryIntent": "REQUEST_ITEM", "serviceCategory": "FOOD_BEVERAGE",
		"specificItem": "club sandwich", "overallConfidence": 0.9,
		"categoryConfidences": {"FOOD_BEVERAGE": 0.9}
	}`}}
	gen := &fakeLLM{responses: []string{
		"Absolutely! I'll have a club sandwich sent up to your room. Anything else I can get you?",
		"Of course! A lemonade is on its way up together with your sandwich, enjoy.",
	}}
	fx := newTestPipeline(classifier, noTransferLLM(), gen)

	first := InboundMessage{
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		GuestStatus:    GuestActive,
		Text:           "Can I order a club sandwich?",
	}
	fx.pipeline.ProcessMessage(context.Background(), first)

	// A first turn has no prior exchange: the prompt is the current message
	// alone, once, as a single user turn.
	if got := countMessages(gen.lastReq.Messages, first.Text); got != 1 {
		t.Fatalf("generator prompt carries %q %d times, want 1: %+v", first.Text, got, gen.lastReq.Messages)
	}
	if len(gen.lastReq.Messages) != 1 {
		t.Fatalf("first-turn generator prompt = %+v, want just the current message", gen.lastReq.Messages)
	}
	if got := countMessages(classifier.lastReq.Messages, first.Text); got != 1 {
		t.Fatalf("classifier prompt carries %q %d times, want 1: %+v", first.Text, got, classifier.lastReq.Messages)
	}
	assertAlternatingRoles(t, gen.lastReq.Messages)
	assertAlternatingRoles(t, classifier.lastReq.Messages)

	second := first
	second.Text = "Could you add a lemonade to that?"
	fx.pipeline.ProcessMessage(context.Background(), second)

	// On the next turn the prior exchange precedes the new message and the
	// roles still alternate.
	if got := countMessages(gen.lastReq.Messages, second.Text); got != 1 {
		t.Fatalf("generator prompt carries %q %d times, want 1: %+v", second.Text, got, gen.lastReq.Messages)
	}
	if len(gen.lastReq.Messages) != 3 {
		t.Fatalf("second-turn generator prompt = %+v, want prior exchange plus current message", gen.lastReq.Messages)
	}
	if gen.lastReq.Messages[0].Content != first.Text {
		t.Errorf("history starts with %q, want the prior guest message", gen.lastReq.Messages[0].Content)
	}
	last := gen.lastReq.Messages[len(gen.lastReq.Messages)-1]
	if last.Role != ChatRoleUser || last.Content != second.Text {
		t.Errorf("prompt must end with the current guest message, got %+v", last)
	}
	assertAlternatingRoles(t, gen.lastReq.Messages)
	assertAlternatingRoles(t, classifier.lastReq.Messages)
}

func countMessages(msgs []ChatMessage, content string) int {
	n := 0
	for _, m := range msgs {
		if m.Content == content {
			n++
		}
	}
	return n
}

func assertAlternatingRoles(t *testing.T, msgs []ChatMessage) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Role == msgs[i-1].Role {
			t.Errorf("consecutive %q messages at %d: %+v", msgs[i].Role, i, msgs)
		}
	}
}
