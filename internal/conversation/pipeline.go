package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harborstay/guest-ai-platform/internal/observability/metrics"
)

// Decision sources, in the order the pipeline can produce them.
const (
	DecisionDirectConfiguration = "DirectConfiguration"
	DecisionTransfer            = "Transfer"
	DecisionClarification       = "Clarification"
	DecisionLLMWithValidation   = "LLMWithValidation"
	DecisionError               = "Error"
)

const (
	// frontDeskFallback is the worst-case guest-visible reply. Every failure
	// path lands here rather than surfacing an error to the guest.
	frontDeskFallback = "I'm having trouble processing your request. Let me connect you with our front desk for assistance."

	transferAck = "Of course — I'm connecting you with a member of our team now. They'll be with you shortly."

	basePersonaPrompt = `You are the guest messaging assistant for a hotel. You answer guest
questions and take service requests warmly and concisely, the way a good
front-desk colleague would. Keep replies short enough for a chat message.`
)

// defaultDedupLookback bounds the duplicate check when no override is
// configured.
const defaultDedupLookback = 30 * time.Minute

// InboundMessage is one guest turn entering the pipeline.
type InboundMessage struct {
	TenantID       string
	ConversationID string
	GuestStatus    GuestStatus
	Text           string
}

// Decision is the pipeline's verdict on one guest turn.
type Decision struct {
	FinalReply    string
	Source        string
	BypassedLLM   bool
	Confidence    float64
	Transfer      *TransferRequest
	Clarification *ClarificationStrategy
	Violations    []BusinessRuleViolation
}

// Pipeline runs every guest message through the same fixed order: the
// configuration gate, transfer detection, business rules, clarification,
// and only then the model. All deterministic short-circuits come before any
// model-dependent step, so a bypassed turn costs no tokens.
type Pipeline struct {
	tenants       TenantStore
	states        StateStore
	gate          *ConfigGate
	transfers     *TransferDetector
	transferSvc   *TransferService
	rules         *RulesEngine
	selector      *ClarificationSelector
	validator     *Validator
	dedup         *Deduplicator
	monitor       *Monitor
	llm           LLMClient
	model         string
	dedupLookback time.Duration
	metrics       *metrics.PipelineMetrics
	logger        *slog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// PipelineConfig wires a Pipeline. All collaborators are required except
// Metrics and TransferSvc; the monitor tolerates a nil audit store.
type PipelineConfig struct {
	Tenants     TenantStore
	States      StateStore
	Gate        *ConfigGate
	Transfers   *TransferDetector
	TransferSvc *TransferService
	Rules       *RulesEngine
	Selector    *ClarificationSelector
	Validator   *Validator
	Dedup       *Deduplicator
	Monitor     *Monitor
	LLM         LLMClient
	Model       string
	Metrics     *metrics.PipelineMetrics
	Logger      *slog.Logger

	// DedupLookback bounds how far back the duplicate check reaches.
	// Zero means the 30 minute default.
	DedupLookback time.Duration
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lookback := cfg.DedupLookback
	if lookback <= 0 {
		lookback = defaultDedupLookback
	}
	return &Pipeline{
		tenants:       cfg.Tenants,
		states:        cfg.States,
		gate:          cfg.Gate,
		transfers:     cfg.Transfers,
		transferSvc:   cfg.TransferSvc,
		rules:         cfg.Rules,
		selector:      cfg.Selector,
		validator:     cfg.Validator,
		dedup:         cfg.Dedup,
		monitor:       cfg.Monitor,
		llm:           cfg.LLM,
		model:         cfg.Model,
		dedupLookback: lookback,
		metrics:       cfg.Metrics,
		logger:        logger,
		tracer:        otel.Tracer("guestai/pipeline"),
		now:           time.Now,
	}
}

// ProcessMessage decides the reply for one guest turn. It never returns an
// error to the caller for guest-visible failures; those become the front
// desk fallback with Source Error.
func (p *Pipeline) ProcessMessage(ctx context.Context, msg InboundMessage) *Decision {
	started := p.now()
	ctx, span := p.tracer.Start(ctx, "pipeline.process_message",
		trace.WithAttributes(
			attribute.String("tenant.id", msg.TenantID),
			attribute.String("conversation.id", msg.ConversationID),
		))
	defer span.End()

	profile, err := p.tenants.GetProfile(ctx, msg.TenantID)
	if err != nil {
		span.RecordError(err)
		p.logger.Error("tenant profile load failed",
			"tenant_id", msg.TenantID, "error", err.Error())
		return p.finish(ctx, msg, started, &Decision{
			FinalReply: frontDeskFallback,
			Source:     DecisionError,
		}, false)
	}

	// History is context for the model, never the subject: snapshot the
	// prior turns before this message is written into the state, so prompts
	// carry the current text exactly once and roles keep alternating.
	var history []ChatMessage
	state, err := p.states.Update(ctx, msg.ConversationID, func(s *ConversationState) {
		history = s.RecentHistory()
		s.MessageCount++
		s.LastUserMessage = msg.Text
		s.LastInteraction = p.now()
	})
	if err != nil {
		span.RecordError(err)
		state = newConversationState(msg.ConversationID, p.now())
		history = nil
	}

	// 1. Configuration gate. A configured answer bypasses the model entirely.
	if answer := p.gate.DirectResponse(ctx, msg.TenantID, msg.Text); answer != nil {
		span.SetAttributes(attribute.String("pipeline.gate_topic", answer.Topic))
		return p.finish(ctx, msg, started, &Decision{
			FinalReply:  answer.Reply,
			Source:      DecisionDirectConfiguration,
			BypassedLLM: true,
			Confidence:  answer.Confidence,
		}, true)
	}

	// 2. Human transfer detection.
	if detection := p.transfers.Detect(ctx, msg.Text, history); detection.ShouldTransfer {
		return p.finish(ctx, msg, started, p.handoff(ctx, msg, detection), false)
	}

	// 3. Business rules.
	analysis := p.rules.Analyze(ctx, msg.Text, profile, history)
	violations := p.rules.Validate(analysis, profile, msg.GuestStatus)
	confidence := analysis.OverallConfidence
	for _, v := range violations {
		switch v.Severity {
		case SeverityBlock:
			return p.finish(ctx, msg, started, &Decision{
				FinalReply:  refusalReply(v),
				Source:      DecisionLLMWithValidation,
				BypassedLLM: true,
				Confidence:  confidence,
				Violations:  violations,
			}, false)
		case SeverityEscalate:
			detection := TransferDetection{
				ShouldTransfer: true,
				Confidence:     confidence,
				Reason:         TransferSystemEscalation,
				Priority:       PriorityHigh,
				Department:     departmentForViolation(v),
				Reasoning:      v.Message,
			}
			decision := p.handoff(ctx, msg, detection)
			decision.Violations = violations
			return p.finish(ctx, msg, started, decision, false)
		case SeverityWarning:
			confidence *= 0.8
		}
	}

	// 4. Clarification for ambiguous turns.
	if ambiguity := detectAmbiguity(analysis, confidence); len(ambiguity.Types) > 0 {
		strategy := p.selector.Select(ambiguity, state, profile)
		if _, err := p.states.Update(ctx, msg.ConversationID, func(s *ConversationState) {
			s.RequiresClarification = true
			s.PendingClarifications = append(s.PendingClarifications, strategy.Question)
		}); err != nil {
			p.logger.Warn("failed to record pending clarification", "error", err.Error())
		}

		decision := &Decision{
			FinalReply:    strategy.Message,
			Source:        DecisionClarification,
			Confidence:    confidence,
			Clarification: &strategy,
			Violations:    violations,
		}
		if strategy.ShouldEscalate {
			detection := TransferDetection{
				ShouldTransfer: true,
				Confidence:     confidence,
				Reason:         TransferSystemEscalation,
				Priority:       PriorityNormal,
				Department:     DepartmentFrontDesk,
				Reasoning:      "clarification loop escalated",
			}
			return p.finish(ctx, msg, started, p.handoff(ctx, msg, detection), false)
		}
		return p.finish(ctx, msg, started, decision, false)
	}

	// 5. Grounded generation.
	decision, grounded := p.generate(ctx, msg, history, confidence, violations)
	return p.finish(ctx, msg, started, decision, grounded)
}

// generate runs the model with the configuration-enhanced prompt and guards
// the candidate with validation and deduplication. The model call gets one
// retry on transport failure; a bad candidate never triggers a second
// generation, it falls back. The bool reports whether the prompt was
// grounded in configured data.
func (p *Pipeline) generate(ctx context.Context, msg InboundMessage, history []ChatMessage, confidence float64, violations []BusinessRuleViolation) (*Decision, bool) {
	prompt := p.gate.EnhanceSystemPrompt(ctx, basePersonaPrompt, msg.TenantID)
	configMatch := prompt != basePersonaPrompt

	msgs := make([]ChatMessage, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: msg.Text})

	req := LLMRequest{
		Model:       p.model,
		System:      []string{prompt},
		Messages:    msgs,
		MaxTokens:   500,
		Temperature: 0.7,
	}

	resp, err := p.llm.Complete(ctx, req)
	if err != nil {
		p.logger.Warn("generation failed, retrying once", "error", err.Error())
		resp, err = p.llm.Complete(ctx, req)
	}
	if err != nil {
		p.logger.Error("generation failed after retry",
			"conversation_id", msg.ConversationID, "error", err.Error())
		return &Decision{FinalReply: frontDeskFallback, Source: DecisionError, Violations: violations}, configMatch
	}

	result := p.validator.Validate(msg.Text, resp.Text)
	if !result.IsValid {
		p.metrics.ObserveValidationFailure()
		p.logger.Warn("candidate reply failed validation",
			"conversation_id", msg.ConversationID,
			"score", result.AccuracyScore,
			"issues", len(result.Issues))
		return &Decision{FinalReply: frontDeskFallback, Source: DecisionError, Confidence: result.AccuracyScore, Violations: violations}, configMatch
	}

	if p.dedup.IsDuplicate(ctx, msg.ConversationID, resp.Text, p.dedupLookback) {
		p.metrics.ObserveDuplicate()
		p.logger.Info("candidate reply suppressed as duplicate",
			"conversation_id", msg.ConversationID)
		return &Decision{FinalReply: frontDeskFallback, Source: DecisionError, Confidence: result.AccuracyScore, Violations: violations}, configMatch
	}

	p.dedup.MarkSent(msg.ConversationID, resp.Text)
	return &Decision{
		FinalReply: resp.Text,
		Source:     DecisionLLMWithValidation,
		Confidence: result.AccuracyScore * confidenceBlend(confidence),
		Violations: violations,
	}, configMatch
}

// confidenceBlend keeps generation confidence meaningful when the analysis
// was unsure but not ambiguous enough to clarify.
func confidenceBlend(analysisConfidence float64) float64 {
	if analysisConfidence <= 0 {
		return 1
	}
	return 0.5 + analysisConfidence/2
}

func (p *Pipeline) handoff(ctx context.Context, msg InboundMessage, detection TransferDetection) *Decision {
	decision := &Decision{
		FinalReply:  transferAck,
		Source:      DecisionTransfer,
		BypassedLLM: true,
		Confidence:  detection.Confidence,
	}

	if p.transferSvc != nil {
		req, err := p.transferSvc.Initiate(ctx, msg.TenantID, msg.ConversationID, detection)
		if err != nil {
			p.logger.Error("transfer initiation failed",
				"conversation_id", msg.ConversationID, "error", err.Error())
			decision.FinalReply = frontDeskFallback
			decision.Source = DecisionError
			return decision
		}
		decision.Transfer = req
	}
	p.metrics.ObserveTransfer(detection.Reason.String())
	return decision
}

// finish records the turn: state, audit trail, metrics. configMatch tells
// the monitor whether the reply was grounded in configured data.
func (p *Pipeline) finish(ctx context.Context, msg InboundMessage, started time.Time, decision *Decision, configMatch bool) *Decision {
	elapsed := p.now().Sub(started)

	if _, err := p.states.Update(ctx, msg.ConversationID, func(s *ConversationState) {
		s.LastBotResponse = decision.FinalReply
		if decision.Source != DecisionClarification {
			s.RequiresClarification = false
		}
	}); err != nil {
		p.logger.Warn("failed to record bot response in state", "error", err.Error())
	}

	if p.monitor != nil {
		source := SourceLLM
		switch decision.Source {
		case DecisionDirectConfiguration:
			source = SourceDirectConfiguration
			configMatch = true
		case DecisionTransfer, DecisionClarification, DecisionError:
			source = SourceTemplate
		}
		p.monitor.LogResponse(ctx, msg.TenantID, msg.ConversationID, msg.Text,
			decision.FinalReply, source, configMatch, elapsed)
	}

	p.metrics.ObserveDecision(decision.Source, decision.BypassedLLM, elapsed.Seconds())
	return decision
}

// detectAmbiguity derives clarification triggers from the rules analysis.
func detectAmbiguity(analysis *BusinessRuleAnalysis, confidence float64) AmbiguityResult {
	var result AmbiguityResult

	competing := 0
	for _, c := range analysis.CategoryConfidences {
		if c >= 0.4 {
			competing++
		}
	}
	if competing >= 2 {
		result.Types = append(result.Types, AmbiguityMultipleOptions)
	}
	if analysis.PrimaryIntent == IntentUnknown || strings.TrimSpace(analysis.SpecificItem) == "" && analysis.ServiceCategory == CategoryUnknown {
		result.Types = append(result.Types, AmbiguityIncompleteRequest)
	}
	if confidence < 0.5 && len(result.Types) == 0 {
		result.Types = append(result.Types, AmbiguityMissingContext)
	}
	if len(result.Types) == 0 {
		return result
	}

	switch {
	case confidence < 0.3:
		result.Confidence = ConfidenceHigh
	case confidence < 0.5:
		result.Confidence = ConfidenceMedium
	default:
		result.Confidence = ConfidenceLow
	}
	result.Question = "Could you tell me a bit more about what you need?"
	return result
}

func refusalReply(v BusinessRuleViolation) string {
	return "I'm sorry, but " + lowerFirst(v.Message) + ". Our front desk would be happy to suggest alternatives."
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func departmentForViolation(v BusinessRuleViolation) string {
	switch v.Type {
	case "MAINTENANCE_ESCALATION":
		return DepartmentMaintenance
	default:
		return DepartmentFrontDesk
	}
}
