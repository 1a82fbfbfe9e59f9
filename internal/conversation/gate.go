package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// ConfiguredData exposes a property's configured knowledge to the gate.
// Topic data answers the fixed FAQ topics; Sources returns every configured
// block for prompt grounding.
type ConfiguredData interface {
	TopicData(ctx context.Context, tenantID, topic string) (string, error)
	Sources(ctx context.Context, tenantID string) ([]ConfigSource, error)
}

// DirectAnswer is a reply served straight from configuration, no model call.
type DirectAnswer struct {
	Topic      string
	Reply      string
	Confidence float64
}

const directAnswerConfidence = 0.95

// gateTopic binds a configuration topic to its trigger keywords and the
// label used when formatting the reply. Order matters: earlier topics win
// when a message matches several.
type gateTopic struct {
	topic    string
	label    string
	keywords []string
}

var gateTopics = []gateTopic{
	{"smoking_policy", "Here's our smoking policy", []string{"smoke", "smoking", "cigarette", "vape", "tobacco", "where can i smoke"}},
	{"wifi_info", "WiFi Information", []string{"wifi", "internet", "password", "network name", "connection", "wi-fi"}},
	{"check_times", "Check-in/Check-out Times", []string{"check in", "check out", "checkin", "checkout", "arrival time", "departure time"}},
	{"contact_info", "Contact Information", []string{"phone number", "contact", "reception", "front desk", "call", "reach"}},
	{"pricing_info", "Pricing", []string{"price", "cost", "rate", "how much", "charges", "fees"}},
	{"location_info", "Location", []string{"address", "location", "where are you", "directions", "how to get"}},
	{"hours_info", "Hours", []string{"hours", "open", "close", "time", "schedule", "when do you"}},
}

// essentialTopics must be configured for a property to run without constant
// front-desk fallbacks.
var essentialTopics = []string{"wifi_info", "check_times", "contact_info"}

// ConfigGate answers configuration-covered questions without touching the
// model and grounds the system prompt in configured data for everything
// else. Configuration always beats generation.
type ConfigGate struct {
	data   ConfiguredData
	logger *slog.Logger
}

func NewConfigGate(data ConfiguredData, logger *slog.Logger) *ConfigGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigGate{data: data, logger: logger}
}

// DirectResponse returns a configured answer when the message matches a
// known topic with data behind it. A nil answer means the message needs the
// model. Lookup errors are logged and treated as "no data".
func (g *ConfigGate) DirectResponse(ctx context.Context, tenantID, message string) *DirectAnswer {
	lower := strings.ToLower(message)
	for _, t := range gateTopics {
		if !matchesTopic(lower, t.keywords) {
			continue
		}
		data, err := g.data.TopicData(ctx, tenantID, t.topic)
		if err != nil {
			g.logger.Warn("configured data lookup failed",
				"tenant_id", tenantID, "topic", t.topic, "error", err.Error())
			continue
		}
		if strings.TrimSpace(data) == "" {
			continue
		}
		return &DirectAnswer{
			Topic:      t.topic,
			Reply:      fmt.Sprintf("%s: %s", t.label, data),
			Confidence: directAnswerConfidence,
		}
	}
	return nil
}

func matchesTopic(lowerMessage string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowerMessage, kw) {
			return true
		}
	}
	return false
}

// EnhanceSystemPrompt appends the property's configured data blocks and the
// grounding rules to the base prompt. On lookup failure the base prompt is
// returned untouched rather than blocking the turn.
func (g *ConfigGate) EnhanceSystemPrompt(ctx context.Context, basePrompt, tenantID string) string {
	sources, err := g.data.Sources(ctx, tenantID)
	if err != nil {
		g.logger.Warn("configured sources lookup failed, prompt not enhanced",
			"tenant_id", tenantID, "error", err.Error())
		return basePrompt
	}
	if len(sources) == 0 {
		return basePrompt
	}

	sorted := make([]ConfigSource, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n## CURRENT PROPERTY CONFIGURATION DATA\n")
	for _, src := range sorted {
		fmt.Fprintf(&b, "\n### %s (Priority: %d)\n%s\n", strings.ToUpper(src.Type), src.Priority, src.Content)
	}
	b.WriteString(`
## STRICT RESPONSE VALIDATION REQUIREMENTS
- ONLY use the information listed above when answering questions about this property.
- If the needed information is not listed above, respond with: "I don't have that specific information configured. Let me connect you with our front desk for accurate details."
- NEVER answer from generic hotel knowledge.
- NEVER use the words "typically", "usually", "most hotels", or "generally".`)
	return b.String()
}

// ConfigReport summarizes how well a property's configuration covers the
// gate's topics.
type ConfigReport struct {
	TenantID         string
	ConfiguredTopics []string
	MissingEssential []string
	SourceCount      int
	Sufficient       bool
}

// ValidateConfiguration audits a tenant's configured data against the gate
// topics. Used by onboarding tooling and the admin report endpoints.
func (g *ConfigGate) ValidateConfiguration(ctx context.Context, tenantID string) (ConfigReport, error) {
	report := ConfigReport{TenantID: tenantID}

	sources, err := g.data.Sources(ctx, tenantID)
	if err != nil {
		return report, fmt.Errorf("conversation: load configured sources: %w", err)
	}
	report.SourceCount = len(sources)

	for _, t := range gateTopics {
		data, err := g.data.TopicData(ctx, tenantID, t.topic)
		if err != nil {
			return report, fmt.Errorf("conversation: check topic %s: %w", t.topic, err)
		}
		if strings.TrimSpace(data) != "" {
			report.ConfiguredTopics = append(report.ConfiguredTopics, t.topic)
		}
	}

	configured := map[string]bool{}
	for _, topic := range report.ConfiguredTopics {
		configured[topic] = true
	}
	for _, topic := range essentialTopics {
		if !configured[topic] {
			report.MissingEssential = append(report.MissingEssential, topic)
		}
	}
	report.Sufficient = len(report.MissingEssential) == 0 && report.SourceCount > 0
	return report, nil
}

// ProfileConfiguredData serves ConfiguredData straight from tenant profiles.
type ProfileConfiguredData struct {
	tenants TenantStore
}

func NewProfileConfiguredData(tenants TenantStore) *ProfileConfiguredData {
	return &ProfileConfiguredData{tenants: tenants}
}

func (p *ProfileConfiguredData) TopicData(ctx context.Context, tenantID, topic string) (string, error) {
	profile, err := p.tenants.GetProfile(ctx, tenantID)
	if err != nil {
		return "", err
	}
	for _, src := range profile.ConfigSources {
		if strings.EqualFold(src.Type, topic) {
			return src.Content, nil
		}
	}
	return "", nil
}

func (p *ProfileConfiguredData) Sources(ctx context.Context, tenantID string) ([]ConfigSource, error) {
	profile, err := p.tenants.GetProfile(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return profile.ConfigSources, nil
}
