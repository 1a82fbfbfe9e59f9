package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ResponseSource tags where a guest-facing reply came from.
const (
	SourceLLM                 = "LLM"
	SourceDirectConfiguration = "DirectConfiguration"
	SourceTemplate            = "Template"
)

// ResponseAuditLog is one row of the response audit trail. Every reply the
// pipeline produces is recorded, including fallbacks.
type ResponseAuditLog struct {
	ID                      string
	TenantID                string
	ConversationID          string
	OriginalMessage         string
	GeneratedResponse       string
	ResponseSource          string
	ConfigurationMatchFound bool
	QualityScore            float64 // 0-100
	HasProhibitedContent    bool
	ProhibitedPhrases       []string
	ValidationIssues        []string
	ResponseTime            time.Duration
	CreatedAt               time.Time
}

// AuditFilter narrows audit queries. Zero values are ignored.
type AuditFilter struct {
	TenantID       string
	ConversationID string
	ResponseSource string
	From           time.Time
	To             time.Time
	Limit          int
}

// AuditStore is the append-only response audit trail.
type AuditStore interface {
	Append(ctx context.Context, entry *ResponseAuditLog) error
	Query(ctx context.Context, filter AuditFilter) ([]ResponseAuditLog, error)
}

// AuditOutboundHistory serves the deduplicator's transcript reads from the
// audit trail, which already records every reply the pipeline sends.
type AuditOutboundHistory struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditOutboundHistory(store AuditStore) *AuditOutboundHistory {
	return &AuditOutboundHistory{store: store, now: time.Now}
}

func (h *AuditOutboundHistory) RecentOutbound(ctx context.Context, conversationID string, lookback time.Duration) ([]OutboundMessage, error) {
	entries, err := h.store.Query(ctx, AuditFilter{
		ConversationID: conversationID,
		From:           h.now().Add(-lookback),
	})
	if err != nil {
		return nil, err
	}
	out := make([]OutboundMessage, 0, len(entries))
	for _, entry := range entries {
		out = append(out, OutboundMessage{
			ID:             entry.ID,
			ConversationID: entry.ConversationID,
			Text:           entry.GeneratedResponse,
			SentAt:         entry.CreatedAt,
		})
	}
	return out, nil
}

func (h *AuditOutboundHistory) OutboundByConversation(ctx context.Context, tenantID string, lookback time.Duration) (map[string][]OutboundMessage, error) {
	entries, err := h.store.Query(ctx, AuditFilter{
		TenantID: tenantID,
		From:     h.now().Add(-lookback),
	})
	if err != nil {
		return nil, err
	}
	grouped := map[string][]OutboundMessage{}
	for _, entry := range entries {
		grouped[entry.ConversationID] = append(grouped[entry.ConversationID], OutboundMessage{
			ID:             entry.ID,
			ConversationID: entry.ConversationID,
			Text:           entry.GeneratedResponse,
			SentAt:         entry.CreatedAt,
		})
	}
	// Query returns newest first; the sweep expects chronological order.
	for _, messages := range grouped {
		sort.Slice(messages, func(i, j int) bool {
			return messages[i].SentAt.Before(messages[j].SentAt)
		})
	}
	return grouped, nil
}

// PostgresAuditStore persists audit rows with database/sql.
type PostgresAuditStore struct {
	db *sql.DB
}

func NewPostgresAuditStore(db *sql.DB) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

func (s *PostgresAuditStore) Append(ctx context.Context, entry *ResponseAuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO response_audit_logs (
			id, tenant_id, conversation_id, original_message, generated_response,
			response_source, configuration_match_found, quality_score,
			has_prohibited_content, prohibited_phrases, validation_issues,
			response_time_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID,
		entry.TenantID,
		entry.ConversationID,
		entry.OriginalMessage,
		entry.GeneratedResponse,
		entry.ResponseSource,
		entry.ConfigurationMatchFound,
		entry.QualityScore,
		entry.HasProhibitedContent,
		pq.Array(entry.ProhibitedPhrases),
		pq.Array(entry.ValidationIssues),
		entry.ResponseTime.Milliseconds(),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("conversation: append audit log: %w", err)
	}
	return nil
}

func (s *PostgresAuditStore) Query(ctx context.Context, filter AuditFilter) ([]ResponseAuditLog, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, tenant_id, conversation_id, original_message, generated_response,
			response_source, configuration_match_found, quality_score,
			has_prohibited_content, prohibited_phrases, validation_issues,
			response_time_ms, created_at
		FROM response_audit_logs
		WHERE 1=1`)

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TenantID != "" {
		fmt.Fprintf(&query, " AND tenant_id = %s", arg(filter.TenantID))
	}
	if filter.ConversationID != "" {
		fmt.Fprintf(&query, " AND conversation_id = %s", arg(filter.ConversationID))
	}
	if filter.ResponseSource != "" {
		fmt.Fprintf(&query, " AND response_source = %s", arg(filter.ResponseSource))
	}
	if !filter.From.IsZero() {
		fmt.Fprintf(&query, " AND created_at >= %s", arg(filter.From))
	}
	if !filter.To.IsZero() {
		fmt.Fprintf(&query, " AND created_at <= %s", arg(filter.To))
	}
	query.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		fmt.Fprintf(&query, " LIMIT %s", arg(filter.Limit))
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("conversation: query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []ResponseAuditLog
	for rows.Next() {
		var entry ResponseAuditLog
		var responseTimeMs int64
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.ConversationID,
			&entry.OriginalMessage,
			&entry.GeneratedResponse,
			&entry.ResponseSource,
			&entry.ConfigurationMatchFound,
			&entry.QualityScore,
			&entry.HasProhibitedContent,
			pq.Array(&entry.ProhibitedPhrases),
			pq.Array(&entry.ValidationIssues),
			&responseTimeMs,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("conversation: scan audit log: %w", err)
		}
		entry.ResponseTime = time.Duration(responseTimeMs) * time.Millisecond
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate audit logs: %w", err)
	}
	return entries, nil
}
