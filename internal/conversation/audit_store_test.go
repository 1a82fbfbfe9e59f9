package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresAuditStore_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO response_audit_logs").
		WithArgs(
			sqlmock.AnyArg(), // generated id
			"tenant-1",
			"conv-1",
			"what's the wifi password?",
			"The WiFi network is Guest, password Welcome123.",
			SourceDirectConfiguration,
			true,
			95.0,
			false,
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			int64(120),
			sqlmock.AnyArg(), // stamped created_at
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresAuditStore(db)
	entry := &ResponseAuditLog{
		TenantID:                "tenant-1",
		ConversationID:          "conv-1",
		OriginalMessage:         "what's the wifi password?",
		GeneratedResponse:       "The WiFi network is Guest, password Welcome123.",
		ResponseSource:          SourceDirectConfiguration,
		ConfigurationMatchFound: true,
		QualityScore:            95.0,
		ResponseTime:            120 * time.Millisecond,
	}
	if err := store.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if entry.ID == "" {
		t.Error("Append must assign an id")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("Append must stamp created_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresAuditStore_QueryBuildsFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	columns := []string{
		"id", "tenant_id", "conversation_id", "original_message", "generated_response",
		"response_source", "configuration_match_found", "quality_score",
		"has_prohibited_content", "prohibited_phrases", "validation_issues",
		"response_time_ms", "created_at",
	}
	created := fixedTime()
	rows := sqlmock.NewRows(columns).
		AddRow("log-2", "tenant-1", "conv-1", "hello", "Welcome to Harbor View!",
			SourceLLM, true, 88.0, false, "{}", "{}", int64(340), created.Add(time.Minute)).
		AddRow("log-1", "tenant-1", "conv-1", "hi", "Hello! How can I help?",
			SourceLLM, true, 90.0, false, "{}", "{tone}", int64(300), created)

	mock.ExpectQuery(`(?s)SELECT .+ FROM response_audit_logs.+WHERE 1=1 AND tenant_id = \$1 AND response_source = \$2 AND created_at >= \$3 ORDER BY created_at DESC LIMIT \$4`).
		WithArgs("tenant-1", SourceLLM, created.Add(-time.Hour), 50).
		WillReturnRows(rows)

	store := NewPostgresAuditStore(db)
	entries, err := store.Query(context.Background(), AuditFilter{
		TenantID:       "tenant-1",
		ResponseSource: SourceLLM,
		From:           created.Add(-time.Hour),
		Limit:          50,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ID != "log-2" {
		t.Errorf("entries[0].ID = %q, want newest first", entries[0].ID)
	}
	if entries[0].ResponseTime != 340*time.Millisecond {
		t.Errorf("response time = %v, want 340ms", entries[0].ResponseTime)
	}
	if len(entries[1].ValidationIssues) != 1 || entries[1].ValidationIssues[0] != "tone" {
		t.Errorf("validation issues = %v", entries[1].ValidationIssues)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAuditOutboundHistory_GroupsAndOrders(t *testing.T) {
	store := &memoryAuditStore{}
	base := fixedTime()

	// Inserted newest first to prove the adapter re-sorts chronologically.
	seed := []ResponseAuditLog{
		{ID: "a2", TenantID: "tenant-1", ConversationID: "conv-a", GeneratedResponse: "second", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "a1", TenantID: "tenant-1", ConversationID: "conv-a", GeneratedResponse: "first", CreatedAt: base},
		{ID: "b1", TenantID: "tenant-1", ConversationID: "conv-b", GeneratedResponse: "other", CreatedAt: base.Add(time.Minute)},
	}
	for i := range seed {
		if err := store.Append(context.Background(), &seed[i]); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	history := NewAuditOutboundHistory(store)
	history.now = func() time.Time { return base.Add(10 * time.Minute) }

	grouped, err := history.OutboundByConversation(context.Background(), "tenant-1", time.Hour)
	if err != nil {
		t.Fatalf("OutboundByConversation: %v", err)
	}
	if len(grouped) != 2 {
		t.Fatalf("conversations = %d, want 2", len(grouped))
	}
	convA := grouped["conv-a"]
	if len(convA) != 2 || convA[0].ID != "a1" || convA[1].ID != "a2" {
		t.Errorf("conv-a messages = %+v, want chronological a1,a2", convA)
	}

	recent, err := history.RecentOutbound(context.Background(), "conv-b", time.Hour)
	if err != nil {
		t.Fatalf("RecentOutbound: %v", err)
	}
	if len(recent) != 1 || recent[0].Text != "other" {
		t.Errorf("recent = %+v", recent)
	}
}
