package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Agent is a staff member who can take over a conversation.
type Agent struct {
	ID         string
	Name       string
	Department string
	Available  bool
}

// AgentDirectory is the staffing system behind transfers. Implemented
// elsewhere against the staff roster; tests use fixtures.
type AgentDirectory interface {
	FindAvailable(ctx context.Context, department string, priority TransferPriority) (*Agent, error)
	AssignConversation(ctx context.Context, agentID, conversationID string) error
	ReleaseConversation(ctx context.Context, agentID, conversationID string) error
}

// TransferRequest records one initiated handoff.
type TransferRequest struct {
	ID             string
	ConversationID string
	TenantID       string
	Reason         TransferReason
	Priority       TransferPriority
	Department     string
	AgentID        string
	CreatedAt      time.Time
}

// TransferService routes detected handoffs to staff.
type TransferService struct {
	directory AgentDirectory
	logger    *slog.Logger
	now       func() time.Time
}

func NewTransferService(directory AgentDirectory, logger *slog.Logger) *TransferService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferService{directory: directory, logger: logger, now: time.Now}
}

// Initiate finds an agent for the detection result and assigns the
// conversation. When no agent is available the request is still recorded so
// staff tooling can pick it up from the queue.
func (s *TransferService) Initiate(ctx context.Context, tenantID, conversationID string, detection TransferDetection) (*TransferRequest, error) {
	req := &TransferRequest{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		TenantID:       tenantID,
		Reason:         detection.Reason,
		Priority:       detection.Priority,
		Department:     detection.Department,
		CreatedAt:      s.now(),
	}

	if s.directory == nil {
		s.logger.Warn("no agent directory configured, transfer queued unassigned",
			"conversation_id", conversationID, "department", req.Department)
		return req, nil
	}

	agent, err := s.directory.FindAvailable(ctx, req.Department, req.Priority)
	if err != nil {
		return nil, fmt.Errorf("conversation: find agent: %w", err)
	}
	if agent == nil {
		s.logger.Info("no agent available, transfer queued",
			"conversation_id", conversationID, "department", req.Department,
			"priority", req.Priority.String())
		return req, nil
	}

	if err := s.directory.AssignConversation(ctx, agent.ID, conversationID); err != nil {
		return nil, fmt.Errorf("conversation: assign agent: %w", err)
	}
	req.AgentID = agent.ID

	s.logger.Info("conversation transferred",
		"conversation_id", conversationID, "agent_id", agent.ID,
		"reason", detection.Reason.String(), "priority", detection.Priority.String())
	return req, nil
}

// Complete hands the conversation back to the bot.
func (s *TransferService) Complete(ctx context.Context, req *TransferRequest) error {
	if s.directory == nil || req == nil || req.AgentID == "" {
		return nil
	}
	if err := s.directory.ReleaseConversation(ctx, req.AgentID, req.ConversationID); err != nil {
		return fmt.Errorf("conversation: release agent: %w", err)
	}
	return nil
}
