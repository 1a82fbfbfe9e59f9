package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/harborstay/guest-ai-platform/internal/conversation"
	"github.com/harborstay/guest-ai-platform/internal/tenancy"
	"github.com/harborstay/guest-ai-platform/pkg/logging"

	"github.com/go-chi/chi/v5"
)

// MessageHandler exposes the decision pipeline over HTTP. One POST per guest
// turn; processing is synchronous so per-conversation ordering is whatever
// order the transport delivers.
type MessageHandler struct {
	pipeline *conversation.Pipeline
	states   conversation.StateStore
	logger   *logging.Logger
}

func NewMessageHandler(pipeline *conversation.Pipeline, states conversation.StateStore, logger *logging.Logger) *MessageHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &MessageHandler{pipeline: pipeline, states: states, logger: logger}
}

type messageRequest struct {
	ConversationID string `json:"conversation_id"`
	GuestStatus    string `json:"guest_status"`
	Message        string `json:"message"`
}

type messageResponse struct {
	Reply         string   `json:"reply"`
	Source        string   `json:"source"`
	BypassedLLM   bool     `json:"bypassed_llm"`
	Confidence    float64  `json:"confidence"`
	TransferID    string   `json:"transfer_id,omitempty"`
	Clarification string   `json:"clarification_approach,omitempty"`
	Options       []string `json:"options,omitempty"`
}

// Message runs one guest turn through the pipeline.
func (h *MessageHandler) Message(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "conversation_id and message are required", http.StatusBadRequest)
		return
	}

	decision := h.pipeline.ProcessMessage(r.Context(), conversation.InboundMessage{
		TenantID:       tenantID,
		ConversationID: req.ConversationID,
		GuestStatus:    parseGuestStatus(req.GuestStatus),
		Text:           req.Message,
	})

	resp := messageResponse{
		Reply:       decision.FinalReply,
		Source:      decision.Source,
		BypassedLLM: decision.BypassedLLM,
		Confidence:  decision.Confidence,
	}
	if decision.Transfer != nil {
		resp.TransferID = decision.Transfer.ID
	}
	if decision.Clarification != nil {
		resp.Clarification = decision.Clarification.Approach.String()
		resp.Options = decision.Clarification.Options
	}
	writeJSON(w, http.StatusOK, resp)
}

// State returns the stored working memory for a conversation.
func (h *MessageHandler) State(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}

	state, err := h.states.Get(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("state lookup failed", "conversation_id", conversationID, "error", err.Error())
		http.Error(w, "state lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func parseGuestStatus(s string) conversation.GuestStatus {
	switch strings.TrimSpace(s) {
	case string(conversation.GuestActive):
		return conversation.GuestActive
	case string(conversation.GuestPreArrival):
		return conversation.GuestPreArrival
	case string(conversation.GuestPostCheckout):
		return conversation.GuestPostCheckout
	case string(conversation.GuestCancelled):
		return conversation.GuestCancelled
	default:
		return conversation.GuestUnregistered
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
