package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const stateTTL = 24 * time.Hour

// StateStore loads and persists per-conversation working memory. Get lazily
// creates a fresh state for unknown conversations so callers never see nil.
type StateStore interface {
	Get(ctx context.Context, conversationID string) (*ConversationState, error)
	Save(ctx context.Context, state *ConversationState) error

	// Update applies fn to the state under the store's lock and persists the
	// result. All pipeline mutations go through here so concurrent turns on
	// the same conversation cannot interleave partial writes.
	Update(ctx context.Context, conversationID string, fn func(*ConversationState)) (*ConversationState, error)
}

// RedisStateStore keeps states in a process-local cache and mirrors them to
// redis best-effort. Redis being down degrades to cache-only operation; a
// guest turn never fails because persistence did.
type RedisStateStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]*ConversationState
}

func NewRedisStateStore(rdb *redis.Client, logger *slog.Logger) *RedisStateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStateStore{
		redis:  rdb,
		tracer: otel.Tracer("guestai/conversation-state"),
		logger: logger,
		now:    time.Now,
		cache:  map[string]*ConversationState{},
	}
}

func (s *RedisStateStore) Get(ctx context.Context, conversationID string) (*ConversationState, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.state_get",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, conversationID), nil
}

func (s *RedisStateStore) getLocked(ctx context.Context, conversationID string) *ConversationState {
	if state, ok := s.cache[conversationID]; ok {
		return state
	}

	if s.redis != nil {
		data, err := s.redis.Get(ctx, stateKey(conversationID)).Bytes()
		switch {
		case err == nil:
			var state ConversationState
			if err := json.Unmarshal(data, &state); err == nil {
				if state.Variables == nil {
					state.Variables = map[string]string{}
				}
				s.cache[conversationID] = &state
				return &state
			}
			s.logger.Warn("discarding undecodable conversation state",
				"conversation_id", conversationID, "error", err.Error())
		case err != redis.Nil:
			s.logger.Warn("state load failed, continuing with fresh state",
				"conversation_id", conversationID, "error", err.Error())
		}
	}

	state := newConversationState(conversationID, s.now())
	s.cache[conversationID] = state
	return state
}

func (s *RedisStateStore) Save(ctx context.Context, state *ConversationState) error {
	ctx, span := s.tracer.Start(ctx, "conversation.state_save",
		trace.WithAttributes(attribute.String("conversation.id", state.ConversationID)))
	defer span.End()

	s.mu.Lock()
	state.UpdatedAt = s.now()
	s.cache[state.ConversationID] = state
	s.mu.Unlock()

	s.persist(ctx, state)
	return nil
}

func (s *RedisStateStore) Update(ctx context.Context, conversationID string, fn func(*ConversationState)) (*ConversationState, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.state_update",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	s.mu.Lock()
	state := s.getLocked(ctx, conversationID)
	fn(state)
	state.UpdatedAt = s.now()
	snapshot := *state
	s.mu.Unlock()

	s.persist(ctx, &snapshot)
	return state, nil
}

func (s *RedisStateStore) persist(ctx context.Context, state *ConversationState) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Error("failed to encode conversation state",
			"conversation_id", state.ConversationID, "error", err.Error())
		return
	}
	if err := s.redis.Set(ctx, stateKey(state.ConversationID), data, stateTTL).Err(); err != nil {
		s.logger.Warn("state persist failed, state held in memory only",
			"conversation_id", state.ConversationID, "error", err.Error())
	}
}

func stateKey(conversationID string) string {
	return fmt.Sprintf("conversation_state:%s", conversationID)
}
