package conversation

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	exactMatchThreshold  = 1.0
	highSimilarThreshold = 0.95
	minDedupLength       = 20
	hashRetention        = 30 * time.Minute
	hashCleanupTrigger   = 1000
)

// OutboundMessage is one reply already sent to a guest.
type OutboundMessage struct {
	ID             string
	ConversationID string
	Text           string
	SentAt         time.Time
}

// OutboundHistory exposes recently sent replies. Backed by the transcript
// store; the deduplicator only reads.
type OutboundHistory interface {
	RecentOutbound(ctx context.Context, conversationID string, lookback time.Duration) ([]OutboundMessage, error)
	OutboundByConversation(ctx context.Context, tenantID string, lookback time.Duration) (map[string][]OutboundMessage, error)
}

// DuplicateAlert flags two near-identical replies in one conversation.
type DuplicateAlert struct {
	ConversationID string
	FirstID        string
	SecondID       string
	FirstSentAt    time.Time
	SecondSentAt   time.Time
	Similarity     float64
	Preview        string
	TimeBetween    time.Duration
}

// Deduplicator stops the bot from sending the same reply twice. A fast
// in-process hash cache catches exact repeats; transcript comparison with
// normalized Levenshtein similarity catches near-identical ones. Any
// internal failure fails open: a suppressed duplicate is an annoyance, a
// swallowed answer is a broken conversation.
type Deduplicator struct {
	history OutboundHistory
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	hashes map[string]time.Time
}

func NewDeduplicator(history OutboundHistory, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{
		history: history,
		logger:  logger,
		now:     time.Now,
		hashes:  map[string]time.Time{},
	}
}

// IsDuplicate reports whether text repeats a reply already sent on the
// conversation within lookback.
func (d *Deduplicator) IsDuplicate(ctx context.Context, conversationID, text string, lookback time.Duration) bool {
	normalized := normalizeResponse(text)
	if len(normalized) < minDedupLength {
		return false
	}

	key := dedupKey(conversationID, normalized)
	d.mu.Lock()
	_, seen := d.hashes[key]
	d.mu.Unlock()
	if seen {
		return true
	}

	if d.history == nil {
		return false
	}
	recent, err := d.history.RecentOutbound(ctx, conversationID, lookback)
	if err != nil {
		d.logger.Warn("outbound history lookup failed, allowing send",
			"conversation_id", conversationID, "error", err.Error())
		return false
	}

	for _, msg := range recent {
		prior := normalizeResponse(msg.Text)
		if len(prior) < minDedupLength {
			continue
		}
		if similarity(normalized, prior) >= highSimilarThreshold {
			return true
		}
	}
	return false
}

// MarkSent records a reply hash after the send succeeds.
func (d *Deduplicator) MarkSent(conversationID, text string) {
	normalized := normalizeResponse(text)
	if len(normalized) < minDedupLength {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.hashes) > hashCleanupTrigger {
		d.cleanupLocked(hashRetention)
	}
	d.hashes[dedupKey(conversationID, normalized)] = d.now()
}

// CleanupOldHashes drops hash entries older than retention.
func (d *Deduplicator) CleanupOldHashes(retention time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanupLocked(retention)
}

func (d *Deduplicator) cleanupLocked(retention time.Duration) {
	cutoff := d.now().Add(-retention)
	for key, at := range d.hashes {
		if at.Before(cutoff) {
			delete(d.hashes, key)
		}
	}
}

// DetectRecentDuplicates sweeps a tenant's recent transcripts for repeated
// replies. Pairwise per conversation, so intended for monitoring windows,
// not hot paths.
func (d *Deduplicator) DetectRecentDuplicates(ctx context.Context, tenantID string, lookback time.Duration) ([]DuplicateAlert, error) {
	if d.history == nil {
		return nil, nil
	}
	byConversation, err := d.history.OutboundByConversation(ctx, tenantID, lookback)
	if err != nil {
		return nil, fmt.Errorf("conversation: load outbound transcripts: %w", err)
	}

	var alerts []DuplicateAlert
	for conversationID, messages := range byConversation {
		for i := 0; i < len(messages); i++ {
			first := normalizeResponse(messages[i].Text)
			if len(first) < minDedupLength {
				continue
			}
			for j := i + 1; j < len(messages); j++ {
				second := normalizeResponse(messages[j].Text)
				if len(second) < minDedupLength {
					continue
				}
				score := similarity(first, second)
				if score < highSimilarThreshold {
					continue
				}
				alerts = append(alerts, DuplicateAlert{
					ConversationID: conversationID,
					FirstID:        messages[i].ID,
					SecondID:       messages[j].ID,
					FirstSentAt:    messages[i].SentAt,
					SecondSentAt:   messages[j].SentAt,
					Similarity:     score,
					Preview:        preview(messages[i].Text),
					TimeBetween:    messages[j].SentAt.Sub(messages[i].SentAt),
				})
			}
		}
	}
	return alerts, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeResponse folds a reply into canonical comparison form: lower
// case, collapsed whitespace, punctuation and quote characters stripped.
func normalizeResponse(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		switch r {
		case '!', '?', '.', ',', '"', '\'':
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func dedupKey(conversationID, normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return conversationID + ":" + base64.StdEncoding.EncodeToString(sum[:])
}

// similarity is 1 minus the normalized Levenshtein distance. Identical
// strings score 1.0; wholly different strings approach 0.
func similarity(a, b string) float64 {
	if a == b {
		return exactMatchThreshold
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return exactMatchThreshold
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes edit distance with a two-row matrix.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= 50 {
		return text
	}
	return text[:50] + "..."
}
