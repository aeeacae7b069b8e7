// Package store provides session persistence for conversations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/supportstack/conversation-core/internal/model"
)

// ErrNotFound is returned when no conversation exists for a key.
var ErrNotFound = errors.New("conversation not found")

// ErrVersionConflict is returned when a save races with a concurrent writer.
// The orchestrator serializes per-key processing, so a conflict indicates a
// second instance touching the same conversation.
var ErrVersionConflict = errors.New("conversation version conflict")

// ErrUnavailable wraps transient backend failures. The orchestrator retries
// these with bounded backoff; exhaustion fails the turn closed.
var ErrUnavailable = errors.New("store unavailable")

// SessionStore is the durable mapping from conversation key to conversation
// state. Implementations guarantee read-your-writes for a single
// orchestrator instance; cross-instance mutual exclusion is layered on top.
type SessionStore interface {
	// Load returns the conversation for a key, or ErrNotFound.
	Load(ctx context.Context, key model.ConversationKey) (*model.Conversation, error)

	// Save persists a conversation, incrementing its version. A stale
	// version yields ErrVersionConflict.
	Save(ctx context.Context, conv *model.Conversation) error

	// Expire closes the conversation for a key. Closed conversations are
	// retained for audit, never deleted.
	Expire(ctx context.Context, key model.ConversationKey) error

	// ListIdle returns keys of open conversations not updated since the
	// given time, for the idle reaper.
	ListIdle(ctx context.Context, before time.Time) ([]model.ConversationKey, error)

	// Summary aggregates analytics over stored conversations.
	Summary(ctx context.Context) (*model.AnalyticsSummary, error)

	// Close releases underlying resources.
	Close() error
}

// topIntents ranks intent counts, highest first, capped at limit.
func topIntents(counts map[string]int, limit int) []model.IntentCount {
	out := make([]model.IntentCount, 0, len(counts))
	for intent, n := range counts {
		out = append(out, model.IntentCount{Intent: intent, Count: n})
	}
	// Insertion sort; the intent set is small and closed.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Count > out[j-1].Count; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
