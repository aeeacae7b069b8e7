package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/supportstack/conversation-core/internal/model"
)

// MemoryStore is an in-memory SessionStore. It is the default for
// development and tests; production deployments use the SQLite store.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*model.Conversation),
	}
}

// Load returns a deep copy so callers never mutate stored state directly.
func (s *MemoryStore) Load(ctx context.Context, key model.ConversationKey) (*model.Conversation, error) {
	s.mu.RLock()
	conv, ok := s.conversations[key.String()]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(conv)
}

// Save persists the conversation, enforcing the optimistic version check.
func (s *MemoryStore) Save(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.conversations[conv.Key.String()]
	if ok && existing.Version != conv.Version {
		return ErrVersionConflict
	}

	conv.Version++
	stored, err := cloneConversation(conv)
	if err != nil {
		return err
	}
	s.conversations[conv.Key.String()] = stored
	return nil
}

// Expire closes the conversation for a key.
func (s *MemoryStore) Expire(ctx context.Context, key model.ConversationKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[key.String()]
	if !ok {
		return ErrNotFound
	}
	if conv.State == model.StateClosed {
		return nil
	}

	now := time.Now()
	conv.State = model.StateClosed
	conv.ClosedAt = &now
	conv.UpdatedAt = now
	conv.Version++
	return nil
}

// ListIdle returns open conversations not updated since before.
func (s *MemoryStore) ListIdle(ctx context.Context, before time.Time) ([]model.ConversationKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []model.ConversationKey
	for _, conv := range s.conversations {
		if conv.State != model.StateClosed && conv.UpdatedAt.Before(before) {
			keys = append(keys, conv.Key)
		}
	}
	return keys, nil
}

// Summary aggregates analytics over all stored conversations.
func (s *MemoryStore) Summary(ctx context.Context) (*model.AnalyticsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &model.AnalyticsSummary{GeneratedAt: time.Now()}
	intents := make(map[string]int)
	var sentimentSum float64

	for _, conv := range s.conversations {
		summary.TotalConversations++
		if conv.State != model.StateClosed {
			summary.OpenConversations++
		}
		if conv.Escalated {
			summary.EscalatedCount++
		}
		sentimentSum += conv.Sentiment
		for _, t := range conv.Turns {
			if t.Intent != "" && t.Intent != model.IntentUnknown {
				intents[t.Intent]++
			}
		}
	}

	if summary.TotalConversations > 0 {
		summary.EscalationRate = float64(summary.EscalatedCount) / float64(summary.TotalConversations)
		summary.AverageSentiment = sentimentSum / float64(summary.TotalConversations)
	}
	summary.TopIntents = topIntents(intents, 5)
	return summary, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneConversation(conv *model.Conversation) (*model.Conversation, error) {
	data, err := json.Marshal(conv)
	if err != nil {
		return nil, err
	}
	var out model.Conversation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out.Slots == nil {
		out.Slots = make(map[string]model.Slot)
	}
	return &out, nil
}
