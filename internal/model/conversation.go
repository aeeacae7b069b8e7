// Package model defines data structures for the conversation orchestration core.
package model

import (
	"fmt"
	"time"
)

// Channel identifies the inbound channel a message arrived on.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTeams    Channel = "teams"
)

// PolicyState is the dialogue policy state of a conversation.
type PolicyState string

const (
	StateGathering  PolicyState = "gathering"
	StateReady      PolicyState = "ready"
	StateClarifying PolicyState = "clarifying"
	StateEscalated  PolicyState = "escalated"
	StateClosed     PolicyState = "closed"
)

// Terminal reports whether no further automated transitions are possible
// without an external event (human resolution or an explicit close).
func (s PolicyState) Terminal() bool {
	return s == StateEscalated || s == StateClosed
}

// ConversationKey identifies a conversation by user and channel.
type ConversationKey struct {
	UserID  string  `json:"user_id"`
	Channel Channel `json:"channel"`
}

// String renders the key in its canonical "channel:user" form, used for
// store keys, lock keys and event subjects.
func (k ConversationKey) String() string {
	return fmt.Sprintf("%s:%s", k.Channel, k.UserID)
}

// Slot is a named piece of information captured during a conversation.
type Slot struct {
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Value         string    `json:"value"`
	SourceTurn    uint64    `json:"source_turn"`
	Opportunistic bool      `json:"opportunistic,omitempty"`
	FilledAt      time.Time `json:"filled_at"`
}

// Conversation is the full dialogue state for one (user, channel) pair.
// It is owned by the session store and mutated only by the context manager
// and the dialogue policy.
type Conversation struct {
	Key   ConversationKey `json:"key"`
	Turns []Turn          `json:"turns"`
	Slots map[string]Slot `json:"slots"`

	State         PolicyState `json:"state"`
	CurrentIntent string      `json:"current_intent,omitempty"`
	PendingSlot   string      `json:"pending_slot,omitempty"`

	// Sentiment is an exponentially weighted running average over all
	// turns, in [-1, 1].
	Sentiment      float64 `json:"sentiment"`
	NegativeStreak int     `json:"negative_streak,omitempty"`

	Escalated        bool   `json:"escalated"`
	EscalationReason string `json:"escalation_reason,omitempty"`

	ClarifyAttempts int  `json:"clarify_attempts,omitempty"`
	Contradiction   bool `json:"contradiction,omitempty"`

	// Version is the optimistic-concurrency counter; it increments on
	// every save.
	Version uint64 `json:"version"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// NewConversation creates an open conversation in its initial policy state.
func NewConversation(key ConversationKey, now time.Time) *Conversation {
	return &Conversation{
		Key:       key,
		Slots:     make(map[string]Slot),
		State:     StateGathering,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NextSequence returns the sequence number the next appended turn must carry.
// Sequence numbers are strictly increasing and contiguous, starting at 1.
func (c *Conversation) NextSequence() uint64 {
	return uint64(len(c.Turns)) + 1
}

// Append adds an immutable turn to the conversation history.
func (c *Conversation) Append(t Turn) {
	c.Turns = append(c.Turns, t)
	c.UpdatedAt = t.CreatedAt
}

// Window returns the most recent n turns. The full history is always
// retained for audit; only live context is bounded.
func (c *Conversation) Window(n int) []Turn {
	if n <= 0 || len(c.Turns) <= n {
		return c.Turns
	}
	return c.Turns[len(c.Turns)-n:]
}

// Closed reports whether the conversation has ended.
func (c *Conversation) Closed() bool {
	return c.State == StateClosed
}

// Summary is the externally visible conversation state, returned on every
// turn and carried on hand-off notifications.
type Summary struct {
	Key              ConversationKey   `json:"key"`
	State            PolicyState       `json:"state"`
	CurrentIntent    string            `json:"current_intent,omitempty"`
	TurnCount        int               `json:"turn_count"`
	Sentiment        float64           `json:"sentiment"`
	Escalated        bool              `json:"escalated"`
	EscalationReason string            `json:"escalation_reason,omitempty"`
	Slots            map[string]string `json:"slots,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Summarize builds the external state summary.
func (c *Conversation) Summarize() Summary {
	slots := make(map[string]string, len(c.Slots))
	for name, s := range c.Slots {
		slots[name] = s.Value
	}
	return Summary{
		Key:              c.Key,
		State:            c.State,
		CurrentIntent:    c.CurrentIntent,
		TurnCount:        len(c.Turns),
		Sentiment:        c.Sentiment,
		Escalated:        c.Escalated,
		EscalationReason: c.EscalationReason,
		Slots:            slots,
		UpdatedAt:        c.UpdatedAt,
	}
}
