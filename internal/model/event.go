package model

import (
	"time"
)

// TurnEvent is the audit record published for every processed turn.
type TurnEvent struct {
	ID           string          `json:"id"`
	Key          ConversationKey `json:"key"`
	Sequence     uint64          `json:"sequence"`
	Intent       string          `json:"intent"`
	Confidence   float64         `json:"confidence"`
	Sentiment    float64         `json:"sentiment"`
	Action       Action          `json:"action"`
	State        PolicyState     `json:"state"`
	Reply        string          `json:"reply"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HandoffEvent is the one-way notification sent to the human hand-off
// channel when a conversation escalates. It carries the full context
// summary so an agent can pick the conversation up cold.
type HandoffEvent struct {
	ID        string          `json:"id"`
	Key       ConversationKey `json:"key"`
	Reason    string          `json:"reason"`
	Summary   Summary         `json:"summary"`
	Window    []Turn          `json:"window"`
	CreatedAt time.Time       `json:"created_at"`
}
