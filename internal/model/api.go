package model

import (
	"time"
)

// TurnRequest is the inbound message API payload.
type TurnRequest struct {
	UserID  string            `json:"user_id"`
	Channel Channel           `json:"channel"`
	Text    string            `json:"text"`
	Payload map[string]any    `json:"payload,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// MessageID deduplicates retried deliveries of the same message.
	MessageID string `json:"message_id,omitempty"`
}

// TurnReply is the inbound message API response.
type TurnReply struct {
	Reply            string   `json:"reply"`
	Intent           string   `json:"intent"`
	Confidence       float64  `json:"confidence"`
	Escalated        bool     `json:"escalated"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	Conversation     Summary  `json:"conversation"`
	Replayed         bool     `json:"replayed,omitempty"`
}

// AnalyticsSummary is the aggregate view served by the analytics endpoint.
type AnalyticsSummary struct {
	TotalConversations  int            `json:"total_conversations"`
	OpenConversations   int            `json:"open_conversations"`
	EscalatedCount      int            `json:"escalated_count"`
	EscalationRate      float64        `json:"escalation_rate"`
	AverageSentiment    float64        `json:"average_sentiment"`
	TopIntents          []IntentCount  `json:"top_intents"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// IntentCount is one entry of the top-intents ranking.
type IntentCount struct {
	Intent string `json:"intent"`
	Count  int    `json:"count"`
}
