package model

import (
	"time"
)

// Entity is a typed value extracted from a turn's text.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Turn is one inbound message plus its derived understanding. Turns are
// immutable once appended to a conversation.
type Turn struct {
	Sequence uint64  `json:"sequence"`
	Text     string  `json:"text"`
	Channel  Channel `json:"channel"`

	// Understanding, folded in after classification.
	Intent     string   `json:"intent,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Entities   []Entity `json:"entities,omitempty"`
	Sentiment  float64  `json:"sentiment"`

	// MessageID is the client-supplied idempotence key, when present.
	MessageID string `json:"message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// UnderstandingResult is the per-turn output of the understanding pipeline:
// intent classification, entity extraction and sentiment scoring. It is
// never persisted independently; it is folded into the turn it was computed
// for.
type UnderstandingResult struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []Entity `json:"entities"`
	Sentiment  float64  `json:"sentiment"`

	// HumanRequested is set when the text explicitly asks for a human
	// agent. It bypasses the confidence gate.
	HumanRequested bool `json:"human_requested,omitempty"`
}

// IntentUnknown is the closed-set fallback class. Classifier output below
// the confidence threshold is forced to it.
const IntentUnknown = "unknown"
