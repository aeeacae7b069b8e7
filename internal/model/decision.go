package model

// Action is the kind of next step the dialogue policy selected.
type Action string

const (
	ActionRespond  Action = "respond"
	ActionClarify  Action = "clarify"
	ActionInvoke   Action = "invoke"
	ActionEscalate Action = "escalate"
)

// PolicyDecision is the policy's verdict for a single turn. It is transient:
// the response composer consumes it immediately and nothing persists it.
type PolicyDecision struct {
	Action     Action
	Confidence float64

	// Reason records which trigger produced the decision, for logs and
	// hand-off notifications.
	Reason string

	// ClarifySlot names the slot a Clarify question must ask for. Empty
	// when the clarification targets the intent itself.
	ClarifySlot string

	// Tool and Args are set for Invoke decisions.
	Tool string
	Args map[string]string
}

// OutboundMessage is the composed reply sent back on the inbound channel.
type OutboundMessage struct {
	Text             string   `json:"text"`
	Escalated        bool     `json:"escalated"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
}
