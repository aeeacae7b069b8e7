package dialog

import (
	"time"

	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/internal/nlu"
	"github.com/supportstack/conversation-core/pkg/metrics"
)

// Escalation trigger reasons, recorded on the conversation and on hand-off
// notifications.
const (
	ReasonHumanRequested     = "human_requested"
	ReasonSentimentFloor     = "sentiment_floor"
	ReasonNegativeStreak     = "negative_streak"
	ReasonClarifyExhausted   = "clarify_exhausted"
	ReasonComplaint          = "complaint"
	ReasonIntegrationFailure = "integration_failure"
	ReasonAwaitingHuman      = "awaiting_human"
)

// complaintConfidence is the confidence above which a complaint goes
// straight to a human.
const complaintConfidence = 0.8

// Policy decides the next action for a turn and drives the state machine:
// Gathering, Ready, Clarifying, Escalated, Closed.
type Policy struct {
	confidenceThreshold float64
	sentimentFloor      float64
	negativeStreakLimit int
	clarifyRetryLimit   int
}

// NewPolicy creates a dialogue policy with the configured thresholds.
func NewPolicy(confidenceThreshold, sentimentFloor float64, negativeStreakLimit, clarifyRetryLimit int) *Policy {
	return &Policy{
		confidenceThreshold: confidenceThreshold,
		sentimentFloor:      sentimentFloor,
		negativeStreakLimit: negativeStreakLimit,
		clarifyRetryLimit:   clarifyRetryLimit,
	}
}

// Evaluate inspects the merged conversation state after a turn and returns
// the policy decision. The escalation checks run on every turn, not only at
// terminal decision points, so a conversation can escalate mid-flow even
// while otherwise Ready.
func (p *Policy) Evaluate(conv *model.Conversation, res model.UnderstandingResult, out MergeOutcome, endSignal bool) model.PolicyDecision {
	// An explicit end signal closes the conversation from any state,
	// Escalated included. Closing is the user ending the conversation, not
	// an automation decision, so the monotonic-escalation guard below does
	// not apply to it.
	if endSignal {
		p.transition(conv, model.StateClosed)
		now := time.Now()
		conv.ClosedAt = &now
		return model.PolicyDecision{Action: model.ActionRespond, Confidence: res.Confidence}
	}

	// Escalation is monotonic. Once handed off, automation only emits the
	// hand-off notice until a human resolves the conversation.
	if conv.Escalated {
		return model.PolicyDecision{
			Action: model.ActionEscalate,
			Reason: ReasonAwaitingHuman,
		}
	}

	if reason, escalate := p.escalationTrigger(conv, res); escalate {
		p.Escalate(conv, reason)
		return model.PolicyDecision{
			Action:     model.ActionEscalate,
			Confidence: res.Confidence,
			Reason:     reason,
		}
	}

	// Contradiction is a first-class Clarify trigger.
	if conv.Contradiction {
		conv.Contradiction = false
		slot := conv.PendingSlot
		if slot == "" {
			if s := MissingSlot(conv); s != nil {
				slot = s.Name
			}
		}
		return p.clarify(conv, res, slot, "contradiction")
	}

	// A clarifying question answered with new information resumes
	// gathering, even when the answer itself (an order number, say) does
	// not classify as an intent.
	answered := conv.State == model.StateClarifying && (out.FilledPending || out.NewIntent)
	if answered {
		p.transition(conv, model.StateGathering)
		conv.ClarifyAttempts = 0
	}

	// Low-confidence or unknown intent: ask rather than guess.
	if !answered && (res.Intent == model.IntentUnknown || res.Confidence < p.confidenceThreshold) {
		return p.clarify(conv, res, "", "unknown_intent")
	}

	// Missing required slot: targeted follow-up.
	if missing := MissingSlot(conv); missing != nil {
		conv.PendingSlot = missing.Name
		return p.clarify(conv, res, missing.Name, "missing_slot")
	}

	// All required slots are filled and the intent cleared the confidence
	// gate: Ready. A slot-only answer inherits the confidence that
	// recognized the intent in the first place.
	confidence := res.Confidence
	if confidence < p.confidenceThreshold {
		if spec, ok := nlu.Lookup(conv.CurrentIntent); ok {
			confidence = spec.Confidence
		}
	}
	res.Confidence = confidence

	p.transition(conv, model.StateReady)
	conv.ClarifyAttempts = 0

	spec, _ := nlu.Lookup(conv.CurrentIntent)
	if spec.Tool != "" {
		args := make(map[string]string, len(spec.RequiredSlots))
		for _, s := range spec.RequiredSlots {
			args[s.Name] = conv.Slots[s.Name].Value
		}
		return model.PolicyDecision{
			Action:     model.ActionInvoke,
			Confidence: res.Confidence,
			Tool:       spec.Tool,
			Args:       args,
		}
	}

	return model.PolicyDecision{Action: model.ActionRespond, Confidence: res.Confidence}
}

// escalationTrigger checks every per-turn escalation condition.
func (p *Policy) escalationTrigger(conv *model.Conversation, res model.UnderstandingResult) (string, bool) {
	if res.HumanRequested {
		return ReasonHumanRequested, true
	}
	if conv.Sentiment <= p.sentimentFloor && len(conv.Turns) > 1 {
		return ReasonSentimentFloor, true
	}
	if conv.NegativeStreak >= p.negativeStreakLimit {
		return ReasonNegativeStreak, true
	}
	if res.Intent == nlu.IntentComplaint && res.Confidence > complaintConfidence {
		return ReasonComplaint, true
	}
	return "", false
}

// clarify re-enters the Clarifying state, escalating when the retry limit
// is exhausted without resolution.
func (p *Policy) clarify(conv *model.Conversation, res model.UnderstandingResult, slot, reason string) model.PolicyDecision {
	if conv.State == model.StateClarifying {
		conv.ClarifyAttempts++
		if conv.ClarifyAttempts > p.clarifyRetryLimit {
			p.Escalate(conv, ReasonClarifyExhausted)
			return model.PolicyDecision{
				Action:     model.ActionEscalate,
				Confidence: res.Confidence,
				Reason:     ReasonClarifyExhausted,
			}
		}
	} else {
		conv.ClarifyAttempts = 1
		p.transition(conv, model.StateClarifying)
	}

	return model.PolicyDecision{
		Action:      model.ActionClarify,
		Confidence:  res.Confidence,
		Reason:      reason,
		ClarifySlot: slot,
	}
}

// Escalate hands the conversation off to a human. Terminal for automation.
func (p *Policy) Escalate(conv *model.Conversation, reason string) {
	p.transition(conv, model.StateEscalated)
	conv.Escalated = true
	conv.EscalationReason = reason
	metrics.EscalationsTotal.WithLabelValues(reason).Inc()
}

// Resolve applies an explicit human-resolution event. It is the only path
// out of Escalated back to automation.
func (p *Policy) Resolve(conv *model.Conversation) {
	if !conv.Escalated {
		return
	}
	conv.Escalated = false
	conv.EscalationReason = ""
	conv.ClarifyAttempts = 0
	conv.NegativeStreak = 0
	// Resolution implies the sentiment trend was addressed by a human.
	if conv.Sentiment < 0 {
		conv.Sentiment = 0
	}
	p.transition(conv, model.StateGathering)
}

func (p *Policy) transition(conv *model.Conversation, to model.PolicyState) {
	if conv.State == to {
		return
	}
	metrics.PolicyTransitions.WithLabelValues(string(conv.State), string(to)).Inc()
	conv.State = to
}
