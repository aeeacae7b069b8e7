// Package dialog implements the context manager and the dialogue policy
// state machine.
package dialog

import (
	"time"

	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/internal/nlu"
)

// numericSlotTypes may be filled from a bare number in a clarifying answer.
var numericSlotTypes = map[string]bool{
	"order_id":   true,
	"invoice_id": true,
}

// MergeOutcome reports what the merge changed, for the policy to act on.
type MergeOutcome struct {
	// FilledPending is set when the slot a clarifying question asked for
	// got filled this turn.
	FilledPending bool

	// Contradiction is set when an already-filled slot saw a conflicting
	// value. The conflicting value is NOT applied; the flag is a
	// first-class Clarify trigger.
	Contradiction bool

	// NewIntent is set when the turn switched the conversation to a new
	// recognized intent.
	NewIntent bool
}

// ContextManager merges per-turn understanding into accumulated dialogue
// state and enforces the bounded context window.
type ContextManager struct {
	window            int
	sentimentDecay    float64
	negativeTurnFloor float64
}

// NewContextManager creates a context manager with the configured window
// size, sentiment decay constant and per-turn negative floor.
func NewContextManager(window int, sentimentDecay, negativeTurnFloor float64) *ContextManager {
	return &ContextManager{
		window:            window,
		sentimentDecay:    sentimentDecay,
		negativeTurnFloor: negativeTurnFloor,
	}
}

// Window returns the conversation turns participating in live context.
// Older turns stay persisted for audit but are excluded here.
func (m *ContextManager) Window(conv *model.Conversation) []model.Turn {
	return conv.Window(m.window)
}

// Merge folds an understanding result into the turn, appends the turn, and
// applies slot-filling rules.
func (m *ContextManager) Merge(conv *model.Conversation, turn model.Turn, res model.UnderstandingResult) MergeOutcome {
	var out MergeOutcome

	// Fold the understanding into the immutable turn record.
	turn.Intent = res.Intent
	turn.Confidence = res.Confidence
	turn.Entities = res.Entities
	turn.Sentiment = res.Sentiment
	conv.Append(turn)

	// Running sentiment and the sustained-negative streak.
	conv.Sentiment = nlu.UpdateRunningSentiment(conv.Sentiment, res.Sentiment, m.sentimentDecay)
	if res.Sentiment <= m.negativeTurnFloor {
		conv.NegativeStreak++
	} else {
		conv.NegativeStreak = 0
	}

	// A recognized, actionable intent takes over the conversation.
	if res.Intent != model.IntentUnknown && res.Intent != conv.CurrentIntent {
		if _, ok := nlu.Lookup(res.Intent); ok {
			conv.CurrentIntent = res.Intent
			conv.PendingSlot = ""
			out.NewIntent = true
		}
	}

	requested := m.requestedSlots(conv)

	for _, e := range res.Entities {
		name, isRequested := requested[e.Type]
		if !isRequested {
			// Entities not currently requested become opportunistic
			// slots for future use; they trigger no transitions.
			m.fill(conv, turn.Sequence, e.Type, e, true, &out)
			continue
		}
		m.fill(conv, turn.Sequence, name, e, false, &out)
	}

	// A bare number in a clarifying answer fills a pending numeric slot.
	if conv.PendingSlot != "" && !out.FilledPending {
		if spec := pendingSpec(conv); spec != nil && numericSlotTypes[spec.EntityType] {
			if v, ok := nlu.BareNumber(turn.Text); ok {
				m.fill(conv, turn.Sequence, spec.Name,
					model.Entity{Type: spec.EntityType, Value: v}, false, &out)
			}
		}
	}

	if out.Contradiction {
		conv.Contradiction = true
	}

	return out
}

// fill applies one entity to a slot, detecting contradictions instead of
// silently overwriting.
func (m *ContextManager) fill(conv *model.Conversation, seq uint64, name string, e model.Entity, opportunistic bool, out *MergeOutcome) {
	existing, ok := conv.Slots[name]
	if ok && existing.Value != e.Value {
		if existing.Opportunistic {
			// Best-effort captures are replaceable; last write wins.
			ok = false
		} else {
			out.Contradiction = true
			return
		}
	}
	if ok && existing.Value == e.Value {
		return
	}

	conv.Slots[name] = model.Slot{
		Name:          name,
		Type:          e.Type,
		Value:         e.Value,
		SourceTurn:    seq,
		Opportunistic: opportunistic,
		FilledAt:      time.Now(),
	}

	if !opportunistic && conv.PendingSlot == name {
		conv.PendingSlot = ""
		out.FilledPending = true
	}
}

// requestedSlots maps entity type to slot name for the current intent's
// unfilled required slots.
func (m *ContextManager) requestedSlots(conv *model.Conversation) map[string]string {
	requested := make(map[string]string)
	spec, ok := nlu.Lookup(conv.CurrentIntent)
	if !ok {
		return requested
	}
	for _, s := range spec.RequiredSlots {
		if slot, filled := conv.Slots[s.Name]; filled && !slot.Opportunistic {
			continue
		}
		requested[s.EntityType] = s.Name
	}
	return requested
}

// MissingSlot returns the first unfilled required slot of the current
// intent, if any. Opportunistically captured slots count as filled: a value
// volunteered earlier is promoted rather than asked for again.
func MissingSlot(conv *model.Conversation) *nlu.SlotSpec {
	spec, ok := nlu.Lookup(conv.CurrentIntent)
	if !ok {
		return nil
	}
	for i := range spec.RequiredSlots {
		s := spec.RequiredSlots[i]
		if slot, filled := conv.Slots[s.Name]; filled {
			if slot.Opportunistic {
				slot.Opportunistic = false
				conv.Slots[s.Name] = slot
			}
			continue
		}
		// An opportunistic slot captured under the entity type name also
		// satisfies the request.
		if slot, filled := conv.Slots[s.EntityType]; filled && s.EntityType != s.Name {
			slot.Name = s.Name
			slot.Opportunistic = false
			conv.Slots[s.Name] = slot
			continue
		}
		return &s
	}
	return nil
}

func pendingSpec(conv *model.Conversation) *nlu.SlotSpec {
	spec, ok := nlu.Lookup(conv.CurrentIntent)
	if !ok {
		return nil
	}
	for i := range spec.RequiredSlots {
		if spec.RequiredSlots[i].Name == conv.PendingSlot {
			return &spec.RequiredSlots[i]
		}
	}
	return nil
}
