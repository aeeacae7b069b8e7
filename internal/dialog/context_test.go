package dialog

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/internal/nlu"
)

func newConv() *model.Conversation {
	key := model.ConversationKey{UserID: "u1", Channel: model.ChannelWeb}
	return model.NewConversation(key, time.Now())
}

func turn(conv *model.Conversation, text string) model.Turn {
	return model.Turn{
		Sequence:  conv.NextSequence(),
		Text:      text,
		Channel:   model.ChannelWeb,
		CreatedAt: time.Now(),
	}
}

func TestMergeAppendsAndTracksSentiment(t *testing.T) {
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	out := m.Merge(conv, turn(conv, "hello"), model.UnderstandingResult{
		Intent: nlu.IntentGreeting, Confidence: 0.98, Sentiment: 0.4,
	})

	assert.True(t, out.NewIntent)
	require.Len(t, conv.Turns, 1)
	assert.Equal(t, uint64(1), conv.Turns[0].Sequence)
	assert.Equal(t, nlu.IntentGreeting, conv.Turns[0].Intent)
	assert.InDelta(t, 0.2, conv.Sentiment, 1e-9)
	assert.Equal(t, 0, conv.NegativeStreak)
}

func TestMergeNegativeStreak(t *testing.T) {
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	for i := 0; i < 2; i++ {
		m.Merge(conv, turn(conv, "this is terrible"), model.UnderstandingResult{
			Intent: model.IntentUnknown, Sentiment: -0.8,
		})
	}
	assert.Equal(t, 2, conv.NegativeStreak)

	// A mild turn resets the streak.
	m.Merge(conv, turn(conv, "ok"), model.UnderstandingResult{
		Intent: model.IntentUnknown, Sentiment: 0,
	})
	assert.Equal(t, 0, conv.NegativeStreak)
}

func TestMergeFillsRequestedSlot(t *testing.T) {
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()
	conv.CurrentIntent = nlu.IntentTrackOrder
	conv.PendingSlot = "order_id"

	out := m.Merge(conv, turn(conv, "it's #12345"), model.UnderstandingResult{
		Intent:     model.IntentUnknown,
		Entities:   []model.Entity{{Type: "order_id", Value: "12345"}},
	})

	assert.True(t, out.FilledPending)
	assert.Empty(t, conv.PendingSlot)
	require.Contains(t, conv.Slots, "order_id")
	assert.Equal(t, "12345", conv.Slots["order_id"].Value)
	assert.False(t, conv.Slots["order_id"].Opportunistic)
}

func TestMergeBareNumberFillsPendingNumericSlot(t *testing.T) {
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()
	conv.CurrentIntent = nlu.IntentTrackOrder
	conv.PendingSlot = "order_id"

	out := m.Merge(conv, turn(conv, "12345"), model.UnderstandingResult{
		Intent: model.IntentUnknown,
	})

	assert.True(t, out.FilledPending)
	assert.Equal(t, "12345", conv.Slots["order_id"].Value)
}

func TestMergeContradictionDoesNotOverwrite(t *testing.T) {
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()
	conv.CurrentIntent = nlu.IntentTrackOrder

	m.Merge(conv, turn(conv, "order #11111"), model.UnderstandingResult{
		Intent: nlu.IntentTrackOrder, Confidence: 0.95,
		Entities: []model.Entity{{Type: "order_id", Value: "11111"}},
	})

	// requestedSlots still offers order_id because the value just landed;
	// simulate a later conflicting mention.
	conv.PendingSlot = "order_id"
	conv.Slots["order_id"] = model.Slot{Name: "order_id", Type: "order_id", Value: "11111"}
	out := m.Merge(conv, turn(conv, "sorry I meant #22222"), model.UnderstandingResult{
		Intent: model.IntentUnknown,
		Entities: []model.Entity{{Type: "order_id", Value: "22222"}},
	})

	assert.True(t, out.Contradiction)
	assert.True(t, conv.Contradiction)
	assert.Equal(t, "11111", conv.Slots["order_id"].Value, "conflicting value must not overwrite")
}

func TestMergeOpportunisticCapture(t *testing.T) {
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	// No current intent: the order id is captured opportunistically.
	m.Merge(conv, turn(conv, "regarding #77777, hello"), model.UnderstandingResult{
		Intent: nlu.IntentGreeting, Confidence: 0.98,
		Entities: []model.Entity{{Type: "order_id", Value: "77777"}},
	})

	require.Contains(t, conv.Slots, "order_id")
	assert.True(t, conv.Slots["order_id"].Opportunistic)

	// Later the intent needs it: promoted instead of asked for.
	conv.CurrentIntent = nlu.IntentTrackOrder
	missing := MissingSlot(conv)
	assert.Nil(t, missing)
	assert.False(t, conv.Slots["order_id"].Opportunistic)
}

func TestMissingSlot(t *testing.T) {
	conv := newConv()
	conv.CurrentIntent = nlu.IntentTrackOrder

	missing := MissingSlot(conv)
	require.NotNil(t, missing)
	assert.Equal(t, "order_id", missing.Name)

	conv.Slots["order_id"] = model.Slot{Name: "order_id", Value: "12345"}
	assert.Nil(t, MissingSlot(conv))

	// Intents without required slots never report missing ones.
	conv2 := newConv()
	conv2.CurrentIntent = nlu.IntentGreeting
	assert.Nil(t, MissingSlot(conv2))
}

func TestWindowBounded(t *testing.T) {
	m := NewContextManager(3, 0.5, -0.6)
	conv := newConv()

	for i := 0; i < 5; i++ {
		m.Merge(conv, turn(conv, fmt.Sprintf("message %d", i)), model.UnderstandingResult{
			Intent: model.IntentUnknown,
		})
	}

	window := m.Window(conv)
	require.Len(t, window, 3)
	assert.Equal(t, uint64(3), window[0].Sequence)
	assert.Equal(t, uint64(5), window[2].Sequence)

	// Full history stays on the conversation.
	assert.Len(t, conv.Turns, 5)
}
