package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/internal/nlu"
)

func newPolicy() *Policy {
	return NewPolicy(0.7, -0.5, 3, 2)
}

// runTurn pushes one turn through merge and policy, the way the
// orchestrator does.
func runTurn(t *testing.T, p *Policy, m *ContextManager, conv *model.Conversation, text string, res model.UnderstandingResult) model.PolicyDecision {
	t.Helper()
	out := m.Merge(conv, turn(conv, text), res)
	return p.Evaluate(conv, res, out, nlu.EndSignal(text))
}

func TestPolicyClarifiesMissingSlot(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	dec := runTurn(t, p, m, conv, "where is my order?", model.UnderstandingResult{
		Intent: nlu.IntentTrackOrder, Confidence: 0.95,
	})

	assert.Equal(t, model.ActionClarify, dec.Action)
	assert.Equal(t, "order_id", dec.ClarifySlot)
	assert.Equal(t, "missing_slot", dec.Reason)
	assert.Equal(t, model.StateClarifying, conv.State)
	assert.Equal(t, "order_id", conv.PendingSlot)
}

func TestPolicyReadyInvokesTool(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	dec := runTurn(t, p, m, conv, "track order #12345", model.UnderstandingResult{
		Intent: nlu.IntentTrackOrder, Confidence: 0.95,
		Entities: []model.Entity{{Type: "order_id", Value: "12345"}},
	})

	assert.Equal(t, model.ActionInvoke, dec.Action)
	assert.Equal(t, "order_lookup", dec.Tool)
	assert.Equal(t, "12345", dec.Args["order_id"])
	assert.Equal(t, model.StateReady, conv.State)
}

func TestPolicyClarifyingAnswerReachesReady(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	dec := runTurn(t, p, m, conv, "where is my order?", model.UnderstandingResult{
		Intent: nlu.IntentTrackOrder, Confidence: 0.95,
	})
	require.Equal(t, model.ActionClarify, dec.Action)

	// The answer is a bare number: no recognizable intent of its own.
	dec = runTurn(t, p, m, conv, "12345", model.UnderstandingResult{
		Intent: model.IntentUnknown, Confidence: 0.5,
	})

	assert.Equal(t, model.ActionInvoke, dec.Action)
	assert.Equal(t, "order_lookup", dec.Tool)
	assert.Equal(t, "12345", dec.Args["order_id"])
	// The decision confidence is inherited from the recognized intent,
	// not the low-confidence slot answer.
	assert.GreaterOrEqual(t, dec.Confidence, 0.7)
	assert.Equal(t, 0, conv.ClarifyAttempts)
}

func TestPolicyUnknownIntentClarifies(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	dec := runTurn(t, p, m, conv, "hmm", model.UnderstandingResult{
		Intent: model.IntentUnknown, Confidence: 0.5,
	})

	assert.Equal(t, model.ActionClarify, dec.Action)
	assert.Equal(t, "unknown_intent", dec.Reason)
	assert.Equal(t, model.StateClarifying, conv.State)
}

func TestPolicyClarifyExhaustedEscalates(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	unknown := model.UnderstandingResult{Intent: model.IntentUnknown, Confidence: 0.5}

	dec := runTurn(t, p, m, conv, "gibberish one", unknown)
	require.Equal(t, model.ActionClarify, dec.Action)
	dec = runTurn(t, p, m, conv, "gibberish two", unknown)
	require.Equal(t, model.ActionClarify, dec.Action)

	// Retry limit of 2 clarifying questions is now exhausted.
	dec = runTurn(t, p, m, conv, "gibberish three", unknown)
	assert.Equal(t, model.ActionEscalate, dec.Action)
	assert.Equal(t, ReasonClarifyExhausted, dec.Reason)
	assert.True(t, conv.Escalated)
}

func TestPolicyHumanRequestEscalates(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	dec := runTurn(t, p, m, conv, "let me talk to a human", model.UnderstandingResult{
		Intent: model.IntentUnknown, Confidence: 0.5, HumanRequested: true,
	})

	assert.Equal(t, model.ActionEscalate, dec.Action)
	assert.Equal(t, ReasonHumanRequested, dec.Reason)
	assert.True(t, conv.Escalated)
	assert.Equal(t, model.StateEscalated, conv.State)
}

func TestPolicyNegativeStreakEscalates(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	// A pleasant start keeps the running average above the floor so the
	// streak trigger, not the average, is what fires.
	dec := runTurn(t, p, m, conv, "hi, great service so far", model.UnderstandingResult{
		Intent: nlu.IntentGreeting, Confidence: 0.98, Sentiment: 0.8,
	})
	require.NotEqual(t, model.ActionEscalate, dec.Action)

	angry := model.UnderstandingResult{Intent: model.IntentUnknown, Confidence: 0.5, Sentiment: -0.6}

	dec = runTurn(t, p, m, conv, "bad", angry)
	require.NotEqual(t, model.ActionEscalate, dec.Action)
	dec = runTurn(t, p, m, conv, "worse", angry)
	require.NotEqual(t, model.ActionEscalate, dec.Action)

	// Third consecutive turn at or below the per-turn floor.
	dec = runTurn(t, p, m, conv, "awful", angry)
	assert.Equal(t, model.ActionEscalate, dec.Action)
	assert.Equal(t, ReasonNegativeStreak, dec.Reason)
	assert.True(t, conv.Escalated)
}

func TestPolicySentimentFloorEscalates(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	// A single furious first message never escalates on its own.
	dec := runTurn(t, p, m, conv, "this is a scam!!", model.UnderstandingResult{
		Intent: model.IntentUnknown, Confidence: 0.5, Sentiment: -1,
	})
	require.NotEqual(t, model.ActionEscalate, dec.Action)

	dec = runTurn(t, p, m, conv, "totally useless!!", model.UnderstandingResult{
		Intent: model.IntentUnknown, Confidence: 0.5, Sentiment: -1,
	})
	assert.Equal(t, model.ActionEscalate, dec.Action)
	assert.Equal(t, ReasonSentimentFloor, dec.Reason)
}

func TestPolicyComplaintEscalates(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	dec := runTurn(t, p, m, conv, "this is unacceptable, I am filing a complaint", model.UnderstandingResult{
		Intent: nlu.IntentComplaint, Confidence: 0.85, Sentiment: -0.4,
	})

	assert.Equal(t, model.ActionEscalate, dec.Action)
	assert.Equal(t, ReasonComplaint, dec.Reason)
}

func TestPolicyEscalationMonotonic(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	dec := runTurn(t, p, m, conv, "agent please", model.UnderstandingResult{
		Intent: model.IntentUnknown, Confidence: 0.5, HumanRequested: true,
	})
	require.True(t, conv.Escalated)
	require.Equal(t, model.ActionEscalate, dec.Action)

	// Even a perfectly actionable turn stays escalated.
	dec = runTurn(t, p, m, conv, "track order #12345", model.UnderstandingResult{
		Intent: nlu.IntentTrackOrder, Confidence: 0.95,
		Entities: []model.Entity{{Type: "order_id", Value: "12345"}},
	})
	assert.Equal(t, model.ActionEscalate, dec.Action)
	assert.Equal(t, ReasonAwaitingHuman, dec.Reason)
	assert.True(t, conv.Escalated)
}

func TestPolicyResolveReturnsToAutomation(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	runTurn(t, p, m, conv, "agent please", model.UnderstandingResult{
		Intent: model.IntentUnknown, Confidence: 0.5, HumanRequested: true,
	})
	require.True(t, conv.Escalated)

	p.Resolve(conv)
	assert.False(t, conv.Escalated)
	assert.Empty(t, conv.EscalationReason)
	assert.Equal(t, model.StateGathering, conv.State)
	assert.Equal(t, 0, conv.NegativeStreak)
	assert.GreaterOrEqual(t, conv.Sentiment, 0.0)

	// Automation handles the next turn normally.
	dec := runTurn(t, p, m, conv, "track order #12345", model.UnderstandingResult{
		Intent: nlu.IntentTrackOrder, Confidence: 0.95,
		Entities: []model.Entity{{Type: "order_id", Value: "12345"}},
	})
	assert.Equal(t, model.ActionInvoke, dec.Action)
}

func TestPolicyResolveNoopWhenNotEscalated(t *testing.T) {
	p := newPolicy()
	conv := newConv()
	conv.State = model.StateClarifying

	p.Resolve(conv)
	assert.Equal(t, model.StateClarifying, conv.State)
}

func TestPolicyEndSignalCloses(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	dec := runTurn(t, p, m, conv, "thanks, bye", model.UnderstandingResult{
		Intent: nlu.IntentThanks, Confidence: 0.97, Sentiment: 0.4,
	})

	assert.Equal(t, model.ActionRespond, dec.Action)
	assert.Equal(t, model.StateClosed, conv.State)
	assert.True(t, conv.Closed())
	require.NotNil(t, conv.ClosedAt)
}

func TestPolicyEndSignalClosesEscalatedConversation(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	dec := runTurn(t, p, m, conv, "agent please", model.UnderstandingResult{
		Intent: model.IntentUnknown, Confidence: 0.5, HumanRequested: true,
	})
	require.Equal(t, model.ActionEscalate, dec.Action)

	// Waiting for a human does not trap the user: an explicit goodbye
	// still ends the conversation in band.
	dec = runTurn(t, p, m, conv, "never mind, bye", model.UnderstandingResult{
		Intent: model.IntentUnknown, Confidence: 0.5,
	})
	assert.Equal(t, model.ActionRespond, dec.Action)
	assert.Equal(t, model.StateClosed, conv.State)
	require.NotNil(t, conv.ClosedAt)
}

func TestPolicyContradictionClarifies(t *testing.T) {
	p := newPolicy()
	m := NewContextManager(10, 0.5, -0.6)
	conv := newConv()

	runTurn(t, p, m, conv, "track order #11111", model.UnderstandingResult{
		Intent: nlu.IntentTrackOrder, Confidence: 0.95,
		Entities: []model.Entity{{Type: "order_id", Value: "11111"}},
	})

	dec := runTurn(t, p, m, conv, "actually it is #22222", model.UnderstandingResult{
		Intent: model.IntentUnknown, Confidence: 0.5,
		Entities: []model.Entity{{Type: "order_id", Value: "22222"}},
	})

	assert.Equal(t, model.ActionClarify, dec.Action)
	assert.Equal(t, "contradiction", dec.Reason)
	assert.Equal(t, "11111", conv.Slots["order_id"].Value)
	assert.False(t, conv.Contradiction, "flag consumed by the clarify decision")
}
