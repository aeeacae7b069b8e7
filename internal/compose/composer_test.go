package compose

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportstack/conversation-core/internal/integration"
	"github.com/supportstack/conversation-core/internal/llm"
	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/internal/nlu"
	"github.com/supportstack/conversation-core/pkg/logger"
)

type stubLLM struct {
	content string
	err     error
	gotReq  *llm.CompletionRequest
}

func (s *stubLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content, Model: "stub"}, nil
}

func (s *stubLLM) Name() string { return "stub" }

func testConv() *model.Conversation {
	key := model.ConversationKey{UserID: "u1", Channel: model.ChannelWeb}
	return model.NewConversation(key, time.Now())
}

func TestComposeEscalateUsesFixedText(t *testing.T) {
	// Even with a working LLM, hand-off text is never generated.
	stub := &stubLLM{content: "creative reply"}
	c := New(stub, integration.NewRegistry(time.Second), "", logger.NewNop())

	msg, err := c.Compose(context.Background(), model.PolicyDecision{Action: model.ActionEscalate}, testConv(), nil)
	require.NoError(t, err)
	assert.Equal(t, HandoffMessage, msg.Text)
	assert.True(t, msg.Escalated)
	assert.Nil(t, stub.gotReq)
}

func TestComposeClarify(t *testing.T) {
	c := New(nil, integration.NewRegistry(time.Second), "", logger.NewNop())

	t.Run("slot prompt from catalog", func(t *testing.T) {
		conv := testConv()
		conv.CurrentIntent = nlu.IntentTrackOrder

		msg, err := c.Compose(context.Background(), model.PolicyDecision{
			Action: model.ActionClarify, ClarifySlot: "order_id", Reason: "missing_slot",
		}, conv, nil)
		require.NoError(t, err)
		assert.Contains(t, msg.Text, "order number")
	})

	t.Run("contradiction names the value on file", func(t *testing.T) {
		conv := testConv()
		conv.CurrentIntent = nlu.IntentTrackOrder
		conv.Slots["order_id"] = model.Slot{Name: "order_id", Value: "11111"}

		msg, err := c.Compose(context.Background(), model.PolicyDecision{
			Action: model.ActionClarify, ClarifySlot: "order_id", Reason: "contradiction",
		}, conv, nil)
		require.NoError(t, err)
		assert.Contains(t, msg.Text, "11111")
	})

	t.Run("unclear intent asks to rephrase", func(t *testing.T) {
		msg, err := c.Compose(context.Background(), model.PolicyDecision{
			Action: model.ActionClarify, Reason: "unknown_intent",
		}, testConv(), nil)
		require.NoError(t, err)
		assert.Equal(t, clarifyIntentMessage, msg.Text)
	})
}

func TestComposeInvoke(t *testing.T) {
	t.Run("folds result and grounds reply", func(t *testing.T) {
		reg := integration.NewRegistry(time.Second)
		reg.RegisterFunc("order_lookup", func(ctx context.Context, args map[string]string) (*integration.Result, error) {
			assert.Equal(t, "12345", args["order_id"])
			return &integration.Result{
				Slots: map[string]string{"order_status": "in_transit"},
				Facts: map[string]string{"order 12345": "in transit"},
			}, nil
		})
		c := New(nil, reg, "", logger.NewNop())

		conv := testConv()
		conv.CurrentIntent = nlu.IntentTrackOrder

		msg, err := c.Compose(context.Background(), model.PolicyDecision{
			Action: model.ActionInvoke, Tool: "order_lookup",
			Args: map[string]string{"order_id": "12345"},
		}, conv, nil)
		require.NoError(t, err)
		assert.Contains(t, msg.Text, "in transit")
		assert.Equal(t, "in_transit", conv.Slots["order_status"].Value)
	})

	t.Run("failure with fallback degrades", func(t *testing.T) {
		reg := integration.NewRegistry(time.Second)
		reg.RegisterFunc("invoice_lookup", func(ctx context.Context, args map[string]string) (*integration.Result, error) {
			return nil, errors.New("backend down")
		})
		c := New(nil, reg, "", logger.NewNop())

		conv := testConv()
		conv.CurrentIntent = nlu.IntentBilling

		msg, err := c.Compose(context.Background(), model.PolicyDecision{
			Action: model.ActionInvoke, Tool: "invoice_lookup",
		}, conv, nil)
		require.NoError(t, err)
		assert.Equal(t, fallbackMessage, msg.Text)
	})

	t.Run("failure without fallback surfaces for escalation", func(t *testing.T) {
		reg := integration.NewRegistry(time.Second)
		reg.RegisterFunc("order_cancel", func(ctx context.Context, args map[string]string) (*integration.Result, error) {
			return nil, errors.New("backend down")
		})
		c := New(nil, reg, "", logger.NewNop())

		conv := testConv()
		conv.CurrentIntent = nlu.IntentCancelOrder

		_, err := c.Compose(context.Background(), model.PolicyDecision{
			Action: model.ActionInvoke, Tool: "order_cancel",
		}, conv, nil)
		var ifail *integration.Failure
		require.ErrorAs(t, err, &ifail)
		assert.Equal(t, "order_cancel", ifail.Tool)
	})

	t.Run("unknown tool surfaces as failure", func(t *testing.T) {
		c := New(nil, integration.NewRegistry(time.Second), "", logger.NewNop())

		conv := testConv()
		conv.CurrentIntent = nlu.IntentTrackOrder

		_, err := c.Compose(context.Background(), model.PolicyDecision{
			Action: model.ActionInvoke, Tool: "order_lookup",
		}, conv, nil)
		var ifail *integration.Failure
		require.ErrorAs(t, err, &ifail)
		assert.ErrorIs(t, err, integration.ErrUnknownTool)
	})
}

func TestComposeRespond(t *testing.T) {
	t.Run("llm reply used when available", func(t *testing.T) {
		stub := &stubLLM{content: "Here is your answer."}
		c := New(stub, integration.NewRegistry(time.Second), "test-model", logger.NewNop())

		conv := testConv()
		conv.CurrentIntent = nlu.IntentGreeting
		conv.Slots["order_id"] = model.Slot{Name: "order_id", Value: "12345"}

		msg, err := c.Compose(context.Background(), model.PolicyDecision{Action: model.ActionRespond}, conv,
			[]model.Turn{{Sequence: 1, Text: "hello"}})
		require.NoError(t, err)
		assert.Equal(t, "Here is your answer.", msg.Text)

		require.NotNil(t, stub.gotReq)
		require.NotEmpty(t, stub.gotReq.Messages)
		assert.Equal(t, "system", stub.gotReq.Messages[0].Role)
		assert.Contains(t, stub.gotReq.Messages[0].Content, "order_id: 12345")
	})

	t.Run("llm failure degrades to canned reply", func(t *testing.T) {
		stub := &stubLLM{err: errors.New("rate limited")}
		c := New(stub, integration.NewRegistry(time.Second), "test-model", logger.NewNop())

		conv := testConv()
		conv.CurrentIntent = nlu.IntentGreeting

		msg, err := c.Compose(context.Background(), model.PolicyDecision{Action: model.ActionRespond}, conv, nil)
		require.NoError(t, err)
		assert.Equal(t, cannedResponses[nlu.IntentGreeting], msg.Text)
	})

	t.Run("nil client uses canned reply", func(t *testing.T) {
		c := New(nil, integration.NewRegistry(time.Second), "", logger.NewNop())

		conv := testConv()
		msg, err := c.Compose(context.Background(), model.PolicyDecision{Action: model.ActionRespond}, conv, nil)
		require.NoError(t, err)
		assert.Equal(t, cannedDefault, msg.Text)
	})
}

func TestSuggestedActions(t *testing.T) {
	assert.Equal(t, suggestions[nlu.IntentTrackOrder], suggestionsFor(nlu.IntentTrackOrder))
	assert.Equal(t, defaultSuggestions, suggestionsFor("nonexistent"))
	assert.True(t, strings.Contains(strings.Join(suggestionsFor(""), " "), "agent"))
}
