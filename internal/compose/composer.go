// Package compose turns policy decisions into outbound messages, using the
// language-model backend for generation with canned fallbacks.
package compose

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/supportstack/conversation-core/internal/integration"
	"github.com/supportstack/conversation-core/internal/llm"
	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/internal/nlu"
	"github.com/supportstack/conversation-core/pkg/logger"
	"github.com/supportstack/conversation-core/pkg/metrics"
)

// HandoffMessage is the fixed, audited text emitted when a conversation is
// handed to a human. Automated generation is suppressed from then on.
const HandoffMessage = "I'm connecting you with one of our support specialists who can help you further. " +
	"Please hold on - a human agent will pick this conversation up shortly."

// fallbackMessage is the canned reply for degraded generation. Raw backend
// diagnostics never reach the user.
const fallbackMessage = "Sorry, I'm having trouble answering right now. Could you try again in a moment?"

// clarifyIntentMessage asks the user to rephrase when the intent itself is
// unclear.
const clarifyIntentMessage = "I want to make sure I help with the right thing. Could you rephrase what you need? " +
	"I can assist with orders, products, billing, technical support and cancellations."

// Composer builds outbound messages from policy decisions.
type Composer struct {
	llmClient llm.Client
	registry  *integration.Registry
	model     string
	logger    *logger.Logger
}

// New creates a composer. llmClient may be nil, in which case every reply
// comes from the deterministic templates.
func New(llmClient llm.Client, registry *integration.Registry, model string, log *logger.Logger) *Composer {
	return &Composer{
		llmClient: llmClient,
		registry:  registry,
		model:     model,
		logger:    log,
	}
}

// Compose turns a policy decision into an outbound message.
//
// For Invoke decisions the named integration runs first and its structured
// result is folded back into the conversation's slots before generation.
// Integration failure on an intent without an automated fallback is
// returned as *integration.Failure for the policy to escalate on.
func (c *Composer) Compose(ctx context.Context, decision model.PolicyDecision, conv *model.Conversation, window []model.Turn) (model.OutboundMessage, error) {
	switch decision.Action {
	case model.ActionEscalate:
		return model.OutboundMessage{
			Text:             HandoffMessage,
			Escalated:        true,
			SuggestedActions: suggestionsFor(""),
		}, nil

	case model.ActionClarify:
		return model.OutboundMessage{
			Text:             c.clarifyQuestion(decision, conv),
			SuggestedActions: suggestionsFor(conv.CurrentIntent),
		}, nil

	case model.ActionInvoke:
		return c.invokeAndRespond(ctx, decision, conv, window)

	default:
		text := c.generate(ctx, conv, window, nil)
		return model.OutboundMessage{
			Text:             text,
			SuggestedActions: suggestionsFor(conv.CurrentIntent),
		}, nil
	}
}

// clarifyQuestion builds a targeted single-question prompt rather than
// open-ended text.
func (c *Composer) clarifyQuestion(decision model.PolicyDecision, conv *model.Conversation) string {
	if decision.Reason == "contradiction" && decision.ClarifySlot != "" {
		if slot, ok := conv.Slots[decision.ClarifySlot]; ok {
			return fmt.Sprintf("Just to double-check: I have %s %s on file, but it sounds like that may have changed. Which one should I use?",
				strings.ReplaceAll(decision.ClarifySlot, "_", " "), slot.Value)
		}
	}

	if decision.ClarifySlot != "" {
		if spec, ok := nlu.Lookup(conv.CurrentIntent); ok {
			for _, s := range spec.RequiredSlots {
				if s.Name == decision.ClarifySlot {
					return s.Prompt
				}
			}
		}
	}

	return clarifyIntentMessage
}

// invokeAndRespond dispatches the bound tool, folds its result into slots,
// then generates the grounded reply.
func (c *Composer) invokeAndRespond(ctx context.Context, decision model.PolicyDecision, conv *model.Conversation, window []model.Turn) (model.OutboundMessage, error) {
	res, err := c.registry.Invoke(ctx, decision.Tool, decision.Args)
	if err != nil {
		spec, _ := nlu.Lookup(conv.CurrentIntent)
		if spec.ToolFallback {
			c.logger.Warn("integration failed, using fallback reply",
				zap.String("tool", decision.Tool), zap.Error(err))
			return model.OutboundMessage{
				Text:             fallbackMessage,
				SuggestedActions: suggestionsFor(conv.CurrentIntent),
			}, nil
		}
		// No automated fallback: surface the failure for escalation.
		return model.OutboundMessage{}, err
	}

	// Fold the structured result back into slots.
	now := time.Now()
	for name, value := range res.Slots {
		conv.Slots[name] = model.Slot{
			Name:       name,
			Type:       name,
			Value:      value,
			SourceTurn: conv.Version,
			FilledAt:   now,
		}
	}

	text := c.generate(ctx, conv, window, res.Facts)
	return model.OutboundMessage{
		Text:             text,
		SuggestedActions: suggestionsFor(conv.CurrentIntent),
	}, nil
}

// generate produces the reply text, via the LLM backend when configured,
// degrading to deterministic templates on any failure.
func (c *Composer) generate(ctx context.Context, conv *model.Conversation, window []model.Turn, facts map[string]string) string {
	if c.llmClient == nil {
		return cannedResponse(conv.CurrentIntent, facts)
	}

	start := time.Now()
	resp, err := c.llmClient.Complete(ctx, &llm.CompletionRequest{
		Model:    c.model,
		Messages: c.prompt(conv, window, facts),
	})
	if err != nil {
		metrics.RecordLLMRequest(c.model, "error", time.Since(start).Seconds(), 0, 0)
		c.logger.Warn("generation failed, using canned reply", zap.Error(err))
		return cannedResponse(conv.CurrentIntent, facts)
	}

	metrics.RecordLLMRequest(resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return cannedResponse(conv.CurrentIntent, facts)
	}
	return text
}

// prompt assembles the generation request: system grounding with filled
// slots and integration facts, then the bounded context window.
func (c *Composer) prompt(conv *model.Conversation, window []model.Turn, facts map[string]string) []llm.ChatMessage {
	var sb strings.Builder
	sb.WriteString("You are a customer-support assistant. Answer briefly and helpfully, using only the facts below. ")
	sb.WriteString("If the facts do not answer the question, say so and offer to connect the customer with a human agent.\n")

	if len(conv.Slots) > 0 {
		sb.WriteString("\nKnown details:\n")
		for _, name := range sortedKeys(conv.Slots) {
			fmt.Fprintf(&sb, "- %s: %s\n", name, conv.Slots[name].Value)
		}
	}
	if len(facts) > 0 {
		sb.WriteString("\nLookup results:\n")
		for _, k := range sortedStringKeys(facts) {
			fmt.Fprintf(&sb, "- %s: %s\n", k, facts[k])
		}
	}

	messages := []llm.ChatMessage{{Role: "system", Content: sb.String()}}
	for _, t := range window {
		messages = append(messages, llm.ChatMessage{Role: "user", Content: t.Text})
	}
	return messages
}

func sortedKeys(m map[string]model.Slot) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
