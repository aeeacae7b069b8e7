package nlu

import (
	"context"
	"fmt"
	"strings"

	"github.com/supportstack/conversation-core/internal/llm"
	"github.com/supportstack/conversation-core/internal/model"
)

// LLMRefiner asks the language-model backend to pick an intent from the
// closed set when the keyword classifier is unsure. Any answer outside the
// candidate set maps to unknown.
type LLMRefiner struct {
	client llm.Client
	model  string
}

// NewLLMRefiner creates a refiner over an LLM client.
func NewLLMRefiner(client llm.Client, model string) *LLMRefiner {
	return &LLMRefiner{client: client, model: model}
}

// RefineIntent classifies the text into one of the candidate labels.
func (r *LLMRefiner) RefineIntent(ctx context.Context, text string, candidates []string) (string, float64, error) {
	prompt := fmt.Sprintf(
		"Classify the customer message into exactly one of these intents: %s.\n"+
			"Reply with only the intent label, nothing else.\n\nMessage: %s",
		strings.Join(candidates, ", "), text,
	)

	resp, err := r.client.Complete(ctx, &llm.CompletionRequest{
		Model:     r.model,
		Messages:  []llm.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens: 16,
	})
	if err != nil {
		return model.IntentUnknown, 0, err
	}

	label := strings.ToLower(strings.TrimSpace(resp.Content))
	for _, c := range candidates {
		if label == c {
			// The model picked from the closed set; treat that as a
			// high-confidence call but below the keyword ceiling.
			return c, 0.8, nil
		}
	}
	return model.IntentUnknown, 0, nil
}
