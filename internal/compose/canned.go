package compose

import (
	"fmt"
	"strings"

	"github.com/supportstack/conversation-core/internal/nlu"
)

// Canned per-intent replies, used when no LLM backend is configured or when
// generation degrades.
var cannedResponses = map[string]string{
	nlu.IntentGreeting: "Hello! I'm the virtual assistant. I can help with orders, products, " +
		"billing, technical support and more. What can I do for you today?",
	nlu.IntentThanks: "Happy to help! If there's anything else you need, I'm right here.",
	nlu.IntentTrackOrder: "I've looked up your order. Here's the latest I have on it.",
	nlu.IntentCancelOrder: "Your cancellation request has been processed.",
	nlu.IntentProductInfo: "We have a wide range of products available. Tell me which product " +
		"you're interested in and I can share details on features, pricing and availability.",
	nlu.IntentBilling: "Billing questions matter. I can help with invoices, payment methods, " +
		"due dates and adjustments. What exactly would you like to know?",
	nlu.IntentTechSupport: "Sorry about the trouble! Let's get this fixed. Can you describe the " +
		"problem in a bit more detail - which product, and what exactly is happening?",
	nlu.IntentComplaint: "I'm sorry to hear that. Your feedback has been recorded and I want to " +
		"make this right. Can you tell me more about what went wrong?",
}

const cannedDefault = "Thanks for reaching out. Could you tell me a bit more about what you need? " +
	"I can help with orders, products, billing and technical support."

// cannedResponse returns the deterministic reply for an intent, appending
// any integration lookup facts.
func cannedResponse(intent string, facts map[string]string) string {
	text, ok := cannedResponses[intent]
	if !ok {
		text = cannedDefault
	}
	if len(facts) == 0 {
		return text
	}

	var sb strings.Builder
	sb.WriteString(text)
	for _, k := range sortedStringKeys(facts) {
		fmt.Fprintf(&sb, " %s: %s.", strings.ReplaceAll(k, "_", " "), facts[k])
	}
	return sb.String()
}

// Suggested follow-up actions per intent, offered alongside the reply.
var suggestions = map[string][]string{
	nlu.IntentTrackOrder:  {"Track another order", "Get delivery notifications", "Talk to an agent"},
	nlu.IntentProductInfo: {"See similar products", "Check payment options", "Talk to sales"},
	nlu.IntentTechSupport: {"Open the troubleshooting guide", "Watch the setup video", "Talk to a technician"},
	nlu.IntentBilling:     {"View payment methods", "Download invoice copy", "Discuss an adjustment"},
	nlu.IntentComplaint:   {"File a formal ticket", "Talk to a supervisor", "Review our refund policy"},
	nlu.IntentCancelOrder: {"Track another order", "See our refund policy", "Talk to an agent"},
}

var defaultSuggestions = []string{"Ask another question", "Talk to an agent", "Start over"}

// suggestionsFor returns the follow-up actions for an intent.
func suggestionsFor(intent string) []string {
	if s, ok := suggestions[intent]; ok {
		return s
	}
	return defaultSuggestions
}
