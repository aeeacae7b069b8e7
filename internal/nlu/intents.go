// Package nlu implements the per-turn understanding pipeline: intent
// classification, entity extraction and sentiment scoring.
package nlu

import (
	"strings"
)

// SlotSpec describes one slot an intent requires before it can be acted on.
type SlotSpec struct {
	Name       string
	EntityType string
	// Prompt is the targeted clarifying question asked when the slot is
	// missing.
	Prompt string
}

// IntentSpec is one entry of the closed intent catalog.
type IntentSpec struct {
	Label      string
	Keywords   []string
	Confidence float64

	// RequiredSlots must all be filled before the policy reaches Ready.
	RequiredSlots []SlotSpec

	// Tool is the integration dispatched once the intent is Ready. Empty
	// means the intent is answered directly.
	Tool string

	// ToolFallback marks intents whose tool failure still has an
	// automated answer; without it, integration failure escalates.
	ToolFallback bool
}

// Intent labels of the closed set. Classifier output below the confidence
// threshold is forced to model.IntentUnknown.
const (
	IntentTrackOrder   = "track_order"
	IntentProductInfo  = "product_info"
	IntentBilling      = "billing"
	IntentTechSupport  = "technical_support"
	IntentComplaint    = "complaint"
	IntentCancelOrder  = "cancel_order"
	IntentGreeting     = "greeting"
	IntentThanks       = "thanks"
	IntentGeneral      = "general_inquiry"
)

// catalog is the closed intent set with per-intent keyword confidence,
// required slots and tool bindings.
var catalog = []IntentSpec{
	{
		Label:      IntentTrackOrder,
		Keywords:   []string{"order", "status", "tracking", "track", "delivery", "shipment", "package"},
		Confidence: 0.95,
		RequiredSlots: []SlotSpec{
			{Name: "order_id", EntityType: "order_id", Prompt: "Could you share your order number? For example: #12345."},
		},
		Tool: "order_lookup",
	},
	{
		Label:      IntentCancelOrder,
		Keywords:   []string{"cancel", "cancellation"},
		Confidence: 0.9,
		RequiredSlots: []SlotSpec{
			{Name: "order_id", EntityType: "order_id", Prompt: "Which order would you like to cancel? Please share the order number."},
		},
		Tool: "order_cancel",
	},
	{
		Label:      IntentBilling,
		Keywords:   []string{"invoice", "bill", "billing", "charge", "charged", "payment", "refund"},
		Confidence: 0.88,
		RequiredSlots: []SlotSpec{
			{Name: "invoice_id", EntityType: "invoice_id", Prompt: "Can you give me the invoice number the question is about?"},
		},
		Tool:         "invoice_lookup",
		ToolFallback: true,
	},
	{
		Label:      IntentTechSupport,
		Keywords:   []string{"problem", "broken", "defect", "error", "crash", "support", "not working", "doesn't work"},
		Confidence: 0.92,
	},
	{
		Label:      IntentComplaint,
		Keywords:   []string{"complaint", "unacceptable", "disappointed", "terrible", "awful", "worst", "ridiculous"},
		Confidence: 0.85,
	},
	{
		Label:      IntentProductInfo,
		Keywords:   []string{"product", "price", "catalog", "catalogue", "details", "availability", "in stock"},
		Confidence: 0.9,
	},
	{
		Label:      IntentGreeting,
		Keywords:   []string{"hello", "hi ", "hey", "good morning", "good afternoon", "good evening"},
		Confidence: 0.98,
	},
	{
		Label:      IntentThanks,
		Keywords:   []string{"thanks", "thank you", "appreciate"},
		Confidence: 0.97,
	},
}

// humanKeywords mark an explicit request for a human agent. They bypass the
// confidence gate entirely.
var humanKeywords = []string{
	"human", "agent", "representative", "real person",
	"speak to someone", "talk to someone", "manager", "supervisor",
}

// Lookup returns the catalog entry for a label.
func Lookup(label string) (IntentSpec, bool) {
	for _, spec := range catalog {
		if spec.Label == label {
			return spec, true
		}
	}
	return IntentSpec{}, false
}

// Labels returns every label of the closed set, unknown excluded.
func Labels() []string {
	out := make([]string, 0, len(catalog)+1)
	for _, spec := range catalog {
		out = append(out, spec.Label)
	}
	return append(out, IntentGeneral)
}

// classifyIntent picks the first catalog entry with a keyword hit, falling
// back to a low-confidence general inquiry.
func classifyIntent(text string) (string, float64) {
	lower := strings.ToLower(text)
	for _, spec := range catalog {
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				return spec.Label, spec.Confidence
			}
		}
	}
	return IntentGeneral, 0.5
}

// requestsHuman reports whether the text explicitly asks for a human.
func requestsHuman(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range humanKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
