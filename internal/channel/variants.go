package channel

import (
	"fmt"
	"strings"

	"github.com/supportstack/conversation-core/internal/model"
)

// webChannel accepts plain text from the web widget.
type webChannel struct{}

func (webChannel) Name() model.Channel { return model.ChannelWeb }

func (webChannel) Normalize(req *model.TurnRequest) (string, error) {
	return req.Text, nil
}

// whatsAppChannel expects the WhatsApp webhook shape: text lives either in
// the request text or in payload["body"], and a sender phone number must be
// present in the metadata.
type whatsAppChannel struct{}

func (whatsAppChannel) Name() model.Channel { return model.ChannelWhatsApp }

func (whatsAppChannel) Normalize(req *model.TurnRequest) (string, error) {
	if req.Metadata["phone"] == "" {
		return "", fmt.Errorf("%w: whatsapp message missing sender phone", ErrMalformed)
	}

	text := req.Text
	if text == "" {
		if body, ok := req.Payload["body"].(string); ok {
			text = body
		}
	}
	return text, nil
}

// teamsChannel expects Teams activity payloads. Text may carry HTML-ish
// mention tags which are stripped; a tenant id is required in the metadata.
type teamsChannel struct{}

func (teamsChannel) Name() model.Channel { return model.ChannelTeams }

func (teamsChannel) Normalize(req *model.TurnRequest) (string, error) {
	if req.Metadata["tenant"] == "" {
		return "", fmt.Errorf("%w: teams message missing tenant", ErrMalformed)
	}

	text := req.Text
	if text == "" {
		if body, ok := req.Payload["text"].(string); ok {
			text = body
		}
	}
	return stripMentions(text), nil
}

// stripMentions removes <at>...</at> bot-mention tags from Teams text.
func stripMentions(text string) string {
	for {
		start := strings.Index(text, "<at>")
		if start < 0 {
			return text
		}
		end := strings.Index(text[start:], "</at>")
		if end < 0 {
			return text[:start] + text[start+len("<at>"):]
		}
		text = text[:start] + text[start+end+len("</at>"):]
	}
}
