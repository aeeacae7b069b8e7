// Package channel normalizes raw inbound payloads into canonical turns.
package channel

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/supportstack/conversation-core/internal/model"
)

// ErrMalformed marks payloads that fail structural validation. The
// orchestrator converts it to a graceful "please rephrase" reply, never a
// crash.
var ErrMalformed = errors.New("malformed input")

// ErrUnknownChannel is returned for channel tags outside the registry.
var ErrUnknownChannel = errors.New("unknown channel")

// Channel validates and normalizes inbound payloads for one transport.
// Variants (web, WhatsApp, Teams) are interface implementations, not
// inheritance.
type Channel interface {
	// Name returns the channel tag.
	Name() model.Channel

	// Normalize extracts canonical message text from the raw request,
	// applying channel-specific structural validation.
	Normalize(req *model.TurnRequest) (string, error)
}

// Registry holds the configured channels. It is built once at startup and
// treated as immutable.
type Registry struct {
	channels map[model.Channel]Channel
	maxBytes int
}

// NewRegistry builds a registry over the standard channel set with the
// given message size cap.
func NewRegistry(maxBytes int) *Registry {
	r := &Registry{
		channels: make(map[model.Channel]Channel),
		maxBytes: maxBytes,
	}
	for _, ch := range []Channel{webChannel{}, whatsAppChannel{}, teamsChannel{}} {
		r.channels[ch.Name()] = ch
	}
	return r
}

// Normalize produces a turn-ready text for the request's channel, enforcing
// the global size cap and channel validation.
func (r *Registry) Normalize(req *model.TurnRequest) (string, error) {
	ch, ok := r.channels[req.Channel]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, req.Channel)
	}

	text, err := ch.Normalize(req)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty message", ErrMalformed)
	}
	if len(text) > r.maxBytes {
		return "", fmt.Errorf("%w: message exceeds %d bytes", ErrMalformed, r.maxBytes)
	}
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%w: message is not valid UTF-8", ErrMalformed)
	}
	return text, nil
}

// Known reports whether the tag names a registered channel.
func (r *Registry) Known(tag model.Channel) bool {
	_, ok := r.channels[tag]
	return ok
}
