package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateUserID validates an end-user identifier.
func ValidateUserID(id string) error {
	if len(id) == 0 {
		return errors.New("user ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("user ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("user ID must be valid UTF-8")
	}
	return nil
}

// ValidateMessageID validates a client-supplied delivery identifier.
// Channels mint these themselves, so any short opaque token is accepted.
func ValidateMessageID(id string) error {
	if len(id) > 128 {
		return errors.New("message ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("message ID must be valid UTF-8")
	}
	return nil
}
