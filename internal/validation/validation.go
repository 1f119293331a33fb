package validation

import (
	"encoding/json"
	"fmt"

	"sendqueue/internal/constants"
	"sendqueue/internal/errors"
)

const maxChatIDLength = 256

// ValidateChatID validates chat ID format and length
func ValidateChatID(chatID string) error {
	if chatID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "chat ID cannot be empty")
	}

	if len(chatID) > maxChatIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("chat ID too long (max %d characters)", maxChatIDLength))
	}

	// Control characters could break logs and queries
	for _, char := range chatID {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return errors.New(errors.ErrCodeInvalidInput, "chat ID contains invalid characters")
		}
	}

	return nil
}

// ValidatePayload validates that a payload is well-formed JSON within the size
// limit. The queue never interprets payload contents beyond this.
func ValidatePayload(payload json.RawMessage, maxBytes int) error {
	if len(payload) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "payload cannot be empty")
	}

	if maxBytes <= 0 {
		maxBytes = constants.DefaultMaxPayloadBytes
	}
	if len(payload) > maxBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("payload too large (max %d bytes)", maxBytes))
	}

	if !json.Valid(payload) {
		return errors.New(errors.ErrCodeInvalidInput, "payload is not valid JSON")
	}

	return nil
}
