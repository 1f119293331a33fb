package privacy

import (
	"fmt"
	"strings"
)

// MaskChatID masks a chat ID to show structure but hide sensitive parts
// Example: "1234567890@c.us" -> "******7890@c.us"
func MaskChatID(chatID string) string {
	if chatID == "" {
		return ""
	}

	// Keep the domain part of addressed chat IDs (number@c.us, room@server)
	if strings.Contains(chatID, "@") {
		parts := strings.SplitN(chatID, "@", 2)
		return maskString(parts[0], 4) + "@" + parts[1]
	}

	return maskString(chatID, 4)
}

// MaskQueueID shortens a queue entry id for logs.
func MaskQueueID(id int64) string {
	return fmt.Sprintf("q-%d", id)
}

// MaskDeliveredID masks a backend-assigned message ID while keeping enough
// for correlation during debugging.
func MaskDeliveredID(deliveredID string) string {
	if deliveredID == "" {
		return ""
	}
	if len(deliveredID) <= 8 {
		return deliveredID
	}
	return deliveredID[:8] + "..."
}

func maskString(s string, visible int) string {
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-visible) + s[len(s)-visible:]
}
