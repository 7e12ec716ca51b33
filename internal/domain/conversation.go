package domain

import (
	"fmt"
	"strings"
)

// KeySeparator joins the two participants of a direct conversation. It is
// reserved: no user or group name may contain it, so a direct key always
// splits back into exactly one pair and never equals a group name.
const KeySeparator = "|"

// CheckName rejects blank names and names containing KeySeparator.
func CheckName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if strings.Contains(name, KeySeparator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, KeySeparator)
	}
	return nil
}

// ConversationKey returns the history key for a conversation. A group
// conversation is keyed by the group name; a direct conversation by the two
// usernames sorted and joined, so key(x, y) == key(y, x).
func ConversationKey(from, to string, isGroup bool) string {
	if isGroup {
		return to
	}
	if to < from {
		from, to = to, from
	}
	return from + KeySeparator + to
}
