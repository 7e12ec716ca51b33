package domain

import (
	"encoding/json"
	"time"
)

// Message body types.
const (
	TypeText  = "text"
	TypeAudio = "audio"
	TypeCall  = "call"
)

// Placeholder bodies for non-text messages.
const (
	AudioBody = "[voice note]"
	CallBody  = "[call started]"
)

// Event types pushed to subscribers.
const (
	EventMessage      = "message"
	EventGroupMessage = "group_message"
	EventUsers        = "users"
	EventGroups       = "groups"
)

// Message is a single chat message. It is immutable once appended to history.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"message"`
	Type      string    `json:"type"`
	Payload   []byte    `json:"audioData,omitempty"`
	Mime      string    `json:"mime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsGroup   bool      `json:"isGroup"`
}

// Key returns the conversation key the message is logged under.
func (m Message) Key() string {
	return ConversationKey(m.From, m.To, m.IsGroup)
}

// Event is what a subscriber channel receives.
type Event struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
	Group   string   `json:"group,omitempty"`
	Users   []string `json:"users,omitempty"`
	Groups  []string `json:"groups,omitempty"`
}

// MessageEvent wraps a message in the event type matching its scope.
func MessageEvent(m Message) Event {
	if m.IsGroup {
		return Event{Type: EventGroupMessage, Message: &m, Group: m.To}
	}
	return Event{Type: EventMessage, Message: &m}
}

// Group summarizes a group for listing endpoints.
type Group struct {
	Name         string   `json:"name"`
	Members      []string `json:"members"`
	MessageCount int      `json:"message_count"`
}

// Encode serializes a value to JSON bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeMessage deserializes JSON bytes into a Message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}

// DecodeEvent deserializes JSON bytes into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
