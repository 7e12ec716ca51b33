// Package codec defines the persisted snapshot schema and the byte encodings
// used to store it.
package codec

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/devaloi/chatrelay/internal/domain"
)

// Record is the serialized form of a domain.Message.
// Type is omitted for text messages; AudioData holds the base64 payload.
type Record struct {
	ID        string    `json:"id,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	IsGroup   bool      `json:"isGroup"`
	Type      string    `json:"type,omitempty"`
	AudioData string    `json:"audioData,omitempty"`
	Mime      string    `json:"mime,omitempty"`
}

// Snapshot is the whole durable state: every conversation log and every group
// with its members.
type Snapshot struct {
	History map[string][]Record `json:"history"`
	Groups  map[string][]string `json:"groups"`
}

// NewSnapshot returns an empty snapshot with non-nil maps.
func NewSnapshot() Snapshot {
	return Snapshot{
		History: make(map[string][]Record),
		Groups:  make(map[string][]string),
	}
}

// Codec turns a Snapshot into bytes and back.
type Codec interface {
	Name() string
	Encode(s Snapshot) ([]byte, error)
	Decode(data []byte) (Snapshot, error)
}

// ByName returns the codec registered under name ("json" or "proto").
func ByName(name string) (Codec, error) {
	switch name {
	case "", JSONName:
		return JSON{}, nil
	case ProtoName:
		return Proto{}, nil
	default:
		return nil, fmt.Errorf("unknown snapshot codec %q", name)
	}
}

// FromMessage converts a message to its serialized form.
func FromMessage(m domain.Message) Record {
	r := Record{
		ID:        m.ID,
		From:      m.From,
		To:        m.To,
		Message:   m.Body,
		Timestamp: m.Timestamp,
		IsGroup:   m.IsGroup,
		Mime:      m.Mime,
	}
	if m.Type != domain.TypeText {
		r.Type = m.Type
	}
	if len(m.Payload) > 0 {
		r.AudioData = base64.StdEncoding.EncodeToString(m.Payload)
	}
	return r
}

// ToMessage converts a serialized record back into a message.
func ToMessage(r Record) (domain.Message, error) {
	m := domain.Message{
		ID:        r.ID,
		From:      r.From,
		To:        r.To,
		Body:      r.Message,
		Type:      r.Type,
		Mime:      r.Mime,
		Timestamp: r.Timestamp.UTC(),
		IsGroup:   r.IsGroup,
	}
	if m.Type == "" {
		m.Type = domain.TypeText
	}
	if r.AudioData != "" {
		payload, err := base64.StdEncoding.DecodeString(r.AudioData)
		if err != nil {
			return domain.Message{}, fmt.Errorf("decode payload of %s: %w", r.ID, err)
		}
		m.Payload = payload
	}
	return m, nil
}

// Build assembles a snapshot from in-memory history and group membership.
func Build(history map[string][]domain.Message, groups map[string][]string) Snapshot {
	s := NewSnapshot()
	for key, msgs := range history {
		s.History[key] = lo.Map(msgs, func(m domain.Message, _ int) Record { return FromMessage(m) })
	}
	for name, members := range groups {
		s.Groups[name] = append([]string{}, members...)
	}
	return s
}

// Messages decodes every record of the snapshot, keyed by conversation.
func (s Snapshot) Messages() (map[string][]domain.Message, error) {
	out := make(map[string][]domain.Message, len(s.History))
	for key, records := range s.History {
		msgs := make([]domain.Message, 0, len(records))
		for _, r := range records {
			m, err := ToMessage(r)
			if err != nil {
				return nil, fmt.Errorf("conversation %s: %w", key, err)
			}
			msgs = append(msgs, m)
		}
		out[key] = msgs
	}
	return out, nil
}

// normalize replaces nil maps left by decoding "null" or absent fields.
func normalize(s Snapshot) Snapshot {
	if s.History == nil {
		s.History = make(map[string][]Record)
	}
	if s.Groups == nil {
		s.Groups = make(map[string][]string)
	}
	for name, members := range s.Groups {
		if members == nil {
			s.Groups[name] = []string{}
		}
	}
	return s
}
