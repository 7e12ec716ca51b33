package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageEncodeDecode(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC().Truncate(time.Second)
	original := Message{
		ID:        "m1",
		From:      "alice",
		To:        "bob",
		Body:      "hello world",
		Type:      TypeText,
		Timestamp: now,
	}

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestMessageWireFieldNames(t *testing.T) {
	t.Parallel()
	data, err := Encode(Message{From: "alice", To: "team", Body: "hi", IsGroup: true, Payload: []byte{1, 2}})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{"from", "to", "message", "timestamp", "isGroup", "type", "audioData"} {
		require.Contains(t, raw, field)
	}
	require.Equal(t, `"AQI="`, string(raw["audioData"]))
}

func TestAudioPayloadSurvivesJSON(t *testing.T) {
	t.Parallel()
	payload := []byte{0x00, 0xff, 0x10, 0x80}
	data, err := Encode(Message{Type: TypeAudio, Body: AudioBody, Payload: payload})
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, payload, decoded.Payload)
}

func TestMessageEvent(t *testing.T) {
	t.Parallel()
	direct := MessageEvent(Message{From: "alice", To: "bob"})
	require.Equal(t, EventMessage, direct.Type)
	require.Empty(t, direct.Group)

	group := MessageEvent(Message{From: "alice", To: "team", IsGroup: true})
	require.Equal(t, EventGroupMessage, group.Type)
	require.Equal(t, "team", group.Group)
}

func TestEventRoundTrip(t *testing.T) {
	t.Parallel()
	data, err := Encode(Event{Type: EventUsers, Users: []string{"alice", "bob"}})
	require.NoError(t, err)

	evt, err := DecodeEvent(data)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, evt.Users)
	require.Nil(t, evt.Message)
}

func TestDecodeInvalidJSON(t *testing.T) {
	t.Parallel()
	_, err := DecodeMessage([]byte("not json"))
	require.Error(t, err)
}

func TestConversationKeyIsCommutative(t *testing.T) {
	t.Parallel()
	require.Equal(t, ConversationKey("alice", "bob", false), ConversationKey("bob", "alice", false))
	require.Equal(t, "alice|bob", ConversationKey("bob", "alice", false))
	require.Equal(t, "team", ConversationKey("alice", "team", true))
	require.Equal(t, "team", Message{From: "zed", To: "team", IsGroup: true}.Key())
}

func TestConversationKeyKeepsPairsApart(t *testing.T) {
	t.Parallel()
	require.NotEqual(t, ConversationKey("a_b", "c", false), ConversationKey("a", "b_c", false))
	require.NotEqual(t, "a_b", ConversationKey("a", "b", false))
}

func TestCheckName(t *testing.T) {
	t.Parallel()
	require.NoError(t, CheckName("a_b"))
	require.ErrorIs(t, CheckName(""), ErrInvalidName)
	require.ErrorIs(t, CheckName("  "), ErrInvalidName)
	require.ErrorIs(t, CheckName("a|b"), ErrInvalidName)
}

func TestCode(t *testing.T) {
	t.Parallel()
	cases := map[error]string{
		ErrInvalidName:                              "INVALID_NAME",
		fmt.Errorf("%w: %q", ErrAlreadyExists, "x"): "ALREADY_EXISTS",
		ErrUnknownGroup:                             "UNKNOWN_GROUP",
		fmt.Errorf("wrap: %w", ErrPersistence):      "PERSISTENCE_FAILURE",
		fmt.Errorf("boom"):                          "INTERNAL",
	}
	for err, want := range cases {
		require.Equal(t, want, Code(err), err.Error())
	}
	require.True(t, IsValidation(fmt.Errorf("%w: from", ErrIncompleteData)))
	require.False(t, IsValidation(ErrTransportLost))
}
