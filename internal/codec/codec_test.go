package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devaloi/chatrelay/internal/domain"
)

func sampleHistory() map[string][]domain.Message {
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	return map[string][]domain.Message{
		"alice|bob": {
			{ID: "1", From: "alice", To: "bob", Body: "hi", Type: domain.TypeText, Timestamp: at},
			{ID: "2", From: "bob", To: "alice", Body: domain.AudioBody, Type: domain.TypeAudio,
				Payload: []byte{0, 1, 2, 250}, Mime: "audio/wav", Timestamp: at.Add(time.Second)},
		},
		"team": {
			{ID: "3", From: "alice", To: "team", Body: "hello team", Type: domain.TypeText, Timestamp: at, IsGroup: true},
		},
		"empty": {},
	}
}

func TestCodecsRoundTrip(t *testing.T) {
	t.Parallel()
	for _, c := range []Codec{JSON{}, Proto{}} {
		t.Run(c.Name(), func(t *testing.T) {
			req := require.New(t)
			history := sampleHistory()
			groups := map[string][]string{"team": {"alice", "bob"}, "quiet": {}}

			data, err := c.Encode(Build(history, groups))
			req.NoError(err)

			decoded, err := c.Decode(data)
			req.NoError(err)
			req.Equal(groups, decoded.Groups)

			msgs, err := decoded.Messages()
			req.NoError(err)
			req.Len(msgs, len(history))
			for key, want := range history {
				req.Len(msgs[key], len(want), key)
				for i := range want {
					req.True(want[i].Timestamp.Equal(msgs[key][i].Timestamp))
					got := msgs[key][i]
					got.Timestamp = want[i].Timestamp
					req.Equal(want[i], got)
				}
			}
		})
	}
}

func TestRecordOmitsTextType(t *testing.T) {
	t.Parallel()
	r := FromMessage(domain.Message{From: "a", To: "b", Body: "x", Type: domain.TypeText})
	require.Empty(t, r.Type)
	require.Empty(t, r.AudioData)

	m, err := ToMessage(r)
	require.NoError(t, err)
	require.Equal(t, domain.TypeText, m.Type)
	require.Nil(t, m.Payload)
}

func TestRecordBase64Payload(t *testing.T) {
	t.Parallel()
	r := FromMessage(domain.Message{Type: domain.TypeAudio, Payload: []byte("RIFF")})
	require.Equal(t, "audio", r.Type)
	require.Equal(t, "UklGRg==", r.AudioData)

	_, err := ToMessage(Record{AudioData: "%%%"})
	require.Error(t, err)
}

func TestDecodeNullMaps(t *testing.T) {
	t.Parallel()
	s, err := JSON{}.Decode([]byte(`{"history":null,"groups":{"g":null}}`))
	require.NoError(t, err)
	require.NotNil(t, s.History)
	require.Equal(t, []string{}, s.Groups["g"])
}

func TestDecodeGarbage(t *testing.T) {
	t.Parallel()
	_, err := JSON{}.Decode([]byte("{not json"))
	require.Error(t, err)
	_, err = Proto{}.Decode([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}

func TestByName(t *testing.T) {
	t.Parallel()
	c, err := ByName("proto")
	require.NoError(t, err)
	require.Equal(t, ProtoName, c.Name())
	c, err = ByName("")
	require.NoError(t, err)
	require.Equal(t, JSONName, c.Name())
	_, err = ByName("xml")
	require.Error(t, err)
}
