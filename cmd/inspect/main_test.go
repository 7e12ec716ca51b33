package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devaloi/chatrelay/internal/codec"
	"github.com/devaloi/chatrelay/internal/store"
)

func seed(t *testing.T) Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	snap := codec.NewSnapshot()
	snap.History["alice|bob"] = []codec.Record{
		{From: "alice", To: "bob", Message: "hi", Timestamp: at},
		{From: "bob", To: "alice", Message: "[voice note]", Type: "audio", Mime: "audio/wav", Timestamp: at.Add(time.Minute)},
	}
	snap.History["team"] = []codec.Record{}
	snap.Groups["team"] = []string{"alice", "bob"}
	require.NoError(t, store.NewFile(path, codec.JSON{}).Save(context.Background(), snap))
	return Config{Backend: store.BackendFile, Path: path, Codec: codec.JSONName}
}

func TestSummary(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	require.NoError(t, run(&out, seed(t), ""))

	s := out.String()
	require.Contains(t, s, "alice|bob")
	require.Contains(t, s, "direct")
	require.Contains(t, s, "group")
	require.Contains(t, s, "alice, bob")
}

func TestConversation(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	require.NoError(t, run(&out, seed(t), "alice|bob"))
	require.Contains(t, out.String(), "audio/wav")

	require.Error(t, run(&out, seed(t), "nobody"))
}
