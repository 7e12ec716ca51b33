package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devaloi/chatrelay/internal/domain"
	"github.com/devaloi/chatrelay/internal/history"
)

func TestRegisterUser(t *testing.T) {
	t.Parallel()
	r := New(history.New())

	name, err := r.RegisterUser("  alice ")
	require.NoError(t, err)
	require.Equal(t, "alice", name)
	require.True(t, r.IsRegistered("alice"))

	_, err = r.RegisterUser("alice")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	for _, blank := range []string{"", "   ", "\t\n"} {
		_, err = r.RegisterUser(blank)
		require.ErrorIs(t, err, domain.ErrInvalidName)
	}
}

func TestListUsersSorted(t *testing.T) {
	t.Parallel()
	r := New(history.New())
	for _, u := range []string{"carol", "alice", "bob"} {
		_, err := r.RegisterUser(u)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"alice", "bob", "carol"}, r.ListUsers())
}

func TestCreateGroupCreatesLog(t *testing.T) {
	t.Parallel()
	logs := history.New()
	r := New(logs)

	_, err := r.CreateGroup("team")
	require.NoError(t, err)
	require.True(t, r.GroupExists("team"))
	require.True(t, logs.Has("team"))
	require.Equal(t, []string{"team"}, r.ListGroups())

	_, err = r.CreateGroup("team")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = r.CreateGroup(" ")
	require.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestNamesCannotUseKeySeparator(t *testing.T) {
	t.Parallel()
	r := New(history.New())

	_, err := r.RegisterUser("alice|bob")
	require.ErrorIs(t, err, domain.ErrInvalidName)
	_, err = r.CreateGroup("alice|bob")
	require.ErrorIs(t, err, domain.ErrInvalidName)
	require.False(t, r.GroupExists("alice|bob"))

	// Underscores are ordinary characters.
	_, err = r.RegisterUser("a_b")
	require.NoError(t, err)
	_, err = r.CreateGroup("a_b")
	require.NoError(t, err)
}

func TestCreateGroupIgnoresOrphanLog(t *testing.T) {
	t.Parallel()
	logs := history.New()
	_, err := logs.Append("orphan", domain.Message{From: "alice", To: "bob", Body: "hi"})
	require.NoError(t, err)

	r := New(logs)
	_, err = r.CreateGroup("orphan")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
	require.False(t, r.GroupExists("orphan"))
}

func TestConcurrentCreateGroupSingleWinner(t *testing.T) {
	t.Parallel()
	r := New(history.New())
	const callers = 16

	var wins, dupes atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := r.CreateGroup("race")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrAlreadyExists):
				dupes.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())
	require.EqualValues(t, callers-1, dupes.Load())
}

func TestJoinGroup(t *testing.T) {
	t.Parallel()
	r := New(history.New())
	_, err := r.RegisterUser("alice")
	require.NoError(t, err)
	_, err = r.CreateGroup("team")
	require.NoError(t, err)

	require.NoError(t, r.JoinGroup("team", "alice"))
	require.NoError(t, r.JoinGroup("team", "alice"))
	members, ok := r.Members("team")
	require.True(t, ok)
	require.Equal(t, []string{"alice"}, members)

	require.ErrorIs(t, r.JoinGroup("nope", "alice"), domain.ErrUnknownGroup)
	require.ErrorIs(t, r.JoinGroup("team", "mallory"), domain.ErrUnknownSender)

	_, ok = r.Members("nope")
	require.False(t, ok)
}

func TestRestoreGroups(t *testing.T) {
	t.Parallel()
	logs := history.New()
	r := New(logs)
	_, err := r.CreateGroup("old")
	require.NoError(t, err)

	r.RestoreGroups(map[string][]string{
		"zeta":  {"bob", "bob", "alice"},
		"alpha": {},
	})

	require.Equal(t, []string{"alpha", "zeta"}, r.ListGroups())
	require.False(t, r.GroupExists("old"))
	require.True(t, logs.Has("zeta"))
	members, _ := r.Members("zeta")
	require.Equal(t, []string{"bob", "alice"}, members)
	require.Equal(t, map[string][]string{"alpha": {}, "zeta": {"bob", "alice"}}, r.Groups())
}
