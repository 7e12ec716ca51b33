package hub

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/devaloi/chatrelay/internal/domain"
	"github.com/devaloi/chatrelay/internal/mocks"
	"github.com/devaloi/chatrelay/internal/testutil"
)

func TestSubscribeReplacesChannel(t *testing.T) {
	t.Parallel()
	h := New(testutil.DiscardLogger())
	old := testutil.NewMockChannel("old")
	cur := testutil.NewMockChannel("new")

	h.Subscribe("alice", old)
	h.Subscribe("alice", cur)
	require.Equal(t, 1, h.Count())

	h.NotifyDirect(domain.Message{From: "bob", To: "alice", Body: "hi"}, "alice", "bob")
	require.Empty(t, old.Events())
	require.Len(t, cur.Messages(), 1)
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()
	h := New(testutil.DiscardLogger())
	h.Subscribe("alice", testutil.NewMockChannel("alice"))

	h.Unsubscribe("alice")
	h.Unsubscribe("alice")
	h.Unsubscribe("nobody")
	require.False(t, h.IsSubscribed("alice"))
	require.Zero(t, h.Count())
}

func TestReleaseOnlyCurrentChannel(t *testing.T) {
	t.Parallel()
	h := New(testutil.DiscardLogger())
	old := testutil.NewMockChannel("old")
	cur := testutil.NewMockChannel("new")
	stale := h.Subscribe("alice", old)
	current := h.Subscribe("alice", cur)

	require.False(t, h.Release(stale))
	require.True(t, h.IsSubscribed("alice"))
	require.True(t, h.Release(current))
	require.False(t, h.IsSubscribed("alice"))
	require.False(t, h.Release(current))
	require.False(t, h.Release(nil))
}

// deliverFunc is a Channel whose dynamic type cannot be compared with ==.
type deliverFunc func(domain.Event) error

func (f deliverFunc) Deliver(evt domain.Event) error { return f(evt) }

func TestReleaseWithUncomparableChannel(t *testing.T) {
	t.Parallel()
	h := New(testutil.DiscardLogger())
	var got []domain.Event
	live := deliverFunc(func(evt domain.Event) error {
		got = append(got, evt)
		return nil
	})
	lost := deliverFunc(func(domain.Event) error { return domain.ErrTransportLost })

	first := h.Subscribe("alice", live)
	second := h.Subscribe("alice", live)
	require.NotPanics(t, func() { require.False(t, h.Release(first)) })
	require.True(t, h.IsSubscribed("alice"))
	require.Equal(t, "alice", second.Username())

	h.Subscribe("bob", lost)
	h.Broadcast(domain.Event{Type: domain.EventUsers})
	require.Len(t, got, 1)
	require.False(t, h.IsSubscribed("bob"))
	require.True(t, h.Release(second))
}

func TestNotifyDirectReachesBothSides(t *testing.T) {
	t.Parallel()
	h := New(testutil.DiscardLogger())
	alice := testutil.NewMockChannel("alice")
	bob := testutil.NewMockChannel("bob")
	carol := testutil.NewMockChannel("carol")
	h.Subscribe("alice", alice)
	h.Subscribe("bob", bob)
	h.Subscribe("carol", carol)

	msg := domain.Message{From: "alice", To: "bob", Body: "hi"}
	h.NotifyDirect(msg, "bob", "alice")

	require.Equal(t, []domain.Message{msg}, alice.Messages())
	require.Equal(t, []domain.Message{msg}, bob.Messages())
	require.Empty(t, carol.Events())
	require.Equal(t, domain.EventMessage, bob.Events()[0].Type)
}

func TestNotifyDirectToSelfDeliversOnce(t *testing.T) {
	t.Parallel()
	h := New(testutil.DiscardLogger())
	alice := testutil.NewMockChannel("alice")
	h.Subscribe("alice", alice)

	h.NotifyDirect(domain.Message{From: "alice", To: "alice", Body: "note"}, "alice", "alice")
	require.Len(t, alice.Events(), 1)
}

func TestNotifyDirectFailuresAreIndependent(t *testing.T) {
	t.Parallel()
	h := New(testutil.DiscardLogger())
	alice := testutil.NewMockChannel("alice")
	bob := testutil.NewMockChannel("bob")
	bob.FailWith(fmt.Errorf("write: %w", domain.ErrTransportLost))
	h.Subscribe("alice", alice)
	h.Subscribe("bob", bob)

	h.NotifyDirect(domain.Message{From: "alice", To: "bob", Body: "hi"}, "bob", "alice")

	require.Len(t, alice.Messages(), 1)
	require.False(t, h.IsSubscribed("bob"))
	require.True(t, h.IsSubscribed("alice"))
}

func TestNotifyGroupSurvivesLostSubscriber(t *testing.T) {
	t.Parallel()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	h := New(log)

	first := mocks.NewMockChannel(ctrl)
	dead := mocks.NewMockChannel(ctrl)
	last := mocks.NewMockChannel(ctrl)
	h.Subscribe("alice", first)
	h.Subscribe("bob", dead)
	h.Subscribe("carol", last)

	msg := domain.Message{From: "alice", To: "team", Body: "hello team", IsGroup: true}
	// Given one channel dies while the broadcast runs
	dead.EXPECT().Deliver(gomock.Any()).Return(fmt.Errorf("conn reset: %w", domain.ErrTransportLost)).Times(1)
	first.EXPECT().Deliver(gomock.Any()).DoAndReturn(func(evt domain.Event) error {
		require.Equal(t, domain.EventGroupMessage, evt.Type)
		require.Equal(t, "team", evt.Group)
		return nil
	}).Times(1)
	last.EXPECT().Deliver(gomock.Any()).Return(nil).Times(1)

	// When the group message is fanned out
	h.NotifyGroup(msg, "team")

	// Then the others still got it and the dead one is gone
	require.Equal(t, []string{"alice", "carol"}, h.Subscribers())
}

func TestDeliveryErrorKeepsSubscriber(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	h := New(testutil.DiscardLogger())
	slow := mocks.NewMockChannel(ctrl)
	h.Subscribe("alice", slow)

	slow.EXPECT().Deliver(gomock.Any()).Return(errors.New("queue full")).Times(1)
	h.Broadcast(domain.Event{Type: domain.EventUsers, Users: []string{"alice"}})

	require.True(t, h.IsSubscribed("alice"))
}

func TestNotifyMembers(t *testing.T) {
	t.Parallel()
	h := New(testutil.DiscardLogger())
	alice := testutil.NewMockChannel("alice")
	bob := testutil.NewMockChannel("bob")
	h.Subscribe("alice", alice)
	h.Subscribe("bob", bob)

	h.NotifyMembers(domain.Message{From: "alice", To: "team", IsGroup: true}, "team", []string{"alice", "alice", "ghost"})
	require.Len(t, alice.Events(), 1)
	require.Empty(t, bob.Events())
}

func TestBroadcastConcurrentWithChurn(t *testing.T) {
	t.Parallel()
	h := New(testutil.DiscardLogger())
	stable := testutil.NewMockChannel("stable")
	h.Subscribe("stable", stable)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				name := fmt.Sprintf("churn-%d-%d", i, j)
				ch := testutil.NewMockChannel(name)
				if j%2 == 0 {
					ch.FailWith(domain.ErrTransportLost)
				}
				h.Subscribe(name, ch)
				h.Unsubscribe(name)
			}
		}(i)
	}
	for i := 0; i < 100; i++ {
		h.Broadcast(domain.Event{Type: domain.EventGroups})
	}
	wg.Wait()

	require.Len(t, stable.Events(), 100)
	require.Equal(t, []string{"stable"}, h.Subscribers())
}
