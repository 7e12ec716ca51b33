//go:generate go run go.uber.org/mock/mockgen -source=hub.go -destination=../mocks/mock_channel.go -package=mocks
package hub

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/devaloi/chatrelay/internal/domain"
)

// Channel is the delivery handle of one live subscriber. Implementations
// return an error wrapping domain.ErrTransportLost once the underlying
// connection is gone.
type Channel interface {
	Deliver(evt domain.Event) error
}

// Subscription is the handle returned by Subscribe. Each call yields a new
// handle, so releasing a stale one never touches a newer binding.
type Subscription struct {
	username string
	channel  Channel
}

// Username returns the user the subscription is bound to.
func (s *Subscription) Username() string { return s.username }

// Hub is the table of live subscribers, one channel per username.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
	log  *slog.Logger
}

// New creates an empty Hub.
func New(log *slog.Logger) *Hub {
	return &Hub{
		subs: make(map[string]*Subscription),
		log:  log,
	}
}

// Subscribe binds username to ch, replacing any earlier channel. The old
// channel is abandoned, not closed.
func (h *Hub) Subscribe(username string, ch Channel) *Subscription {
	sub := &Subscription{username: username, channel: ch}
	h.mu.Lock()
	_, replaced := h.subs[username]
	h.subs[username] = sub
	h.mu.Unlock()
	h.log.Debug("subscriber added", "user", username, "replaced", replaced)
	return sub
}

// Unsubscribe removes username. It is a no-op for unknown names.
func (h *Hub) Unsubscribe(username string) {
	h.mu.Lock()
	delete(h.subs, username)
	h.mu.Unlock()
}

// Release removes sub only while it is still the user's current
// subscription, so a closing connection cannot drop a newer one.
func (h *Hub) Release(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sub.username] != sub {
		return false
	}
	delete(h.subs, sub.username)
	return true
}

// IsSubscribed reports whether username has a live channel.
func (h *Hub) IsSubscribed(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[username]
	return ok
}

// Subscribers returns the subscribed usernames, sorted.
func (h *Hub) Subscribers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := lo.Keys(h.subs)
	sort.Strings(names)
	return names
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// NotifyDirect delivers msg to the recipient and, separately, to the sender.
// The two deliveries are independent.
func (h *Hub) NotifyDirect(msg domain.Message, recipient, sender string) {
	evt := domain.MessageEvent(msg)
	names := []string{recipient}
	if sender != recipient {
		names = append(names, sender)
	}
	h.deliverAll(h.lookup(names), evt)
}

// NotifyGroup delivers msg to every live subscriber, member or not.
func (h *Hub) NotifyGroup(msg domain.Message, groupName string) {
	evt := domain.MessageEvent(msg)
	evt.Group = groupName
	h.deliverAll(h.snapshot(), evt)
}

// NotifyMembers delivers msg to the live subscribers among members.
func (h *Hub) NotifyMembers(msg domain.Message, groupName string, members []string) {
	evt := domain.MessageEvent(msg)
	evt.Group = groupName
	h.deliverAll(h.lookup(members), evt)
}

// Broadcast delivers evt to every live subscriber.
func (h *Hub) Broadcast(evt domain.Event) {
	h.deliverAll(h.snapshot(), evt)
}

func (h *Hub) snapshot() []*Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Values(h.subs)
}

func (h *Hub) lookup(names []string) []*Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Subscription
	for _, name := range lo.Uniq(names) {
		if sub, ok := h.subs[name]; ok {
			out = append(out, sub)
		}
	}
	return out
}

// deliverAll runs outside the table lock. A lost transport prunes that
// subscriber and the loop carries on.
func (h *Hub) deliverAll(subs []*Subscription, evt domain.Event) {
	for _, s := range subs {
		err := s.channel.Deliver(evt)
		if err == nil {
			continue
		}
		if errors.Is(err, domain.ErrTransportLost) {
			if h.Release(s) {
				h.log.Warn("subscriber lost, removed", "user", s.username, "error", err)
			}
			continue
		}
		h.log.Warn("delivery failed", "user", s.username, "event", evt.Type, "error", err)
	}
}
