// Package router validates chat commands, records them in history and fans
// them out to subscribers.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/devaloi/chatrelay/internal/domain"
	"github.com/devaloi/chatrelay/internal/history"
	"github.com/devaloi/chatrelay/internal/hub"
	"github.com/devaloi/chatrelay/internal/registry"
	"github.com/devaloi/chatrelay/internal/store"
)

// Options tune routing policy.
type Options struct {
	// RequireRegisteredSender rejects messages whose sender, or direct
	// recipient, never registered.
	RequireRegisteredSender bool
	// ScopeGroupsToMembers limits group fan-out to joined members (plus the
	// sender) when the group has any members.
	ScopeGroupsToMembers bool
	// Now stamps call signals, which never enter history.
	Now func() time.Time
}

// Router is the single entry point used by every transport.
type Router struct {
	history  *history.Store
	registry *registry.Registry
	hub      *hub.Hub
	store    store.Store
	log      *slog.Logger
	opts     Options

	persistMu sync.Mutex
}

// New wires a router over the given components.
func New(hist *history.Store, reg *registry.Registry, h *hub.Hub, st store.Store, log *slog.Logger, opts Options) *Router {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		history:  hist,
		registry: reg,
		hub:      h,
		store:    st,
		log:      log,
		opts:     opts,
	}
}

// Register adds a user and pushes the new directory to subscribers.
func (r *Router) Register(username string) (string, error) {
	name, err := r.registry.RegisterUser(username)
	if err != nil {
		return "", err
	}
	r.log.Info("user registered", "user", name)
	r.hub.Broadcast(domain.Event{Type: domain.EventUsers, Users: r.registry.ListUsers()})
	return name, nil
}

// CreateGroup adds a group, creates its empty log and persists both.
func (r *Router) CreateGroup(ctx context.Context, groupName string) (string, error) {
	name, err := r.registry.CreateGroup(groupName)
	if err != nil {
		return "", err
	}
	if err := r.persist(ctx); err != nil {
		return "", err
	}
	r.log.Info("group created", "group", name)
	r.hub.Broadcast(domain.Event{Type: domain.EventGroups, Groups: r.registry.ListGroups()})
	return name, nil
}

// JoinGroup records a registered user as a member of a group.
func (r *Router) JoinGroup(ctx context.Context, groupName, username string) error {
	if err := r.registry.JoinGroup(groupName, username); err != nil {
		return err
	}
	return r.persist(ctx)
}

// SendMessage appends a text message to its conversation, persists, and
// notifies subscribers. The returned message carries the assigned timestamp.
func (r *Router) SendMessage(ctx context.Context, cmd SendCommand) (domain.Message, error) {
	cmd = cmd.normalized()
	probe := cmd
	probe.Body = strings.TrimSpace(cmd.Body)
	if err := check(probe); err != nil {
		return domain.Message{}, err
	}
	return r.deliver(ctx, domain.Message{
		From:    cmd.From,
		To:      cmd.To,
		Body:    cmd.Body,
		Type:    domain.TypeText,
		IsGroup: cmd.IsGroup,
	})
}

// SendAttachment records a binary payload as an audio message.
func (r *Router) SendAttachment(ctx context.Context, cmd AttachmentCommand) (domain.Message, error) {
	cmd = cmd.normalized()
	if err := check(cmd); err != nil {
		return domain.Message{}, err
	}
	payload := append([]byte(nil), cmd.Payload...)
	return r.deliver(ctx, domain.Message{
		From:    cmd.From,
		To:      cmd.To,
		Body:    domain.AudioBody,
		Type:    domain.TypeAudio,
		Payload: payload,
		Mime:    mimetype.Detect(payload).String(),
		IsGroup: cmd.IsGroup,
	})
}

// StartCall signals a call to a user or group. Calls are notify-only and do
// not enter history.
func (r *Router) StartCall(cmd CallCommand) (domain.Message, error) {
	cmd = cmd.normalized()
	if err := check(cmd); err != nil {
		return domain.Message{}, err
	}
	if err := r.checkParties(cmd.From, cmd.To, cmd.IsGroup); err != nil {
		return domain.Message{}, err
	}
	if cmd.IsGroup && !r.registry.GroupExists(cmd.To) {
		return domain.Message{}, fmt.Errorf("%w: %q", domain.ErrUnknownGroup, cmd.To)
	}
	// A direct call needs a registered recipient in either mode.
	if !cmd.IsGroup && !r.registry.IsRegistered(cmd.To) {
		return domain.Message{}, fmt.Errorf("%w: %q", domain.ErrUnknownRecipient, cmd.To)
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		From:      cmd.From,
		To:        cmd.To,
		Body:      domain.CallBody,
		Type:      domain.TypeCall,
		Timestamp: r.opts.Now().UTC(),
		IsGroup:   cmd.IsGroup,
	}
	r.notify(msg)
	return msg, nil
}

func (r *Router) deliver(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := r.checkParties(msg.From, msg.To, msg.IsGroup); err != nil {
		return domain.Message{}, err
	}
	msg.ID = uuid.NewString()

	stored, err := r.history.Append(msg.Key(), msg)
	if err != nil {
		return domain.Message{}, err
	}
	if err := r.persist(ctx); err != nil {
		return domain.Message{}, err
	}
	r.log.Debug("message routed", "from", stored.From, "to", stored.To, "group", stored.IsGroup, "type", stored.Type)
	r.notify(stored)
	return stored, nil
}

// checkParties validates both ends of a conversation. Names may not contain
// the key separator, which keeps every direct key distinct from every other
// direct key and from every group name.
func (r *Router) checkParties(from, to string, isGroup bool) error {
	if err := domain.CheckName(from); err != nil {
		return err
	}
	if err := domain.CheckName(to); err != nil {
		return err
	}
	if err := r.checkSender(from); err != nil {
		return err
	}
	if !isGroup && r.opts.RequireRegisteredSender && !r.registry.IsRegistered(to) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownRecipient, to)
	}
	return nil
}

func (r *Router) checkSender(from string) error {
	if r.opts.RequireRegisteredSender && !r.registry.IsRegistered(from) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSender, from)
	}
	return nil
}

func (r *Router) notify(msg domain.Message) {
	if !msg.IsGroup {
		r.hub.NotifyDirect(msg, msg.To, msg.From)
		return
	}
	if r.opts.ScopeGroupsToMembers {
		if members, ok := r.registry.Members(msg.To); ok && len(members) > 0 {
			r.hub.NotifyMembers(msg, msg.To, append(members, msg.From))
			return
		}
	}
	r.hub.NotifyGroup(msg, msg.To)
}

// GetHistory returns a copy of one conversation, oldest first. Unknown
// conversations yield an empty slice.
func (r *Router) GetHistory(q HistoryQuery) ([]domain.Message, error) {
	q = q.normalized()
	if err := check(q); err != nil {
		return nil, err
	}
	if !q.IsGroup && q.Requester == "" {
		return nil, fmt.Errorf("%w: requester", domain.ErrIncompleteData)
	}
	if err := domain.CheckName(q.Target); err != nil {
		return nil, err
	}
	if !q.IsGroup {
		if err := domain.CheckName(q.Requester); err != nil {
			return nil, err
		}
	}
	return r.history.Get(domain.ConversationKey(q.Requester, q.Target, q.IsGroup)), nil
}

// ListUsers returns registered usernames, sorted.
func (r *Router) ListUsers() []string {
	return r.registry.ListUsers()
}

// ListGroups returns group names in creation order.
func (r *Router) ListGroups() []string {
	return r.registry.ListGroups()
}

// Group describes one group, or reports false when it does not exist.
func (r *Router) Group(name string) (domain.Group, bool) {
	members, ok := r.registry.Members(name)
	if !ok {
		return domain.Group{}, false
	}
	return domain.Group{
		Name:         name,
		Members:      members,
		MessageCount: r.history.Len(name),
	}, true
}

// Subscribe binds ch as the live channel for username, replacing any earlier
// one. The returned handle is what Release takes.
func (r *Router) Subscribe(username string, ch hub.Channel) (*hub.Subscription, error) {
	name, err := registry.Normalize(username)
	if err != nil {
		return nil, err
	}
	if err := r.checkSender(name); err != nil {
		return nil, err
	}
	sub := r.hub.Subscribe(name, ch)
	r.log.Debug("subscribed", "user", name)
	return sub, nil
}

// Unsubscribe drops the live channel for username.
func (r *Router) Unsubscribe(username string) {
	r.hub.Unsubscribe(username)
}

// Release drops sub only while it is still the user's current subscription.
// Transports call it when a connection closes.
func (r *Router) Release(sub *hub.Subscription) {
	if r.hub.Release(sub) {
		r.log.Debug("subscription released", "user", sub.Username())
	}
}

// IsOnline reports whether username has a live channel.
func (r *Router) IsOnline(username string) bool {
	return r.hub.IsSubscribed(username)
}
