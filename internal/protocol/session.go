package protocol

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/devaloi/chatrelay/internal/domain"
	"github.com/devaloi/chatrelay/internal/hub"
	"github.com/devaloi/chatrelay/internal/registry"
	"github.com/devaloi/chatrelay/internal/router"
)

// Session executes requests for one connection. A successful REGISTER or
// SUBSCRIBE binds the connection's channel to that user; the bound user is
// the default sender and requester for later requests.
type Session struct {
	router  *router.Router
	channel hub.Channel
	log     *slog.Logger

	mu   sync.Mutex
	user string
	sub  *hub.Subscription
}

// NewSession creates a session delivering pushes to ch. ch may be nil for
// request/response-only callers.
func NewSession(r *router.Router, ch hub.Channel, log *slog.Logger) *Session {
	return &Session{router: r, channel: ch, log: log}
}

// User returns the bound username, or "" before REGISTER/SUBSCRIBE.
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// HandleFrame decodes and executes one raw JSON request.
func (s *Session) HandleFrame(ctx context.Context, data []byte) Response {
	req, err := DecodeRequest(data)
	if err != nil {
		return Response{Action: ReplyError, Error: "invalid JSON", Code: CodeBadRequest}
	}
	return s.Handle(ctx, req)
}

// Handle executes req and returns the reply.
func (s *Session) Handle(ctx context.Context, req Request) Response {
	resp, err := s.dispatch(ctx, req)
	if err != nil {
		if !domain.IsValidation(err) {
			s.log.Error("request failed", "action", req.Action, "user", s.User(), "error", err)
		}
		return ErrorResponse(req.ID, err)
	}
	resp.ID = req.ID
	return resp
}

func (s *Session) dispatch(ctx context.Context, req Request) (Response, error) {
	switch strings.ToUpper(strings.TrimSpace(req.Action)) {
	case ActionRegister:
		name, err := s.router.Register(req.Username)
		if err != nil {
			return Response{}, err
		}
		if err := s.bind(name); err != nil {
			return Response{}, err
		}
		return Response{Action: ReplyRegistered, Username: name, Users: s.router.ListUsers()}, nil

	case ActionSubscribe:
		name := s.or(req.Username)
		if err := s.bind(name); err != nil {
			return Response{}, err
		}
		return Response{Action: ReplySubscribed, Username: strings.TrimSpace(name)}, nil

	case ActionUnsubscribe:
		name := s.unbind()
		return Response{Action: ReplyUnsubscribed, Username: name}, nil

	case ActionCreateGroup:
		name, err := s.router.CreateGroup(ctx, req.GroupName)
		if err != nil {
			return Response{}, err
		}
		return Response{Action: ReplyGroupCreated, GroupName: name}, nil

	case ActionJoinGroup:
		user := s.or(req.Username)
		if err := s.router.JoinGroup(ctx, req.GroupName, user); err != nil {
			return Response{}, err
		}
		return Response{Action: ReplyGroupJoined, GroupName: strings.TrimSpace(req.GroupName), Username: user}, nil

	case ActionSendMessage:
		msg, err := s.router.SendMessage(ctx, router.SendCommand{
			From: s.or(req.From), To: req.To, Body: req.Message, IsGroup: req.IsGroup,
		})
		if err != nil {
			return Response{}, err
		}
		return Response{Action: ReplyMessageSent, Message: &msg}, nil

	case ActionSendAudio:
		msg, err := s.router.SendAttachment(ctx, router.AttachmentCommand{
			From: s.or(req.From), To: req.To, Payload: req.AudioData, IsGroup: req.IsGroup,
		})
		if err != nil {
			return Response{}, err
		}
		msg.Payload = nil
		return Response{Action: ReplyAudioSent, Message: &msg}, nil

	case ActionStartCall:
		msg, err := s.router.StartCall(router.CallCommand{
			From: s.or(req.From), To: req.To, IsGroup: req.IsGroup,
		})
		if err != nil {
			return Response{}, err
		}
		return Response{Action: ReplyCallStarted, Message: &msg}, nil

	case ActionGetHistory:
		target := req.Target
		if target == "" {
			target = req.To
		}
		msgs, err := s.router.GetHistory(router.HistoryQuery{
			Target: target, Requester: s.or(req.From), IsGroup: req.IsGroup,
		})
		if err != nil {
			return Response{}, err
		}
		return Response{Action: ReplyHistory, Messages: msgs}, nil

	case ActionGetUsers:
		return Response{Action: ReplyUserList, Users: s.router.ListUsers()}, nil

	case ActionGetGroups, ActionListGroups:
		return Response{Action: ReplyGroupList, Groups: s.router.ListGroups()}, nil

	default:
		return Response{Action: ReplyError, Error: "unknown action: " + req.Action, Code: CodeUnknownAction}, nil
	}
}

// or returns v, falling back to the bound user when v is blank.
func (s *Session) or(v string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return s.User()
}

func (s *Session) bind(name string) error {
	name, err := registry.Normalize(name)
	if err != nil {
		return err
	}
	var sub *hub.Subscription
	if s.channel != nil {
		if sub, err = s.router.Subscribe(name, s.channel); err != nil {
			return err
		}
	}

	s.mu.Lock()
	prev := s.sub
	s.user, s.sub = name, sub
	s.mu.Unlock()

	// A rebind to the same name already replaced prev, so this is a no-op then.
	s.router.Release(prev)
	return nil
}

func (s *Session) unbind() string {
	s.mu.Lock()
	name, sub := s.user, s.sub
	s.user, s.sub = "", nil
	s.mu.Unlock()
	s.router.Release(sub)
	return name
}

// Close drops the session's subscription if the connection still owns it.
func (s *Session) Close() {
	s.unbind()
}
