// Package rpc exposes the router as a gRPC service. Subscribe is a
// server-streaming call that acts as the user's push channel.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"google.golang.org/grpc"

	"github.com/devaloi/chatrelay/internal/domain"
	"github.com/devaloi/chatrelay/internal/router"
)

// Server implements ChatServer over a Router.
type Server struct {
	router     *router.Router
	log        *slog.Logger
	bufferSize int
}

// NewServer creates the gRPC service. bufferSize bounds each stream's
// pending events.
func NewServer(r *router.Router, log *slog.Logger, bufferSize int) *Server {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Server{router: r, log: log, bufferSize: bufferSize}
}

// NewGRPCServer builds a grpc.Server with the chat service registered.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(LoggingInterceptor(s.log)))
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&ServiceDesc, s)
	return gs
}

func (s *Server) Register(_ context.Context, req *RegisterRequest) (*RegisterReply, error) {
	name, err := s.router.Register(req.Username)
	if err != nil {
		return nil, MapToGRPCError(err)
	}
	return &RegisterReply{Username: name}, nil
}

func (s *Server) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*CreateGroupReply, error) {
	name, err := s.router.CreateGroup(ctx, req.GroupName)
	if err != nil {
		return nil, MapToGRPCError(err)
	}
	return &CreateGroupReply{GroupName: name}, nil
}

func (s *Server) JoinGroup(ctx context.Context, req *JoinGroupRequest) (*Empty, error) {
	if err := s.router.JoinGroup(ctx, req.GroupName, req.Username); err != nil {
		return nil, MapToGRPCError(err)
	}
	return &Empty{}, nil
}

func (s *Server) SendMessage(ctx context.Context, req *SendMessageRequest) (*MessageReply, error) {
	msg, err := s.router.SendMessage(ctx, router.SendCommand{
		From: req.From, To: req.To, Body: req.Message, IsGroup: req.IsGroup,
	})
	if err != nil {
		return nil, MapToGRPCError(err)
	}
	return &MessageReply{Message: msg}, nil
}

func (s *Server) SendAttachment(ctx context.Context, req *SendAttachmentRequest) (*MessageReply, error) {
	msg, err := s.router.SendAttachment(ctx, router.AttachmentCommand{
		From: req.From, To: req.To, Payload: req.AudioData, IsGroup: req.IsGroup,
	})
	if err != nil {
		return nil, MapToGRPCError(err)
	}
	msg.Payload = nil
	return &MessageReply{Message: msg}, nil
}

func (s *Server) StartCall(_ context.Context, req *StartCallRequest) (*MessageReply, error) {
	msg, err := s.router.StartCall(router.CallCommand{From: req.From, To: req.To, IsGroup: req.IsGroup})
	if err != nil {
		return nil, MapToGRPCError(err)
	}
	return &MessageReply{Message: msg}, nil
}

func (s *Server) GetHistory(_ context.Context, req *HistoryRequest) (*HistoryReply, error) {
	msgs, err := s.router.GetHistory(router.HistoryQuery{Target: req.Target, Requester: req.From, IsGroup: req.IsGroup})
	if err != nil {
		return nil, MapToGRPCError(err)
	}
	return &HistoryReply{Messages: msgs}, nil
}

func (s *Server) ListUsers(context.Context, *Empty) (*UsersReply, error) {
	return &UsersReply{Users: s.router.ListUsers()}, nil
}

func (s *Server) ListGroups(context.Context, *Empty) (*GroupsReply, error) {
	return &GroupsReply{Groups: s.router.ListGroups()}, nil
}

func (s *Server) Unsubscribe(_ context.Context, req *SubscribeRequest) (*Empty, error) {
	s.router.Unsubscribe(strings.TrimSpace(req.Username))
	return &Empty{}, nil
}

// Subscribe binds the stream as the user's channel and blocks until the
// client goes away or the channel is dropped.
func (s *Server) Subscribe(req *SubscribeRequest, stream grpc.ServerStreamingServer[domain.Event]) error {
	sink := newSink(s.bufferSize)
	sub, err := s.router.Subscribe(req.Username, sink)
	if err != nil {
		return MapToGRPCError(err)
	}
	user := sub.Username()
	defer func() {
		sink.close()
		s.router.Release(sub)
	}()
	s.log.Info("rpc subscriber connected", "user", user)

	for {
		select {
		case <-stream.Context().Done():
			s.log.Info("rpc subscriber disconnected", "user", user)
			return nil
		case evt := <-sink.events:
			if err := stream.Send(lo.ToPtr(evt)); err != nil {
				s.log.Warn("failed to push event to stream", "user", user, "error", err)
				return err
			}
		}
	}
}

var errBacklogFull = errors.New("stream backlog full")

// sink is the hub.Channel behind one Subscribe stream.
type sink struct {
	events chan domain.Event
	mu     sync.RWMutex
	closed bool
}

func newSink(size int) *sink {
	return &sink{events: make(chan domain.Event, size)}
}

func (s *sink) Deliver(evt domain.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("stream closed: %w", domain.ErrTransportLost)
	}
	select {
	case s.events <- evt:
		return nil
	default:
		return errBacklogFull
	}
}

func (s *sink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// LoggingInterceptor logs every unary call with its outcome.
func LoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("rpc call failed", "method", info.FullMethod, "duration", time.Since(start), "error", err)
		} else {
			log.Debug("rpc call", "method", info.FullMethod, "duration", time.Since(start))
		}
		return resp, err
	}
}
