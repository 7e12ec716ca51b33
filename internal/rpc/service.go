package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/devaloi/chatrelay/internal/domain"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "chatrelay.v1.Chat"

// ChatServer is the server API for the chat service.
type ChatServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterReply, error)
	CreateGroup(context.Context, *CreateGroupRequest) (*CreateGroupReply, error)
	JoinGroup(context.Context, *JoinGroupRequest) (*Empty, error)
	SendMessage(context.Context, *SendMessageRequest) (*MessageReply, error)
	SendAttachment(context.Context, *SendAttachmentRequest) (*MessageReply, error)
	StartCall(context.Context, *StartCallRequest) (*MessageReply, error)
	GetHistory(context.Context, *HistoryRequest) (*HistoryReply, error)
	ListUsers(context.Context, *Empty) (*UsersReply, error)
	ListGroups(context.Context, *Empty) (*GroupsReply, error)
	Unsubscribe(context.Context, *SubscribeRequest) (*Empty, error)
	Subscribe(*SubscribeRequest, grpc.ServerStreamingServer[domain.Event]) error
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary adapts a typed ChatServer method to a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(ChatServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ChatServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ChatServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChatServer).Subscribe(in, &grpc.GenericServerStream[SubscribeRequest, domain.Event]{ServerStream: stream})
}

// ServiceDesc describes the chat service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", ChatServer.Register),
		unary("CreateGroup", ChatServer.CreateGroup),
		unary("JoinGroup", ChatServer.JoinGroup),
		unary("SendMessage", ChatServer.SendMessage),
		unary("SendAttachment", ChatServer.SendAttachment),
		unary("StartCall", ChatServer.StartCall),
		unary("GetHistory", ChatServer.GetHistory),
		unary("ListUsers", ChatServer.ListUsers),
		unary("ListGroups", ChatServer.ListGroups),
		unary("Unsubscribe", ChatServer.Unsubscribe),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
}
