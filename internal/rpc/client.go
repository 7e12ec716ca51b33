package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/devaloi/chatrelay/internal/domain"
)

// Client calls the chat service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, in *Req) (*Resp, error) {
	out := new(Resp)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, username string) (string, error) {
	out, err := invoke[RegisterRequest, RegisterReply](ctx, c, "Register", &RegisterRequest{Username: username})
	if err != nil {
		return "", err
	}
	return out.Username, nil
}

func (c *Client) CreateGroup(ctx context.Context, groupName string) (string, error) {
	out, err := invoke[CreateGroupRequest, CreateGroupReply](ctx, c, "CreateGroup", &CreateGroupRequest{GroupName: groupName})
	if err != nil {
		return "", err
	}
	return out.GroupName, nil
}

func (c *Client) JoinGroup(ctx context.Context, groupName, username string) error {
	_, err := invoke[JoinGroupRequest, Empty](ctx, c, "JoinGroup", &JoinGroupRequest{GroupName: groupName, Username: username})
	return err
}

func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (domain.Message, error) {
	out, err := invoke[SendMessageRequest, MessageReply](ctx, c, "SendMessage", req)
	if err != nil {
		return domain.Message{}, err
	}
	return out.Message, nil
}

func (c *Client) SendAttachment(ctx context.Context, req *SendAttachmentRequest) (domain.Message, error) {
	out, err := invoke[SendAttachmentRequest, MessageReply](ctx, c, "SendAttachment", req)
	if err != nil {
		return domain.Message{}, err
	}
	return out.Message, nil
}

func (c *Client) StartCall(ctx context.Context, req *StartCallRequest) (domain.Message, error) {
	out, err := invoke[StartCallRequest, MessageReply](ctx, c, "StartCall", req)
	if err != nil {
		return domain.Message{}, err
	}
	return out.Message, nil
}

func (c *Client) GetHistory(ctx context.Context, req *HistoryRequest) ([]domain.Message, error) {
	out, err := invoke[HistoryRequest, HistoryReply](ctx, c, "GetHistory", req)
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]string, error) {
	out, err := invoke[Empty, UsersReply](ctx, c, "ListUsers", &Empty{})
	if err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) ListGroups(ctx context.Context) ([]string, error) {
	out, err := invoke[Empty, GroupsReply](ctx, c, "ListGroups", &Empty{})
	if err != nil {
		return nil, err
	}
	return out.Groups, nil
}

func (c *Client) Unsubscribe(ctx context.Context, username string) error {
	_, err := invoke[SubscribeRequest, Empty](ctx, c, "Unsubscribe", &SubscribeRequest{Username: username})
	return err
}

// Subscribe opens the push stream for username. Cancel ctx to end it.
func (c *Client) Subscribe(ctx context.Context, username string) (grpc.ServerStreamingClient[domain.Event], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("Subscribe"), grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[SubscribeRequest, domain.Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&SubscribeRequest{Username: username}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
