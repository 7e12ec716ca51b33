package rpc

import "github.com/devaloi/chatrelay/internal/domain"

type Empty struct{}

type RegisterRequest struct {
	Username string `json:"username"`
}

type RegisterReply struct {
	Username string `json:"username"`
}

type CreateGroupRequest struct {
	GroupName string `json:"groupName"`
}

type CreateGroupReply struct {
	GroupName string `json:"groupName"`
}

type JoinGroupRequest struct {
	GroupName string `json:"groupName"`
	Username  string `json:"username"`
}

type SendMessageRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
	IsGroup bool   `json:"isGroup"`
}

type SendAttachmentRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	AudioData []byte `json:"audioData"`
	IsGroup   bool   `json:"isGroup"`
}

type StartCallRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	IsGroup bool   `json:"isGroup"`
}

type MessageReply struct {
	Message domain.Message `json:"message"`
}

type HistoryRequest struct {
	Target  string `json:"target"`
	From    string `json:"from"`
	IsGroup bool   `json:"isGroup"`
}

type HistoryReply struct {
	Messages []domain.Message `json:"messages"`
}

type UsersReply struct {
	Users []string `json:"users"`
}

type GroupsReply struct {
	Groups []string `json:"groups"`
}

type SubscribeRequest struct {
	Username string `json:"username"`
}
