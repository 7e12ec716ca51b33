// Package protocol defines the request/response envelope shared by the
// connection-oriented front-ends and the Session that executes it.
package protocol

import (
	"encoding/json"

	"github.com/devaloi/chatrelay/internal/domain"
)

// Request actions.
const (
	ActionRegister    = "REGISTER"
	ActionSubscribe   = "SUBSCRIBE"
	ActionUnsubscribe = "UNSUBSCRIBE"
	ActionCreateGroup = "CREATE_GROUP"
	ActionJoinGroup   = "JOIN_GROUP"
	ActionSendMessage = "SEND_MESSAGE"
	ActionSendAudio   = "SEND_AUDIO"
	ActionStartCall   = "START_CALL"
	ActionGetHistory  = "GET_HISTORY"
	ActionGetUsers    = "GET_USERS"
	ActionGetGroups   = "GET_GROUPS"
	ActionListGroups  = "LIST_GROUPS"
)

// Reply actions.
const (
	ReplyRegistered   = "REGISTERED"
	ReplySubscribed   = "SUBSCRIBED"
	ReplyUnsubscribed = "UNSUBSCRIBED"
	ReplyGroupCreated = "GROUP_CREATED"
	ReplyGroupJoined  = "GROUP_JOINED"
	ReplyMessageSent  = "MESSAGE_SENT"
	ReplyAudioSent    = "AUDIO_SENT"
	ReplyCallStarted  = "CALL_STARTED"
	ReplyHistory      = "HISTORY"
	ReplyUserList     = "USER_LIST"
	ReplyGroupList    = "GROUP_LIST"
	ReplyError        = "ERROR"
	ReplyEvent        = "EVENT"
)

// Codes that do not come from the domain taxonomy.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnknownAction = "UNKNOWN_ACTION"
)

// Request is one client command. Fields not used by an action are ignored.
type Request struct {
	Action    string `json:"action"`
	ID        string `json:"id,omitempty"`
	Username  string `json:"username,omitempty"`
	GroupName string `json:"groupName,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Message   string `json:"message,omitempty"`
	Target    string `json:"target,omitempty"`
	IsGroup   bool   `json:"isGroup,omitempty"`
	AudioData []byte `json:"audioData,omitempty"`
}

// Response is either a reply to a Request (ID echoed) or a pushed EVENT.
type Response struct {
	Action    string           `json:"action"`
	ID        string           `json:"id,omitempty"`
	Error     string           `json:"error,omitempty"`
	Code      string           `json:"code,omitempty"`
	Username  string           `json:"username,omitempty"`
	GroupName string           `json:"groupName,omitempty"`
	Message   *domain.Message  `json:"message,omitempty"`
	Messages  []domain.Message `json:"messages,omitempty"`
	Users     []string         `json:"users,omitempty"`
	Groups    []string         `json:"groups,omitempty"`
	Event     *domain.Event    `json:"event,omitempty"`
}

// EventResponse wraps a pushed event.
func EventResponse(evt domain.Event) Response {
	return Response{Action: ReplyEvent, Event: &evt}
}

// ErrorResponse builds an ERROR reply carrying the taxonomy code of err.
func ErrorResponse(id string, err error) Response {
	return Response{Action: ReplyError, ID: id, Error: err.Error(), Code: domain.Code(err)}
}

// DecodeRequest parses one JSON request frame.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}

// DecodeResponse parses one JSON response frame.
func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	err := json.Unmarshal(data, &resp)
	return resp, err
}

// Encode serializes a request or response frame.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
