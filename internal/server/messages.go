package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/npezzotti/go-roomchat/internal/types"
)

// Inbound event names.
const (
	EventJoinRoom         = "joinRoom"
	EventSendMessage      = "sendMessage"
	EventTyping           = "typing"
	EventAddReaction      = "addReaction"
	EventRemoveReaction   = "removeReaction"
	EventCreateRoom       = "createRoom"
	EventAddMembersToRoom = "addMembersToRoom"
	EventGetRooms         = "getRooms"
	EventUpdateProfile    = "updateProfile"
)

// Outbound event names.
const (
	EventConnectedUsers  = "connectedUsers"
	EventNewMessage      = "newMessage"
	EventTypingUsers     = "typingUsers"
	EventReactionAdded   = "reactionAdded"
	EventReactionRemoved = "reactionRemoved"
	EventRoomCreated     = "roomCreated"
	EventError           = "error"
)

type ClientMessage struct {
	Id    int             `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Command is the closed set of inbound commands.
type Command interface {
	command()
}

type JoinRoom struct {
	RoomId string `json:"roomId"`
}

type SendMessage struct {
	RoomId  string `json:"roomId"`
	Content string `json:"content"`
}

type Typing struct {
	RoomId   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type AddReaction struct {
	MessageId string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type RemoveReaction struct {
	ReactionId string `json:"reactionId"`
	MessageId  string `json:"messageId"`
}

type CreateRoom struct {
	Name                string          `json:"name"`
	IsPrivate           bool            `json:"isPrivate"`
	MemberIds           []string        `json:"memberIds"`
	MemberHistoryAccess map[string]bool `json:"memberHistoryAccess"`
}

type AddMembersToRoom struct {
	RoomId              string          `json:"roomId"`
	MemberIds           []string        `json:"memberIds"`
	MemberHistoryAccess map[string]bool `json:"memberHistoryAccess"`
}

type GetRooms struct{}

type UpdateProfile struct {
	Username     string `json:"username"`
	DisplayColor string `json:"displayColor"`
}

func (JoinRoom) command()         {}
func (SendMessage) command()      {}
func (Typing) command()           {}
func (AddReaction) command()      {}
func (RemoveReaction) command()   {}
func (CreateRoom) command()       {}
func (AddMembersToRoom) command() {}
func (GetRooms) command()         {}
func (UpdateProfile) command()    {}

func decodeCommand(msg *ClientMessage) (Command, error) {
	var cmd Command
	switch msg.Event {
	case EventJoinRoom:
		cmd = &JoinRoom{}
	case EventSendMessage:
		cmd = &SendMessage{}
	case EventTyping:
		cmd = &Typing{}
	case EventAddReaction:
		cmd = &AddReaction{}
	case EventRemoveReaction:
		cmd = &RemoveReaction{}
	case EventCreateRoom:
		cmd = &CreateRoom{}
	case EventAddMembersToRoom:
		cmd = &AddMembersToRoom{}
	case EventGetRooms:
		return &GetRooms{}, nil
	case EventUpdateProfile:
		cmd = &UpdateProfile{}
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidInput, msg.Event)
	}

	if len(msg.Data) == 0 {
		return nil, fmt.Errorf("%w: missing data for %q", ErrInvalidInput, msg.Event)
	}

	if err := json.Unmarshal(msg.Data, cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return cmd, nil
}

type ServerMessage struct {
	Id        int       `json:"id,omitempty"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Response  *Response `json:"response,omitempty"`
	Data      any       `json:"data,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type ConnectedUsers struct {
	Users []types.OnlineUser `json:"users"`
}

type TypingUsers struct {
	RoomId string   `json:"roomId"`
	Users  []string `json:"users"`
}

type ReactionAdded struct {
	MessageId string             `json:"messageId"`
	Reaction  types.ReactionView `json:"reaction"`
}

type ReactionRemoved struct {
	MessageId  string `json:"messageId"`
	ReactionId string `json:"reactionId"`
}

type JoinRoomResult struct {
	Messages []types.MessageView `json:"messages"`
}

type CreateRoomResult struct {
	Room types.Room `json:"room"`
}

type GetRoomsResult struct {
	Rooms []types.RoomView `json:"rooms"`
}

type SuccessResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func NewEvent(name string, data any) *ServerMessage {
	return &ServerMessage{
		Event:     name,
		Timestamp: Now(),
		Data:      data,
	}
}

func NoErrOK(id int, event string, data any) *ServerMessage {
	return &ServerMessage{
		Id:        id,
		Event:     event,
		Timestamp: Now(),
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

// ErrReply builds a failed reply. data may carry a structured result such
// as SuccessResult.
func ErrReply(id int, event string, err error, data any) *ServerMessage {
	return &ServerMessage{
		Id:        id,
		Event:     event,
		Timestamp: Now(),
		Response: &Response{
			ResponseCode: responseCode(err),
			Error:        publicError(err),
			Data:         data,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	return &ServerMessage{
		Id:        id,
		Event:     EventError,
		Timestamp: Now(),
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}
}

func ErrTooManyRequests(id int, event string) *ServerMessage {
	return &ServerMessage{
		Id:        id,
		Event:     event,
		Timestamp: Now(),
		Response: &Response{
			ResponseCode: http.StatusTooManyRequests,
			Error:        "too many requests",
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
