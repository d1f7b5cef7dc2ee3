package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/npezzotti/go-roomchat/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_decodeCommand(t *testing.T) {
	tcases := []struct {
		name      string
		msg       ClientMessage
		expected  Command
		expectErr bool
	}{
		{
			name:     "join room",
			msg:      ClientMessage{Event: EventJoinRoom, Data: json.RawMessage(`{"roomId":"r1"}`)},
			expected: &JoinRoom{RoomId: "r1"},
		},
		{
			name:     "send message",
			msg:      ClientMessage{Event: EventSendMessage, Data: json.RawMessage(`{"roomId":"r1","content":"hi"}`)},
			expected: &SendMessage{RoomId: "r1", Content: "hi"},
		},
		{
			name:     "typing",
			msg:      ClientMessage{Event: EventTyping, Data: json.RawMessage(`{"roomId":"r1","isTyping":true}`)},
			expected: &Typing{RoomId: "r1", IsTyping: true},
		},
		{
			name:     "add reaction",
			msg:      ClientMessage{Event: EventAddReaction, Data: json.RawMessage(`{"messageId":"m1","emoji":"🎉"}`)},
			expected: &AddReaction{MessageId: "m1", Emoji: "🎉"},
		},
		{
			name:     "remove reaction",
			msg:      ClientMessage{Event: EventRemoveReaction, Data: json.RawMessage(`{"reactionId":"re1","messageId":"m1"}`)},
			expected: &RemoveReaction{ReactionId: "re1", MessageId: "m1"},
		},
		{
			name: "create room",
			msg: ClientMessage{Event: EventCreateRoom, Data: json.RawMessage(
				`{"name":"Team","isPrivate":true,"memberIds":["u2"],"memberHistoryAccess":{"u2":false}}`)},
			expected: &CreateRoom{Name: "Team", IsPrivate: true, MemberIds: []string{"u2"}, MemberHistoryAccess: map[string]bool{"u2": false}},
		},
		{
			name:     "add members",
			msg:      ClientMessage{Event: EventAddMembersToRoom, Data: json.RawMessage(`{"roomId":"r1","memberIds":["u2","u3"]}`)},
			expected: &AddMembersToRoom{RoomId: "r1", MemberIds: []string{"u2", "u3"}},
		},
		{
			name:     "get rooms without data",
			msg:      ClientMessage{Event: EventGetRooms},
			expected: &GetRooms{},
		},
		{
			name:     "update profile",
			msg:      ClientMessage{Event: EventUpdateProfile, Data: json.RawMessage(`{"username":"alicia","displayColor":"#ABCDEF"}`)},
			expected: &UpdateProfile{Username: "alicia", DisplayColor: "#ABCDEF"},
		},
		{
			name:      "unknown event",
			msg:       ClientMessage{Event: "leaveRoom", Data: json.RawMessage(`{}`)},
			expectErr: true,
		},
		{
			name:      "missing data",
			msg:       ClientMessage{Event: EventTyping},
			expectErr: true,
		},
		{
			name:      "wrong field type",
			msg:       ClientMessage{Event: EventTyping, Data: json.RawMessage(`{"roomId":1}`)},
			expectErr: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := decodeCommand(&tc.msg)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrInvalidInput, "expected invalid input error")
				assert.Nil(t, cmd)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, cmd)
		})
	}
}

func Test_responseCode(t *testing.T) {
	tcases := []struct {
		err      error
		expected int
	}{
		{nil, http.StatusOK},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrNotAMember, http.StatusForbidden},
		{fmt.Errorf("%w: nope", ErrPermissionDenied), http.StatusForbidden},
		{fmt.Errorf("room %q: %w", "r1", ErrNotFound), http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		assert.Equal(t, tc.expected, responseCode(tc.err), "unexpected code for %v", tc.err)
	}
}

func TestErrReply(t *testing.T) {
	reply := ErrReply(3, EventAddMembersToRoom, errors.New("pq: broken pipe"), SuccessResult{Error: "internal server error"})

	assert.Equal(t, 3, reply.Id)
	assert.Equal(t, EventAddMembersToRoom, reply.Event)
	assert.Equal(t, http.StatusInternalServerError, reply.Response.ResponseCode)
	assert.Equal(t, "internal server error", reply.Response.Error, "expected internal details to be hidden")
	assert.False(t, reply.Timestamp.IsZero())
}

func TestNewEvent_json(t *testing.T) {
	msg := NewEvent(EventTypingUsers, TypingUsers{RoomId: "r1", Users: []string{}})

	raw, err := json.Marshal(msg)
	assert.NoError(t, err)

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "typingUsers", decoded["event"])
	assert.NotContains(t, decoded, "response", "expected emissions to carry no response")
	assert.NotContains(t, decoded, "id")
	assert.Equal(t, map[string]any{"roomId": "r1", "users": []any{}}, decoded["data"])
}

func TestConnectedUsers_json(t *testing.T) {
	raw, err := json.Marshal(ConnectedUsers{Users: []types.OnlineUser{{UserId: "u1", Username: "alice", DisplayColor: "#3B82F6"}}})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"users":[{"userId":"u1","username":"alice","displayColor":"#3B82F6"}]}`, string(raw))
}
