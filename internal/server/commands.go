package server

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/npezzotti/go-roomchat/internal/database"
	"github.com/npezzotti/go-roomchat/internal/types"
)

const (
	maxContentLength  = 4000
	maxEmojiLength    = 32
	maxRoomNameLength = 100
	minUsernameLength = 3
)

var displayColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// dispatch runs one inbound frame for c. Frames from a connection without
// a presence entry are dropped.
func (cs *ChatServer) dispatch(ctx context.Context, c *Client, msg *ClientMessage) {
	entry, ok := cs.presence.Lookup(c.id)
	if !ok {
		cs.log.Printf("dropping %q from unauthenticated connection %q", msg.Event, c.id)
		return
	}

	cmd, err := decodeCommand(msg)
	if err != nil {
		cs.log.Printf("decode %q from %q: %v", msg.Event, c.id, err)
		c.queueMessage(ErrReply(msg.Id, msg.Event, err, nil))
		return
	}

	switch cmd := cmd.(type) {
	case *JoinRoom:
		res, err := cs.handleJoinRoom(ctx, c, entry, cmd)
		cs.reply(c, msg, res, err)
	case *SendMessage:
		cs.logDropped(msg, entry, cs.handleSendMessage(ctx, entry, cmd))
	case *Typing:
		cs.logDropped(msg, entry, cs.handleTyping(entry, cmd))
	case *AddReaction:
		_, err := cs.handleAddReaction(ctx, entry, cmd)
		cs.logDropped(msg, entry, err)
	case *RemoveReaction:
		cs.logDropped(msg, entry, cs.handleRemoveReaction(ctx, entry, cmd))
	case *CreateRoom:
		res, err := cs.handleCreateRoom(ctx, entry, cmd)
		cs.reply(c, msg, res, err)
	case *AddMembersToRoom:
		cs.replySuccess(c, msg, cs.handleAddMembersToRoom(ctx, entry, cmd))
	case *GetRooms:
		res, err := cs.handleGetRooms(ctx, entry)
		cs.reply(c, msg, res, err)
	case *UpdateProfile:
		cs.replySuccess(c, msg, cs.handleUpdateProfile(ctx, entry, cmd))
	default:
		cs.log.Printf("unhandled command %T", cmd)
	}
}

func (cs *ChatServer) reply(c *Client, msg *ClientMessage, data any, err error) {
	if err != nil {
		cs.log.Printf("%s from %q: %v", msg.Event, c.id, err)
		c.queueMessage(ErrReply(msg.Id, msg.Event, err, nil))
		return
	}
	c.queueMessage(NoErrOK(msg.Id, msg.Event, data))
}

// replySuccess answers commands whose result is {success, error?}.
func (cs *ChatServer) replySuccess(c *Client, msg *ClientMessage, err error) {
	if err != nil {
		cs.log.Printf("%s from %q: %v", msg.Event, c.id, err)
		c.queueMessage(ErrReply(msg.Id, msg.Event, err, SuccessResult{Error: publicError(err)}))
		return
	}
	c.queueMessage(NoErrOK(msg.Id, msg.Event, SuccessResult{Success: true}))
}

// logDropped handles failures of commands that have no reply: the error is
// logged and nothing is broadcast.
func (cs *ChatServer) logDropped(msg *ClientMessage, entry PresenceEntry, err error) {
	if err != nil {
		cs.log.Printf("%s from %q (%s) dropped: %v", msg.Event, entry.ConnId, entry.Username, err)
	}
}

func (cs *ChatServer) handleJoinRoom(ctx context.Context, c *Client, entry PresenceEntry, cmd *JoinRoom) (*JoinRoomResult, error) {
	if cmd.RoomId == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrInvalidInput)
	}

	// subscribe before reading history so nothing sent in between is lost
	cs.router.JoinGroup(c.id, cmd.RoomId)

	messages, err := cs.roomHistory(ctx, cmd.RoomId, entry.UserId)
	if err != nil {
		if errors.Is(err, ErrNotAMember) {
			cs.router.LeaveGroup(c.id, cmd.RoomId)
		}
		return nil, err
	}

	return &JoinRoomResult{Messages: messages}, nil
}

func (cs *ChatServer) handleSendMessage(ctx context.Context, entry PresenceEntry, cmd *SendMessage) error {
	content := strings.TrimSpace(cmd.Content)
	if cmd.RoomId == "" || content == "" {
		return fmt.Errorf("%w: room id and content are required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidInput, maxContentLength)
	}

	if _, err := cs.membership(ctx, cmd.RoomId, entry.UserId); err != nil {
		return err
	}

	msg, err := cs.db.CreateMessage(ctx, database.CreateMessageParams{
		RoomId:  cmd.RoomId,
		UserId:  entry.UserId,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	cs.stats.Incr(metricMessagesSent)

	cs.typing.WithRoom(cmd.RoomId, func() {
		if cs.typing.ClearTyping(cmd.RoomId, entry.UserId) {
			cs.emitTypingUsers(cmd.RoomId)
		}
	})

	cs.router.EmitToRoom(cmd.RoomId, NewEvent(EventNewMessage, types.MessageView{
		Id:        msg.Id,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		User: types.UserSummary{
			Id:           entry.UserId,
			Username:     entry.Username,
			DisplayColor: entry.DisplayColor,
		},
		Reactions: []types.ReactionView{},
	}))

	return nil
}

func (cs *ChatServer) handleTyping(entry PresenceEntry, cmd *Typing) error {
	if cmd.RoomId == "" {
		return fmt.Errorf("%w: room id is required", ErrInvalidInput)
	}

	cs.typing.WithRoom(cmd.RoomId, func() {
		if cmd.IsTyping {
			cs.typing.SetTyping(cmd.RoomId, entry.UserId)
		} else {
			cs.typing.ClearTyping(cmd.RoomId, entry.UserId)
		}
		cs.emitTypingUsers(cmd.RoomId)
	})

	return nil
}

func (cs *ChatServer) handleAddReaction(ctx context.Context, entry PresenceEntry, cmd *AddReaction) (database.Reaction, error) {
	emoji := strings.TrimSpace(cmd.Emoji)
	if cmd.MessageId == "" || emoji == "" || len(emoji) > maxEmojiLength {
		return database.Reaction{}, fmt.Errorf("%w: message id and emoji are required", ErrInvalidInput)
	}

	msg, err := cs.db.GetMessageById(ctx, cmd.MessageId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Reaction{}, fmt.Errorf("message %q: %w", cmd.MessageId, ErrNotFound)
		}
		return database.Reaction{}, fmt.Errorf("get message: %w", err)
	}

	if _, err := cs.membership(ctx, msg.RoomId, entry.UserId); err != nil {
		return database.Reaction{}, err
	}

	reaction, _, err := cs.db.FindOrCreateReaction(ctx, msg.Id, entry.UserId, emoji)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Reaction{}, fmt.Errorf("message %q: %w", cmd.MessageId, ErrNotFound)
		}
		return database.Reaction{}, fmt.Errorf("add reaction: %w", err)
	}

	// re-adding announces the existing reaction again
	cs.router.EmitToRoom(msg.RoomId, NewEvent(EventReactionAdded, ReactionAdded{
		MessageId: msg.Id,
		Reaction: types.ReactionView{
			Id:       reaction.Id,
			Emoji:    reaction.Emoji,
			UserId:   entry.UserId,
			Username: entry.Username,
		},
	}))

	return reaction, nil
}

func (cs *ChatServer) handleRemoveReaction(ctx context.Context, entry PresenceEntry, cmd *RemoveReaction) error {
	if cmd.ReactionId == "" {
		return fmt.Errorf("%w: reaction id is required", ErrInvalidInput)
	}

	reaction, err := cs.db.GetReactionById(ctx, cmd.ReactionId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("reaction %q: %w", cmd.ReactionId, ErrNotFound)
		}
		return fmt.Errorf("get reaction: %w", err)
	}

	if reaction.UserId != entry.UserId {
		return fmt.Errorf("%w: you can only remove your own reactions", ErrPermissionDenied)
	}

	msg, err := cs.db.GetMessageById(ctx, reaction.MessageId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("message %q: %w", reaction.MessageId, ErrNotFound)
		}
		return fmt.Errorf("get message: %w", err)
	}

	if err := cs.db.DeleteReaction(ctx, reaction.Id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("reaction %q: %w", reaction.Id, ErrNotFound)
		}
		return fmt.Errorf("delete reaction: %w", err)
	}

	cs.router.EmitToRoom(msg.RoomId, NewEvent(EventReactionRemoved, ReactionRemoved{
		MessageId:  msg.Id,
		ReactionId: reaction.Id,
	}))

	return nil
}

func (cs *ChatServer) handleCreateRoom(ctx context.Context, entry PresenceEntry, cmd *CreateRoom) (*CreateRoomResult, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" || utf8.RuneCountInString(name) > maxRoomNameLength {
		return nil, fmt.Errorf("%w: room name must be 1-%d characters", ErrInvalidInput, maxRoomNameLength)
	}

	members := memberParams(cmd.MemberIds, cmd.MemberHistoryAccess, entry.UserId, true)
	room, err := cs.db.CreateRoom(ctx, database.CreateRoomParams{
		Name:      name,
		IsPrivate: cmd.IsPrivate,
		CreatorId: entry.UserId,
		Members:   members,
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown member", ErrNotFound)
		}
		return nil, fmt.Errorf("create room: %w", err)
	}
	cs.stats.Incr(metricRoomsCreated)

	notify := make([]string, 0, len(members)+1)
	notify = append(notify, entry.UserId)
	for _, m := range members {
		notify = append(notify, m.UserId)
	}
	cs.notifyRoomCreated(notify, room, entry.ConnId)

	return &CreateRoomResult{Room: roomInfo(room)}, nil
}

func (cs *ChatServer) handleAddMembersToRoom(ctx context.Context, entry PresenceEntry, cmd *AddMembersToRoom) error {
	if cmd.RoomId == "" {
		return fmt.Errorf("%w: room id is required", ErrInvalidInput)
	}

	room, err := cs.db.GetRoomById(ctx, cmd.RoomId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("room %q: %w", cmd.RoomId, ErrNotFound)
		}
		return fmt.Errorf("get room: %w", err)
	}

	if room.CreatorId != entry.UserId {
		return fmt.Errorf("%w: only the room owner can add members", ErrPermissionDenied)
	}

	// members added before a failure still learn about the room
	var added []string
	defer func() { cs.notifyRoomCreated(added, room, "") }()

	// late invitees do not see history unless explicitly granted
	for _, m := range memberParams(cmd.MemberIds, cmd.MemberHistoryAccess, "", false) {
		ok, err := cs.db.AddMembership(ctx, room.Id, m.UserId, m.HasHistoryAccess)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("user %q: %w", m.UserId, ErrNotFound)
			}
			return fmt.Errorf("add membership: %w", err)
		}
		if ok {
			added = append(added, m.UserId)
		}
	}

	return nil
}

func (cs *ChatServer) handleGetRooms(ctx context.Context, entry PresenceEntry) (*GetRoomsResult, error) {
	rooms, err := cs.userRooms(ctx, entry.UserId)
	if err != nil {
		return nil, err
	}
	return &GetRoomsResult{Rooms: rooms}, nil
}

func (cs *ChatServer) handleUpdateProfile(ctx context.Context, entry PresenceEntry, cmd *UpdateProfile) error {
	_, err := cs.UpdateProfile(ctx, entry.UserId, cmd.Username, cmd.DisplayColor)
	return err
}

// UpdateProfile validates and stores a new username and display color for
// userId and refreshes every live connection of that user. Empty fields
// keep their current value.
func (cs *ChatServer) UpdateProfile(ctx context.Context, userId, username, color string) (database.User, error) {
	username = strings.TrimSpace(username)
	color = strings.TrimSpace(color)

	if username != "" && utf8.RuneCountInString(username) < minUsernameLength {
		return database.User{}, fmt.Errorf("%w: username must be at least %d characters", ErrInvalidInput, minUsernameLength)
	}
	if color != "" && !displayColorRe.MatchString(color) {
		return database.User{}, fmt.Errorf("%w: display color must be a hex color like #3B82F6", ErrInvalidInput)
	}

	current, err := cs.db.GetUserById(ctx, userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.User{}, fmt.Errorf("user %q: %w", userId, ErrNotFound)
		}
		return database.User{}, fmt.Errorf("get user: %w", err)
	}

	if username == "" {
		username = current.Username
	}
	if color == "" {
		color = current.DisplayColor
	}

	if username != current.Username {
		existing, err := cs.db.GetUserByUsername(ctx, username)
		if err == nil && existing.Id != current.Id {
			return database.User{}, fmt.Errorf("%w: username already exists", ErrConflict)
		} else if err != nil && !errors.Is(err, database.ErrNotFound) {
			return database.User{}, fmt.Errorf("get user by username: %w", err)
		}
	}

	updated, err := cs.db.UpdateUserProfile(ctx, database.UpdateProfileParams{
		UserId:       current.Id,
		Username:     username,
		DisplayColor: color,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return database.User{}, fmt.Errorf("%w: username already exists", ErrConflict)
		}
		return database.User{}, fmt.Errorf("update profile: %w", err)
	}

	err = cs.submit(cs.profileChan, presenceReq{profile: &profileChange{
		userId:       updated.Id,
		username:     updated.Username,
		displayColor: updated.DisplayColor,
	}})
	if errors.Is(err, ErrServerClosed) {
		// no live connections remain to refresh
		cs.log.Printf("profile of %q stored after shutdown", updated.Id)
		return updated, nil
	}
	return updated, err
}
