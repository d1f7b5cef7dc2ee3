package database

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// ChatRepository is the durable store for users, rooms, memberships,
// messages and reactions.
type ChatRepository interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserById(ctx context.Context, userId string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	UpdateUserProfile(ctx context.Context, params UpdateProfileParams) (User, error)

	CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error)
	GetRoomById(ctx context.Context, roomId string) (Room, error)
	EnsureDefaultRoom(ctx context.Context, name string) (Room, error)
	GetDefaultRoom(ctx context.Context, name string) (Room, error)

	GetMembership(ctx context.Context, roomId, userId string) (Membership, error)
	AddMembership(ctx context.Context, roomId, userId string, hasHistoryAccess bool) (bool, error)
	ListMembershipsForUser(ctx context.Context, userId string) ([]Membership, error)
	ListRoomMemberIds(ctx context.Context, roomId string) ([]string, error)

	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessageById(ctx context.Context, messageId string) (Message, error)
	// GetRoomMessages returns the room's messages ordered by creation time.
	// A non-nil after restricts the result to messages created strictly
	// after it.
	GetRoomMessages(ctx context.Context, roomId string, after *time.Time) ([]Message, error)

	FindOrCreateReaction(ctx context.Context, messageId, userId, emoji string) (Reaction, bool, error)
	GetReactionById(ctx context.Context, reactionId string) (Reaction, error)
	DeleteReaction(ctx context.Context, reactionId string) error
}
