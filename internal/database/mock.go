package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetUserById(ctx context.Context, userId string) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) UpdateUserProfile(ctx context.Context, params UpdateProfileParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetRoomById(ctx context.Context, roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) EnsureDefaultRoom(ctx context.Context, name string) (Room, error) {
	args := m.Called(name)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetDefaultRoom(ctx context.Context, name string) (Room, error) {
	args := m.Called(name)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetMembership(ctx context.Context, roomId, userId string) (Membership, error) {
	args := m.Called(roomId, userId)
	return args.Get(0).(Membership), args.Error(1)
}
func (m *MockChatRepository) AddMembership(ctx context.Context, roomId, userId string, hasHistoryAccess bool) (bool, error) {
	args := m.Called(roomId, userId, hasHistoryAccess)
	return args.Bool(0), args.Error(1)
}
func (m *MockChatRepository) ListMembershipsForUser(ctx context.Context, userId string) ([]Membership, error) {
	args := m.Called(userId)
	if memberships, ok := args.Get(0).([]Membership); ok {
		return memberships, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) ListRoomMemberIds(ctx context.Context, roomId string) ([]string, error) {
	args := m.Called(roomId)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessageById(ctx context.Context, messageId string) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetRoomMessages(ctx context.Context, roomId string, after *time.Time) ([]Message, error) {
	args := m.Called(roomId, after)
	if messages, ok := args.Get(0).([]Message); ok {
		return messages, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) FindOrCreateReaction(ctx context.Context, messageId, userId, emoji string) (Reaction, bool, error) {
	args := m.Called(messageId, userId, emoji)
	return args.Get(0).(Reaction), args.Bool(1), args.Error(2)
}
func (m *MockChatRepository) GetReactionById(ctx context.Context, reactionId string) (Reaction, error) {
	args := m.Called(reactionId)
	return args.Get(0).(Reaction), args.Error(1)
}
func (m *MockChatRepository) DeleteReaction(ctx context.Context, reactionId string) error {
	args := m.Called(reactionId)
	return args.Error(0)
}
