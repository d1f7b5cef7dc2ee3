package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/npezzotti/go-roomchat/internal/database"
)

// memRepo is an in-memory database.ChatRepository for scenario tests. Its
// clock advances one millisecond per write so creation order is strict.
type memRepo struct {
	mu        sync.Mutex
	seq       int
	clock     time.Time
	users     map[string]database.User
	rooms     map[string]database.Room
	members   []database.Membership
	messages  []database.Message
	reactions []database.Reaction
}

func newMemRepo() *memRepo {
	return &memRepo{
		clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		users: make(map[string]database.User),
		rooms: make(map[string]database.Room),
	}
}

func (r *memRepo) nextId(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *memRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Millisecond)
	return r.clock
}

func (r *memRepo) Ping(ctx context.Context) error {
	return nil
}

func (r *memRepo) CreateUser(ctx context.Context, params database.CreateUserParams) (database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == params.Username || u.EmailAddress == params.EmailAddress {
			return database.User{}, database.ErrDuplicate
		}
	}

	now := r.tick()
	u := database.User{
		Id:           r.nextId("user"),
		Username:     params.Username,
		EmailAddress: params.EmailAddress,
		PasswordHash: params.PasswordHash,
		DisplayColor: database.DefaultDisplayColor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[u.Id] = u
	return u, nil
}

func (r *memRepo) GetUserById(ctx context.Context, userId string) (database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userId]
	if !ok {
		return database.User{}, database.ErrNotFound
	}
	return u, nil
}

func (r *memRepo) GetUserByUsername(ctx context.Context, username string) (database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return database.User{}, database.ErrNotFound
}

func (r *memRepo) UpdateUserProfile(ctx context.Context, params database.UpdateProfileParams) (database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[params.UserId]
	if !ok {
		return database.User{}, database.ErrNotFound
	}
	for _, other := range r.users {
		if other.Id != u.Id && other.Username == params.Username {
			return database.User{}, database.ErrDuplicate
		}
	}

	u.Username = params.Username
	u.DisplayColor = params.DisplayColor
	u.UpdatedAt = r.tick()
	r.users[u.Id] = u
	return u, nil
}

func (r *memRepo) CreateRoom(ctx context.Context, params database.CreateRoomParams) (database.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range params.Members {
		if _, ok := r.users[m.UserId]; !ok {
			return database.Room{}, database.ErrNotFound
		}
	}

	now := r.tick()
	room := database.Room{
		Id:        r.nextId("room"),
		Name:      params.Name,
		IsPrivate: params.IsPrivate,
		CreatorId: params.CreatorId,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.rooms[room.Id] = room

	if params.CreatorId != "" {
		r.addMember(room.Id, params.CreatorId, true, now)
	}
	for _, m := range params.Members {
		if m.UserId == params.CreatorId {
			continue
		}
		r.addMember(room.Id, m.UserId, m.HasHistoryAccess, now)
	}
	return room, nil
}

func (r *memRepo) GetRoomById(ctx context.Context, roomId string) (database.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomId]
	if !ok {
		return database.Room{}, database.ErrNotFound
	}
	return room, nil
}

func (r *memRepo) EnsureDefaultRoom(ctx context.Context, name string) (database.Room, error) {
	if room, err := r.GetDefaultRoom(ctx, name); err == nil {
		return room, nil
	}
	return r.CreateRoom(ctx, database.CreateRoomParams{Name: name})
}

func (r *memRepo) GetDefaultRoom(ctx context.Context, name string) (database.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, room := range r.rooms {
		if room.Name == name && room.CreatorId == "" {
			return room, nil
		}
	}
	return database.Room{}, database.ErrNotFound
}

func (r *memRepo) findMember(roomId, userId string) (database.Membership, bool) {
	for _, m := range r.members {
		if m.RoomId == roomId && m.UserId == userId {
			return m, true
		}
	}
	return database.Membership{}, false
}

func (r *memRepo) addMember(roomId, userId string, access bool, joinedAt time.Time) bool {
	if _, ok := r.findMember(roomId, userId); ok {
		return false
	}
	r.members = append(r.members, database.Membership{
		Id:               r.nextId("member"),
		RoomId:           roomId,
		UserId:           userId,
		HasHistoryAccess: access,
		JoinedAt:         joinedAt,
	})
	return true
}

func (r *memRepo) GetMembership(ctx context.Context, roomId, userId string) (database.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.findMember(roomId, userId)
	if !ok {
		return database.Membership{}, database.ErrNotFound
	}
	m.Room = r.rooms[roomId]
	return m, nil
}

func (r *memRepo) AddMembership(ctx context.Context, roomId, userId string, hasHistoryAccess bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomId]; !ok {
		return false, database.ErrNotFound
	}
	if _, ok := r.users[userId]; !ok {
		return false, database.ErrNotFound
	}
	return r.addMember(roomId, userId, hasHistoryAccess, r.tick()), nil
}

func (r *memRepo) ListMembershipsForUser(ctx context.Context, userId string) ([]database.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []database.Membership
	for _, m := range r.members {
		if m.UserId == userId {
			m.Room = r.rooms[m.RoomId]
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) ListRoomMemberIds(ctx context.Context, roomId string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, m := range r.members {
		if m.RoomId == roomId {
			ids = append(ids, m.UserId)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memRepo) CreateMessage(ctx context.Context, params database.CreateMessageParams) (database.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := database.Message{
		Id:        r.nextId("msg"),
		RoomId:    params.RoomId,
		UserId:    params.UserId,
		Content:   params.Content,
		CreatedAt: r.tick(),
		Author:    r.users[params.UserId],
	}
	r.messages = append(r.messages, msg)
	return msg, nil
}

func (r *memRepo) GetMessageById(ctx context.Context, messageId string) (database.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, msg := range r.messages {
		if msg.Id == messageId {
			return msg, nil
		}
	}
	return database.Message{}, database.ErrNotFound
}

func (r *memRepo) GetRoomMessages(ctx context.Context, roomId string, after *time.Time) ([]database.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []database.Message
	for _, msg := range r.messages {
		if msg.RoomId != roomId {
			continue
		}
		if after != nil && !msg.CreatedAt.After(*after) {
			continue
		}
		msg.Author = r.users[msg.UserId]
		msg.Reactions = nil
		for _, re := range r.reactions {
			if re.MessageId == msg.Id {
				re.Author = r.users[re.UserId]
				msg.Reactions = append(msg.Reactions, re)
			}
		}
		out = append(out, msg)
	}
	return out, nil
}

func (r *memRepo) FindOrCreateReaction(ctx context.Context, messageId, userId, emoji string) (database.Reaction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, re := range r.reactions {
		if re.MessageId == messageId && re.UserId == userId && re.Emoji == emoji {
			return re, false, nil
		}
	}

	re := database.Reaction{
		Id:        r.nextId("reaction"),
		MessageId: messageId,
		UserId:    userId,
		Emoji:     emoji,
		CreatedAt: r.tick(),
		Author:    r.users[userId],
	}
	r.reactions = append(r.reactions, re)
	return re, true, nil
}

func (r *memRepo) GetReactionById(ctx context.Context, reactionId string) (database.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, re := range r.reactions {
		if re.Id == reactionId {
			return re, nil
		}
	}
	return database.Reaction{}, database.ErrNotFound
}

func (r *memRepo) DeleteReaction(ctx context.Context, reactionId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, re := range r.reactions {
		if re.Id == reactionId {
			r.reactions = append(r.reactions[:i], r.reactions[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}
