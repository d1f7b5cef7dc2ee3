package server

import (
	"sort"
	"sync"
)

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// TypingTracker records which users are typing in which room. Rooms with
// no typists have no entry.
type TypingTracker struct {
	mu    sync.Mutex
	rooms map[string][]string
	locks map[string]*roomLock
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		rooms: make(map[string][]string),
		locks: make(map[string]*roomLock),
	}
}

// WithRoom runs fn while holding the lock for roomId so that a typing
// update and the broadcast that follows it are not interleaved with
// another update to the same room.
func (t *TypingTracker) WithRoom(roomId string, fn func()) {
	t.mu.Lock()
	l, ok := t.locks[roomId]
	if !ok {
		l = &roomLock{}
		t.locks[roomId] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	defer func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, roomId)
		}
		t.mu.Unlock()
	}()

	fn()
}

func (t *TypingTracker) SetTyping(roomId, userId string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range t.rooms[roomId] {
		if id == userId {
			return
		}
	}
	t.rooms[roomId] = append(t.rooms[roomId], userId)
}

// ClearTyping removes userId from the room and reports whether it was
// marked as typing.
func (t *TypingTracker) ClearTyping(roomId, userId string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.rooms[roomId]
	if !ok {
		return false
	}

	for i, id := range users {
		if id != userId {
			continue
		}

		users = append(users[:i:i], users[i+1:]...)
		if len(users) == 0 {
			delete(t.rooms, roomId)
		} else {
			t.rooms[roomId] = users
		}
		return true
	}

	return false
}

func (t *TypingTracker) Users(roomId string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]string, len(t.rooms[roomId]))
	copy(users, t.rooms[roomId])
	return users
}

func (t *TypingTracker) RoomsForUser(userId string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var rooms []string
	for roomId, users := range t.rooms {
		for _, id := range users {
			if id == userId {
				rooms = append(rooms, roomId)
				break
			}
		}
	}
	sort.Strings(rooms)
	return rooms
}

func (t *TypingTracker) HasRoom(roomId string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.rooms[roomId]
	return ok
}

// TypingHandles resolves the room's typists to their current handles.
// Users without a live connection are skipped.
func (t *TypingTracker) TypingHandles(roomId string, presence *PresenceTable) []string {
	handles := make([]string, 0)
	seen := make(map[string]struct{})
	for _, userId := range t.Users(roomId) {
		summary, ok := presence.UserSummary(userId)
		if !ok {
			continue
		}
		if _, dup := seen[summary.Username]; dup {
			continue
		}
		seen[summary.Username] = struct{}{}
		handles = append(handles, summary.Username)
	}
	return handles
}
