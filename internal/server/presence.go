package server

import (
	"sort"
	"sync"

	"github.com/npezzotti/go-roomchat/internal/types"
)

type PresenceEntry struct {
	ConnId       string
	UserId       string
	Username     string
	DisplayColor string
	seq          uint64
}

// PresenceTable maps live connections to the authenticated user behind
// them. A user may hold several connections at once.
type PresenceTable struct {
	mu      sync.RWMutex
	entries map[string]*PresenceEntry
	byUser  map[string]map[string]struct{}
	nextSeq uint64
}

func NewPresenceTable() *PresenceTable {
	return &PresenceTable{
		entries: make(map[string]*PresenceEntry),
		byUser:  make(map[string]map[string]struct{}),
	}
}

func (p *PresenceTable) Register(connId, userId, username, color string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.entries[connId]; ok {
		p.unindex(old)
	}

	p.nextSeq++
	p.entries[connId] = &PresenceEntry{
		ConnId:       connId,
		UserId:       userId,
		Username:     username,
		DisplayColor: color,
		seq:          p.nextSeq,
	}

	if p.byUser[userId] == nil {
		p.byUser[userId] = make(map[string]struct{})
	}
	p.byUser[userId][connId] = struct{}{}
}

func (p *PresenceTable) Lookup(connId string) (PresenceEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[connId]
	if !ok {
		return PresenceEntry{}, false
	}
	return *e, true
}

// Remove deletes the entry for connId and returns it.
func (p *PresenceTable) Remove(connId string) (PresenceEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[connId]
	if !ok {
		return PresenceEntry{}, false
	}

	delete(p.entries, connId)
	p.unindex(e)
	return *e, true
}

func (p *PresenceTable) unindex(e *PresenceEntry) {
	if conns, ok := p.byUser[e.UserId]; ok {
		delete(conns, e.ConnId)
		if len(conns) == 0 {
			delete(p.byUser, e.UserId)
		}
	}
}

// All returns every entry in registration order.
func (p *PresenceTable) All() []PresenceEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := make([]PresenceEntry, 0, len(p.entries))
	for _, e := range p.entries {
		all = append(all, *e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	return all
}

func (p *PresenceTable) ConnectionsForUser(userId string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := make([]string, 0, len(p.byUser[userId]))
	for id := range p.byUser[userId] {
		conns = append(conns, id)
	}
	sort.Strings(conns)
	return conns
}

func (p *PresenceTable) IsOnline(userId string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.byUser[userId]) > 0
}

// UserSummary returns the current display identity of userId taken from
// any of its live connections.
func (p *PresenceTable) UserSummary(userId string) (types.UserSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for connId := range p.byUser[userId] {
		e := p.entries[connId]
		return types.UserSummary{
			Id:           e.UserId,
			Username:     e.Username,
			DisplayColor: e.DisplayColor,
		}, true
	}
	return types.UserSummary{}, false
}

// UpdateUser rewrites the display identity on every connection held by
// userId and returns how many entries changed.
func (p *PresenceTable) UpdateUser(userId, username, color string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for connId := range p.byUser[userId] {
		e := p.entries[connId]
		e.Username = username
		e.DisplayColor = color
		n++
	}
	return n
}

// OnlineUsers returns one record per connected user, ordered by the
// user's earliest live connection.
func (p *PresenceTable) OnlineUsers() []types.OnlineUser {
	all := p.All()

	seen := make(map[string]struct{}, len(all))
	users := make([]types.OnlineUser, 0, len(all))
	for _, e := range all {
		if _, ok := seen[e.UserId]; ok {
			continue
		}
		seen[e.UserId] = struct{}{}
		users = append(users, types.OnlineUser{
			UserId:       e.UserId,
			Username:     e.Username,
			DisplayColor: e.DisplayColor,
		})
	}
	return users
}

func (p *PresenceTable) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.entries)
}
