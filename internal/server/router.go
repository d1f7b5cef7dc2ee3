package server

import (
	"log"
	"sync"
)

// Router fans events out to live connections, either to everyone, to the
// connections subscribed to a room, or to an explicit list.
type Router struct {
	mu       sync.RWMutex
	log      *log.Logger
	clients  map[string]*Client
	groups   map[string]map[string]struct{}
	memberOf map[string]map[string]struct{}
}

func NewRouter(logger *log.Logger) *Router {
	return &Router{
		log:      logger,
		clients:  make(map[string]*Client),
		groups:   make(map[string]map[string]struct{}),
		memberOf: make(map[string]map[string]struct{}),
	}
}

func (r *Router) Attach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c.id] = c
}

// Detach forgets the connection and removes it from every group.
func (r *Router) Detach(connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, connId)
	for roomId := range r.memberOf[connId] {
		if conns, ok := r.groups[roomId]; ok {
			delete(conns, connId)
			if len(conns) == 0 {
				delete(r.groups, roomId)
			}
		}
	}
	delete(r.memberOf, connId)
}

// JoinGroup subscribes connId to roomId. Joining twice is a no-op.
func (r *Router) JoinGroup(connId, roomId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[connId]; !ok {
		return
	}

	if r.groups[roomId] == nil {
		r.groups[roomId] = make(map[string]struct{})
	}
	r.groups[roomId][connId] = struct{}{}

	if r.memberOf[connId] == nil {
		r.memberOf[connId] = make(map[string]struct{})
	}
	r.memberOf[connId][roomId] = struct{}{}
}

// LeaveGroup unsubscribes connId from roomId.
func (r *Router) LeaveGroup(connId, roomId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conns, ok := r.groups[roomId]; ok {
		delete(conns, connId)
		if len(conns) == 0 {
			delete(r.groups, roomId)
		}
	}
	if rooms, ok := r.memberOf[connId]; ok {
		delete(rooms, roomId)
		if len(rooms) == 0 {
			delete(r.memberOf, connId)
		}
	}
}

func (r *Router) InGroup(connId, roomId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.groups[roomId][connId]
	return ok
}

func (r *Router) GroupSize(roomId string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.groups[roomId])
}

func (r *Router) EmitToRoom(roomId string, msg *ServerMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for connId := range r.groups[roomId] {
		if c, ok := r.clients[connId]; ok {
			c.queueMessage(msg)
		}
	}
}

func (r *Router) EmitToAll(msg *ServerMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.clients {
		c.queueMessage(msg)
	}
}

// EmitToConnections delivers msg to the listed connections. Unknown ids
// are skipped.
func (r *Router) EmitToConnections(connIds []string, msg *ServerMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, connId := range connIds {
		if c, ok := r.clients[connId]; ok {
			c.queueMessage(msg)
		}
	}
}

func (r *Router) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}
