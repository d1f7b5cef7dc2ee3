package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-roomchat/internal/database"
	"github.com/npezzotti/go-roomchat/internal/stats"
	"github.com/npezzotti/go-roomchat/internal/types"
	"github.com/teris-io/shortid"
	"golang.org/x/time/rate"
)

const (
	metricConnections  = "NumConnections"
	metricMessagesSent = "NumMessagesSent"
	metricRoomsCreated = "NumRoomsCreated"
	metricRateLimited  = "NumRateLimited"

	defaultCommandRate  = 20
	defaultCommandBurst = 40
)

// TokenVerifier resolves a session token to the user id it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type presenceReq struct {
	client  *Client
	profile *profileChange
	done    chan struct{}
}

type profileChange struct {
	userId       string
	username     string
	displayColor string
}

type stopReq struct {
	done chan struct{}
}

// ChatServer coordinates live connections: it owns the presence table,
// the typing tracker and the broadcast router, and runs every inbound
// command against the durable store.
type ChatServer struct {
	log            *log.Logger
	db             database.ChatRepository
	auth           TokenVerifier
	stats          stats.StatsProvider
	presence       *PresenceTable
	typing         *TypingTracker
	router         *Router
	sid            *shortid.Shortid
	registerChan   chan presenceReq
	deregisterChan chan presenceReq
	profileChan    chan presenceReq
	stop           chan stopReq
	done           chan struct{}
	ctx            context.Context
	cancel         context.CancelFunc
	commandRate    rate.Limit
	commandBurst   int
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, auth TokenVerifier, su stats.StatsProvider) (*ChatServer, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("shortid: %w", err)
	}

	for _, name := range []string{metricConnections, metricMessagesSent, metricRoomsCreated, metricRateLimited} {
		su.RegisterMetric(name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ChatServer{
		log:            logger,
		db:             db,
		auth:           auth,
		stats:          su,
		presence:       NewPresenceTable(),
		typing:         NewTypingTracker(),
		router:         NewRouter(logger),
		sid:            sid,
		registerChan:   make(chan presenceReq),
		deregisterChan: make(chan presenceReq),
		profileChan:    make(chan presenceReq),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		commandRate:    rate.Limit(defaultCommandRate),
		commandBurst:   defaultCommandBurst,
	}, nil
}

// Run serialises every presence mutation together with the online-list
// broadcast that follows it.
func (cs *ChatServer) Run() {
	for {
		select {
		case req := <-cs.registerChan:
			cs.handleRegister(req.client)
			close(req.done)
		case req := <-cs.deregisterChan:
			cs.handleDeregister(req.client)
			close(req.done)
		case req := <-cs.profileChan:
			cs.handleProfileChange(req.profile)
			close(req.done)
		case req := <-cs.stop:
			cs.log.Println("stopping chat server")
			for _, c := range cs.router.snapshot() {
				c.stopClient()
			}
			close(cs.done)
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) submit(ch chan presenceReq, req presenceReq) error {
	req.done = make(chan struct{})
	select {
	case ch <- req:
	case <-cs.done:
		return ErrServerClosed
	}

	select {
	case <-req.done:
		return nil
	case <-cs.done:
		return ErrServerClosed
	}
}

// Connect authenticates a freshly upgraded connection and starts its
// pumps. A missing or invalid token closes the connection.
func (cs *ChatServer) Connect(conn *websocket.Conn, token string) error {
	user, err := cs.authenticate(cs.ctx, token)
	if err != nil {
		cs.log.Println("connect:", err)
		closeWithReason(conn, websocket.ClosePolicyViolation, "unauthorized")
		return err
	}

	connId, err := cs.sid.Generate()
	if err != nil {
		closeWithReason(conn, websocket.CloseInternalServerErr, "internal server error")
		return fmt.Errorf("generate connection id: %w", err)
	}

	c := NewClient(connId, types.UserSummary{
		Id:           user.Id,
		Username:     user.Username,
		DisplayColor: user.DisplayColor,
	}, conn, cs, cs.log)
	if err := cs.submit(cs.registerChan, presenceReq{client: c}); err != nil {
		closeWithReason(conn, websocket.CloseGoingAway, "server shutting down")
		return err
	}

	cs.log.Printf("user connected: %s (%s)", user.Username, connId)

	go c.Write()
	go c.Read(cs.ctx)
	return nil
}

func (cs *ChatServer) authenticate(ctx context.Context, token string) (database.User, error) {
	if token == "" {
		return database.User{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	userId, err := cs.auth.Verify(token)
	if err != nil {
		return database.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := cs.db.GetUserById(ctx, userId)
	if err != nil {
		return database.User{}, fmt.Errorf("%w: lookup user %q: %v", ErrUnauthenticated, userId, err)
	}

	return user, nil
}

func closeWithReason(conn *websocket.Conn, code int, reason string) {
	if conn == nil {
		return
	}
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	conn.Close()
}

func (cs *ChatServer) deregister(c *Client) {
	if err := cs.submit(cs.deregisterChan, presenceReq{client: c}); err != nil && !errors.Is(err, ErrServerClosed) {
		cs.log.Println("deregister:", err)
	}
}

func (cs *ChatServer) handleRegister(c *Client) {
	cs.router.Attach(c)
	cs.presence.Register(c.id, c.user.Id, c.user.Username, c.user.DisplayColor)
	cs.stats.Incr(metricConnections)
	cs.emitConnectedUsers()
}

func (cs *ChatServer) handleDeregister(c *Client) {
	entry, ok := cs.presence.Lookup(c.id)
	if !ok {
		cs.router.Detach(c.id)
		return
	}

	for _, roomId := range cs.typing.RoomsForUser(entry.UserId) {
		cs.typing.WithRoom(roomId, func() {
			if cs.typing.ClearTyping(roomId, entry.UserId) {
				cs.emitTypingUsers(roomId)
			}
		})
	}

	cs.router.Detach(c.id)
	cs.presence.Remove(c.id)
	cs.stats.Decr(metricConnections)
	cs.emitConnectedUsers()

	cs.log.Printf("user disconnected: %s (%s)", entry.Username, c.id)
}

func (cs *ChatServer) handleProfileChange(p *profileChange) {
	cs.presence.UpdateUser(p.userId, p.username, p.displayColor)
	cs.emitConnectedUsers()
}

func (cs *ChatServer) emitConnectedUsers() {
	cs.router.EmitToAll(NewEvent(EventConnectedUsers, ConnectedUsers{
		Users: cs.presence.OnlineUsers(),
	}))
}

// emitTypingUsers must be called while holding the room's typing lock.
func (cs *ChatServer) emitTypingUsers(roomId string) {
	cs.router.EmitToRoom(roomId, NewEvent(EventTypingUsers, TypingUsers{
		RoomId: roomId,
		Users:  cs.typing.TypingHandles(roomId, cs.presence),
	}))
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")
	defer cs.cancel()

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
