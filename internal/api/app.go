package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-roomchat/internal/auth"
	"github.com/npezzotti/go-roomchat/internal/config"
	"github.com/npezzotti/go-roomchat/internal/database"
	"github.com/npezzotti/go-roomchat/internal/server"
	"github.com/npezzotti/go-roomchat/internal/stats"
)

const (
	metricAccountsCreated = "NumAccountsCreated"
	metricLogins          = "NumLogins"
)

type ChatApp struct {
	log         *log.Logger
	db          database.ChatRepository
	srv         *http.Server
	cs          *server.ChatServer
	stats       stats.StatsProvider
	tokens      *auth.TokenIssuer
	upgrader    websocket.Upgrader
	defaultRoom string
}

func NewChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.ChatRepository, su stats.StatsProvider, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:         logger,
		db:          db,
		cs:          cs,
		stats:       su,
		tokens:      auth.NewTokenIssuer(cfg.SigningKey, cfg.TokenTTL),
		upgrader:    newUpgrader(cfg.AllowedOrigins),
		defaultRoom: cfg.DefaultRoom,
	}

	su.RegisterMetric(metricAccountsCreated)
	su.RegisterMetric(metricLogins)

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/logout", s.logout)
	mux.Handle("GET /api/users/profile", s.authMiddleware(s.profile))
	mux.Handle("PUT /api/users/profile", s.authMiddleware(s.updateProfile))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:     cfg.ServerAddr,
		Handler:  h,
		ErrorLog: logger,
	}

	return s
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
