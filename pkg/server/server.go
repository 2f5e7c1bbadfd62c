// Package server implements the duochat server: the authenticated real-time
// session layer (presence, message fan-out, call signaling relay) plus the
// HTTP API for account setup, login, uploads, and history.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/duome/duochat/pkg/auth"
	"github.com/duome/duochat/pkg/datastore"
	"github.com/duome/duochat/pkg/media"
)

// Server is the main duochat server.
type Server struct {
	cfg         Config
	verifier    *auth.Verifier
	store       datastore.DataStore
	media       *media.Store
	presence    *Presence
	broadcaster *Broadcaster
	relay       *Relay
	metrics     *Metrics
	upgrader    websocket.Upgrader
	httpSrv     *http.Server
	ctx         context.Context
	cancel      context.CancelFunc
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store datastore.DataStore
	Media *media.Store
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		verifier: auth.NewVerifier(cfg.JWTSecret),
		store:    deps.Store,
		media:    deps.Media,
		presence: NewPresence(),
		metrics:  NewMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The app is served from the same origin; token auth gates the
			// upgrade, so cross-origin dials carry no extra risk.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
	s.broadcaster = NewBroadcaster(deps.Store, s.presence, s.metrics)
	s.relay = NewRelay(s.presence, s.metrics)
	return s
}

// Presence returns the presence registry.
func (s *Server) Presence() *Presence {
	return s.presence
}

// Broadcaster returns the message broadcaster.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Relay returns the signaling relay.
func (s *Server) Relay() *Relay {
	return s.relay
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
