package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duome/duochat/pkg/auth"
	"github.com/duome/duochat/pkg/model"
	"github.com/duome/duochat/pkg/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Max inbound frame size. Generous enough for SDP bodies.
	maxFrameSize = 512 * 1024

	// Per-session outbound buffer. A full buffer means a stalled peer;
	// frames past it are dropped, recovered via the history endpoint.
	sendBufferSize = 256
)

// Session lifecycle. A session object only exists once the credential has
// been verified (the connecting phase lives in ServeWS, before upgrade);
// closed is terminal and idempotent.
const (
	stateAuthenticated int32 = iota
	stateActive
	stateClosed
)

// wsConn is the slice of *websocket.Conn the session uses. Narrowed to an
// interface so tests can substitute a stub transport.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session binds one authenticated identity to one live transport
// connection. It owns its registry entry and routes inbound events to the
// broadcaster or the signaling relay by kind, in arrival order.
type Session struct {
	server   *Server
	identity model.Identity
	conn     wsConn
	send     chan []byte
	done     chan struct{}
	state    atomic.Int32
	closing  sync.Once
}

func newSession(srv *Server, identity model.Identity, conn wsConn) *Session {
	s := &Session{
		server:   srv,
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
	s.state.Store(stateAuthenticated)
	return s
}

// Identity returns the session's immutable identity.
func (s *Session) Identity() model.Identity {
	return s.identity
}

// start performs the authenticated->active transition: register (evicting
// any prior handle for the same user), announce presence to peers, hand the
// registry snapshot to this connection, then start the pumps.
func (s *Session) start() {
	if old := s.server.presence.Register(s); old != nil {
		slog.Info("evicting superseded session", "user", s.identity.UserID)
		s.server.metrics.SessionsEvicted.Add(1)
		old.Close()
	}
	s.server.presence.BroadcastPresence(s, true)
	s.sendSnapshot()
	s.state.Store(stateActive)

	go s.writePump()
	go s.readPump()
}

// sendSnapshot queues the current presence view for this connection, minus
// the connection's own identity (the client already knows it is online).
// Runs before the pumps so it is the first frame the client sees.
func (s *Session) sendSnapshot() {
	peers := make([]model.Identity, 0)
	for _, id := range s.server.presence.Snapshot() {
		if id.UserID != s.identity.UserID {
			peers = append(peers, id)
		}
	}
	frame, err := protocol.Encode(protocol.EventOnlineUsers, peers)
	if err != nil {
		slog.Error("encode presence snapshot", "err", err)
		return
	}
	s.enqueue(frame)
}

// enqueue queues a frame for delivery. Delivery is at-most-once: when the
// peer has stalled and the buffer is full the frame is dropped, not
// retried; the client recovers through the history endpoint.
func (s *Session) enqueue(frame []byte) bool {
	if s.state.Load() == stateClosed {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		s.server.metrics.FramesDropped.Add(1)
		slog.Warn("send buffer full, dropping frame", "user", s.identity.UserID)
		return false
	}
}

// Close tears the session down: deregister, announce offline (only if this
// handle was still the registered one), release the transport. Idempotent;
// safe to call from any goroutine.
func (s *Session) Close() {
	s.closing.Do(func() {
		s.state.Store(stateClosed)
		if s.server.presence.Deregister(s) {
			s.server.presence.BroadcastPresence(s, false)
		}
		close(s.done)
		_ = s.conn.Close()
	})
}

// readPump reads frames off the transport and dispatches them in arrival
// order. It runs for the life of the connection; returning closes the
// session.
func (s *Session) readPump() {
	defer func() {
		s.Close()
		s.server.metrics.ActiveConnections.Add(-1)
		s.server.metrics.TotalDisconnects.Add(1)
		slog.Info("client disconnected", "user", s.identity.Nickname, "id", s.identity.UserID)
	}()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("unexpected close", "user", s.identity.UserID, "err", err)
			}
			return
		}
		s.dispatch(frame)
	}
}

// writePump drains the send queue to the transport and keeps the
// connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("write failed", "user", s.identity.UserID, "err", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// dispatch routes one inbound frame by event kind. Malformed or unknown
// frames are logged and dropped; they never terminate the session.
func (s *Session) dispatch(frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		slog.Warn("bad frame", "user", s.identity.UserID, "err", err)
		return
	}

	switch env.Event {
	case protocol.EventMessage:
		var sub protocol.MessageSubmit
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			slog.Warn("bad message payload", "user", s.identity.UserID, "err", err)
			return
		}
		if _, err := s.server.broadcaster.Submit(s.identity, sub.Kind, sub.Content, sub.Duration); err != nil {
			// Persistence failure is local to this submission: surfaced to
			// the sender only, nothing was broadcast.
			slog.Error("message submission failed", "user", s.identity.UserID, "err", err)
			s.sendError("message could not be saved")
		}

	case protocol.EventTyping:
		var isTyping bool
		if err := json.Unmarshal(env.Data, &isTyping); err != nil {
			slog.Warn("bad typing payload", "user", s.identity.UserID, "err", err)
			return
		}
		s.server.relay.Typing(s, isTyping)

	case protocol.EventCallRequest, protocol.EventCallAnswer, protocol.EventCallEnd,
		protocol.EventSDPOffer, protocol.EventSDPAnswer, protocol.EventICECandidate:
		s.server.relay.Relay(s, env.Event, env.Data)

	default:
		slog.Warn("unknown event", "event", env.Event, "user", s.identity.UserID)
	}
}

// sendError queues an error notice for this connection only.
func (s *Session) sendError(message string) {
	frame, err := protocol.Encode(protocol.EventError, protocol.ErrorNotice{Message: message})
	if err != nil {
		return
	}
	s.enqueue(frame)
}

// ServeWS authenticates the handshake and upgrades it to a live session.
// A bad credential rejects the upgrade; no session is created and no
// events are ever dispatched for the failed connection.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	s.metrics.TotalConnections.Add(1)

	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}

	identity, err := s.verifier.Verify(token)
	if err != nil {
		s.metrics.FailedAuths.Add(1)
		slog.Warn("ws auth failed", "remote", r.RemoteAddr, "err", err)
		if errors.Is(err, auth.ErrMissingToken) {
			http.Error(w, "unauthorized: token required", http.StatusUnauthorized)
		} else {
			http.Error(w, "unauthorized: invalid token", http.StatusUnauthorized)
		}
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade failed", "user", identity.UserID, "err", err)
		return
	}

	s.metrics.SuccessfulAuths.Add(1)
	s.metrics.ActiveConnections.Add(1)
	slog.Info("client connected", "user", identity.Nickname, "id", identity.UserID)

	newSession(s, identity, conn).start()
}
