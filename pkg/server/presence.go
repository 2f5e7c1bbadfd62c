package server

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/duome/duochat/pkg/model"
	"github.com/duome/duochat/pkg/protocol"
)

// Presence is the process-wide registry mapping authenticated user identity
// to its single live connection handle. It is the only state shared across
// connection workers; every mutation happens under one mutex, and nothing
// blocking is ever done while holding it — callers receive session handles
// and push to them after the lock is released.
type Presence struct {
	mu     sync.Mutex
	byUser map[int64]*Session
}

// NewPresence creates an empty presence registry.
func NewPresence() *Presence {
	return &Presence{byUser: make(map[int64]*Session)}
}

// Register installs s as the live handle for its user and returns the
// evicted prior handle, if any (most-recent-connection-wins). The caller
// must force-close the returned session; closing it here would mean
// transport I/O under the registry lock.
func (p *Presence) Register(s *Session) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.byUser[s.identity.UserID]
	p.byUser[s.identity.UserID] = s
	if old == s {
		return nil
	}
	return old
}

// Deregister removes s from the registry only if it is still the installed
// handle for its user. Returns false when a newer session has already taken
// over — a stale disconnect arriving out of order must not evict it.
func (p *Presence) Deregister(s *Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.byUser[s.identity.UserID]
	if !ok {
		return false
	}
	if cur != s {
		// Benign race: an old session's disconnect after a takeover.
		slog.Debug("deregister skipped, handle superseded", "user", s.identity.UserID)
		return false
	}
	delete(p.byUser, s.identity.UserID)
	return true
}

// Snapshot returns a point-in-time list of all online identities, ordered
// by user id. Consistent with the set of registered handles at the moment
// of the call.
func (p *Presence) Snapshot() []model.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Identity, 0, len(p.byUser))
	for _, s := range p.byUser {
		out = append(out, s.identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Sessions returns all registered handles (snapshot copy).
func (p *Presence) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, 0, len(p.byUser))
	for _, s := range p.byUser {
		out = append(out, s)
	}
	return out
}

// Others returns all registered handles except origin itself. Exclusion is
// by handle, not user id, so an evicted session of the same user never
// shadows its successor.
func (p *Presence) Others(origin *Session) []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, 0, len(p.byUser))
	for _, s := range p.byUser {
		if s != origin {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of online identities.
func (p *Presence) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byUser)
}

// BroadcastPresence notifies every session except the originating one that
// origin's user came online or went offline.
func (p *Presence) BroadcastPresence(origin *Session, online bool) {
	event := protocol.EventOffline
	if online {
		event = protocol.EventOnline
	}
	frame, err := protocol.Encode(event, origin.identity)
	if err != nil {
		slog.Error("encode presence event", "event", event, "err", err)
		return
	}
	for _, s := range p.Others(origin) {
		s.enqueue(frame)
	}
}
