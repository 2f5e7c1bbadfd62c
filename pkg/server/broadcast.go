package server

import (
	"fmt"
	"sync"

	"github.com/duome/duochat/pkg/datastore"
	"github.com/duome/duochat/pkg/model"
	"github.com/duome/duochat/pkg/protocol"
)

// Broadcaster persists inbound chat messages and fans them out to every
// active connection, including the sender's own (the client uses the echo
// as its delivery acknowledgment).
//
// Submissions are serialized by one mutex: the persist-then-broadcast
// sequence is atomic with respect to ordering, so two messages submitted in
// order reach every connection in that order and carry increasing durable
// ids. Persistence happens outside the presence lock — only the fan-out
// reads the registry, and only for a snapshot of handles.
type Broadcaster struct {
	mu       sync.Mutex
	store    datastore.MessageWriteProvider
	presence *Presence
	metrics  *Metrics
}

// NewBroadcaster creates a broadcaster over the given store and registry.
func NewBroadcaster(store datastore.MessageWriteProvider, presence *Presence, metrics *Metrics) *Broadcaster {
	return &Broadcaster{store: store, presence: presence, metrics: metrics}
}

// Submit persists one message and broadcasts the persisted form. On
// persistence failure nothing is broadcast and the error is returned to
// the caller; registry state is untouched.
func (b *Broadcaster) Submit(sender model.Identity, kind model.MessageKind, content string, duration *int) (*model.Message, error) {
	msg := &model.Message{
		SenderID:   sender.UserID,
		SenderName: sender.Nickname,
		Kind:       kind,
		Content:    content,
		Duration:   duration,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.CreateMessage(msg); err != nil {
		b.metrics.MessagesRejected.Add(1)
		return nil, fmt.Errorf("server: persist message: %w", err)
	}

	frame, err := protocol.Encode(protocol.EventMessage, msg)
	if err != nil {
		return nil, fmt.Errorf("server: encode message: %w", err)
	}

	for _, s := range b.presence.Sessions() {
		s.enqueue(frame)
	}
	b.metrics.MessagesBroadcast.Add(1)

	return msg, nil
}
