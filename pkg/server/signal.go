package server

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/duome/duochat/pkg/model"
	"github.com/duome/duochat/pkg/protocol"
)

// Relay is the stateless pass-through for call-setup signaling. Envelopes
// are annotated with the sender's identity and forwarded to every other
// active connection; payload semantics (SDP, ICE) are opaque to this
// layer. Nothing is persisted and nothing is acknowledged.
type Relay struct {
	presence *Presence
	metrics  *Metrics
}

// NewRelay creates a relay over the given registry.
func NewRelay(presence *Presence, metrics *Metrics) *Relay {
	return &Relay{presence: presence, metrics: metrics}
}

// Relay forwards one signaling envelope from origin to all other active
// sessions. With no other peer connected this is a silent no-op — the
// caller is not informed; the client UI infers call failure by timeout.
func (r *Relay) Relay(origin *Session, event string, data json.RawMessage) {
	payload, err := annotate(origin.identity, event, data)
	if err != nil {
		slog.Warn("bad signaling payload", "event", event, "user", origin.identity.UserID, "err", err)
		return
	}

	frame, err := protocol.Encode(event, payload)
	if err != nil {
		slog.Error("encode signaling event", "event", event, "err", err)
		return
	}

	targets := r.presence.Others(origin)
	if len(targets) == 0 {
		r.metrics.SignalsDropped.Add(1)
		return
	}
	for _, s := range targets {
		s.enqueue(frame)
	}
	r.metrics.SignalsRelayed.Add(1)
}

// Typing relays an ephemeral typing indicator to all peers except the
// sender. Last-write-wins; never persisted.
func (r *Relay) Typing(origin *Session, isTyping bool) {
	frame, err := protocol.Encode(protocol.EventTyping, protocol.TypingNotice{
		UserID:   origin.identity.UserID,
		Nickname: origin.identity.Nickname,
		IsTyping: isTyping,
	})
	if err != nil {
		slog.Error("encode typing event", "err", err)
		return
	}
	for _, s := range r.presence.Others(origin) {
		s.enqueue(frame)
	}
}

// annotate rebuilds a signaling payload with the sender's identity stamped
// in. Call control events carry the full identity; SDP/ICE events carry the
// bare user id, which is what the client expects on those.
func annotate(from model.Identity, event string, data json.RawMessage) (any, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	switch event {
	case protocol.EventCallRequest:
		var in struct {
			Kind string `json:"type"`
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		return protocol.CallRequest{From: from, Kind: in.Kind}, nil

	case protocol.EventCallAnswer:
		var in struct {
			Accepted bool `json:"accepted"`
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		return protocol.CallAnswer{From: from, Accepted: in.Accepted}, nil

	case protocol.EventCallEnd:
		return protocol.CallEnd{From: from}, nil

	case protocol.EventSDPOffer, protocol.EventSDPAnswer:
		var in struct {
			SDP json.RawMessage `json:"sdp"`
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		return protocol.SDPSignal{From: from.UserID, SDP: in.SDP}, nil

	case protocol.EventICECandidate:
		var in struct {
			Candidate json.RawMessage `json:"candidate"`
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		return protocol.ICESignal{From: from.UserID, Candidate: in.Candidate}, nil
	}

	return nil, fmt.Errorf("not a signaling event: %s", event)
}
