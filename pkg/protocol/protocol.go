// Package protocol defines the JSON event envelope exchanged over the
// WebSocket connection. Every frame in either direction is a single
// envelope: {"event": <name>, "data": <payload>}. Field casing matches the
// existing browser client and must not change.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/duome/duochat/pkg/model"
)

// Event names. Client-to-server, server-to-client, or both.
const (
	EventMessage      = "message"
	EventTyping       = "typing"
	EventOnlineUsers  = "online-users"
	EventOnline       = "online"
	EventOffline      = "offline"
	EventCallRequest  = "call-request"
	EventCallAnswer   = "call-answer"
	EventCallEnd      = "call-end"
	EventSDPOffer     = "sdp-offer"
	EventSDPAnswer    = "sdp-answer"
	EventICECandidate = "ice-candidate"
	EventError        = "error"
)

// Envelope is one wire frame. Data is left raw so that signaling payloads
// (SDP, ICE) pass through without interpretation.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an envelope for the given event and payload.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s envelope: %w", event, err)
	}
	return frame, nil
}

// Decode parses one wire frame into an envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("protocol: frame missing event name")
	}
	return env, nil
}

// MessageSubmit is the client payload of a "message" event. The server
// responds by broadcasting the persisted model.Message to all sessions.
type MessageSubmit struct {
	Kind     model.MessageKind `json:"type"`
	Content  string            `json:"content"`
	Duration *int              `json:"duration,omitempty"`
}

// TypingNotice is the server-side "typing" payload fanned out to peers.
// The client sends a bare boolean as the event data.
type TypingNotice struct {
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname"`
	IsTyping bool   `json:"isTyping"`
}

// CallRequest announces an incoming audio or video call.
type CallRequest struct {
	From model.Identity `json:"from"`
	Kind string         `json:"type"` // "audio" or "video"
}

// CallAnswer reports whether the callee accepted.
type CallAnswer struct {
	From     model.Identity `json:"from"`
	Accepted bool           `json:"accepted"`
}

// CallEnd terminates an in-progress or pending call.
type CallEnd struct {
	From model.Identity `json:"from"`
}

// SDPSignal carries an opaque SDP offer or answer. From is the sender's
// user id only; the legacy client expects a bare id here, not an identity.
type SDPSignal struct {
	From int64           `json:"from"`
	SDP  json.RawMessage `json:"sdp"`
}

// ICESignal carries an opaque ICE candidate.
type ICESignal struct {
	From      int64           `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// ErrorNotice is sent to a single client when its own submission failed.
type ErrorNotice struct {
	Message string `json:"message"`
}
