package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MessageMaxContentLength = 4096

var ErrMessageContentTooLong = fmt.Errorf("message content exceeds %d characters", MessageMaxContentLength)
var ErrMessageContentEmpty = errors.New("message content cannot be empty")
var ErrInvalidMessageKind = errors.New("invalid message kind: must be text, image, audio, or video")

// MessageKind classifies message content: plain text or a media URL.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindAudio MessageKind = "audio"
	KindVideo MessageKind = "video"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindAudio, KindVideo:
		return true
	}
	return false
}

// Message is a persisted chat message. ID and CreatedAt are assigned by the
// datastore at persistence time; ID is the durable ordering key. SenderName
// is denormalized for the wire and never stored.
type Message struct {
	ID         int64       `json:"id"`
	SenderID   int64       `json:"senderId"`
	SenderName string      `json:"senderName"`
	Kind       MessageKind `json:"type"`
	Content    string      `json:"content"`
	Duration   *int        `json:"duration,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func (m *Message) Validate() error {
	if !m.Kind.Valid() {
		return ErrInvalidMessageKind
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrMessageContentEmpty
	}
	if utf8.RuneCountInString(m.Content) > MessageMaxContentLength {
		return ErrMessageContentTooLong
	}
	return nil
}
