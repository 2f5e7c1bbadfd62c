package datastore

import (
	"github.com/duome/duochat/pkg/model"
)

// DataStore defines the persistence interface for all duochat entities.
// Implementations include the default SQLite store and an in-memory store
// for testing; any other backend can be slotted in behind this interface.
type DataStore interface {
	UserReadProvider
	UserWriteProvider

	MessageReadProvider
	MessageWriteProvider

	Close() error
}

// Compile-time checks: both stores implement DataStore.
var (
	_ DataStore = (*SQLStore)(nil)
	_ DataStore = (*MemoryStore)(nil)
)

type UserReadProvider interface {
	GetUserByID(id int64) (*model.User, error)
	GetUserByNickname(nickname string) (*model.User, error)
	ListUsers() ([]model.User, error)
	CountUsers() (int, error)
}

type UserWriteProvider interface {
	CreateUser(nickname, passwordHash string) (*model.User, error)
}

type MessageReadProvider interface {
	// ListMessages returns the full history in ascending id order, with
	// SenderName resolved from the users table.
	ListMessages() ([]model.Message, error)
}

type MessageWriteProvider interface {
	// CreateMessage persists a message, assigning its durable id and
	// server-side timestamp.
	CreateMessage(message *model.Message) error
	// DeleteAllMessages wipes the history (maintenance operation).
	DeleteAllMessages() error
}
