package datastore

import (
	"fmt"
	"sync"
	"time"

	"github.com/duome/duochat/pkg/model"
)

// MemoryStore provides an in-memory DataStore implementation for tests.
// It mirrors SQLite behavior for validation and error handling.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	nextUserID    int64
	nextMessageID int64

	usersByID       map[int64]*model.User
	usersByNickname map[string]*model.User
	messages        []model.Message
}

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:             now,
		nextUserID:      1,
		nextMessageID:   1,
		usersByID:       make(map[int64]*model.User),
		usersByNickname: make(map[string]*model.User),
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateUser creates a new user and returns it with the assigned ID.
func (s *MemoryStore) CreateUser(nickname, passwordHash string) (*model.User, error) {
	if err := model.ValidateNickname(nickname); err != nil {
		return nil, fmt.Errorf("datastore: create user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByNickname[nickname]; exists {
		return nil, fmt.Errorf("datastore: create user: constraint failed: UNIQUE constraint failed: users.nickname")
	}

	u := &model.User{
		ID:           s.nextUserID,
		Nickname:     nickname,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	s.nextUserID++
	s.usersByID[u.ID] = u
	s.usersByNickname[u.Nickname] = u

	cp := *u
	return &cp, nil
}

// GetUserByID retrieves a user by ID. Returns (nil, nil) when absent.
func (s *MemoryStore) GetUserByID(id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// GetUserByNickname retrieves a user by nickname. Returns (nil, nil) when absent.
func (s *MemoryStore) GetUserByNickname(nickname string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByNickname[nickname]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// ListUsers returns all users in id order.
func (s *MemoryStore) ListUsers() ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]model.User, 0, len(s.usersByID))
	for id := int64(1); id < s.nextUserID; id++ {
		if u, ok := s.usersByID[id]; ok {
			users = append(users, *u)
		}
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users, nil
}

// CountUsers returns the number of registered users.
func (s *MemoryStore) CountUsers() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.usersByID), nil
}

// CreateMessage persists a message and assigns its durable id and timestamp.
func (s *MemoryStore) CreateMessage(message *model.Message) error {
	if err := message.Validate(); err != nil {
		return fmt.Errorf("datastore: message failed validation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	message.ID = s.nextMessageID
	s.nextMessageID++
	message.CreatedAt = s.now()
	s.messages = append(s.messages, *message)
	return nil
}

// ListMessages returns the full history in ascending id order with sender
// nicknames resolved.
func (s *MemoryStore) ListMessages() ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return nil, nil
	}
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	for i := range out {
		if u, ok := s.usersByID[out[i].SenderID]; ok {
			out[i].SenderName = u.Nickname
		}
	}
	return out, nil
}

// DeleteAllMessages wipes the message history.
func (s *MemoryStore) DeleteAllMessages() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	return nil
}
