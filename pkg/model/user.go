package model

import (
	"errors"
	"fmt"
	"time"
)

const MaxNicknameLength = 32

var ErrNicknameEmpty = errors.New("nickname must not be empty")
var ErrNicknameTooLong = fmt.Errorf("nickname must not exceed %d characters", MaxNicknameLength)
var ErrSerialFormat = errors.New("serial must be exactly 6 digits")

// User represents a registered user.
type User struct {
	ID           int64     `json:"id"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity returns the user's session identity.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Nickname: u.Nickname}
}

// ValidateNickname checks that a nickname is 1-32 characters.
// Unlike usernames in most systems, nicknames here are display names and
// may contain any printable characters.
func ValidateNickname(name string) error {
	if len(name) == 0 {
		return ErrNicknameEmpty
	}
	if len(name) > MaxNicknameLength {
		return ErrNicknameTooLong
	}
	return nil
}

// ValidateSerial checks that a login serial is exactly 6 ASCII digits.
func ValidateSerial(serial string) error {
	if len(serial) != 6 {
		return ErrSerialFormat
	}
	for _, r := range serial {
		if r < '0' || r > '9' {
			return ErrSerialFormat
		}
	}
	return nil
}
