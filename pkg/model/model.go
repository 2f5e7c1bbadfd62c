// Package model defines the core domain types for duochat.
package model

// Identity is the authenticated user derived from a verified credential.
// Immutable for the lifetime of a session.
type Identity struct {
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname"`
}
