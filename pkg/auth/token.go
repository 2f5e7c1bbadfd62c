// Package auth issues and verifies the bearer credentials that gate both
// the WebSocket handshake and the HTTP API.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/duome/duochat/pkg/model"
)

// DefaultTokenTTL is how long an issued credential stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrMissingToken = errors.New("auth: no credential supplied")
	ErrInvalidToken = errors.New("auth: invalid credential")
)

// Claims are the identity claims carried inside a signed token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname"`
}

// Verifier signs and validates bearer tokens with a shared HMAC secret.
// Verification is a pure function over the secret; it has no side effects
// and is safe for concurrent use.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: DefaultTokenTTL}
}

// NewVerifierTTL creates a Verifier with a custom token lifetime.
func NewVerifierTTL(secret string, ttl time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: ttl}
}

// Issue mints a signed token for the given identity.
func (v *Verifier) Issue(id model.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
		UserID:   id.UserID,
		Nickname: id.Nickname,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a bearer credential and extracts the identity claims.
// A leading "Bearer " prefix is tolerated. Returns ErrMissingToken for an
// empty credential and ErrInvalidToken for anything that fails signature,
// structure, or expiry validation.
func (v *Verifier) Verify(credential string) (model.Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return model.Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return model.Identity{}, ErrInvalidToken
	}
	return model.Identity{UserID: claims.UserID, Nickname: claims.Nickname}, nil
}
