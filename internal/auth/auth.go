// Package auth resolves the identity of peers joining a session from the
// token they present.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidToken indicates the token is definitively invalid.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable indicates the identity service could not answer.
	// The hub rejects the peer with 503 so it can retry.
	ErrUnavailable = errors.New("auth: unavailable")
)

// Identity represents an authenticated peer.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	// Privileged peers (game masters) may trigger death moves.
	Privileged bool `json:"privileged"`
}

// Validator validates authentication tokens.
type Validator interface {
	// Validate checks if a token is valid and returns the peer identity.
	// Returns:
	//   - (*Identity, nil) if token is valid
	//   - (nil, ErrInvalidToken) if token is definitively invalid
	//   - (nil, ErrUnavailable) if the identity service is unavailable
	//   - (nil, nil) if auth is disabled (NoopValidator only)
	Validate(ctx context.Context, token string) (*Identity, error)
}

// Session roles.
const (
	RoleGameMaster = "gamemaster"
	RolePlayer     = "player"
)

// IsPrivilegedRole reports whether role may trigger death moves. Unknown
// roles are players.
func IsPrivilegedRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleGameMaster, "gm", "owner":
		return true
	default:
		return false
	}
}

// NoopValidator accepts every connection (dev mode). Peers then identify
// themselves.
type NoopValidator struct{}

// NewNoopValidator creates a validator that allows all connections.
func NewNoopValidator() *NoopValidator {
	return &NoopValidator{}
}

func (v *NoopValidator) Validate(context.Context, string) (*Identity, error) {
	return nil, nil
}
