package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type peerClaims struct {
	Name       string `json:"name"`
	Privileged bool   `json:"privileged,omitempty"`
	jwt.RegisteredClaims
}

var errSigningMethod = errors.New("unexpected signing method")

// JWTValidator issues and validates HS256 peer tokens signed with a shared
// secret.
type JWTValidator struct {
	secretKey []byte
	issuer    string
	now       func() time.Time
}

// NewJWTValidator creates a validator for tokens signed with secret.
func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{secretKey: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue signs a token for id that expires after maxAge.
func (v *JWTValidator) Issue(id Identity, maxAge time.Duration) (string, error) {
	if id.UserID == "" {
		return "", fmt.Errorf("user id is required")
	}
	now := v.now()
	claims := peerClaims{
		Name:       id.Name,
		Privileged: id.Privileged,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies token.
func (v *JWTValidator) Validate(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &peerClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errSigningMethod
		}
		return v.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*peerClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:     claims.Subject,
		Name:       claims.Name,
		Privileged: claims.Privileged,
	}, nil
}
