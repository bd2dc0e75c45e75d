package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTValidator_RoundTrip(t *testing.T) {
	v := NewJWTValidator("s3cret", "deathmoves")
	token, err := v.Issue(Identity{UserID: "u-gm", Name: "Marlowe", Privileged: true}, time.Hour)
	require.NoError(t, err)

	id, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "u-gm", Name: "Marlowe", Privileged: true}, id)
}

func TestJWTValidator_Rejects(t *testing.T) {
	issuer := NewJWTValidator("s3cret", "deathmoves")
	good, err := issuer.Issue(Identity{UserID: "u-ana", Name: "Ana"}, time.Hour)
	require.NoError(t, err)

	expired := NewJWTValidator("s3cret", "deathmoves")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.Issue(Identity{UserID: "u-ana"}, time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, peerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-ana",
			Issuer:    "deathmoves",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name      string
		validator *JWTValidator
		token     string
	}{
		{"empty", issuer, ""},
		{"garbage", issuer, "not-a-token"},
		{"wrong secret", NewJWTValidator("other", "deathmoves"), good},
		{"wrong issuer", NewJWTValidator("s3cret", "elsewhere"), good},
		{"expired", issuer, stale},
		{"alg none", issuer, unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validator.Validate(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTValidator_IssueRequiresUser(t *testing.T) {
	_, err := NewJWTValidator("s3cret", "").Issue(Identity{Name: "nobody"}, time.Minute)
	assert.Error(t, err)
}
