package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSessionTimeout = 2 * time.Second
	DefaultCacheTTL       = time.Minute
)

// SessionValidator asks the table's session service who a token belongs
// to. It sends GET <url> with the token as a bearer credential and, when
// configured, the shared service secret in X-Service-Secret.
//
// Accepted identities are cached for the cache TTL so reconnecting peers do
// not hit the service again, and concurrent lookups of one token share a
// single request. Rejections are never cached.
type SessionValidator struct {
	url    string
	secret string
	client *http.Client
	clock  quartz.Clock
	ttl    time.Duration

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cachedIdentity
}

type cachedIdentity struct {
	id      Identity
	expires time.Time
}

// SessionOption configures a SessionValidator.
type SessionOption func(*SessionValidator)

// WithClock sets the clock used for cache expiry.
func WithClock(clock quartz.Clock) SessionOption {
	return func(v *SessionValidator) { v.clock = clock }
}

// WithCacheTTL sets how long accepted identities are reused. Zero disables
// the cache.
func WithCacheTTL(ttl time.Duration) SessionOption {
	return func(v *SessionValidator) { v.ttl = ttl }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(v *SessionValidator) { v.client = c }
}

// NewSessionValidator creates a validator backed by the session service at
// url.
func NewSessionValidator(url, secret string, opts ...SessionOption) *SessionValidator {
	v := &SessionValidator{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: DefaultSessionTimeout},
		clock:  quartz.NewReal(),
		ttl:    DefaultCacheTTL,
		cache:  make(map[string]cachedIdentity),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type sessionResponse struct {
	User struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Role string `json:"role"`
	} `json:"user"`
}

func (v *SessionValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if id, ok := v.cached(token); ok {
		return &id, nil
	}

	res, err, _ := v.group.Do(token, func() (any, error) {
		id, err := v.lookup(ctx, token)
		if err != nil {
			return nil, err
		}
		v.store(token, id)
		return id, nil
	})
	if err != nil {
		return nil, err
	}
	id := res.(Identity)
	return &id, nil
}

func (v *SessionValidator) lookup(ctx context.Context, token string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultSessionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if v.secret != "" {
		req.Header.Set("X-Service-Secret", v.secret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return Identity{}, ErrInvalidToken
	default:
		return Identity{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body sessionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Identity{}, fmt.Errorf("%w: decode session: %v", ErrUnavailable, err)
	}
	if body.User.ID == "" {
		return Identity{}, ErrInvalidToken
	}

	name := body.User.Name
	if name == "" {
		name = body.User.ID
	}
	return Identity{
		UserID:     body.User.ID,
		Name:       name,
		Privileged: IsPrivilegedRole(body.User.Role),
	}, nil
}

func (v *SessionValidator) cached(token string) (Identity, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.cache[token]
	if !ok {
		return Identity{}, false
	}
	if !v.clock.Now().Before(c.expires) {
		delete(v.cache, token)
		return Identity{}, false
	}
	return c.id, true
}

func (v *SessionValidator) store(token string, id Identity) {
	if v.ttl <= 0 {
		return
	}
	v.mu.Lock()
	v.cache[token] = cachedIdentity{id: id, expires: v.clock.Now().Add(v.ttl)}
	v.mu.Unlock()
}
