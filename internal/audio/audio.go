// Package audio owns the single flow-level sound handle of a client.
//
// Starting a sound always stops the one before it, so the countdown ticks,
// the announcement and the result sting never overlap.
package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/lox/deathmoves/internal/assets"
)

// Handle is a playing sound.
type Handle interface {
	Stop()
}

// Backend plays resolved sound files.
type Backend interface {
	Play(ctx context.Context, path string) (Handle, error)
}

// Resolver maps sound keys to paths.
type Resolver interface {
	Sound(key assets.Sound) (string, error)
}

// Cue identifies one request to play a sound. Requests that share a
// non-empty Token are played once.
type Cue struct {
	Token string
	Key   assets.Sound
}

type playing struct {
	cue    Cue
	path   string
	handle Handle
}

// Service serialises access to the current sound.
type Service struct {
	backend  Backend
	resolver Resolver
	logger   *log.Logger

	mu      sync.Mutex
	current *playing
	played  map[string]struct{}
	order   []string

	group singleflight.Group
}

const maxRemembered = 64

// NewService creates a Service.
func NewService(backend Backend, resolver Resolver, logger *log.Logger) *Service {
	return &Service{
		backend:  backend,
		resolver: resolver,
		logger:   logger.WithPrefix("audio"),
		played:   make(map[string]struct{}),
	}
}

// Play stops the current sound and starts cue. A cue whose token was
// already played, or is being played, is ignored.
func (s *Service) Play(ctx context.Context, cue Cue) error {
	if cue.Token == "" {
		return s.play(ctx, cue)
	}
	_, err, _ := s.group.Do(cue.Token, func() (any, error) {
		s.mu.Lock()
		_, seen := s.played[cue.Token]
		s.mu.Unlock()
		if seen {
			s.logger.Debug("Skipping repeated cue", "token", cue.Token, "sound", cue.Key)
			return nil, nil
		}
		return nil, s.play(ctx, cue)
	})
	return err
}

func (s *Service) play(ctx context.Context, cue Cue) error {
	path, err := s.resolver.Sound(cue.Key)
	if err != nil {
		return fmt.Errorf("resolve sound %s: %w", cue.Key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.remember(cue.Token)

	handle, err := s.backend.Play(ctx, path)
	if err != nil {
		return fmt.Errorf("play %s: %w", path, err)
	}
	s.current = &playing{cue: cue, path: path, handle: handle}
	s.logger.Debug("Playing sound", "sound", cue.Key, "path", path)
	return nil
}

func (s *Service) remember(token string) {
	if token == "" {
		return
	}
	s.played[token] = struct{}{}
	s.order = append(s.order, token)
	if len(s.order) > maxRemembered {
		delete(s.played, s.order[0])
		s.order = s.order[1:]
	}
}

// StopCurrent stops the current sound, if any.
func (s *Service) StopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Service) stopLocked() {
	if s.current == nil {
		return
	}
	if s.current.handle != nil {
		s.current.handle.Stop()
	}
	s.logger.Debug("Stopped sound", "sound", s.current.cue.Key)
	s.current = nil
}

// Current reports the sound being played.
func (s *Service) Current() (assets.Sound, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", false
	}
	return s.current.cue.Key, true
}

// LogBackend "plays" sounds by logging them. Used by headless clients.
type LogBackend struct {
	Logger *log.Logger
}

type logHandle struct {
	logger *log.Logger
	path   string
}

func (h logHandle) Stop() {
	h.logger.Debug("Sound stopped", "path", h.path)
}

// Play logs path.
func (b LogBackend) Play(_ context.Context, path string) (Handle, error) {
	b.Logger.Info("♪", "path", path)
	return logHandle{logger: b.Logger, path: path}, nil
}
