package config

import (
	"context"
	"sync"

	"github.com/lox/deathmoves/internal/outcome"
)

// Store serves the current flow settings. Settings may be replaced while
// flows run; a flow reads them once when it starts each phase.
type Store struct {
	mu       sync.RWMutex
	settings Settings
}

// NewStore returns a store holding s.
func NewStore(s Settings) *Store {
	return &Store{settings: s}
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update validates and replaces the settings.
func (s *Store) Update(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = next
	s.mu.Unlock()
	return nil
}

// CharacterBook looks up characters declared in the configuration.
type CharacterBook struct {
	byUser map[string]outcome.Character
}

// NewCharacterBook indexes chars by user id.
func NewCharacterBook(chars []Character) *CharacterBook {
	book := &CharacterBook{byUser: make(map[string]outcome.Character, len(chars))}
	for _, ch := range chars {
		book.byUser[ch.UserID] = outcome.Character{
			Name:  ch.Name,
			Level: ch.Level,
			Items: append([]string(nil), ch.Items...),
		}
	}
	return book
}

// CharacterOf returns the character bound to userID, or nil when the user
// has none.
func (b *CharacterBook) CharacterOf(_ context.Context, userID string) (*outcome.Character, error) {
	ch, ok := b.byUser[userID]
	if !ok {
		return nil, nil
	}
	ch.Items = append([]string(nil), ch.Items...)
	return &ch, nil
}
