// Package record creates the durable result of a resolved death move: a
// styled card posted to the shared log, optionally kept in SQLite.
package record

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// StyleOther is the style tag of result cards.
const StyleOther = "other"

// Record is one posted result.
type Record struct {
	ID        int64
	FlowID    string
	UserID    string
	Branch    string
	Outcome   string
	Speaker   string
	Title     string
	HTML      string
	Style     string
	CreatedAt time.Time
}

// Poster accepts result records.
type Poster interface {
	PostRecord(ctx context.Context, r Record) error
}

// LogPoster writes records to a logger.
type LogPoster struct {
	Logger *log.Logger
}

// PostRecord logs r at info level.
func (p LogPoster) PostRecord(_ context.Context, r Record) error {
	p.Logger.Info(r.Title,
		"speaker", r.Speaker,
		"flow", r.FlowID,
		"user", r.UserID,
		"branch", r.Branch,
		"outcome", r.Outcome)
	return nil
}

// Multi posts to every poster and returns the first error.
type Multi []Poster

// PostRecord posts r to each poster in order.
func (m Multi) PostRecord(ctx context.Context, r Record) error {
	var first error
	for _, p := range m {
		if err := p.PostRecord(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
