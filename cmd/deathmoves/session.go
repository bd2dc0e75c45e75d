package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/deathmoves/internal/assets"
	"github.com/lox/deathmoves/internal/audio"
	"github.com/lox/deathmoves/internal/broadcast"
	"github.com/lox/deathmoves/internal/config"
	"github.com/lox/deathmoves/internal/dice"
	"github.com/lox/deathmoves/internal/flow"
	"github.com/lox/deathmoves/internal/presentation"
	"github.com/lox/deathmoves/internal/protocol"
	"github.com/lox/deathmoves/internal/randutil"
	"github.com/lox/deathmoves/internal/record"
)

// member is everything one participant runs: its view, its roster and its
// coordinator.
type member struct {
	self   protocol.Participant
	view   *presentation.State
	roster *broadcast.Roster
	flow   *flow.Coordinator

	detach []func()
}

// deps are the collaborators shared by every member in one process.
type deps struct {
	cfg      *config.Config
	settings *config.Store
	chars    *config.CharacterBook
	resolver *assets.Resolver
	records  record.Poster
	clock    quartz.Clock
	logger   *log.Logger
}

func newDeps(cfg *config.Config, records record.Poster, logger *log.Logger) (*deps, error) {
	resolver, err := assets.NewResolver(assets.Options{
		BaseDir:   cfg.Media.BaseDir,
		Mode:      assets.Mode(cfg.Media.Mode),
		Language:  cfg.Settings.Language,
		Overrides: cfg.Media.Overrides,
	})
	if err != nil {
		return nil, err
	}
	return &deps{
		cfg:      cfg,
		settings: config.NewStore(cfg.Settings),
		chars:    config.NewCharacterBook(cfg.Characters),
		resolver: resolver,
		records:  records,
		clock:    quartz.NewReal(),
		logger:   logger,
	}, nil
}

// openRecords posts to the log and, when a path is configured, to SQLite.
// The returned close function is never nil.
func openRecords(cfg *config.Config, logger *log.Logger) (record.Poster, func(), error) {
	posters := record.Multi{record.LogPoster{Logger: logger.WithPrefix("records")}}
	if cfg.Records.Path == "" {
		return posters, func() {}, nil
	}
	store, err := record.Open(cfg.Records.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open records: %w", err)
	}
	return append(posters, store), func() { _ = store.Close() }, nil
}

// join builds a member on ch. notifier and animator may be nil.
func (d *deps) join(self protocol.Participant, ch broadcast.Channel, notifier flow.Notifier, animator flow.DiceAnimator) (*member, error) {
	seed, err := randutil.NewSeed()
	if err != nil {
		return nil, err
	}

	logger := d.logger.With("user", self.UserID)
	m := &member{
		self:   self,
		view:   presentation.New(d.clock),
		roster: broadcast.NewRoster(self),
	}
	m.flow = flow.New(flow.Options{
		Self:         self,
		Channel:      ch,
		Presenter:    m.view,
		Audio:        audio.NewService(audio.LogBackend{Logger: logger.WithPrefix("audio")}, d.resolver, logger),
		Roller:       dice.NewRoller(randutil.NewSource(seed)),
		Characters:   d.chars,
		Assets:       d.resolver,
		Settings:     d.settings,
		Records:      d.records,
		Directory:    m.roster,
		Animator:     animator,
		Notifier:     notifier,
		Clock:        d.clock,
		Logger:       d.logger,
		GuardTimeout: d.cfg.Flow.GuardTimeout,
	})
	m.detach = append(m.detach, m.roster.Attach(ch), m.flow.Attach())
	return m, nil
}

func (m *member) close() {
	for _, fn := range m.detach {
		fn()
	}
	m.view.Close()
}
