package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/deathmoves/cmd/deathmoves/shared"
	"github.com/lox/deathmoves/internal/broadcast"
	"github.com/lox/deathmoves/internal/config"
	"github.com/lox/deathmoves/internal/dice"
	"github.com/lox/deathmoves/internal/i18n"
	"github.com/lox/deathmoves/internal/protocol"
	"github.com/lox/deathmoves/internal/tui"
)

// ClientCmd joins a session with the terminal UI
type ClientCmd struct {
	User     string `short:"u" help:"User id (overrides config)"`
	Name     string `short:"n" help:"Display name (overrides config)"`
	GM       bool   `name:"gm" help:"Join as a game master when the hub runs without auth"`
	Server   string `short:"s" help:"Hub URL (overrides config)"`
	Redis    string `help:"Use Redis pub/sub at this address instead of a hub"`
	Language string `help:"UI and voice language (overrides config)"`
	LogFile  string `default:"deathmoves.log" help:"Log file path"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
}

func (c *ClientCmd) Run(cli *CLI) error {
	cfg, err := shared.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Identity.UserID == "" {
		return errors.New("a user id is required (--user or DEATHMOVES_USER_ID)")
	}
	if cfg.Identity.Name == "" {
		cfg.Identity.Name = cfg.Identity.UserID
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	logger := shared.SetupLoggerTo(logFile, cfg.Log.Level)

	self := protocol.Participant{UserID: cfg.Identity.UserID, Name: cfg.Identity.Name, Privileged: c.GM}

	logger.Info("Starting deathmoves client",
		"user", self.UserID,
		"transport", cfg.Transport.Kind,
		"config", cli.Config)

	ctx, cancel := shared.SignalContext(logger)
	defer cancel()

	ch, done, err := connect(ctx, cfg, self, logger)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	records, closeRecords, err := openRecords(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRecords()

	d, err := newDeps(cfg, records, logger)
	if err != nil {
		return err
	}

	// The model needs the view before the coordinator exists, so the
	// member is built around a notifier that forwards to it.
	fwd := &forwarder{}
	m, err := d.join(self, ch, fwd, fwd)
	if err != nil {
		return err
	}
	defer m.close()

	model := tui.NewModel(m.view, i18n.New(cfg.Settings.Language), "Death Moves · "+self.Name, logger)
	fwd.model.Store(model)

	program := tea.NewProgram(model, tea.WithAltScreen())
	model.SetProgram(program)

	model.AddLogEntry("=== Death Moves ===")
	model.AddLogEntry(fmt.Sprintf("Connected as %s via %s", self.Name, cfg.Transport.Kind))
	model.AddLogEntry("Type help for commands.")
	model.AddLogEntry("")

	go func() {
		if err := tui.NewController(model, m.flow, logger, tui.WithSettings(d.settings)).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Command handler stopped", "error", err)
		}
	}()
	go func() {
		select {
		case <-done:
			model.Warn("Connection lost.")
			model.SendQuitSignal()
		case <-ctx.Done():
			model.SendQuitSignal()
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func (c *ClientCmd) apply(cfg *config.Config) {
	if c.User != "" {
		cfg.Identity.UserID = c.User
	}
	if c.Name != "" {
		cfg.Identity.Name = c.Name
	}
	if c.Server != "" {
		cfg.Transport.Kind = "websocket"
		cfg.Transport.URL = c.Server
	}
	if c.Redis != "" {
		cfg.Transport.Kind = "redis"
		cfg.Transport.RedisAddr = c.Redis
	}
	if c.Language != "" {
		cfg.Settings.Language = c.Language
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
}

// hubWaitTimeout bounds how long connect waits for a hub that is starting.
const hubWaitTimeout = 10 * time.Second

// connect opens the configured channel. done closes when the connection
// drops; it is nil for transports that cannot tell.
func connect(ctx context.Context, cfg *config.Config, self protocol.Participant, logger *log.Logger) (broadcast.Channel, <-chan struct{}, error) {
	switch cfg.Transport.Kind {
	case "websocket":
		waitCtx, cancel := context.WithTimeout(ctx, hubWaitTimeout)
		err := broadcast.WaitForHealthy(waitCtx, cfg.Transport.URL)
		cancel()
		if err != nil {
			return nil, nil, err
		}
		peer, err := broadcast.Dial(ctx, broadcast.DialOptions{
			URL:   cfg.Transport.URL,
			Token: cfg.Identity.Token,
			Self:  self,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return peer, peer.Done(), nil
	case "redis":
		r, err := broadcast.NewRedisChannel(ctx, cfg.Transport.RedisAddr, cfg.Transport.RedisChannel, self, logger)
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil
	default:
		return nil, nil, fmt.Errorf("transport %q cannot be used by a client", cfg.Transport.Kind)
	}
}

// forwarder lets the coordinator notify a model created after it.
type forwarder struct {
	model atomic.Pointer[tui.Model]
}

func (f *forwarder) Warn(msg string) {
	if m := f.model.Load(); m != nil {
		m.Warn(msg)
	}
}

func (f *forwarder) Info(msg string) {
	if m := f.model.Load(); m != nil {
		m.Info(msg)
	}
}

func (f *forwarder) Animate(ctx context.Context, res dice.Result) error {
	if m := f.model.Load(); m != nil {
		return m.Animate(ctx, res)
	}
	return nil
}
