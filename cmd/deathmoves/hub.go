package main

import (
	"fmt"

	"github.com/lox/deathmoves/cmd/deathmoves/shared"
	"github.com/lox/deathmoves/internal/auth"
	"github.com/lox/deathmoves/internal/broadcast"
	"github.com/lox/deathmoves/internal/config"
)

// HubCmd runs the websocket relay
type HubCmd struct {
	Listen string `help:"Address to listen on (overrides config)"`
	Debug  bool   `help:"Enable debug logging"`
}

func (c *HubCmd) Run(cli *CLI) error {
	cfg, err := shared.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Transport.Listen = c.Listen
	}
	if c.Debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := shared.SetupLogger(cfg.Log.Level)

	validator, err := newValidator(cfg.Auth)
	if err != nil {
		return err
	}

	hub := broadcast.NewHub(validator, logger)

	logger.Info("Starting deathmoves hub",
		"address", cfg.Transport.Listen,
		"auth", cfg.Auth.Kind)

	ctx, stop := shared.SignalContext(logger)
	defer stop()
	return hub.ListenAndServe(ctx, cfg.Transport.Listen)
}

func newValidator(a config.Auth) (auth.Validator, error) {
	switch a.Kind {
	case "noop", "":
		return auth.NewNoopValidator(), nil
	case "http":
		return auth.NewSessionValidator(a.URL, a.Secret), nil
	case "jwt":
		return auth.NewJWTValidator(a.Secret, a.Issuer), nil
	default:
		return nil, fmt.Errorf("unknown auth kind %q", a.Kind)
	}
}
