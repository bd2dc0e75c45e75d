package main

import (
	"fmt"
	"time"

	"github.com/lox/deathmoves/cmd/deathmoves/shared"
	"github.com/lox/deathmoves/internal/auth"
)

// TokenCmd issues a JWT accepted by a hub running with jwt auth
type TokenCmd struct {
	User   string        `arg:"" help:"User id the token identifies"`
	Name   string        `help:"Display name (defaults to the user id)"`
	GM     bool          `name:"gm" help:"Allow the holder to trigger death moves"`
	MaxAge time.Duration `default:"24h" help:"How long the token stays valid"`
}

func (c *TokenCmd) Run(cli *CLI) error {
	cfg, err := shared.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth secret is not configured (set DEATHMOVES_AUTH_SECRET)")
	}

	name := c.Name
	if name == "" {
		name = c.User
	}

	token, err := auth.NewJWTValidator(cfg.Auth.Secret, cfg.Auth.Issuer).Issue(auth.Identity{
		UserID:     c.User,
		Name:       name,
		Privileged: c.GM,
	}, c.MaxAge)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
