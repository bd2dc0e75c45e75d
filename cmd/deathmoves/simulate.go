package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/deathmoves/cmd/deathmoves/shared"
	"github.com/lox/deathmoves/internal/broadcast"
	"github.com/lox/deathmoves/internal/config"
	"github.com/lox/deathmoves/internal/flow"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/protocol"
)

// SimulateCmd plays one death move between in-process clients
type SimulateCmd struct {
	Branch    string        `short:"b" default:"risk" enum:"avoid,blaze,risk" help:"Death move the target picks (avoid, blaze, risk)"`
	Target    string        `short:"t" help:"User id of the target (defaults to the first player)"`
	Countdown *int          `help:"Countdown seconds (overrides config)"`
	Timeout   time.Duration `default:"2m" help:"Give up after this long"`
	Debug     bool          `help:"Enable debug logging"`
}

var defaultCast = []config.Character{
	{UserID: "mira", Name: "Mira", Level: 3, Items: []string{config.DefaultBonusItem}},
	{UserID: "kael", Name: "Kael", Level: 5},
}

func (c *SimulateCmd) Run(cli *CLI) error {
	cfg, err := shared.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Countdown != nil {
		cfg.Settings.CountdownDuration = *c.Countdown
	}
	if c.Debug {
		cfg.Log.Level = "debug"
	}
	if len(cfg.Characters) == 0 {
		cfg.Characters = defaultCast
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	branch, err := outcome.ParseBranch(c.Branch)
	if err != nil {
		return err
	}

	logger := shared.SetupLogger(cfg.Log.Level)

	records, closeRecords, err := openRecords(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRecords()

	d, err := newDeps(cfg, records, logger)
	if err != nil {
		return err
	}

	bus := broadcast.NewBus(logger)
	members := make([]*member, 0, len(cfg.Characters)+1)
	defer func() {
		for _, m := range members {
			m.close()
		}
	}()

	participants := []protocol.Participant{{UserID: "gm", Name: "Game Master", Privileged: true}}
	for _, ch := range cfg.Characters {
		participants = append(participants, protocol.Participant{UserID: ch.UserID, Name: ch.Name})
	}
	for _, p := range participants {
		m, err := d.join(p, bus.Join(p), nil, nil)
		if err != nil {
			return err
		}
		members = append(members, m)
	}
	master := members[0]
	master.roster.Update(protocol.Roster{Participants: bus.Participants()})

	var chooser flow.TargetChooser = flow.FirstEligible
	if c.Target != "" {
		chooser = flow.ChooserFunc(func(context.Context, []protocol.Participant) (string, error) {
			return c.Target, nil
		})
	}

	sigCtx, stop := shared.SignalContext(logger)
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, c.Timeout)
	defer cancel()

	logger.Info("Simulating death move",
		"branch", branch,
		"players", len(cfg.Characters),
		"countdown", cfg.Settings.CountdownDuration)

	g, gctx := errgroup.WithContext(ctx)
	var flowID string
	g.Go(func() error {
		id, err := master.flow.TriggerFlow(gctx, chooser)
		if err != nil {
			return fmt.Errorf("trigger: %w", err)
		}
		flowID = id
		return waitFor(gctx, func() bool { return !master.flow.InProgress() })
	})
	g.Go(func() error {
		var target *member
		err := waitFor(gctx, func() bool {
			for _, m := range members[1:] {
				if m.flow.State() == flow.ClientTargetActive {
					target = m
					return true
				}
			}
			return false
		})
		if err != nil {
			return err
		}
		logger.Info("Target chooses", "user", target.self.UserID, "branch", branch)
		return target.flow.Choose(gctx, branch)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Death move resolved", "flow", flowID)
	return nil
}

// waitFor polls cond until it holds or ctx ends.
func waitFor(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
