package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lox/deathmoves/internal/config"
	"github.com/lox/deathmoves/internal/flow"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/protocol"
)

// ErrSelectionCancelled is returned by ChooseTarget when the user backs out.
var ErrSelectionCancelled = errors.New("target selection cancelled")

// Flow is the part of the coordinator the terminal drives.
type Flow interface {
	TriggerFlow(ctx context.Context, chooser flow.TargetChooser) (string, error)
	Choose(ctx context.Context, branch outcome.Branch) error
	Cancel(ctx context.Context) error
}

// SettingsEditor holds the settings the "set" command changes.
type SettingsEditor interface {
	Settings() config.Settings
	Update(next config.Settings) error
}

var (
	_ Flow               = (*flow.Coordinator)(nil)
	_ SettingsEditor     = (*config.Store)(nil)
	_ flow.TargetChooser = (*Controller)(nil)
	_ flow.Notifier      = (*Model)(nil)
	_ flow.DiceAnimator  = (*Model)(nil)
)

// Controller turns typed commands into flow operations.
type Controller struct {
	model    *Model
	flow     Flow
	settings SettingsEditor
	logger   *log.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSettings enables the "set" command on s.
func WithSettings(s SettingsEditor) ControllerOption {
	return func(c *Controller) { c.settings = s }
}

// NewController creates a controller reading commands from model.
func NewController(model *Model, f Flow, logger *log.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{model: model, flow: f, logger: logger.WithPrefix("commands")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run handles commands until the user quits or ctx ends.
func (c *Controller) Run(ctx context.Context) error {
	for {
		action, err := c.model.WaitForAction(ctx)
		if err != nil {
			return err
		}
		if !action.Continue {
			c.model.SendQuitSignal()
			return nil
		}
		c.handle(ctx, action)
	}
}

func (c *Controller) handle(ctx context.Context, action Action) {
	switch action.Name {
	case "trigger", "t":
		if _, err := c.flow.TriggerFlow(ctx, c); err != nil {
			c.logger.Debug("Trigger failed", "error", err)
			if errors.Is(err, ErrSelectionCancelled) {
				c.model.AddLogEntry(InfoStyle.Render("Cancelled."))
			}
		}

	case "1", "2", "3", "avoid", "blaze", "risk":
		branch, err := parseChoice(action.Name)
		if err != nil {
			c.model.Warn(err.Error())
			return
		}
		// The sequence takes several seconds; keep reading commands.
		go func() {
			if err := c.flow.Choose(ctx, branch); err != nil {
				c.model.Warn(err.Error())
			}
		}()

	case "c", "cancel", "close":
		if err := c.flow.Cancel(ctx); err != nil {
			// Spectators can only close their own view.
			if !c.model.view.RemoveSpectator() {
				c.model.Warn(err.Error())
			}
		}

	case "skip", "s":
		if !c.model.view.CloseMedia() {
			c.model.AddLogEntry(InfoStyle.Render("Nothing to skip."))
		}

	case "set":
		c.set(action.Args)

	case "help", "?":
		c.help()

	default:
		c.model.AddLogEntry(fmt.Sprintf("Unknown command: %s", action.Name))
		c.help()
	}
}

func (c *Controller) help() {
	c.model.AddLogEntry("Commands:")
	c.model.AddLogEntry("  trigger      start a death move (game master)")
	c.model.AddLogEntry("  1, 2, 3      choose Avoid Death, Blaze of Glory or Risk It All")
	c.model.AddLogEntry("  c            close the overlay")
	c.model.AddLogEntry("  s            skip the result media")
	if c.settings != nil {
		c.model.AddLogEntry("  set K V      change countdown, double or odds")
	}
	c.model.AddLogEntry("  quit         leave")
}

// set changes one flow setting, or lists them all without arguments.
func (c *Controller) set(args []string) {
	if c.settings == nil {
		c.model.Warn("Settings cannot be changed here.")
		return
	}
	next := c.settings.Settings()
	if len(args) == 0 {
		c.model.AddLogEntry(fmt.Sprintf("countdown=%d double=%t odds=%t", next.CountdownDuration, next.DoubleRoll, next.ShowProbabilities))
		return
	}
	if len(args) != 2 {
		c.model.Warn("Usage: set countdown|double|odds VALUE")
		return
	}

	var err error
	switch args[0] {
	case "countdown":
		next.CountdownDuration, err = strconv.Atoi(args[1])
	case "double":
		next.DoubleRoll, err = parseToggle(args[1])
	case "odds":
		next.ShowProbabilities, err = parseToggle(args[1])
	default:
		err = fmt.Errorf("unknown setting %q", args[0])
	}
	if err == nil {
		err = c.settings.Update(next)
	}
	if err != nil {
		c.model.Warn(err.Error())
		return
	}
	c.logger.Info("Setting changed", "key", args[0], "value", args[1])
	c.model.Info(fmt.Sprintf("%s = %s", args[0], args[1]))
}

func parseToggle(v string) (bool, error) {
	switch v {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(v)
}

// ChooseTarget lists candidates in the log and waits for a pick, either by
// number or by user id.
func (c *Controller) ChooseTarget(ctx context.Context, candidates []protocol.Participant) (string, error) {
	c.model.AddLogEntry("Choose a player (number or id, c to cancel):")
	for i, p := range candidates {
		c.model.AddLogEntry(fmt.Sprintf("  %d) %s (%s)", i+1, p.Name, p.UserID))
	}

	for {
		action, err := c.model.WaitForAction(ctx)
		if err != nil {
			return "", err
		}
		if !action.Continue {
			c.model.SendQuitSignal()
			return "", ErrSelectionCancelled
		}
		pick := action.Name
		if pick == "target" && len(action.Args) > 0 {
			pick = action.Args[0]
		}
		switch pick {
		case "c", "cancel":
			return "", ErrSelectionCancelled
		}
		if id, ok := resolvePick(pick, candidates); ok {
			return id, nil
		}
		c.model.Warn(fmt.Sprintf("No player %q", pick))
	}
}

func resolvePick(pick string, candidates []protocol.Participant) (string, bool) {
	if n, err := strconv.Atoi(pick); err == nil {
		if n >= 1 && n <= len(candidates) {
			return candidates[n-1].UserID, true
		}
		return "", false
	}
	for _, p := range candidates {
		if strings.EqualFold(p.UserID, pick) || strings.EqualFold(p.Name, pick) {
			return p.UserID, true
		}
	}
	return "", false
}

func parseChoice(input string) (outcome.Branch, error) {
	if n, err := strconv.Atoi(input); err == nil {
		branches := outcome.Branches()
		if n >= 1 && n <= len(branches) {
			return branches[n-1], nil
		}
	}
	return outcome.ParseBranch(input)
}
