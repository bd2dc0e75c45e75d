package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/lox/deathmoves/internal/assets"
	"github.com/lox/deathmoves/internal/audio"
	"github.com/lox/deathmoves/internal/config"
	"github.com/lox/deathmoves/internal/dice"
	"github.com/lox/deathmoves/internal/i18n"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/presentation"
	"github.com/lox/deathmoves/internal/protocol"
)

// run carries the per-flow values through one sequence.
type run struct {
	flowID   string
	branch   outcome.Branch
	settings config.Settings
	loc      *i18n.Localizer
}

// Choose runs the chosen branch to completion: countdown, announcement,
// roll and result. It blocks for the whole sequence and cannot be
// cancelled once started, except by ctx when the client shuts down.
func (c *Coordinator) Choose(ctx context.Context, branch outcome.Branch) error {
	if !branch.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBranch, branch)
	}

	c.mu.Lock()
	if c.state != ClientTargetActive {
		c.mu.Unlock()
		return ErrNotTarget
	}
	c.state = SelectionCountdown
	r := &run{flowID: c.flowID, branch: branch, settings: c.settings.Settings()}
	c.mu.Unlock()

	r.loc = i18n.New(r.settings.Language)
	c.logger.Info("Death move chosen", "flow", r.flowID, "branch", branch)

	err := c.sequence(ctx, r)

	c.mu.Lock()
	if c.flowID == r.flowID {
		c.state = Idle
		c.flowID = ""
	}
	c.mu.Unlock()
	return err
}

// Cancel closes the choice overlay before a branch is chosen.
func (c *Coordinator) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.state != ClientTargetActive {
		c.mu.Unlock()
		return ErrNotTarget
	}
	flowID := c.flowID
	c.state = Idle
	c.flowID = ""
	c.mu.Unlock()

	c.logger.Info("Death move cancelled", "flow", flowID)
	c.audio.StopCurrent()
	c.view.RemoveOverlay()
	c.send(ctx, flowID, protocol.RemoveSpectatorUI{})
	return nil
}

func (c *Coordinator) sequence(ctx context.Context, r *run) error {
	buttonID := r.branch.ButtonID()

	c.view.HideOthers(buttonID)
	c.send(ctx, r.flowID, protocol.HideUnselected{ButtonID: buttonID})

	if err := c.countdown(ctx, r, buttonID); err != nil {
		return err
	}

	c.setState(Resolving)
	c.view.RemoveOverlay()
	c.send(ctx, r.flowID, protocol.RemoveSpectatorUI{})

	c.setState(Announcing)
	c.sound(ctx, r.flowID, r.branch.AnnouncementSound())
	text := r.loc.T(branchTitle(r.branch))
	c.view.ShowAnnouncement(text)
	c.send(ctx, r.flowID, protocol.ShowAnnouncement{Text: text, Branch: r.branch})
	if err := c.sleep(ctx, AnnouncementHold, "announcement"); err != nil {
		return err
	}

	c.setState(RollingDice)
	switch r.branch {
	case outcome.BranchAvoid:
		return c.avoidDeath(ctx, r)
	case outcome.BranchBlaze:
		return c.blazeOfGlory(ctx, r)
	case outcome.BranchRisk:
		if r.settings.DoubleRoll {
			return c.riskItAllSequential(ctx, r)
		}
		return c.riskItAll(ctx, r)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBranch, r.branch)
	}
}

// countdown ticks from the configured duration down to 1, one second
// apart. A duration of zero skips it.
func (c *Coordinator) countdown(ctx context.Context, r *run, buttonID string) error {
	c.audio.StopCurrent()
	for n := r.settings.CountdownDuration; n >= 1; n-- {
		c.view.UpdateCountdown(buttonID, n)
		c.sound(ctx, r.flowID, assets.SoundSuspenseTick)
		c.send(ctx, r.flowID, protocol.UpdateCountdown{ButtonID: buttonID, Number: n})
		if err := c.sleep(ctx, TickInterval, "countdown"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) avoidDeath(ctx context.Context, r *run) error {
	actor := c.character(ctx)
	hasBonus := actor.HasItem(r.settings.BonusItemName)
	level := 0
	if actor != nil {
		level = actor.Level
	}

	c.border(ctx, r.flowID, presentation.BorderHope)

	roll, err := outcome.RollAvoidDeath(ctx, c.roller, level, hasBonus)
	if err != nil {
		c.clearBorder(ctx, r.flowID)
		return err
	}
	c.animate(ctx, roll.Dice)
	if err := c.sleep(ctx, AvoidHold, "avoid"); err != nil {
		c.clearBorder(ctx, r.flowID)
		return err
	}
	c.clearBorder(ctx, r.flowID)

	if actor == nil {
		c.logger.Info("No character bound, skipping classification", "flow", r.flowID, "roll", roll.Raw)
		c.post(ctx, r, outcome.Unknown, avoidFallbackCard(r.loc, roll))
		return nil
	}

	c.reveal(ctx, r.flowID, roll.Outcome)
	c.post(ctx, r, roll.Outcome, avoidCard(r.loc, roll, r.settings.BonusItemName, c.mediaPath(roll.Outcome.Media())))
	return nil
}

func (c *Coordinator) blazeOfGlory(ctx context.Context, r *run) error {
	c.reveal(ctx, r.flowID, outcome.Blaze)
	c.post(ctx, r, outcome.Blaze, blazeCard(r.loc, r.settings.BlazeMessage, c.mediaPath(outcome.Blaze.Media())))
	return nil
}

func (c *Coordinator) riskItAll(ctx context.Context, r *run) error {
	roll, res, err := outcome.RollRiskItAll(ctx, c.roller)
	if err != nil {
		return err
	}
	c.animate(ctx, res)
	if err := c.sleep(ctx, RiskHold, "risk"); err != nil {
		return err
	}
	return c.riskResult(ctx, r, roll)
}

// riskItAllSequential draws the Fear die first, then the Hope die, each
// under its own border.
func (c *Coordinator) riskItAllSequential(ctx context.Context, r *run) error {
	c.border(ctx, r.flowID, presentation.BorderFear)
	fear, fearRes, err := outcome.RollD12(ctx, c.roller)
	if err != nil {
		c.clearBorder(ctx, r.flowID)
		return err
	}
	c.animate(ctx, fearRes)
	if err := c.sleep(ctx, FearHold, "fear"); err != nil {
		c.clearBorder(ctx, r.flowID)
		return err
	}

	c.border(ctx, r.flowID, presentation.BorderHope)
	hope, hopeRes, err := outcome.RollD12(ctx, c.roller)
	if err != nil {
		c.clearBorder(ctx, r.flowID)
		return err
	}
	c.animate(ctx, hopeRes)
	if err := c.sleep(ctx, HopeHold, "hope"); err != nil {
		c.clearBorder(ctx, r.flowID)
		return err
	}
	c.clearBorder(ctx, r.flowID)

	return c.riskResult(ctx, r, outcome.NewRiskRoll(hope, fear))
}

func (c *Coordinator) riskResult(ctx context.Context, r *run, roll outcome.RiskRoll) error {
	c.reveal(ctx, r.flowID, roll.Outcome)
	c.post(ctx, r, roll.Outcome, riskCard(r.loc, roll, c.mediaPath(roll.Outcome.Media())))
	return nil
}

// reveal shows the result media and sound locally, then publishes both.
func (c *Coordinator) reveal(ctx context.Context, flowID string, o outcome.Outcome) {
	media, err := c.message(flowID, protocol.PlayMedia{MediaKey: o.Media()})
	if err == nil {
		c.showMedia(o.Media())
		c.publish(ctx, media)
	}
	c.sound(ctx, flowID, o.Sound())
}

func (c *Coordinator) border(ctx context.Context, flowID string, kind presentation.Border) {
	c.view.ShowBorder(kind)
	c.send(ctx, flowID, protocol.ShowBorder{BorderType: kind})
}

// clearBorder also runs on the way out of a cancelled sequence, so the
// message is sent even when ctx is done.
func (c *Coordinator) clearBorder(ctx context.Context, flowID string) {
	c.view.RemoveBorder()
	c.send(context.WithoutCancel(ctx), flowID, protocol.RemoveBorder{})
}

func (c *Coordinator) character(ctx context.Context) *outcome.Character {
	actor, err := c.characters.CharacterOf(ctx, c.self.UserID)
	if err != nil {
		c.logger.Warn("Character lookup failed", "error", err)
		return nil
	}
	return actor
}

func (c *Coordinator) animate(ctx context.Context, res dice.Result) {
	if c.animator == nil {
		return
	}
	if err := c.animator.Animate(ctx, res); err != nil {
		c.logger.Debug("Dice animation failed", "error", err)
	}
}

// sleep waits d on the coordinator's clock.
func (c *Coordinator) sleep(ctx context.Context, d time.Duration, tag string) error {
	t := c.clock.NewTimer(d, "flow", tag)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sound plays key locally and publishes it under the same token, so a copy
// that comes back is not played twice.
func (c *Coordinator) sound(ctx context.Context, flowID string, key assets.Sound) {
	msg, err := c.message(flowID, protocol.PlaySound{SoundKey: key})
	if err != nil {
		return
	}
	c.playLocal(ctx, msg.ID, key)
	c.publish(ctx, msg)
}

func (c *Coordinator) playLocal(ctx context.Context, token string, key assets.Sound) {
	if err := c.audio.Play(ctx, audio.Cue{Token: token, Key: key}); err != nil {
		c.logger.Debug("Sound skipped", "sound", key, "error", err)
	}
}

func (c *Coordinator) showMedia(key assets.Media) {
	path, err := c.assets.Media(key)
	if err != nil {
		c.logger.Debug("Media skipped", "media", key, "error", err)
		return
	}
	c.view.ShowMedia(path)
}

func (c *Coordinator) mediaPath(key assets.Media) string {
	path, err := c.assets.Media(key)
	if err != nil {
		return ""
	}
	return path
}

func (c *Coordinator) message(flowID string, payload protocol.Payload) (*protocol.Message, error) {
	msg, err := protocol.NewMessage(payload)
	if err != nil {
		c.logger.Error("Failed to build message", "type", payload.MessageType(), "error", err)
		return nil, err
	}
	msg.Sender = c.self.UserID
	msg.FlowID = flowID
	return msg, nil
}

// send builds and publishes payload.
func (c *Coordinator) send(ctx context.Context, flowID string, payload protocol.Payload) {
	msg, err := c.message(flowID, payload)
	if err != nil {
		return
	}
	c.publish(ctx, msg)
}

// publish is fire and forget: a lost message only leaves spectators out of
// sync until the next corrective message.
func (c *Coordinator) publish(ctx context.Context, msg *protocol.Message) {
	if err := c.channel.Publish(ctx, msg); err != nil {
		c.logger.Debug("Publish failed", "type", msg.Type, "error", err)
	}
}

func branchTitle(b outcome.Branch) string {
	switch b {
	case outcome.BranchAvoid:
		return i18n.KeyAvoidTitle
	case outcome.BranchBlaze:
		return i18n.KeyBlazeTitle
	default:
		return i18n.KeyRiskTitle
	}
}
