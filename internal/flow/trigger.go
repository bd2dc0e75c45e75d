package flow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lox/deathmoves/internal/assets"
	"github.com/lox/deathmoves/internal/i18n"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/protocol"
)

// TriggerFlow starts a death move. Only a game master may trigger one, and
// only while no other flow it started is running. chooser picks the target
// among the connected non-privileged participants. It returns the new flow
// id.
func (c *Coordinator) TriggerFlow(ctx context.Context, chooser TargetChooser) (string, error) {
	loc := i18n.New(c.settings.Settings().Language)

	if !c.directory.IsPrivileged(c.self.UserID) {
		c.notifier.Warn(loc.T(i18n.KeyWarnNotPrivileged))
		return "", ErrPermissionDenied
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		c.notifier.Warn(loc.T(i18n.KeyWarnInProgress))
		return "", ErrFlowInProgress
	}
	c.mu.Unlock()

	candidates := c.eligible()
	if len(candidates) == 0 {
		c.notifier.Warn(loc.T(i18n.KeyWarnNoPlayers))
		return "", ErrNoEligibleTarget
	}

	c.mu.Lock()
	prev := c.state
	c.state = AwaitingTargetSelection
	c.mu.Unlock()

	target, err := chooser.ChooseTarget(ctx, candidates)
	if err != nil {
		c.abandonSelection(prev)
		return "", fmt.Errorf("choose target: %w", err)
	}
	if !contains(candidates, target) {
		c.abandonSelection(prev)
		return "", fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}

	return c.Dispatch(ctx, target)
}

// abandonSelection returns to the state held before target selection. A
// spectated flow that ended meanwhile leaves the client idle.
func (c *Coordinator) abandonSelection(prev State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != AwaitingTargetSelection {
		return
	}
	if prev == ClientSpectating && c.flowID == "" {
		prev = Idle
	}
	c.state = prev
	if prev == Idle {
		c.flowID = ""
	}
}

// Dispatch sends the choice overlay to target and the spectator overlay to
// everyone else, showing the local spectator view first.
func (c *Coordinator) Dispatch(ctx context.Context, target string) (string, error) {
	settings := c.settings.Settings()
	loc := i18n.New(settings.Language)

	actor, err := c.characters.CharacterOf(ctx, target)
	if err != nil {
		c.logger.Warn("Character lookup failed", "target", target, "error", err)
		actor = nil
	}
	probs := outcome.Snapshot(actor, settings.ShowProbabilities, settings.BonusItemName)

	flowID := uuid.NewString()
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return "", ErrFlowInProgress
	}
	g := &guard{flowID: flowID, target: target}
	g.timer = c.clock.AfterFunc(c.guardTimeout, func() { c.expireGuard(flowID) }, "flow", "guard")
	c.active = g
	c.state = Dispatched
	c.flowID = flowID
	c.mu.Unlock()

	c.logger.Info("Dispatching death move", "flow", flowID, "target", target)

	c.view.ShowSpectator(probs)
	c.playLocal(ctx, "", assets.SoundRollScreen)

	showUI, err := c.message(flowID, protocol.ShowUI{TargetUserID: target, Probs: probs})
	if err != nil {
		return "", err
	}
	c.publish(ctx, showUI)

	spectate, err := c.message(flowID, protocol.ShowSpectatorUI{TargetUserID: target, Probs: probs})
	if err != nil {
		return "", err
	}
	c.publish(ctx, spectate)

	c.notifier.Info(loc.T(i18n.KeyInfoSent))
	return flowID, nil
}

func (c *Coordinator) eligible() []protocol.Participant {
	var out []protocol.Participant
	for _, p := range c.directory.EligibleParticipants() {
		if p.UserID != c.self.UserID && !p.Privileged {
			out = append(out, p)
		}
	}
	return out
}

func contains(ps []protocol.Participant, userID string) bool {
	for _, p := range ps {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// expireGuard releases a flow whose end was never observed.
func (c *Coordinator) expireGuard(flowID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.flowID != flowID {
		return
	}
	c.logger.Warn("Releasing unfinished death move", "flow", flowID)
	c.releaseLocked()
}

// releaseLocked clears the initiator guard. Callers hold c.mu.
func (c *Coordinator) releaseLocked() {
	if c.active == nil {
		return
	}
	c.active.timer.Stop()
	if c.flowID == c.active.flowID && (c.state == Dispatched || c.state == AwaitingTargetSelection) {
		c.state = Idle
		c.flowID = ""
	}
	c.active = nil
}

// FirstEligible picks the first candidate.
var FirstEligible = ChooserFunc(func(_ context.Context, candidates []protocol.Participant) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoEligibleTarget
	}
	return candidates[0].UserID, nil
})
