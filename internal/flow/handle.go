package flow

import (
	"context"
	"errors"

	"github.com/lox/deathmoves/internal/assets"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/protocol"
)

// HandleMessage applies one message received from the channel. Presentation
// changes are idempotent and ignore the flow id, so a lost or late message
// is corrected by the next one. Unknown types are ignored.
func (c *Coordinator) HandleMessage(ctx context.Context, msg *protocol.Message) {
	if msg.Sender != "" && msg.Sender == c.self.UserID {
		return
	}

	payload, err := protocol.Decode(msg)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownMessageType) {
			c.logger.Debug("Ignoring unknown message", "type", msg.Type)
		} else {
			c.logger.Debug("Ignoring malformed message", "type", msg.Type, "error", err)
		}
		return
	}

	switch p := payload.(type) {
	case protocol.ShowUI:
		c.onShowUI(ctx, msg, p)
	case protocol.ShowSpectatorUI:
		c.onShowSpectator(ctx, msg, p)
	case protocol.RemoveSpectatorUI:
		c.onRemoveSpectator(msg)
	case protocol.ShowAnnouncement:
		c.view.ShowAnnouncement(p.Text)
	case protocol.PlayMedia:
		c.showMedia(p.MediaKey)
		c.observe(msg, func(g *guard) bool { return true })
	case protocol.PlaySound:
		c.playLocal(ctx, msg.ID, p.SoundKey)
	case protocol.ShowBorder:
		c.view.ShowBorder(p.BorderType)
	case protocol.RemoveBorder:
		c.view.RemoveBorder()
		// Avoid Death without a character ends on this message.
		c.observe(msg, func(g *guard) bool { return g.selected && g.branch == outcome.BranchAvoid })
	case protocol.UpdateCountdown:
		c.view.UpdateCountdown(p.ButtonID, p.Number)
	case protocol.HideUnselected:
		c.view.HideOthers(p.ButtonID)
		c.onSelected(msg, p.ButtonID)
	case protocol.Roster:
		// Handled by the directory.
	}
}

func (c *Coordinator) onShowUI(ctx context.Context, msg *protocol.Message, p protocol.ShowUI) {
	if p.TargetUserID != c.self.UserID {
		return
	}

	c.mu.Lock()
	switch c.state {
	case SelectionCountdown, Resolving, Announcing, RollingDice:
		c.mu.Unlock()
		c.logger.Debug("Ignoring new flow while resolving", "flow", msg.FlowID)
		return
	}
	c.state = ClientTargetActive
	c.flowID = msg.FlowID
	c.mu.Unlock()

	c.logger.Info("Death move offered", "flow", msg.FlowID, "from", msg.Sender)
	c.view.ShowInteractive(p.Probs)
	c.playLocal(ctx, "roll-screen:"+msg.ID, assets.SoundRollScreen)
}

func (c *Coordinator) onShowSpectator(ctx context.Context, msg *protocol.Message, p protocol.ShowSpectatorUI) {
	if p.TargetUserID == c.self.UserID {
		return
	}

	c.mu.Lock()
	switch c.state {
	case ClientTargetActive, SelectionCountdown, Resolving, Announcing, RollingDice:
		c.mu.Unlock()
		return
	}
	c.state = ClientSpectating
	c.flowID = msg.FlowID
	c.mu.Unlock()

	c.view.ShowSpectator(p.Probs)
	c.playLocal(ctx, "roll-screen:"+msg.ID, assets.SoundRollScreen)
}

func (c *Coordinator) onRemoveSpectator(msg *protocol.Message) {
	c.view.RemoveSpectator()

	c.mu.Lock()
	if msg.FlowID == "" || msg.FlowID == c.flowID {
		switch c.state {
		case ClientSpectating:
			c.state = Idle
			c.flowID = ""
		case AwaitingTargetSelection:
			// The spectated flow ended while a target was being picked.
			c.flowID = ""
		}
	}
	c.mu.Unlock()

	// Before a selection this is the target cancelling.
	c.observe(msg, func(g *guard) bool { return !g.selected })
}

func (c *Coordinator) onSelected(msg *protocol.Message, buttonID string) {
	branch, err := outcome.ParseBranch(buttonID)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if g := c.active; g != nil && g.flowID == msg.FlowID && msg.Sender == g.target {
		g.selected = true
		g.branch = branch
	}
}

// observe releases the initiator guard when done reports that msg ends the
// flow it started.
func (c *Coordinator) observe(msg *protocol.Message, done func(g *guard) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := c.active
	if g == nil || g.flowID != msg.FlowID || !done(g) {
		return
	}
	c.logger.Debug("Death move finished", "flow", g.flowID, "on", msg.Type)
	c.releaseLocked()
}
