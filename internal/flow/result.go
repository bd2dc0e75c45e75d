package flow

import (
	"context"
	"strconv"

	"github.com/lox/deathmoves/internal/i18n"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/record"
)

// result pairs a card with the speaker that posts it.
type result struct {
	speaker string
	card    record.Card
}

func avoidCard(loc *i18n.Localizer, roll outcome.AvoidRoll, bonusItem, image string) result {
	card := record.Card{Image: image}
	if roll.Outcome == outcome.AvoidScar {
		card.Title = loc.T(i18n.KeyAvoidResultScar)
		card.Text = loc.T(i18n.KeyAvoidMsgScar)
	} else {
		card.Title = loc.T(i18n.KeyAvoidResultSafe)
		card.Text = loc.T(i18n.KeyAvoidMsgSafe)
	}

	card.Details = append(card.Details, record.Detail{Label: loc.T(i18n.KeyRollLabel), Value: strconv.Itoa(roll.Raw)})
	if roll.Bonus > 0 {
		card.Details = append(card.Details, record.Detail{Label: bonusItem, Value: "+" + strconv.Itoa(roll.Bonus), Accent: true})
	}
	card.Details = append(card.Details, record.Detail{Label: loc.T(i18n.KeyTotalLabel), Value: strconv.Itoa(roll.Total), Total: true})
	card.Footer = loc.T(i18n.KeyThreshold, roll.Level)

	return result{speaker: loc.T(i18n.KeySpeaker), card: card}
}

// avoidFallbackCard reports the raw roll when no character is bound.
func avoidFallbackCard(loc *i18n.Localizer, roll outcome.AvoidRoll) result {
	return result{
		speaker: loc.T(i18n.KeySpeaker),
		card: record.Card{
			Title: loc.T(i18n.KeyAvoidFlavor),
			Text:  loc.T(i18n.KeyAvoidNoActor, roll.Raw),
		},
	}
}

func riskCard(loc *i18n.Localizer, roll outcome.RiskRoll, image string) result {
	card := record.Card{
		Image: image,
		Dice: []record.Face{
			{Label: loc.T(i18n.KeyHopeDie, roll.Hope), Colour: record.ColourGold},
			{Label: loc.T(i18n.KeyFearDie, roll.Fear), Colour: record.ColourOrchid},
		},
	}
	switch roll.Outcome {
	case outcome.Hope:
		card.Title = loc.T(i18n.KeyRiskHopeTitle)
		card.Text = loc.T(i18n.KeyRiskHopeDesc)
	case outcome.Fear:
		card.Title = loc.T(i18n.KeyRiskFearTitle)
		card.Text = loc.T(i18n.KeyRiskFearDesc)
	default:
		card.Title = loc.T(i18n.KeyRiskCriticalTitle)
		card.Text = loc.T(i18n.KeyRiskCriticalDesc)
	}
	return result{speaker: loc.T(i18n.KeyRiskSpeaker), card: card}
}

func blazeCard(loc *i18n.Localizer, message, image string) result {
	return result{
		speaker: loc.T(i18n.KeySpeaker),
		card: record.Card{
			Title: loc.T(i18n.KeyBlazeResultTitle),
			Text:  message,
			Image: image,
		},
	}
}

// post renders res and hands it to the record poster. Failures are logged;
// the flow has already finished on every client.
func (c *Coordinator) post(ctx context.Context, r *run, o outcome.Outcome, res result) {
	html, err := res.card.HTML()
	if err != nil {
		c.logger.Error("Failed to render result", "flow", r.flowID, "error", err)
		return
	}

	rec := record.Record{
		FlowID:    r.flowID,
		UserID:    c.self.UserID,
		Branch:    string(r.branch),
		Outcome:   o.String(),
		Speaker:   res.speaker,
		Title:     res.card.Title,
		HTML:      html,
		Style:     record.StyleOther,
		CreatedAt: c.clock.Now(),
	}
	if err := c.records.PostRecord(ctx, rec); err != nil {
		c.logger.Warn("Failed to post result", "flow", r.flowID, "error", err)
		return
	}
	c.logger.Info("Death move resolved", "flow", r.flowID, "branch", r.branch, "outcome", o)
}
