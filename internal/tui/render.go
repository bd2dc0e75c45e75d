package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/deathmoves/internal/i18n"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/presentation"
)

const overlayWidth = 52

// Render draws the presentation state. An idle state renders as "".
func Render(snap presentation.Snapshot, loc *i18n.Localizer) string {
	var parts []string

	if snap.Overlay != nil {
		parts = append(parts, renderOverlay(snap, loc))
	}
	if b := snap.Announcement; b != nil {
		style := AnnouncementStyle
		if b.Fading {
			style = FadingStyle
		}
		parts = append(parts, style.Render(strings.ToUpper(b.Text)))
	}
	if snap.Media != nil {
		parts = append(parts, MediaStyle.Render("[ "+snap.Media.Path+" ]"))
	}
	if len(parts) == 0 {
		return ""
	}

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	switch snap.Border {
	case presentation.BorderHope:
		return frame(gold).Render(content)
	case presentation.BorderFear:
		return frame(orchid).Render(content)
	default:
		return content
	}
}

func frame(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.ThickBorder()).BorderForeground(c)
}

func renderOverlay(snap presentation.Snapshot, loc *i18n.Localizer) string {
	o := snap.Overlay
	var b strings.Builder

	title := loc.T(i18n.KeyTitle)
	if o.Spectator {
		title = loc.T(i18n.KeyTitleSpectator)
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")

	for _, opt := range snap.VisibleOptions() {
		b.WriteString("\n")
		b.WriteString(renderOption(opt, o.Probs, loc))
	}

	if o.CancelVisible {
		closeKey := i18n.KeyClose
		if o.Spectator {
			closeKey = i18n.KeyCloseView
		}
		b.WriteString("\n\n")
		b.WriteString(InfoStyle.Render("[c] " + loc.T(closeKey)))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(bronze).
		Width(overlayWidth).
		Padding(0, 1).
		Render(b.String())
}

func renderOption(opt presentation.Option, probs *outcome.ProbabilitySnapshot, loc *i18n.Localizer) string {
	title, subtitle := optionText(opt.Branch, loc)
	if opt.HasCountdown {
		return fmt.Sprintf("%s  %s", OptionStyle.Render(title), CountdownStyle.Render(fmt.Sprint(opt.Countdown)))
	}

	style := OptionStyle
	label := fmt.Sprintf("[%d] %s", shortcut(opt.Branch), title)
	if opt.Disabled {
		style = DisabledStyle
		label = title
	}

	lines := []string{style.Render(label), SubtitleStyle.Render("    " + subtitle)}
	if odds := oddsText(opt.Branch, probs, loc); odds != "" {
		lines = append(lines, OddsStyle.Render("    "+odds))
	}
	if opt.Branch == outcome.BranchAvoid && probs != nil && probs.HasBonusItem {
		lines = append(lines, BonusStyle.Render("    + "+probs.BonusItemName))
	}
	return strings.Join(lines, "\n")
}

func optionText(b outcome.Branch, loc *i18n.Localizer) (string, string) {
	switch b {
	case outcome.BranchAvoid:
		return loc.T(i18n.KeyAvoidTitle), loc.T(i18n.KeyAvoidSubtitle)
	case outcome.BranchBlaze:
		return loc.T(i18n.KeyBlazeTitle), loc.T(i18n.KeyBlazeSubtitle)
	default:
		return loc.T(i18n.KeyRiskTitle), loc.T(i18n.KeyRiskSubtitle)
	}
}

// oddsText is empty when the odds are hidden.
func oddsText(b outcome.Branch, probs *outcome.ProbabilitySnapshot, loc *i18n.Localizer) string {
	if probs == nil {
		return ""
	}
	switch b {
	case outcome.BranchAvoid:
		if !probs.AvoidKnown {
			return loc.T(i18n.KeyScarLabel) + ": ?"
		}
		return fmt.Sprintf("%s: %d%%", loc.T(i18n.KeyScarLabel), probs.AvoidScarPercent)
	case outcome.BranchBlaze:
		return fmt.Sprintf("%s: %d%%", loc.T(i18n.KeyDeathLabel), probs.BlazeDeathPercent)
	default:
		return loc.T(i18n.KeyLifeLabel, probs.RiskLifePercent, probs.RiskDeathPercent)
	}
}

// shortcut is the number typed to choose b.
func shortcut(b outcome.Branch) int {
	for i, branch := range outcome.Branches() {
		if branch == b {
			return i + 1
		}
	}
	return 0
}
