package tui

import "github.com/charmbracelet/lipgloss"

var (
	gold   = lipgloss.Color("#FFD700")
	orchid = lipgloss.Color("#DA70D6")
	bronze = lipgloss.Color("#C9A060")
	grey   = lipgloss.Color("#626262")
	green  = lipgloss.Color("#04B575")
)

// Static styles for content elements
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true)

	LogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	TitleStyle = lipgloss.NewStyle().
			Foreground(bronze).
			Bold(true)

	OptionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BBBBBB"))

	OddsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4"))

	BonusStyle = lipgloss.NewStyle().
			Foreground(gold)

	CountdownStyle = lipgloss.NewStyle().
			Foreground(gold).
			Bold(true)

	DisabledStyle = lipgloss.NewStyle().
			Foreground(grey)

	AnnouncementStyle = lipgloss.NewStyle().
				Foreground(bronze).
				Bold(true).
				Padding(0, 2)

	FadingStyle = lipgloss.NewStyle().
			Foreground(grey).
			Padding(0, 2)

	MediaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#191919")).
			Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(grey)
)
