// Package tui is the terminal front end of a client: it draws the
// presentation state next to a log and turns typed commands into actions.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/deathmoves/internal/dice"
	"github.com/lox/deathmoves/internal/i18n"
	"github.com/lox/deathmoves/internal/presentation"
)

// Model is the Bubble Tea model for one client
type Model struct {
	view   *presentation.State
	loc    *i18n.Localizer
	header string
	logger *log.Logger

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	mu       sync.Mutex
	entries  []string
	captured []string
	program  *tea.Program

	actions    chan Action
	quitSignal chan struct{}
	quitting   bool

	width  int
	height int

	testMode bool
}

// Action is one command typed by the user
type Action struct {
	Name     string
	Args     []string
	Continue bool
}

// QuitMsg is a custom message to signal quit
type QuitMsg struct{}

// refreshMsg asks the program to redraw after a change made elsewhere
type refreshMsg struct{}

// NewModel creates a model drawing view
func NewModel(view *presentation.State, loc *i18n.Localizer, header string, logger *log.Logger) *Model {
	return NewModelWithOptions(view, loc, header, logger, false)
}

// NewModelWithOptions creates a model with test mode option. In test mode
// log entries are captured and nothing is drawn.
func NewModelWithOptions(view *presentation.State, loc *i18n.Localizer, header string, logger *log.Logger, testMode bool) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "trigger, 1 / 2 / 3, c to close, help, quit"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 64
	ti.PromptStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	m := &Model{
		view:        view,
		loc:         loc,
		header:      header,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		actionInput: ti,
		actions:     make(chan Action, 16),
		quitSignal:  make(chan struct{}, 1),
		testMode:    testMode,
	}
	view.OnChange(m.Refresh)
	return m
}

// SetProgram attaches the running program so changes made on other
// goroutines trigger a redraw.
func (m *Model) SetProgram(p *tea.Program) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.program = p
}

// Refresh asks the program to redraw. It is safe to call from any goroutine.
func (m *Model) Refresh() {
	m.mu.Lock()
	p := m.program
	m.mu.Unlock()
	if p != nil {
		go p.Send(refreshMsg{})
	}
}

// Init initializes the TUI model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listenForQuit())
}

func (m *Model) listenForQuit() tea.Cmd {
	return func() tea.Msg {
		<-m.quitSignal
		return QuitMsg{}
	}
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case refreshMsg:
		m.syncLog()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.push(Action{Name: "quit"})
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "enter":
			m.processAction(m.actionInput.Value())
			m.actionInput.SetValue("")
		case "pgup":
			m.logViewport.HalfPageUp()
		case "pgdown":
			m.logViewport.HalfPageDown()
		}
	}

	var cmd tea.Cmd
	m.actionInput, cmd = m.actionInput.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := HeaderStyle.Width(m.width).Render(" " + m.header)

	stage := Render(m.view.Snapshot(), m.loc)
	stageWidth := lipgloss.Width(stage)

	inputPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(green).
		Width(max(1, m.width-2)).
		Render(m.actionInput.View() + "\n" + InfoStyle.Render("PgUp/PgDn scroll log • Ctrl+C to quit"))

	bodyHeight := max(1, m.height-lipgloss.Height(header)-lipgloss.Height(inputPane)-2)
	logWidth := max(1, m.width-stageWidth-4)

	m.logViewport.Width = logWidth
	m.logViewport.Height = bodyHeight
	logPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(grey).
		Width(logWidth).
		Height(bodyHeight).
		Render(m.logViewport.View())

	body := logPane
	if stage != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, logPane, stage)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, inputPane)
}

// AddLogEntry appends an entry to the log
func (m *Model) AddLogEntry(entry string) {
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	if m.testMode {
		m.captured = append(m.captured, entry)
	}
	m.mu.Unlock()
	m.Refresh()
}

// syncLog copies the entries into the viewport. Only Update calls it.
func (m *Model) syncLog() {
	m.mu.Lock()
	content := strings.Join(m.entries, "\n")
	m.mu.Unlock()

	m.logViewport.SetContent(LogStyle.Render(content))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// Warn shows a warning in the log
func (m *Model) Warn(msg string) {
	m.AddLogEntry(WarningStyle.Render("! " + msg))
}

// Info shows a notice in the log
func (m *Model) Info(msg string) {
	m.AddLogEntry(SuccessStyle.Render(msg))
}

// Animate logs a roll as it lands
func (m *Model) Animate(_ context.Context, res dice.Result) error {
	m.AddLogEntry("🎲 " + res.String())
	return nil
}

func (m *Model) processAction(input string) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(parts) == 0 {
		return
	}
	m.push(Action{Name: parts[0], Args: parts[1:], Continue: parts[0] != "quit"})
}

func (m *Model) push(a Action) {
	select {
	case m.actions <- a:
	default:
		m.logger.Debug("Dropping action while busy", "action", a.Name)
	}
}

// WaitForAction blocks until the user submits a command
func (m *Model) WaitForAction(ctx context.Context) (Action, error) {
	select {
	case a := <-m.actions:
		return a, nil
	case <-ctx.Done():
		return Action{}, ctx.Err()
	}
}

// SendQuitSignal signals the TUI to quit gracefully
func (m *Model) SendQuitSignal() {
	select {
	case m.quitSignal <- struct{}{}:
	default:
	}
}

// GetCapturedLog returns the captured log entries (test mode only)
func (m *Model) GetCapturedLog() []string {
	if !m.testMode {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.captured...)
}

// InjectAction programmatically submits a command (test mode only)
func (m *Model) InjectAction(input string) error {
	if !m.testMode {
		return fmt.Errorf("action injection only available in test mode")
	}
	parts := strings.Fields(strings.ToLower(input))
	if len(parts) == 0 {
		return fmt.Errorf("empty action")
	}
	select {
	case m.actions <- Action{Name: parts[0], Args: parts[1:], Continue: parts[0] != "quit"}:
		return nil
	default:
		return fmt.Errorf("action channel full")
	}
}

// IsTestMode returns whether the TUI is in test mode
func (m *Model) IsTestMode() bool {
	return m.testMode
}
