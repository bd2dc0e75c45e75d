// Package flow coordinates one death move across every client of a session.
//
// The game master's client triggers a flow and publishes the choice overlay.
// The target's client runs the rest: the countdown, the announcement, the
// roll and the result. Every other client mirrors what it receives. Each
// step applies its local effect first and then publishes the matching
// message, so spectators see roughly the same timeline as the roller.
package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/deathmoves/internal/assets"
	"github.com/lox/deathmoves/internal/audio"
	"github.com/lox/deathmoves/internal/broadcast"
	"github.com/lox/deathmoves/internal/config"
	"github.com/lox/deathmoves/internal/dice"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/presentation"
	"github.com/lox/deathmoves/internal/protocol"
	"github.com/lox/deathmoves/internal/record"
)

// Fixed pauses of the choreography.
const (
	TickInterval     = time.Second
	AnnouncementHold = 4 * time.Second
	AvoidHold        = 3 * time.Second
	RiskHold         = 2 * time.Second
	FearHold         = 5 * time.Second
	HopeHold         = 4 * time.Second

	DefaultGuardTimeout = 2 * time.Minute
)

var (
	ErrPermissionDenied = errors.New("flow: only a game master can trigger a death move")
	ErrNoEligibleTarget = errors.New("flow: no eligible participants")
	ErrUnknownTarget    = errors.New("flow: target is not an eligible participant")
	ErrFlowInProgress   = errors.New("flow: a death move is already in progress")
	ErrNotTarget        = errors.New("flow: no choice is pending on this client")
	ErrInvalidBranch    = errors.New("flow: invalid death move")
)

// State is where a client is in the flow.
type State int

const (
	Idle State = iota
	AwaitingTargetSelection
	Dispatched
	ClientTargetActive
	ClientSpectating
	SelectionCountdown
	Resolving
	Announcing
	RollingDice
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingTargetSelection:
		return "awaiting_target_selection"
	case Dispatched:
		return "dispatched"
	case ClientTargetActive:
		return "client_target_active"
	case ClientSpectating:
		return "client_spectating"
	case SelectionCountdown:
		return "selection_countdown"
	case Resolving:
		return "resolving"
	case Announcing:
		return "announcing"
	case RollingDice:
		return "rolling_dice"
	default:
		return "unknown"
	}
}

// Roller draws dice.
type Roller interface {
	Roll(ctx context.Context, expr string) (dice.Result, error)
}

// Characters looks up the character bound to a user. A nil character with
// a nil error means none is bound.
type Characters interface {
	CharacterOf(ctx context.Context, userID string) (*outcome.Character, error)
}

// Assets resolves logical asset keys to paths.
type Assets interface {
	Media(key assets.Media) (string, error)
	Sound(key assets.Sound) (string, error)
}

// SettingsSource returns the current table settings.
type SettingsSource interface {
	Settings() config.Settings
}

// RecordPoster receives the result of every resolved flow.
type RecordPoster interface {
	PostRecord(ctx context.Context, r record.Record) error
}

// Directory knows who is connected.
type Directory interface {
	IsPrivileged(userID string) bool
	EligibleParticipants() []protocol.Participant
}

// DiceAnimator shows a roll. Failures are ignored.
type DiceAnimator interface {
	Animate(ctx context.Context, res dice.Result) error
}

// Notifier shows short messages to the local user.
type Notifier interface {
	Warn(msg string)
	Info(msg string)
}

// TargetChooser picks the target of a new flow from candidates.
type TargetChooser interface {
	ChooseTarget(ctx context.Context, candidates []protocol.Participant) (string, error)
}

// ChooserFunc adapts a function to TargetChooser.
type ChooserFunc func(ctx context.Context, candidates []protocol.Participant) (string, error)

func (f ChooserFunc) ChooseTarget(ctx context.Context, candidates []protocol.Participant) (string, error) {
	return f(ctx, candidates)
}

// Audio is the client's single sound slot.
type Audio interface {
	Play(ctx context.Context, cue audio.Cue) error
	StopCurrent()
}

// Presenter is the local view. *presentation.State implements it.
type Presenter interface {
	ShowInteractive(probs *outcome.ProbabilitySnapshot)
	ShowSpectator(probs *outcome.ProbabilitySnapshot)
	RemoveSpectator() bool
	RemoveOverlay() bool
	HideOthers(selectedID string)
	UpdateCountdown(buttonID string, n int)
	ShowAnnouncement(text string)
	ShowBorder(kind presentation.Border)
	RemoveBorder() bool
	ShowMedia(path string)
}

var (
	_ Audio     = (*audio.Service)(nil)
	_ Presenter = (*presentation.State)(nil)
)

// Options wires a Coordinator to its collaborators. Animator and Notifier
// are optional.
type Options struct {
	Self         protocol.Participant
	Channel      broadcast.Channel
	Presenter    Presenter
	Audio        Audio
	Roller       Roller
	Characters   Characters
	Assets       Assets
	Settings     SettingsSource
	Records      RecordPoster
	Directory    Directory
	Animator     DiceAnimator
	Notifier     Notifier
	Clock        quartz.Clock
	Logger       *log.Logger
	GuardTimeout time.Duration
}

// guard tracks the flow this client initiated.
type guard struct {
	flowID   string
	target   string
	branch   outcome.Branch
	selected bool
	timer    *quartz.Timer
}

// Coordinator runs the flow state machine for one client.
type Coordinator struct {
	self         protocol.Participant
	channel      broadcast.Channel
	view         Presenter
	audio        Audio
	roller       Roller
	characters   Characters
	assets       Assets
	settings     SettingsSource
	records      RecordPoster
	directory    Directory
	animator     DiceAnimator
	notifier     Notifier
	clock        quartz.Clock
	logger       *log.Logger
	guardTimeout time.Duration

	mu     sync.Mutex
	state  State
	flowID string
	active *guard
}

// New creates an idle Coordinator.
func New(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	if opts.GuardTimeout <= 0 {
		opts.GuardTimeout = DefaultGuardTimeout
	}

	return &Coordinator{
		self:         opts.Self,
		channel:      opts.Channel,
		view:         opts.Presenter,
		audio:        opts.Audio,
		roller:       opts.Roller,
		characters:   opts.Characters,
		assets:       opts.Assets,
		settings:     opts.Settings,
		records:      opts.Records,
		directory:    opts.Directory,
		animator:     opts.Animator,
		notifier:     opts.Notifier,
		clock:        opts.Clock,
		logger:       opts.Logger.WithPrefix("flow").With("user", opts.Self.UserID),
		guardTimeout: opts.GuardTimeout,
	}
}

// Attach subscribes the coordinator's message handler to its channel.
func (c *Coordinator) Attach() (unsubscribe func()) {
	return c.channel.Subscribe(c.HandleMessage)
}

// State reports the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FlowID reports the flow this client is part of, if any.
func (c *Coordinator) FlowID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flowID
}

// InProgress reports whether a flow this client initiated is still running.
func (c *Coordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Warn(msg string) {
	if n.Logger != nil {
		n.Logger.Warn(msg)
	}
}

func (n LogNotifier) Info(msg string) {
	if n.Logger != nil {
		n.Logger.Info(msg)
	}
}
