package flow

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

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

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// timeline is the single ordered log of local effects and publishes.
type timeline struct {
	mu    sync.Mutex
	items []string
}

func (tl *timeline) add(s string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.items = append(tl.items, s)
}

func (tl *timeline) list() []string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]string(nil), tl.items...)
}

func (tl *timeline) reset() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.items = nil
}

// recordingChannel keeps every published message.
type recordingChannel struct {
	tl *timeline

	mu   sync.Mutex
	sent []*protocol.Message
}

func (ch *recordingChannel) Publish(_ context.Context, msg *protocol.Message) error {
	ch.mu.Lock()
	ch.sent = append(ch.sent, msg.Clone())
	ch.mu.Unlock()
	ch.tl.add("publish:" + string(msg.Type))
	return nil
}

func (ch *recordingChannel) Subscribe(broadcast.Handler) func() { return func() {} }
func (ch *recordingChannel) Close() error                       { return nil }

func (ch *recordingChannel) messages() []*protocol.Message {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return append([]*protocol.Message(nil), ch.sent...)
}

func (ch *recordingChannel) types() []protocol.MessageType {
	var out []protocol.MessageType
	for _, m := range ch.messages() {
		out = append(out, m.Type)
	}
	return out
}

func (ch *recordingChannel) payloads(t *testing.T, typ protocol.MessageType) []protocol.Payload {
	t.Helper()
	var out []protocol.Payload
	for _, m := range ch.messages() {
		if m.Type != typ {
			continue
		}
		p, err := protocol.Decode(m)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func (ch *recordingChannel) sounds(t *testing.T) []assets.Sound {
	var out []assets.Sound
	for _, p := range ch.payloads(t, protocol.TypePlaySound) {
		out = append(out, p.(protocol.PlaySound).SoundKey)
	}
	return out
}

// recordingView logs every local presentation change before applying it.
type recordingView struct {
	*presentation.State
	tl *timeline
}

func (v recordingView) ShowInteractive(p *outcome.ProbabilitySnapshot) {
	v.tl.add("local:interactive")
	v.State.ShowInteractive(p)
}

func (v recordingView) ShowSpectator(p *outcome.ProbabilitySnapshot) {
	v.tl.add("local:spectator")
	v.State.ShowSpectator(p)
}

func (v recordingView) RemoveSpectator() bool {
	v.tl.add("local:remove_spectator")
	return v.State.RemoveSpectator()
}

func (v recordingView) RemoveOverlay() bool {
	v.tl.add("local:remove_overlay")
	return v.State.RemoveOverlay()
}

func (v recordingView) HideOthers(id string) {
	v.tl.add("local:hide_others")
	v.State.HideOthers(id)
}

func (v recordingView) UpdateCountdown(id string, n int) {
	v.tl.add("local:countdown")
	v.State.UpdateCountdown(id, n)
}

func (v recordingView) ShowAnnouncement(text string) {
	v.tl.add("local:announcement")
	v.State.ShowAnnouncement(text)
}

func (v recordingView) ShowBorder(kind presentation.Border) {
	v.tl.add("local:border:" + string(kind))
	v.State.ShowBorder(kind)
}

func (v recordingView) RemoveBorder() bool {
	v.tl.add("local:remove_border")
	return v.State.RemoveBorder()
}

func (v recordingView) ShowMedia(path string) {
	v.tl.add("local:media:" + path)
	v.State.ShowMedia(path)
}

// keyAssets resolves keys to readable fake paths.
type keyAssets struct{}

func (keyAssets) Media(k assets.Media) (string, error) { return "media/" + string(k), nil }
func (keyAssets) Sound(k assets.Sound) (string, error) { return "sound/" + string(k), nil }

type nopHandle struct{}

func (nopHandle) Stop() {}

// speaker logs sounds actually started.
type speaker struct{ tl *timeline }

func (s speaker) Play(_ context.Context, path string) (audio.Handle, error) {
	s.tl.add("local:sound:" + path)
	return nopHandle{}, nil
}

// fixedSource replays faces (1-based) in order.
type fixedSource struct {
	mu    sync.Mutex
	faces []int
	next  int
}

func (s *fixedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	face := s.faces[s.next%len(s.faces)]
	s.next++
	return (face - 1) % n
}

type failingRoller struct{}

func (failingRoller) Roll(context.Context, string) (dice.Result, error) {
	return dice.Result{}, errors.New("entropy exhausted")
}

type memRecords struct {
	mu      sync.Mutex
	records []record.Record
}

func (m *memRecords) PostRecord(_ context.Context, r record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memRecords) list() []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]record.Record(nil), m.records...)
}

type notes struct {
	mu    sync.Mutex
	warns []string
	infos []string
}

func (n *notes) Warn(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warns = append(n.warns, msg)
}

func (n *notes) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

type harness struct {
	c        *Coordinator
	ch       *recordingChannel
	tl       *timeline
	clock    *quartz.Mock
	view     *presentation.State
	records  *memRecords
	notes    *notes
	roster   *broadcast.Roster
	settings *config.Store
}

type harnessOptions struct {
	self       protocol.Participant
	settings   func(*config.Settings)
	characters []config.Character
	faces      []int
	roller     Roller
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	if opts.self.UserID == "" {
		opts.self = protocol.Participant{UserID: "ana", Name: "Ana"}
	}
	settings := config.DefaultConfig().Settings
	if opts.settings != nil {
		opts.settings(&settings)
	}
	if opts.roller == nil {
		faces := opts.faces
		if len(faces) == 0 {
			faces = []int{6}
		}
		opts.roller = dice.NewRoller(&fixedSource{faces: faces})
	}

	tl := &timeline{}
	view := presentation.New(quartz.NewMock(t))
	t.Cleanup(view.Close)

	h := &harness{
		ch:       &recordingChannel{tl: tl},
		tl:       tl,
		clock:    quartz.NewMock(t),
		view:     view,
		records:  &memRecords{},
		notes:    &notes{},
		roster:   broadcast.NewRoster(opts.self),
		settings: config.NewStore(settings),
	}
	h.c = New(Options{
		Self:       opts.self,
		Channel:    h.ch,
		Presenter:  recordingView{State: view, tl: tl},
		Audio:      audio.NewService(speaker{tl: tl}, keyAssets{}, quietLogger()),
		Roller:     opts.roller,
		Characters: config.NewCharacterBook(opts.characters),
		Assets:     keyAssets{},
		Settings:   h.settings,
		Records:    h.records,
		Directory:  h.roster,
		Notifier:   h.notes,
		Clock:      h.clock,
		Logger:     quietLogger(),
	})
	return h
}

// offer delivers a SHOW_UI for the harness's own user from the game master.
func (h *harness) offer(t *testing.T, flowID string) {
	t.Helper()
	msg := incoming(t, "gm", flowID, protocol.ShowUI{TargetUserID: h.c.self.UserID})
	h.c.HandleMessage(context.Background(), msg)
	require.Equal(t, ClientTargetActive, h.c.State())
}

// choose runs Choose on its own goroutine and advances the clock through
// every pause until it returns.
func (h *harness) choose(t *testing.T, branch outcome.Branch) ([]time.Duration, error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- h.c.Choose(context.Background(), branch) }()
	return drive(t, h.clock, done)
}

func drive(t *testing.T, clock *quartz.Mock, done <-chan error) ([]time.Duration, error) {
	t.Helper()
	ctx := testContext(t)
	var pauses []time.Duration
	for {
		select {
		case err := <-done:
			return pauses, err
		case <-ctx.Done():
			t.Fatal("flow did not finish")
			return nil, nil
		default:
		}
		if _, ok := clock.Peek(); !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		d, w := clock.AdvanceNext()
		w.MustWait(ctx)
		pauses = append(pauses, d)
	}
}

func incoming(t *testing.T, sender, flowID string, payload protocol.Payload) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(payload)
	require.NoError(t, err)
	msg.Sender = sender
	msg.FlowID = flowID
	return msg
}

func seconds(ns ...int) []time.Duration {
	out := make([]time.Duration, len(ns))
	for i, n := range ns {
		out[i] = time.Duration(n) * time.Second
	}
	return out
}
