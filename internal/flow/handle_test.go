package flow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/deathmoves/internal/audio"
	"github.com/lox/deathmoves/internal/broadcast"
	"github.com/lox/deathmoves/internal/config"
	"github.com/lox/deathmoves/internal/dice"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/presentation"
	"github.com/lox/deathmoves/internal/protocol"
)

func TestHandleShowUI(t *testing.T) {
	ctx := context.Background()

	t.Run("for someone else", func(t *testing.T) {
		h := newHarness(t, harnessOptions{})
		h.c.HandleMessage(ctx, incoming(t, "gm", "flow-1", protocol.ShowUI{TargetUserID: "bo"}))
		assert.Equal(t, Idle, h.c.State())
		assert.Nil(t, h.view.Snapshot().Overlay)
		assert.Empty(t, h.tl.list())
	})

	t.Run("opens the interactive overlay", func(t *testing.T) {
		h := newHarness(t, harnessOptions{})
		probs := &outcome.ProbabilitySnapshot{AvoidKnown: true, AvoidScarPercent: 25}
		h.c.HandleMessage(ctx, incoming(t, "gm", "flow-1", protocol.ShowUI{TargetUserID: "ana", Probs: probs}))

		assert.Equal(t, ClientTargetActive, h.c.State())
		assert.Equal(t, "flow-1", h.c.FlowID())
		assert.Equal(t, []string{"local:interactive", "local:sound:sound/roll-screen"}, h.tl.list())

		snap := h.view.Snapshot()
		require.NotNil(t, snap.Overlay)
		assert.False(t, snap.Overlay.Spectator)
		assert.Equal(t, probs, snap.Overlay.Probs)
		assert.Empty(t, h.ch.messages())
	})

	t.Run("a newer offer replaces a pending one", func(t *testing.T) {
		h := newHarness(t, harnessOptions{})
		h.offer(t, "flow-1")
		h.offer(t, "flow-2")
		assert.Equal(t, "flow-2", h.c.FlowID())
	})

	t.Run("from self", func(t *testing.T) {
		h := newHarness(t, harnessOptions{})
		h.c.HandleMessage(ctx, incoming(t, "ana", "flow-1", protocol.ShowUI{TargetUserID: "ana"}))
		assert.Equal(t, Idle, h.c.State())
	})
}

func TestHandleShowUIWhileResolving(t *testing.T) {
	h := newHarness(t, harnessOptions{settings: countdownOf(1)})
	h.offer(t, "flow-1")

	done := make(chan error, 1)
	go func() { done <- h.c.Choose(context.Background(), outcome.BranchBlaze) }()
	require.Eventually(t, func() bool { return h.c.State() == SelectionCountdown }, time.Second, time.Millisecond)

	h.c.HandleMessage(context.Background(), incoming(t, "gm", "flow-2", protocol.ShowUI{TargetUserID: "ana"}))
	assert.Equal(t, SelectionCountdown, h.c.State())
	assert.Equal(t, "flow-1", h.c.FlowID())

	_, err := drive(t, h.clock, done)
	require.NoError(t, err)

	recs := h.records.list()
	require.Len(t, recs, 1)
	assert.Equal(t, "flow-1", recs[0].FlowID)
}

func TestHandleSpectatorLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{})
	deliver := func(p protocol.Payload) {
		h.c.HandleMessage(ctx, incoming(t, "bo", "flow-1", p))
	}

	h.c.HandleMessage(ctx, incoming(t, "gm", "flow-1", protocol.ShowSpectatorUI{TargetUserID: "bo"}))
	assert.Equal(t, ClientSpectating, h.c.State())
	snap := h.view.Snapshot()
	require.NotNil(t, snap.Overlay)
	assert.True(t, snap.Overlay.Spectator)

	deliver(protocol.HideUnselected{ButtonID: "btn-risk"})
	deliver(protocol.UpdateCountdown{ButtonID: "btn-risk", Number: 3})
	visible := h.view.Snapshot().VisibleOptions()
	require.Len(t, visible, 1)
	assert.Equal(t, "btn-risk", visible[0].ID)
	assert.Equal(t, 3, visible[0].Countdown)

	deliver(protocol.RemoveSpectatorUI{})
	assert.Equal(t, Idle, h.c.State())
	assert.Nil(t, h.view.Snapshot().Overlay)

	deliver(protocol.ShowAnnouncement{Text: "Risk It All", Branch: outcome.BranchRisk})
	deliver(protocol.ShowBorder{BorderType: presentation.BorderFear})
	snap = h.view.Snapshot()
	require.NotNil(t, snap.Announcement)
	assert.Equal(t, "Risk It All", snap.Announcement.Text)
	assert.Equal(t, presentation.BorderFear, snap.Border)

	deliver(protocol.RemoveBorder{})
	deliver(protocol.PlayMedia{MediaKey: "fear"})
	snap = h.view.Snapshot()
	assert.Equal(t, presentation.BorderNone, snap.Border)
	require.NotNil(t, snap.Media)
	assert.Equal(t, "media/fear", snap.Media.Path)
}

func TestHandleSpectatorForSelf(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.offer(t, "flow-1")

	// The target's copy of the spectator overlay never replaces its own.
	h.c.HandleMessage(context.Background(), incoming(t, "gm", "flow-1", protocol.ShowSpectatorUI{TargetUserID: "ana"}))
	h.c.HandleMessage(context.Background(), incoming(t, "gm", "flow-1", protocol.ShowSpectatorUI{TargetUserID: "bo"}))

	assert.Equal(t, ClientTargetActive, h.c.State())
	snap := h.view.Snapshot()
	require.NotNil(t, snap.Overlay)
	assert.False(t, snap.Overlay.Spectator)

	// Nor does a stray removal close it.
	h.c.HandleMessage(context.Background(), incoming(t, "bo", "flow-1", protocol.RemoveSpectatorUI{}))
	assert.NotNil(t, h.view.Snapshot().Overlay)
	assert.Equal(t, ClientTargetActive, h.c.State())
}

func TestHandleStaleRemoval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{})
	h.c.HandleMessage(ctx, incoming(t, "gm", "flow-2", protocol.ShowSpectatorUI{TargetUserID: "bo"}))

	h.c.HandleMessage(ctx, incoming(t, "bo", "flow-1", protocol.RemoveSpectatorUI{}))

	// The overlay goes regardless; the state belongs to flow-2.
	assert.Nil(t, h.view.Snapshot().Overlay)
	assert.Equal(t, ClientSpectating, h.c.State())
	assert.Equal(t, "flow-2", h.c.FlowID())
}

func TestHandleIgnoresBadMessages(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	h.c.HandleMessage(context.Background(), &protocol.Message{Type: "DANCE", ID: "x", Sender: "gm"})
	h.c.HandleMessage(context.Background(), &protocol.Message{
		Type: protocol.TypeShowUI, ID: "y", Sender: "gm", Data: json.RawMessage(`{"targetUserId":`),
	})

	assert.Equal(t, Idle, h.c.State())
	assert.Empty(t, h.tl.list())
}

func TestHandlePlaySoundOnce(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	msg := incoming(t, "bo", "flow-1", protocol.PlaySound{SoundKey: "hope"})

	h.c.HandleMessage(context.Background(), msg)
	h.c.HandleMessage(context.Background(), msg.Clone())
	h.c.HandleMessage(context.Background(), incoming(t, "bo", "flow-1", protocol.PlaySound{SoundKey: "fear"}))

	assert.Equal(t, []string{"local:sound:sound/hope", "local:sound:sound/fear"}, h.tl.list())
}

// client is one participant on a shared bus.
type client struct {
	c       *Coordinator
	peer    *broadcast.Peer
	roster  *broadcast.Roster
	view    *presentation.State
	tl      *timeline
	records *memRecords
	clock   *quartz.Mock
}

func join(t *testing.T, bus *broadcast.Bus, self protocol.Participant, chars []config.Character, faces ...int) *client {
	t.Helper()
	if len(faces) == 0 {
		faces = []int{6}
	}
	settings := config.DefaultConfig().Settings
	settings.CountdownDuration = 2

	cl := &client{
		peer:    bus.Join(self),
		roster:  broadcast.NewRoster(self),
		view:    presentation.New(quartz.NewMock(t)),
		tl:      &timeline{},
		records: &memRecords{},
		clock:   quartz.NewMock(t),
	}
	t.Cleanup(cl.view.Close)
	t.Cleanup(func() { _ = cl.peer.Close() })

	cl.c = New(Options{
		Self:       self,
		Channel:    cl.peer,
		Presenter:  cl.view,
		Audio:      audio.NewService(speaker{tl: cl.tl}, keyAssets{}, quietLogger()),
		Roller:     dice.NewRoller(&fixedSource{faces: faces}),
		Characters: config.NewCharacterBook(chars),
		Assets:     keyAssets{},
		Settings:   config.NewStore(settings),
		Records:    cl.records,
		Directory:  cl.roster,
		Notifier:   &notes{},
		Clock:      cl.clock,
		Logger:     quietLogger(),
	})
	cl.roster.Attach(cl.peer)
	cl.c.Attach()
	return cl
}

func TestFlowAcrossBus(t *testing.T) {
	chars := []config.Character{{UserID: "bo", Name: "Mira", Level: 3}}
	bus := broadcast.NewBus(quietLogger())

	master := join(t, bus, gm, chars)
	target := join(t, bus, bo, chars, 2)
	watcher := join(t, bus, cleo, chars)
	master.roster.Update(protocol.Roster{Participants: bus.Participants()})

	flowID, err := master.c.TriggerFlow(context.Background(), pick("bo"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return target.c.State() == ClientTargetActive && watcher.c.State() == ClientSpectating
	}, time.Second, time.Millisecond)
	assert.Equal(t, flowID, target.c.FlowID())
	assert.Equal(t, flowID, watcher.c.FlowID())

	done := make(chan error, 1)
	go func() { done <- target.c.Choose(context.Background(), outcome.BranchAvoid) }()
	pauses, err := drive(t, target.clock, done)
	require.NoError(t, err)
	assert.Equal(t, seconds(1, 1, 4, 3), pauses)

	require.Eventually(t, func() bool {
		return watcher.view.Snapshot().Media != nil && master.view.Snapshot().Media != nil && !master.c.InProgress()
	}, time.Second, time.Millisecond)

	for _, cl := range []*client{master, watcher} {
		snap := cl.view.Snapshot()
		assert.Nil(t, snap.Overlay)
		assert.Equal(t, presentation.BorderNone, snap.Border)
		require.NotNil(t, snap.Media)
		assert.Equal(t, "media/avoid-scar", snap.Media.Path)
		assert.Equal(t, Idle, cl.c.State())
	}
	assert.Equal(t, Idle, target.c.State())

	// Everyone hears the same cues once each.
	want := []string{
		"local:sound:sound/suspense-tick", "local:sound:sound/suspense-tick",
		"local:sound:sound/announce-avoid", "local:sound:sound/avoid-scar",
	}
	require.Eventually(t, func() bool { return len(watcher.tl.list()) == len(want)+1 }, time.Second, time.Millisecond)
	assert.Equal(t, append([]string{"local:sound:sound/roll-screen"}, want...), watcher.tl.list())

	recs := target.records.list()
	require.Len(t, recs, 1)
	assert.Equal(t, flowID, recs[0].FlowID)
	assert.Equal(t, "avoid_scar", recs[0].Outcome)
	assert.Empty(t, master.records.list())
	assert.Empty(t, watcher.records.list())

	_, err = master.c.TriggerFlow(context.Background(), pick("cleo"))
	assert.NoError(t, err)
}
