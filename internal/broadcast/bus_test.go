package broadcast

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/deathmoves/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// inbox records delivered messages, ignoring rosters unless asked.
type inbox struct {
	mu      sync.Mutex
	msgs    []*protocol.Message
	rosters bool
}

func (in *inbox) handle(_ context.Context, msg *protocol.Message) {
	if msg.Type == protocol.TypeRoster && !in.rosters {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.msgs = append(in.msgs, msg)
}

func (in *inbox) all() []*protocol.Message {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]*protocol.Message(nil), in.msgs...)
}

func (in *inbox) len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.msgs)
}

func countdown(t *testing.T, n int) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(protocol.UpdateCountdown{ButtonID: "btn-risk", Number: n})
	require.NoError(t, err)
	return msg
}

func TestBusSenderFilteringAndOrder(t *testing.T) {
	bus := NewBus(quietLogger())
	gm := bus.Join(protocol.Participant{UserID: "gm", Name: "GM", Privileged: true})
	ana := bus.Join(protocol.Participant{UserID: "ana", Name: "Ana"})
	defer gm.Close()
	defer ana.Close()

	var gmIn, anaIn inbox
	gm.Subscribe(gmIn.handle)
	ana.Subscribe(anaIn.handle)

	ctx := context.Background()
	for n := 6; n >= 1; n-- {
		require.NoError(t, ana.Publish(ctx, countdown(t, n)))
	}

	require.Eventually(t, func() bool { return gmIn.len() == 6 }, time.Second, 5*time.Millisecond)
	for i, msg := range gmIn.all() {
		assert.Equal(t, "ana", msg.Sender)
		payload, err := protocol.Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, 6-i, payload.(protocol.UpdateCountdown).Number)
	}

	// The publisher never hears itself.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, anaIn.len())
}

func TestBusDropFilter(t *testing.T) {
	bus := NewBus(quietLogger())
	bus.SetDrop(func(userID string, msg *protocol.Message) bool {
		return userID == "bo" && msg.Type == protocol.TypeUpdateCountdown
	})
	gm := bus.Join(protocol.Participant{UserID: "gm", Privileged: true})
	bo := bus.Join(protocol.Participant{UserID: "bo"})
	cy := bus.Join(protocol.Participant{UserID: "cy"})
	defer gm.Close()
	defer bo.Close()
	defer cy.Close()

	var boIn, cyIn inbox
	bo.Subscribe(boIn.handle)
	cy.Subscribe(cyIn.handle)

	require.NoError(t, gm.Publish(context.Background(), countdown(t, 3)))
	done, err := protocol.NewMessage(protocol.RemoveSpectatorUI{})
	require.NoError(t, err)
	require.NoError(t, gm.Publish(context.Background(), done))

	require.Eventually(t, func() bool { return cyIn.len() == 2 && boIn.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, protocol.TypeRemoveSpectatorUI, boIn.all()[0].Type)
}

func TestBusRosterAndUnsubscribe(t *testing.T) {
	bus := NewBus(quietLogger())
	gm := bus.Join(protocol.Participant{UserID: "gm", Name: "GM", Privileged: true})
	defer gm.Close()

	roster := NewRoster(gm.Self())
	unsubscribe := roster.Attach(gm)

	ana := bus.Join(protocol.Participant{UserID: "ana", Name: "Ana"})
	require.Eventually(t, func() bool { return len(roster.EligibleParticipants()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, roster.IsPrivileged("gm"))
	assert.False(t, roster.IsPrivileged("ana"))

	require.NoError(t, ana.Close())
	require.Eventually(t, func() bool { return len(roster.EligibleParticipants()) == 0 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	bo := bus.Join(protocol.Participant{UserID: "bo"})
	defer bo.Close()
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, roster.EligibleParticipants())

	assert.ErrorIs(t, ana.Publish(context.Background(), countdown(t, 1)), ErrClosed)
}

func TestRosterUpdate(t *testing.T) {
	r := NewRoster(protocol.Participant{UserID: "gm", Name: "GM", Privileged: true})
	assert.True(t, r.IsPrivileged("gm"))
	assert.Empty(t, r.EligibleParticipants())

	r.Update(protocol.Roster{Participants: []protocol.Participant{
		{UserID: "ana", Name: "Ana"},
		{UserID: "ana", Name: "Ana again"},
		{UserID: ""},
		{UserID: "gm", Name: "GM", Privileged: true},
		{UserID: "co", Name: "Co-GM", Privileged: true},
	}})

	assert.True(t, r.IsPrivileged("gm"))
	assert.True(t, r.IsPrivileged("co"))
	assert.False(t, r.IsPrivileged("nobody"))
	assert.Equal(t, []protocol.Participant{{UserID: "ana", Name: "Ana"}}, r.EligibleParticipants())
	require.Len(t, r.Participants(), 3)
	assert.Equal(t, "gm", r.Participants()[0].UserID)
}

func TestRosterTrustsListedSelf(t *testing.T) {
	t.Run("authenticated game master without the local flag", func(t *testing.T) {
		r := NewRoster(protocol.Participant{UserID: "gm", Name: "gm"})
		assert.False(t, r.IsPrivileged("gm"))

		r.Update(protocol.Roster{Participants: []protocol.Participant{
			{UserID: "ana", Name: "Ana"},
			{UserID: "gm", Name: "Game Master", Privileged: true},
		}})

		assert.True(t, r.IsPrivileged("gm"))
		assert.Equal(t, "Game Master", r.Participants()[0].Name)
		assert.Equal(t, []protocol.Participant{{UserID: "ana", Name: "Ana"}}, r.EligibleParticipants())
	})

	t.Run("player claiming game master locally", func(t *testing.T) {
		r := NewRoster(protocol.Participant{UserID: "p1", Name: "P1", Privileged: true})
		assert.True(t, r.IsPrivileged("p1"))

		r.Update(protocol.Roster{Participants: []protocol.Participant{
			{UserID: "p1", Name: "P1"},
			{UserID: "gm", Name: "GM", Privileged: true},
		}})

		assert.False(t, r.IsPrivileged("p1"))
	})

	t.Run("roster without self keeps the local entry", func(t *testing.T) {
		r := NewRoster(protocol.Participant{UserID: "gm", Privileged: true})
		r.Update(protocol.Roster{Participants: []protocol.Participant{{UserID: "ana"}}})

		assert.True(t, r.IsPrivileged("gm"))
		assert.Len(t, r.Participants(), 2)
	})
}
