package presentation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/deathmoves/internal/outcome"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestOverlayLifecycle(t *testing.T) {
	s := New(quartz.NewMock(t))
	assert.Equal(t, Idle, s.Kind())

	probs := outcome.Snapshot(&outcome.Character{Level: 3}, true, "Phoenix Feather")
	s.ShowInteractive(probs)
	snap := s.Snapshot()
	require.NotNil(t, snap.Overlay)
	assert.Equal(t, InteractiveOverlay, snap.Kind)
	assert.False(t, snap.Overlay.Spectator)
	assert.True(t, snap.Overlay.CancelVisible)
	assert.Len(t, snap.VisibleOptions(), 3)
	assert.Equal(t, 25, snap.Overlay.Probs.AvoidScarPercent)

	t.Run("stale spectator removal keeps the interactive overlay", func(t *testing.T) {
		assert.False(t, s.RemoveSpectator())
		assert.Equal(t, InteractiveOverlay, s.Kind())
	})

	t.Run("spectator overlay replaces the interactive one", func(t *testing.T) {
		s.ShowSpectator(nil)
		snap := s.Snapshot()
		require.NotNil(t, snap.Overlay)
		assert.True(t, snap.Overlay.Spectator)
		assert.Nil(t, snap.Overlay.Probs)
		for _, o := range snap.Overlay.Options {
			assert.True(t, o.Disabled)
		}
		assert.True(t, s.RemoveSpectator())
		assert.Equal(t, Idle, s.Kind())
	})

	t.Run("removing twice is harmless", func(t *testing.T) {
		before := s.Snapshot()
		assert.False(t, s.RemoveSpectator())
		assert.False(t, s.RemoveOverlay())
		assert.Equal(t, before, s.Snapshot())
	})
}

func TestHideOthers(t *testing.T) {
	s := New(quartz.NewMock(t))
	s.ShowInteractive(nil)

	s.HideOthers("btn-risk")
	s.HideOthers("btn-risk")

	snap := s.Snapshot()
	visible := snap.VisibleOptions()
	require.Len(t, visible, 1)
	assert.Equal(t, "btn-risk", visible[0].ID)
	assert.True(t, visible[0].Disabled)
	assert.False(t, snap.Overlay.CancelVisible)

	// Without an overlay nothing happens.
	s.RemoveOverlay()
	s.HideOthers("btn-risk")
	assert.Nil(t, s.Snapshot().Overlay)
}

func TestUpdateCountdown(t *testing.T) {
	s := New(quartz.NewMock(t))

	// No overlay: ignored.
	s.UpdateCountdown("btn-avoid", 5)
	assert.Equal(t, Idle, s.Kind())

	s.ShowSpectator(nil)
	s.HideOthers("btn-avoid")
	s.UpdateCountdown("btn-avoid", 5)
	s.UpdateCountdown("btn-nope", 4)

	snap := s.Snapshot()
	assert.Equal(t, CountdownOnButton, snap.Kind)
	visible := snap.VisibleOptions()
	require.Len(t, visible, 1)
	assert.True(t, visible[0].HasCountdown)
	assert.Equal(t, 5, visible[0].Countdown)
}

func TestBorder(t *testing.T) {
	s := New(quartz.NewMock(t))

	s.ShowBorder(BorderFear)
	s.ShowBorder(BorderHope)
	assert.Equal(t, BorderHope, s.Snapshot().Border)
	assert.Equal(t, BorderEffect, s.Kind())

	assert.True(t, s.RemoveBorder())
	before := s.Snapshot()
	assert.False(t, s.RemoveBorder())
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, Idle, s.Kind())
}

func TestAnnouncementDismissesItself(t *testing.T) {
	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	s := New(mClock)

	s.ShowAnnouncement("Risk It All")
	assert.Equal(t, Announcement, s.Kind())

	// Unrelated state changes do not affect the banner.
	s.ShowSpectator(nil)
	s.RemoveOverlay()

	mClock.Advance(AnnouncementDisplay).MustWait(ctx)
	snap := s.Snapshot()
	require.NotNil(t, snap.Announcement)
	assert.True(t, snap.Announcement.Fading)

	mClock.Advance(AnnouncementFade).MustWait(ctx)
	assert.Nil(t, s.Snapshot().Announcement)
	assert.Equal(t, Idle, s.Kind())
}

func TestNewerAnnouncementReplacesOlder(t *testing.T) {
	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	s := New(mClock)

	s.ShowAnnouncement("Avoid Death")
	mClock.Advance(2 * time.Second).MustWait(ctx)
	s.ShowAnnouncement("Blaze of Glory")

	// The first banner's timer fires but no longer owns the banner.
	mClock.Advance(time.Second).MustWait(ctx)
	snap := s.Snapshot()
	require.NotNil(t, snap.Announcement)
	assert.Equal(t, "Blaze of Glory", snap.Announcement.Text)
	assert.False(t, snap.Announcement.Fading)

	mClock.Advance(2 * time.Second).MustWait(ctx)
	mClock.Advance(AnnouncementFade).MustWait(ctx)
	assert.Nil(t, s.Snapshot().Announcement)
}

func TestMediaAutoClose(t *testing.T) {
	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	s := New(mClock)

	s.ShowMedia("assets/images/hope.webp")
	require.NotNil(t, s.Snapshot().Media)

	mClock.Advance(MediaDisplay).MustWait(ctx)
	assert.Nil(t, s.Snapshot().Media)

	s.ShowMedia("assets/images/fear.webp")
	assert.True(t, s.CloseMedia())
	assert.False(t, s.CloseMedia())
	mClock.Advance(MediaDisplay).MustWait(ctx)
	assert.Nil(t, s.Snapshot().Media)
}

func TestOnChange(t *testing.T) {
	s := New(quartz.NewMock(t))
	var calls atomic.Int32
	s.OnChange(func() { calls.Add(1) })

	s.ShowBorder(BorderHope)
	s.RemoveBorder()
	s.RemoveBorder()

	assert.Equal(t, int32(2), calls.Load(), "no-op calls do not notify")
}

func TestCloseStopsTimers(t *testing.T) {
	mClock := quartz.NewMock(t)
	s := New(mClock)
	s.ShowAnnouncement("Avoid Death")
	s.ShowMedia("x.webp")
	s.Close()

	_, ok := mClock.Peek()
	assert.False(t, ok)

	s.ShowBorder(BorderFear)
	assert.Equal(t, BorderNone, s.Snapshot().Border)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(quartz.NewMock(t))
	s.ShowInteractive(&outcome.ProbabilitySnapshot{AvoidScarPercent: 25, AvoidKnown: true})

	snap := s.Snapshot()
	snap.Overlay.Options[0].Hidden = true
	snap.Overlay.Probs.AvoidScarPercent = 99

	again := s.Snapshot()
	assert.False(t, again.Overlay.Options[0].Hidden)
	assert.Equal(t, 25, again.Overlay.Probs.AvoidScarPercent)
}
