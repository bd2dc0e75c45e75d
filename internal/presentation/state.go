// Package presentation tracks what one client is currently showing: the
// choice overlay, the branch announcement, the border effect and the result
// media. Every operation is idempotent and safe to call from the flow
// goroutine and the message handler at the same time.
package presentation

import (
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/deathmoves/internal/outcome"
)

const (
	AnnouncementDisplay = 3 * time.Second
	AnnouncementFade    = 500 * time.Millisecond
	MediaDisplay        = 5 * time.Second
)

// Kind is the dominant thing on screen.
type Kind int

const (
	Idle Kind = iota
	InteractiveOverlay
	SpectatorOverlay
	CountdownOnButton
	Announcement
	BorderEffect
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case InteractiveOverlay:
		return "interactive_overlay"
	case SpectatorOverlay:
		return "spectator_overlay"
	case CountdownOnButton:
		return "countdown_on_button"
	case Announcement:
		return "announcement"
	case BorderEffect:
		return "border_effect"
	default:
		return "unknown"
	}
}

// Border is the colour of the screen border during a roll.
type Border string

const (
	BorderNone Border = ""
	BorderHope Border = "hope"
	BorderFear Border = "fear"
)

// Option is one choice button on the overlay.
type Option struct {
	ID       string
	Branch   outcome.Branch
	Hidden   bool
	Disabled bool
	// Countdown replaces the button content when HasCountdown is set.
	Countdown    int
	HasCountdown bool
}

// Overlay is the choice overlay.
type Overlay struct {
	Spectator     bool
	Probs         *outcome.ProbabilitySnapshot
	Options       []Option
	CancelVisible bool
}

// Banner is an announcement on screen.
type Banner struct {
	Text   string
	Fading bool
}

// Media is the full-screen result image.
type Media struct {
	Path string
}

// Snapshot is a deep copy of the state at one instant.
type Snapshot struct {
	Kind         Kind
	Overlay      *Overlay
	Announcement *Banner
	Border       Border
	Media        *Media
}

// VisibleOptions returns the options that are not hidden.
func (s Snapshot) VisibleOptions() []Option {
	if s.Overlay == nil {
		return nil
	}
	var out []Option
	for _, o := range s.Overlay.Options {
		if !o.Hidden {
			out = append(out, o)
		}
	}
	return out
}

// State is the presentation state of one client.
type State struct {
	mu    sync.Mutex
	clock quartz.Clock

	overlay *Overlay
	banner  *Banner
	border  Border
	media   *Media

	bannerGen int
	mediaGen  int
	timers    map[*quartz.Timer]struct{}

	listeners []func()
	closed    bool
}

// New creates an idle State. Timed dismissals run on clock.
func New(clock quartz.Clock) *State {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &State{clock: clock, timers: make(map[*quartz.Timer]struct{})}
}

// OnChange registers fn to be called after every change.
func (s *State) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// update runs fn under the lock and notifies listeners if it reports a change.
func (s *State) update(fn func() bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	changed := fn()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l()
		}
	}
	return changed
}

func newOverlay(spectator bool, probs *outcome.ProbabilitySnapshot) *Overlay {
	o := &Overlay{Spectator: spectator, Probs: probs.Clone(), CancelVisible: true}
	for _, b := range outcome.Branches() {
		o.Options = append(o.Options, Option{ID: b.ButtonID(), Branch: b, Disabled: spectator})
	}
	return o
}

// ShowInteractive replaces any overlay with the interactive choice overlay.
func (s *State) ShowInteractive(probs *outcome.ProbabilitySnapshot) {
	s.update(func() bool {
		s.overlay = newOverlay(false, probs)
		return true
	})
}

// ShowSpectator replaces any overlay with the read-only overlay.
func (s *State) ShowSpectator(probs *outcome.ProbabilitySnapshot) {
	s.update(func() bool {
		s.overlay = newOverlay(true, probs)
		return true
	})
}

// RemoveSpectator removes the overlay only if it is the spectator overlay.
// It reports whether anything was removed.
func (s *State) RemoveSpectator() bool {
	return s.update(func() bool {
		if s.overlay == nil || !s.overlay.Spectator {
			return false
		}
		s.overlay = nil
		return true
	})
}

// RemoveOverlay removes whatever overlay is shown.
func (s *State) RemoveOverlay() bool {
	return s.update(func() bool {
		if s.overlay == nil {
			return false
		}
		s.overlay = nil
		return true
	})
}

// HideOthers hides every option but selectedID, disables the selected one
// and removes the cancel control.
func (s *State) HideOthers(selectedID string) {
	s.update(func() bool {
		if s.overlay == nil {
			return false
		}
		changed := false
		for i := range s.overlay.Options {
			o := &s.overlay.Options[i]
			if o.ID != selectedID {
				if !o.Hidden {
					o.Hidden = true
					changed = true
				}
			} else if !o.Disabled {
				o.Disabled = true
				changed = true
			}
		}
		if s.overlay.CancelVisible {
			s.overlay.CancelVisible = false
			changed = true
		}
		return changed
	})
}

// UpdateCountdown shows n on the button. Missing overlays or buttons are
// ignored.
func (s *State) UpdateCountdown(buttonID string, n int) {
	s.update(func() bool {
		if s.overlay == nil {
			return false
		}
		for i := range s.overlay.Options {
			o := &s.overlay.Options[i]
			if o.ID == buttonID {
				o.Countdown = n
				o.HasCountdown = true
				return true
			}
		}
		return false
	})
}

// ShowAnnouncement shows text for AnnouncementDisplay, then fades it out
// over AnnouncementFade. A newer announcement replaces an older one.
func (s *State) ShowAnnouncement(text string) {
	s.update(func() bool {
		s.bannerGen++
		gen := s.bannerGen
		s.banner = &Banner{Text: text}
		s.afterLocked(AnnouncementDisplay, func() { s.fadeBanner(gen) }, "presentation", "announcement")
		return true
	})
}

func (s *State) fadeBanner(gen int) {
	s.update(func() bool {
		if s.banner == nil || s.bannerGen != gen {
			return false
		}
		s.banner.Fading = true
		s.afterLocked(AnnouncementFade, func() { s.dropBanner(gen) }, "presentation", "fade")
		return true
	})
}

func (s *State) dropBanner(gen int) {
	s.update(func() bool {
		if s.banner == nil || s.bannerGen != gen {
			return false
		}
		s.banner = nil
		return true
	})
}

// ShowBorder replaces any border with kind.
func (s *State) ShowBorder(kind Border) {
	s.update(func() bool {
		s.border = kind
		return true
	})
}

// RemoveBorder removes the border if there is one.
func (s *State) RemoveBorder() bool {
	return s.update(func() bool {
		if s.border == BorderNone {
			return false
		}
		s.border = BorderNone
		return true
	})
}

// ShowMedia shows the image at path and closes it after MediaDisplay.
func (s *State) ShowMedia(path string) {
	s.update(func() bool {
		s.mediaGen++
		gen := s.mediaGen
		s.media = &Media{Path: path}
		s.afterLocked(MediaDisplay, func() { s.closeMedia(gen) }, "presentation", "media")
		return true
	})
}

// CloseMedia closes the media early.
func (s *State) CloseMedia() bool {
	return s.update(func() bool {
		if s.media == nil {
			return false
		}
		s.media = nil
		return true
	})
}

func (s *State) closeMedia(gen int) {
	s.update(func() bool {
		if s.media == nil || s.mediaGen != gen {
			return false
		}
		s.media = nil
		return true
	})
}

// afterLocked schedules fn. Callers hold s.mu.
func (s *State) afterLocked(d time.Duration, fn func(), tags ...string) {
	var t *quartz.Timer
	t = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		fn()
	}, tags...)
	s.timers[t] = struct{}{}
}

// Kind reports the dominant element on screen.
func (s *State) Kind() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kindLocked()
}

func (s *State) kindLocked() Kind {
	if s.overlay != nil {
		for _, o := range s.overlay.Options {
			if o.HasCountdown && !o.Hidden {
				return CountdownOnButton
			}
		}
		if s.overlay.Spectator {
			return SpectatorOverlay
		}
		return InteractiveOverlay
	}
	if s.banner != nil {
		return Announcement
	}
	if s.border != BorderNone {
		return BorderEffect
	}
	return Idle
}

// Snapshot returns a deep copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Kind: s.kindLocked(), Border: s.border}
	if s.overlay != nil {
		o := *s.overlay
		o.Probs = s.overlay.Probs.Clone()
		o.Options = append([]Option(nil), s.overlay.Options...)
		snap.Overlay = &o
	}
	if s.banner != nil {
		b := *s.banner
		snap.Announcement = &b
	}
	if s.media != nil {
		m := *s.media
		snap.Media = &m
	}
	return snap
}

// Close stops pending timers. Later calls are ignored.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = map[*quartz.Timer]struct{}{}
}
