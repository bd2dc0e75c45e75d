// Package assets maps logical media and sound keys to playable paths.
//
// In language mode sounds live under <base>/audio/<lang>/ and the language
// preference is matched against the shipped voice packs. In custom mode every
// key may be overridden with an explicit path and the language is ignored.
package assets

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Media identifies a full-screen image.
type Media string

const (
	MediaBackground Media = "background"
	MediaBlaze      Media = "blaze"
	MediaAvoidScar  Media = "avoid-scar"
	MediaAvoidSafe  Media = "avoid-safe"
	MediaHope       Media = "hope"
	MediaFear       Media = "fear"
	MediaCritical   Media = "critical"
)

// Sound identifies a sound cue.
type Sound string

const (
	SoundSuspenseTick  Sound = "suspense-tick"
	SoundRollScreen    Sound = "roll-screen"
	SoundBlaze         Sound = "blaze"
	SoundAvoidScar     Sound = "avoid-scar"
	SoundAvoidSafe     Sound = "avoid-safe"
	SoundHope          Sound = "hope"
	SoundFear          Sound = "fear"
	SoundCritical      Sound = "critical"
	SoundAnnounceAvoid Sound = "announce-avoid"
	SoundAnnounceBlaze Sound = "announce-blaze"
	SoundAnnounceRisk  Sound = "announce-risk"
)

// Mode selects how paths are resolved.
type Mode string

const (
	ModeLanguage Mode = "language"
	ModeCustom   Mode = "custom"
)

// ErrUnknownAsset is returned for keys that have no default file.
var ErrUnknownAsset = errors.New("assets: unknown asset key")

var mediaFiles = map[Media]string{
	MediaBackground: "roll-screen.webp",
	MediaBlaze:      "blaze.webp",
	MediaAvoidScar:  "avoid_scar.webp",
	MediaAvoidSafe:  "avoid_safe.webp",
	MediaHope:       "hope.webp",
	MediaFear:       "fear.webp",
	MediaCritical:   "critical.webp",
}

var soundFiles = map[Sound]string{
	SoundSuspenseTick:  "countdown.mp3",
	SoundRollScreen:    "roll-screen.mp3",
	SoundBlaze:         "blaze.mp3",
	SoundAvoidScar:     "avoid_scar.mp3",
	SoundAvoidSafe:     "avoid_safe.mp3",
	SoundHope:          "hope.mp3",
	SoundFear:          "fear.mp3",
	SoundCritical:      "critical.mp3",
	SoundAnnounceAvoid: "announce_avoid.mp3",
	SoundAnnounceBlaze: "announce_blaze.mp3",
	SoundAnnounceRisk:  "announce_risk.mp3",
}

// Voice packs shipped with the default assets. The first entry is the fallback.
var voicePacks = []language.Tag{
	language.English,
	language.MustParse("pt-BR"),
}

var voiceMatcher = language.NewMatcher(voicePacks)

// KnownMedia reports whether key names a media asset.
func KnownMedia(key string) bool {
	_, ok := mediaFiles[Media(key)]
	return ok
}

// KnownSound reports whether key names a sound asset.
func KnownSound(key string) bool {
	_, ok := soundFiles[Sound(key)]
	return ok
}

// Keys lists every media and sound key, sorted. Used by config validation.
func Keys() []string {
	keys := make([]string, 0, len(mediaFiles)+len(soundFiles))
	for k := range mediaFiles {
		keys = append(keys, "media."+string(k))
	}
	for k := range soundFiles {
		keys = append(keys, "sound."+string(k))
	}
	sort.Strings(keys)
	return keys
}

// Options configures a Resolver.
type Options struct {
	BaseDir  string
	Mode     Mode
	Language string
	// Overrides maps "media.<key>" or "sound.<key>" to a path. Only consulted
	// in custom mode.
	Overrides map[string]string
}

// Resolver resolves asset keys to paths. It is immutable and safe for
// concurrent use.
type Resolver struct {
	base      string
	mode      Mode
	voice     string
	overrides map[string]string
}

// NewResolver builds a resolver from opts.
func NewResolver(opts Options) (*Resolver, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeLanguage
	}
	if mode != ModeLanguage && mode != ModeCustom {
		return nil, fmt.Errorf("assets: unsupported mode %q", mode)
	}

	overrides := make(map[string]string, len(opts.Overrides))
	for k, v := range opts.Overrides {
		name, key, ok := strings.Cut(k, ".")
		switch {
		case !ok:
			return nil, fmt.Errorf("%w: override %q", ErrUnknownAsset, k)
		case name == "media" && KnownMedia(key), name == "sound" && KnownSound(key):
			overrides[k] = v
		default:
			return nil, fmt.Errorf("%w: override %q", ErrUnknownAsset, k)
		}
	}

	base := opts.BaseDir
	if base == "" {
		base = "assets"
	}

	return &Resolver{
		base:      base,
		mode:      mode,
		voice:     MatchVoice(opts.Language),
		overrides: overrides,
	}, nil
}

// MatchVoice returns the voice pack directory for a language preference.
// Unparseable or unsupported preferences fall back to English.
func MatchVoice(pref string) string {
	pref = strings.TrimSpace(pref)
	if pref == "" {
		return voicePacks[0].String()
	}
	tag, err := language.Parse(pref)
	if err != nil {
		return voicePacks[0].String()
	}
	_, idx, conf := voiceMatcher.Match(tag)
	if conf == language.No {
		return voicePacks[0].String()
	}
	return voicePacks[idx].String()
}

// Voice reports the resolved voice pack.
func (r *Resolver) Voice() string { return r.voice }

// Media resolves an image path.
func (r *Resolver) Media(key Media) (string, error) {
	file, ok := mediaFiles[key]
	if !ok {
		return "", fmt.Errorf("%w: media %q", ErrUnknownAsset, key)
	}
	if p, ok := r.override("media." + string(key)); ok {
		return p, nil
	}
	return path.Join(r.base, "images", file), nil
}

// Sound resolves a sound path.
func (r *Resolver) Sound(key Sound) (string, error) {
	file, ok := soundFiles[key]
	if !ok {
		return "", fmt.Errorf("%w: sound %q", ErrUnknownAsset, key)
	}
	if p, ok := r.override("sound." + string(key)); ok {
		return p, nil
	}
	if r.mode == ModeCustom {
		return path.Join(r.base, "audio", file), nil
	}
	return path.Join(r.base, "audio", r.voice, file), nil
}

func (r *Resolver) override(key string) (string, bool) {
	if r.mode != ModeCustom {
		return "", false
	}
	p, ok := r.overrides[key]
	if !ok || strings.TrimSpace(p) == "" {
		return "", false
	}
	return p, true
}
