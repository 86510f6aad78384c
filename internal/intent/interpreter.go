package intent

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/voxahq/voxa/internal/phonetic"
	"github.com/voxahq/voxa/pkg/types"
)

// ErrUnrecognizedIntent is returned when the text does not resemble any
// command closely enough.
var ErrUnrecognizedIntent = errors.New("intent: unrecognized command")

// volumeStep is the relative step used for "louder" / "quieter" phrasings.
const volumeStep = 10

// rule pairs a compiled pattern with a builder for the matched intent.
// Rules are tried in order; the first match wins.
type rule struct {
	// name is a human-readable label for logging.
	name string

	// re is the compiled pattern. Positional groups are passed to build.
	re *regexp.Regexp

	// build constructs the intent from the full submatch slice.
	build func(it *Interpreter, matches []string) (Intent, error)
}

// verbs are the leading command words the interpreter repairs phonetically
// before retrying the rule table ("pley thriller" → "play thriller").
var verbs = []string{
	"play", "pause", "resume", "continue", "stop", "skip", "next",
	"shuffle", "set", "turn", "create", "pair", "connect", "mute", "louder", "quieter",
}

// equalizer presets, 10 bands in dB.
var eqPresets = map[string][]float64{
	"flat":       {0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	"bass boost": {6, 5, 4, 2, 0, 0, 0, 0, 0, 0},
	"treble":     {0, 0, 0, 0, 0, 0, 2, 4, 5, 6},
	"vocal":      {-2, -1, 0, 2, 4, 4, 2, 0, -1, -2},
}

// Option customises an Interpreter.
type Option func(*Interpreter)

// WithMatcher replaces the phonetic matcher used for verb repair.
func WithMatcher(m *phonetic.Matcher) Option {
	return func(it *Interpreter) { it.matcher = m }
}

// Interpreter turns transcript text into Intents.
//
// All methods are safe for concurrent use; the rule table is read-only and
// the sequence counter is atomic.
type Interpreter struct {
	rules   []rule
	matcher *phonetic.Matcher
	seq     atomic.Uint64
}

// New creates an Interpreter with the built-in grammar.
func New(opts ...Option) *Interpreter {
	it := &Interpreter{
		rules:   grammar(),
		matcher: phonetic.New(),
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// next stamps a fresh sequence id.
func (it *Interpreter) next() base {
	return base{seq: it.seq.Add(1)}
}

// Interpret parses text into an Intent. When no rule matches as spoken, the
// leading verb is repaired phonetically and the table is retried once.
func (it *Interpreter) Interpret(text string) (Intent, error) {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	if trimmed == "" {
		return nil, ErrUnrecognizedIntent
	}

	if in, ok := it.match(trimmed); ok {
		return in, nil
	}

	// Verb repair: the first word is the most damage-prone part of a short
	// utterance and the only one the grammar keys on.
	head, tail, _ := strings.Cut(trimmed, " ")
	if fixed, _, ok := it.matcher.Match(head, verbs); ok && fixed != head {
		repaired := fixed
		if tail != "" {
			repaired += " " + tail
		}
		if in, ok := it.match(repaired); ok {
			slog.Debug("intent: verb repaired", "heard", head, "used", fixed)
			return in, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnrecognizedIntent, text)
}

// match runs the rule table once.
func (it *Interpreter) match(text string) (Intent, bool) {
	for _, r := range it.rules {
		matches := r.re.FindStringSubmatch(text)
		if matches == nil {
			continue
		}
		in, err := r.build(it, matches)
		if err != nil {
			slog.Debug("intent: rule matched but build failed",
				"rule", r.name, "text", text, "error", err)
			continue
		}
		return in, true
	}
	return nil, false
}

// FromKeyword maps a spotter vocabulary token to its Intent. The token set
// is closed, so an unknown token is a programming error reported as
// ErrUnrecognizedIntent.
func (it *Interpreter) FromKeyword(token string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "pause", "stop":
		return Pause{base: it.next()}, nil
	case "resume", "play", "continue":
		return Resume{base: it.next()}, nil
	case "skip", "next":
		return Skip{base: it.next()}, nil
	case "shuffle on":
		return SetShuffle{base: it.next(), On: true}, nil
	case "shuffle off":
		return SetShuffle{base: it.next(), On: false}, nil
	case "louder", "volume up":
		return SetVolume{base: it.next(), Level: volumeStep, Relative: true}, nil
	case "quieter", "volume down":
		return SetVolume{base: it.next(), Level: -volumeStep, Relative: true}, nil
	case "mute":
		return SetVolume{base: it.next(), Level: 0}, nil
	default:
		return nil, fmt.Errorf("%w: keyword %q", ErrUnrecognizedIntent, token)
	}
}

// grammar returns the ordered rule table. More specific rules come first:
// "create playlist" must not be eaten by the generic "play …" rule.
func grammar() []rule {
	return []rule{
		{
			name: "set-volume-absolute",
			re:   regexp.MustCompile(`^(?:set\s+)?(?:the\s+)?volume\s+(?:to\s+)?(.+)$`),
			build: func(it *Interpreter, m []string) (Intent, error) {
				level, err := parseLevel(m[1])
				if err != nil {
					return nil, err
				}
				return SetVolume{base: it.next(), Level: level}, nil
			},
		},
		{
			name: "volume-delta",
			re:   regexp.MustCompile(`^turn\s+(?:the\s+)?(?:volume\s+)?(up|down)(?:\s+the\s+volume)?$`),
			build: func(it *Interpreter, m []string) (Intent, error) {
				step := volumeStep
				if m[1] == "down" {
					step = -volumeStep
				}
				return SetVolume{base: it.next(), Level: step, Relative: true}, nil
			},
		},
		{
			name: "louder-quieter",
			re:   regexp.MustCompile(`^(louder|quieter)$`),
			build: func(it *Interpreter, m []string) (Intent, error) {
				step := volumeStep
				if m[1] == "quieter" {
					step = -volumeStep
				}
				return SetVolume{base: it.next(), Level: step, Relative: true}, nil
			},
		},
		{
			name: "mute",
			re:   regexp.MustCompile(`^mute$`),
			build: func(it *Interpreter, _ []string) (Intent, error) {
				return SetVolume{base: it.next(), Level: 0}, nil
			},
		},
		{
			name: "shuffle",
			re:   regexp.MustCompile(`^(?:turn\s+)?shuffle\s+(on|off)$`),
			build: func(it *Interpreter, m []string) (Intent, error) {
				return SetShuffle{base: it.next(), On: m[1] == "on"}, nil
			},
		},
		{
			name: "set-equalizer",
			re:   regexp.MustCompile(`^set\s+(?:the\s+)?equalizer\s+to\s+(.+)$`),
			build: func(it *Interpreter, m []string) (Intent, error) {
				preset := strings.TrimSpace(m[1])
				bands, ok := eqPresets[preset]
				if !ok {
					return nil, fmt.Errorf("unknown equalizer preset %q", preset)
				}
				return SetEqualizer{base: it.next(), Preset: preset, Bands: bands}, nil
			},
		},
		{
			name: "create-playlist",
			re:   regexp.MustCompile(`^create\s+(?:a\s+)?(?:new\s+)?playlist\s+(?:called\s+|named\s+)?(.+)$`),
			build: func(it *Interpreter, m []string) (Intent, error) {
				name, seedSpan, hasSeeds := strings.Cut(m[1], " with ")
				pl := CreatePlaylist{base: it.next(), Name: strings.TrimSpace(name)}
				if hasSeeds {
					pl.Seeds = splitEntities(seedSpan)
				}
				return pl, nil
			},
		},
		{
			name: "pair-device",
			re:   regexp.MustCompile(`^(?:pair|connect)\s+(?:with\s+|to\s+)?(?:the\s+)?(.+?)(?:\s+speakers?)?$`),
			build: func(it *Interpreter, m []string) (Intent, error) {
				return PairDevice{base: it.next(), Device: strings.TrimSpace(m[1])}, nil
			},
		},
		{
			name: "pause",
			re:   regexp.MustCompile(`^(?:pause|stop)(?:\s+(?:the\s+)?(?:music|playback|song))?$`),
			build: func(it *Interpreter, _ []string) (Intent, error) {
				return Pause{base: it.next()}, nil
			},
		},
		{
			name: "resume",
			re:   regexp.MustCompile(`^(?:resume|continue|unpause)(?:\s+(?:the\s+)?(?:music|playback|song))?$`),
			build: func(it *Interpreter, _ []string) (Intent, error) {
				return Resume{base: it.next()}, nil
			},
		},
		{
			name: "skip",
			re:   regexp.MustCompile(`^(?:skip|next)(?:\s+(?:this\s+)?(?:song|track))?$`),
			build: func(it *Interpreter, _ []string) (Intent, error) {
				return Skip{base: it.next()}, nil
			},
		},
		{
			name: "play",
			re:   regexp.MustCompile(`^play\s+(.+)$`),
			build: func(it *Interpreter, m []string) (Intent, error) {
				ents := splitEntities(m[1])
				if len(ents) == 0 {
					return nil, errors.New("empty entity span")
				}
				return Play{base: it.next(), Entities: ents}, nil
			},
		},
	}
}

// splitEntities carves a trailing span into Song/Artist/Playlist entities.
// " from " marks the source playlist and " by " the artist; both are
// optional and the playlist split runs first so "X by Y from Z" nests
// correctly.
func splitEntities(span string) []types.Entity {
	span = strings.TrimSpace(span)
	if span == "" {
		return nil
	}

	rest := span
	var playlist, artist string
	var hasPlaylist, hasArtist bool
	if before, after, ok := cutLast(rest, " from "); ok {
		rest, playlist, hasPlaylist = before, strings.TrimSpace(after), true
	}
	if before, after, ok := cutLast(rest, " by "); ok {
		rest, artist, hasArtist = before, strings.TrimSpace(after), true
	}

	// Song first so resolvers see it before its qualifiers.
	var ents []types.Entity
	if rest = strings.TrimSpace(rest); rest != "" {
		ents = append(ents, types.Entity{Kind: types.EntitySong, RawText: rest})
	}
	if hasArtist {
		ents = append(ents, types.Entity{Kind: types.EntityArtist, RawText: artist})
	}
	if hasPlaylist {
		ents = append(ents, types.Entity{Kind: types.EntityPlaylist, RawText: playlist})
	}
	return ents
}

// cutLast splits s around the last occurrence of sep.
func cutLast(s, sep string) (before, after string, found bool) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}

// parseLevel reads an absolute volume level from digits ("30") or the small
// spoken-number vocabulary ("thirty five").
func parseLevel(s string) (int, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), " percent"))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 100 {
			return 0, fmt.Errorf("volume %d out of range", n)
		}
		return n, nil
	}
	n, err := parseSpokenNumber(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("volume %d out of range", n)
	}
	return n, nil
}
