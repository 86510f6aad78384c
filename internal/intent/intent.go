// Package intent defines the command model of the voice pipeline and the
// interpreter that produces it from transcript text.
//
// Intent is a sealed sum type: every variant embeds the unexported base and
// nothing outside this package can add one. Each intent carries a
// monotonically increasing sequence id assigned at interpretation time; the
// dispatcher uses it to reject replayed or reordered commands.
package intent

import (
	"github.com/voxahq/voxa/pkg/types"
)

// Intent is one interpreted voice command.
type Intent interface {
	// Seq is the interpretation-order sequence id.
	Seq() uint64

	sealed()
}

// base carries the sequence id shared by all variants.
type base struct {
	seq uint64
}

func (b base) Seq() uint64 { return b.seq }
func (base) sealed()       {}

// Play starts playback of the referenced entities.
type Play struct {
	base

	// Entities are the raw spans to resolve: at least a song, optionally an
	// artist and/or a source playlist.
	Entities []types.Entity
}

// Pause halts playback.
type Pause struct {
	base
}

// Resume continues paused playback.
type Resume struct {
	base
}

// Skip advances to the next track.
type Skip struct {
	base
}

// SetVolume changes the output volume.
type SetVolume struct {
	base

	// Level is the absolute volume (0–100), or the signed step when Relative
	// is set ("turn up the volume" → +10).
	Level int

	// Relative marks Level as a delta.
	Relative bool
}

// SetShuffle toggles shuffle mode.
type SetShuffle struct {
	base

	On bool
}

// CreatePlaylist creates a named playlist seeded with the given entities.
type CreatePlaylist struct {
	base

	Name  string
	Seeds []types.Entity
}

// PairDevice binds an output device by spoken name.
type PairDevice struct {
	base

	Device string
}

// SetEqualizer applies a named equalizer preset.
type SetEqualizer struct {
	base

	Preset string
	Bands  []float64
}

// Name returns a short label for metrics and logs.
func Name(in Intent) string {
	switch in.(type) {
	case Play:
		return "play"
	case Pause:
		return "pause"
	case Resume:
		return "resume"
	case Skip:
		return "skip"
	case SetVolume:
		return "set_volume"
	case SetShuffle:
		return "set_shuffle"
	case CreatePlaylist:
		return "create_playlist"
	case PairDevice:
		return "pair_device"
	case SetEqualizer:
		return "set_equalizer"
	default:
		return "unknown"
	}
}
