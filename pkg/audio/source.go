// Package audio provides the microphone frame source for the voice pipeline.
//
// A Source captures fixed-size PCM frames from a selectable input device and
// delivers them over a bounded channel. Delivery never blocks capture: when
// the consumer falls behind, the oldest buffered frames are dropped and
// counted — bounded latency is worth more to a wake-word pipeline than a
// complete frame history.
package audio

import (
	"context"
	"errors"

	"github.com/voxahq/voxa/pkg/types"
)

// ErrSourceClosed is returned by operations on a closed Source.
var ErrSourceClosed = errors.New("audio: source is closed")

// DeviceInfo describes a capture device available to the host.
type DeviceInfo struct {
	// ID is the stable identifier used for selection (host API dependent).
	ID string

	// Name is the human-readable device name shown in the settings UI.
	Name string

	// Default marks the host's default input device.
	Default bool
}

// Source is a continuous supplier of microphone frames.
type Source interface {
	// Frames returns the capture channel. The channel is closed when the
	// source is closed. Frames arrive in strict capture order; gaps caused by
	// the drop-oldest policy are observable only through DroppedFrames.
	Frames() <-chan types.AudioFrame

	// Device reports the currently selected capture device.
	Device() DeviceInfo

	// SwitchDevice re-opens capture on the named device without disturbing
	// the consumer channel. Frames from the old device stop before frames
	// from the new device start.
	SwitchDevice(ctx context.Context, id string) error

	// DroppedFrames reports how many frames the drop-oldest policy has
	// discarded since the source was opened.
	DroppedFrames() uint64

	// Close stops capture and closes the frame channel.
	Close() error
}
