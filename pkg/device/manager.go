// Package device defines the Manager interface for output-device discovery
// and pairing.
//
// A device manager wraps a concrete speaker backend (the Snapcast server for
// network speakers, the OS Bluetooth stack for BT speakers) and exposes a
// uniform discover/pair/unpair surface. The audio router is the only caller
// that mutates pairing state; UI code reads router snapshots instead of
// talking to the manager directly.
//
// Implementations must be safe for concurrent use.
package device

import (
	"context"
	"errors"

	"github.com/voxahq/voxa/pkg/types"
)

// ErrUnknownDevice is returned when an operation names a device ID the
// backend has never discovered.
var ErrUnknownDevice = errors.New("device: unknown device")

// EqualizerBands holds per-band gain values in dB, low to high frequency.
// Equalizer settings mutate the device's output DSP stage only — never the
// playback application's internal mix.
type EqualizerBands []float64

// Manager is the abstraction over an output-device backend.
type Manager interface {
	// Discover enumerates candidate output devices currently visible to the
	// backend. Discovery is phase one of pairing; it never mutates state.
	Discover(ctx context.Context) ([]types.Device, error)

	// Pair binds the device into the active output topology with the given
	// channel role. Pairing the same device again with a new role re-binds it.
	Pair(ctx context.Context, deviceID string, role types.DeviceRole) error

	// Unpair removes the device from the active output topology.
	Unpair(ctx context.Context, deviceID string) error

	// SetVolume sets the per-device output volume, 0–100.
	SetVolume(ctx context.Context, deviceID string, level int) error

	// SetEqualizer applies per-band DSP gains at the device's output stage.
	SetEqualizer(ctx context.Context, deviceID string, bands EqualizerBands) error

	// Rename sets the device's display name (custom Bluetooth/speaker name).
	Rename(ctx context.Context, deviceID, name string) error
}
