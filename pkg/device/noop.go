package device

import (
	"context"

	"github.com/voxahq/voxa/pkg/types"
)

// noop is the Manager used when no speaker backend is configured. Discovery
// is empty and every mutation fails with ErrUnknownDevice.
type noop struct{}

// Noop returns a Manager with no devices. Useful when the Snapcast endpoint
// is not configured and no Bluetooth stack is available.
func Noop() Manager { return noop{} }

var _ Manager = noop{}

func (noop) Discover(context.Context) ([]types.Device, error) { return nil, nil }

func (noop) Pair(context.Context, string, types.DeviceRole) error { return ErrUnknownDevice }
func (noop) Unpair(context.Context, string) error                 { return ErrUnknownDevice }
func (noop) SetVolume(context.Context, string, int) error         { return ErrUnknownDevice }
func (noop) SetEqualizer(context.Context, string, EqualizerBands) error {
	return ErrUnknownDevice
}
func (noop) Rename(context.Context, string, string) error { return ErrUnknownDevice }
