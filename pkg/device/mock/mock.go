// Package mock provides a test double for the device package interfaces.
//
// Use Manager to stub discovery results and to record pairing, volume,
// equalizer, and rename operations issued by the audio router.
package mock

import (
	"context"
	"sync"

	"github.com/voxahq/voxa/pkg/device"
	"github.com/voxahq/voxa/pkg/types"
)

// PairCall records a single invocation of Manager.Pair.
type PairCall struct {
	DeviceID string
	Role     types.DeviceRole
}

// VolumeCall records a single invocation of Manager.SetVolume.
type VolumeCall struct {
	DeviceID string
	Level    int
}

// EqualizerCall records a single invocation of Manager.SetEqualizer.
type EqualizerCall struct {
	DeviceID string
	Bands    device.EqualizerBands
}

// RenameCall records a single invocation of Manager.Rename.
type RenameCall struct {
	DeviceID string
	Name     string
}

// Manager is a mock implementation of device.Manager.
// The zero value succeeds on every call and discovers no devices.
type Manager struct {
	mu sync.Mutex

	// Devices is returned from Discover.
	Devices []types.Device

	// Err, if non-nil, is returned from every method.
	Err error

	// Recorded calls.
	DiscoverCalls  int
	PairCalls      []PairCall
	UnpairCalls    []string
	VolumeCalls    []VolumeCall
	EqualizerCalls []EqualizerCall
	RenameCalls    []RenameCall
}

// Ensure Manager implements device.Manager at compile time.
var _ device.Manager = (*Manager)(nil)

// Discover returns Devices.
func (m *Manager) Discover(_ context.Context) ([]types.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DiscoverCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]types.Device, len(m.Devices))
	copy(out, m.Devices)
	return out, nil
}

// Pair records the call.
func (m *Manager) Pair(_ context.Context, deviceID string, role types.DeviceRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PairCalls = append(m.PairCalls, PairCall{DeviceID: deviceID, Role: role})
	return m.Err
}

// Unpair records the call.
func (m *Manager) Unpair(_ context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UnpairCalls = append(m.UnpairCalls, deviceID)
	return m.Err
}

// SetVolume records the call.
func (m *Manager) SetVolume(_ context.Context, deviceID string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VolumeCalls = append(m.VolumeCalls, VolumeCall{DeviceID: deviceID, Level: level})
	return m.Err
}

// SetEqualizer records the call.
func (m *Manager) SetEqualizer(_ context.Context, deviceID string, bands device.EqualizerBands) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := make(device.EqualizerBands, len(bands))
	copy(b, bands)
	m.EqualizerCalls = append(m.EqualizerCalls, EqualizerCall{DeviceID: deviceID, Bands: b})
	return m.Err
}

// Rename records the call.
func (m *Manager) Rename(_ context.Context, deviceID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RenameCalls = append(m.RenameCalls, RenameCall{DeviceID: deviceID, Name: name})
	return m.Err
}
