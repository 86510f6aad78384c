package router

import (
	"context"
	"errors"
	"testing"

	"github.com/voxahq/voxa/pkg/device"
	devmock "github.com/voxahq/voxa/pkg/device/mock"
	"github.com/voxahq/voxa/pkg/types"
)

func knownDevices() []types.Device {
	return []types.Device{
		{ID: "snap-1", Name: "Living Room", Kind: types.DeviceNetworkSpeaker},
		{ID: "snap-2", Name: "Kitchen", Kind: types.DeviceNetworkSpeaker},
		{ID: "bt-1", Name: "Soundbar", Kind: types.DeviceBluetooth},
	}
}

func newTestRouter(t *testing.T, mgr *devmock.Manager) *Router {
	t.Helper()
	r := New(mgr)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestPair_Solo(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)
	ctx := context.Background()

	err := r.Pair(ctx, []Binding{{DeviceID: "snap-1", Role: types.RoleSolo}})
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}

	route, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if route.Mode != ModeSolo {
		t.Errorf("Mode = %q, want solo", route.Mode)
	}
	if len(route.Devices) != 1 || route.Devices[0].ID != "snap-1" {
		t.Errorf("Devices = %+v", route.Devices)
	}
	if route.Devices[0].Role != types.RoleSolo {
		t.Errorf("Role = %q, want solo", route.Devices[0].Role)
	}
	if len(mgr.PairCalls) != 1 {
		t.Errorf("manager PairCalls = %+v, want 1", mgr.PairCalls)
	}
}

func TestPair_Stereo(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)
	ctx := context.Background()

	err := r.Pair(ctx, []Binding{
		{DeviceID: "snap-1", Role: types.RoleLeft},
		{DeviceID: "snap-2", Role: types.RoleRight},
	})
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}

	route, _ := r.Snapshot(ctx)
	if route.Mode != ModeStereo {
		t.Errorf("Mode = %q, want stereo", route.Mode)
	}
	if len(route.Devices) != 2 {
		t.Errorf("Devices = %+v, want 2", route.Devices)
	}
}

func TestPair_BadTopology(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)
	ctx := context.Background()

	tests := [][]Binding{
		nil,
		{{DeviceID: "snap-1", Role: types.RoleLeft}}, // left without right
		{
			{DeviceID: "snap-1", Role: types.RoleSolo},
			{DeviceID: "snap-2", Role: types.RoleSolo},
		},
		{{DeviceID: "snap-1", Role: types.RoleGroupLeader}}, // leader without members
	}
	for _, bindings := range tests {
		if err := r.Pair(ctx, bindings); !errors.Is(err, ErrBadTopology) {
			t.Errorf("Pair(%+v): err = %v, want ErrBadTopology", bindings, err)
		}
	}
	if len(mgr.PairCalls) != 0 {
		t.Errorf("invalid topologies must not reach the manager: %+v", mgr.PairCalls)
	}
}

func TestPair_UnknownDevice(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)

	err := r.Pair(context.Background(), []Binding{{DeviceID: "ghost", Role: types.RoleSolo}})
	if !errors.Is(err, device.ErrUnknownDevice) {
		t.Fatalf("err = %v, want ErrUnknownDevice", err)
	}
}

func TestPair_DrainsActiveRouteBeforeSwap(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)
	ctx := context.Background()

	if err := r.Pair(ctx, []Binding{{DeviceID: "snap-1", Role: types.RoleSolo}}); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	r.MarkActive(true)

	if err := r.Pair(ctx, []Binding{{DeviceID: "snap-2", Role: types.RoleSolo}}); err != nil {
		t.Fatalf("re-pair: %v", err)
	}

	// The old device was muted, then unpaired.
	if len(mgr.VolumeCalls) == 0 || mgr.VolumeCalls[0].DeviceID != "snap-1" || mgr.VolumeCalls[0].Level != 0 {
		t.Errorf("VolumeCalls = %+v, want mute of snap-1 first", mgr.VolumeCalls)
	}
	if len(mgr.UnpairCalls) != 1 || mgr.UnpairCalls[0] != "snap-1" {
		t.Errorf("UnpairCalls = %+v, want snap-1", mgr.UnpairCalls)
	}

	route, _ := r.Snapshot(ctx)
	if len(route.Devices) != 1 || route.Devices[0].ID != "snap-2" {
		t.Errorf("route after swap = %+v", route.Devices)
	}
}

func TestPair_IdleSwapSkipsDrain(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)
	ctx := context.Background()

	if err := r.Pair(ctx, []Binding{{DeviceID: "snap-1", Role: types.RoleSolo}}); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if err := r.Pair(ctx, []Binding{{DeviceID: "snap-2", Role: types.RoleSolo}}); err != nil {
		t.Fatalf("re-pair: %v", err)
	}

	if len(mgr.VolumeCalls) != 0 {
		t.Errorf("idle swap must not mute: %+v", mgr.VolumeCalls)
	}
}

func TestUnpair(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)
	ctx := context.Background()

	if err := r.Pair(ctx, []Binding{{DeviceID: "snap-1", Role: types.RoleSolo}}); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if err := r.Unpair(ctx, "snap-1"); err != nil {
		t.Fatalf("Unpair: %v", err)
	}

	route, _ := r.Snapshot(ctx)
	if !route.Empty() || route.Mode != ModeNone {
		t.Errorf("route after unpair = %+v", route)
	}

	if err := r.Unpair(ctx, "snap-1"); !errors.Is(err, ErrNotRouted) {
		t.Errorf("unpair twice: err = %v, want ErrNotRouted", err)
	}
}

func TestSetVolume_OverrideSurvivesSwap(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)
	ctx := context.Background()

	if err := r.Pair(ctx, []Binding{{DeviceID: "snap-1", Role: types.RoleSolo}}); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if err := r.SetVolume(ctx, "snap-1", 40); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}

	// Re-pair keeping the same device: its volume is restored.
	err := r.Pair(ctx, []Binding{
		{DeviceID: "snap-1", Role: types.RoleLeft},
		{DeviceID: "snap-2", Role: types.RoleRight},
	})
	if err != nil {
		t.Fatalf("re-pair: %v", err)
	}

	last := mgr.VolumeCalls[len(mgr.VolumeCalls)-1]
	if last.DeviceID != "snap-1" || last.Level != 40 {
		t.Errorf("VolumeCalls = %+v, want restore of snap-1 to 40", mgr.VolumeCalls)
	}
}

func TestSetVolume_NotRouted(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &devmock.Manager{Devices: knownDevices()})
	if err := r.SetVolume(context.Background(), "snap-1", 40); !errors.Is(err, ErrNotRouted) {
		t.Fatalf("err = %v, want ErrNotRouted", err)
	}
}

func TestSetEqualizer_AppliesToAllRoutedDevices(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)
	ctx := context.Background()

	err := r.Pair(ctx, []Binding{
		{DeviceID: "snap-1", Role: types.RoleLeft},
		{DeviceID: "snap-2", Role: types.RoleRight},
	})
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}

	bands := device.EqualizerBands{4, 3, 2, 0, 0, 0, 0, 0, 0, 0}
	if err := r.SetEqualizer(ctx, bands); err != nil {
		t.Fatalf("SetEqualizer: %v", err)
	}
	if len(mgr.EqualizerCalls) != 2 {
		t.Fatalf("EqualizerCalls = %+v, want both routed devices", mgr.EqualizerCalls)
	}

	route, _ := r.Snapshot(ctx)
	if got := route.Overrides["snap-1"].Equalizer; len(got) != len(bands) {
		t.Errorf("override bands = %v", got)
	}
}

func TestSetEqualizer_EmptyRoute(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &devmock.Manager{})
	err := r.SetEqualizer(context.Background(), device.EqualizerBands{1, 2})
	if !errors.Is(err, ErrNotRouted) {
		t.Fatalf("err = %v, want ErrNotRouted", err)
	}
}

func TestRename_UpdatesRoutedSnapshot(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)
	ctx := context.Background()

	if err := r.Pair(ctx, []Binding{{DeviceID: "bt-1", Role: types.RoleSolo}}); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if err := r.Rename(ctx, "bt-1", "Bedroom Bar"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	route, _ := r.Snapshot(ctx)
	if route.Devices[0].Name != "Bedroom Bar" {
		t.Errorf("Name = %q, want renamed", route.Devices[0].Name)
	}
	if len(mgr.RenameCalls) != 1 {
		t.Errorf("RenameCalls = %+v", mgr.RenameCalls)
	}
}

func TestRename_UnroutedDeviceStillRenames(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)

	if err := r.Rename(context.Background(), "bt-1", "Garage"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if len(mgr.RenameCalls) != 1 {
		t.Errorf("RenameCalls = %+v", mgr.RenameCalls)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	t.Parallel()

	mgr := &devmock.Manager{Devices: knownDevices()}
	r := newTestRouter(t, mgr)
	ctx := context.Background()

	if err := r.Pair(ctx, []Binding{{DeviceID: "snap-1", Role: types.RoleSolo}}); err != nil {
		t.Fatalf("Pair: %v", err)
	}

	snap, _ := r.Snapshot(ctx)
	snap.Devices[0].Name = "mutated"
	snap.Overrides["injected"] = Override{}

	fresh, _ := r.Snapshot(ctx)
	if fresh.Devices[0].Name == "mutated" {
		t.Error("snapshot mutation leaked into the route")
	}
	if _, ok := fresh.Overrides["injected"]; ok {
		t.Error("override mutation leaked into the route")
	}
}

func TestClosedRouter(t *testing.T) {
	t.Parallel()

	r := New(&devmock.Manager{})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := r.Snapshot(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Snapshot after Close: err = %v, want ErrClosed", err)
	}
}
