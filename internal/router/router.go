// Package router owns the output route: which speakers play, in which
// topology, and with which per-device overrides.
//
// A single actor goroutine owns the OutputRoute value. Pairing is two-phase:
// Discover enumerates candidates without touching state, Pair binds a set of
// device ids with channel roles in one atomic swap. When a re-pair happens
// while audio is playing, the current devices are muted first so the swap is
// a brief silence instead of a glitch. Readers always get snapshot copies.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/voxahq/voxa/internal/observe"
	"github.com/voxahq/voxa/pkg/device"
	"github.com/voxahq/voxa/pkg/types"
)

var (
	// ErrClosed is returned by operations on a closed Router.
	ErrClosed = errors.New("router: closed")

	// ErrBadTopology is returned when a binding set is not a valid solo,
	// stereo, or group layout.
	ErrBadTopology = errors.New("router: invalid binding topology")

	// ErrNotRouted is returned when an operation names a device that is not
	// part of the active route.
	ErrNotRouted = errors.New("router: device not in active route")
)

// Mode is the active output topology.
type Mode string

const (
	ModeNone   Mode = ""
	ModeSolo   Mode = "solo"
	ModeStereo Mode = "stereo"
	ModeGroup  Mode = "group"
)

// Binding assigns a channel role to a device id during pairing.
type Binding struct {
	DeviceID string
	Role     types.DeviceRole
}

// Override holds per-device settings layered on top of the route. Volume is
// -1 until the user sets one.
type Override struct {
	Volume    int
	Equalizer device.EqualizerBands
	Name      string
}

// OutputRoute is the active output topology. Values handed out by Snapshot
// are deep copies.
type OutputRoute struct {
	Mode      Mode
	Devices   []types.Device
	Overrides map[string]Override
}

// Empty reports whether no device is routed.
func (r OutputRoute) Empty() bool { return len(r.Devices) == 0 }

func (r OutputRoute) clone() OutputRoute {
	out := OutputRoute{Mode: r.Mode}
	out.Devices = make([]types.Device, len(r.Devices))
	copy(out.Devices, r.Devices)
	out.Overrides = make(map[string]Override, len(r.Overrides))
	for id, ov := range r.Overrides {
		bands := make(device.EqualizerBands, len(ov.Equalizer))
		copy(bands, ov.Equalizer)
		ov.Equalizer = bands
		out.Overrides[id] = ov
	}
	return out
}

// Option customises a Router.
type Option func(*Router)

// WithMetrics attaches metric instruments for the routed-device gauge.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// Router is the output-route actor.
type Router struct {
	mgr     device.Manager
	metrics *observe.Metrics

	ops       chan func(context.Context, *OutputRoute) error
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// active is set by the playback dispatcher while audio is flowing; it
	// decides whether a re-pair needs the drain-mute step.
	active atomic.Bool
}

// New creates a Router over the device manager and starts the actor.
func New(mgr device.Manager, opts ...Option) *Router {
	r := &Router{
		mgr:  mgr,
		ops:  make(chan func(context.Context, *OutputRoute) error),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

func (r *Router) run() {
	defer close(r.done)
	route := OutputRoute{Overrides: make(map[string]Override)}
	for {
		select {
		case op := <-r.ops:
			op(context.Background(), &route)
		case <-r.quit:
			return
		}
	}
}

// do submits an op and waits for its result, honoring ctx.
func (r *Router) do(ctx context.Context, op func(context.Context, *OutputRoute) error) error {
	res := make(chan error, 1)
	wrapped := func(_ context.Context, route *OutputRoute) error {
		err := op(ctx, route)
		res <- err
		return err
	}

	select {
	case r.ops <- wrapped:
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the actor. Calling Close more than once is safe.
func (r *Router) Close() error {
	r.closeOnce.Do(func() { close(r.quit) })
	<-r.done
	return nil
}

// MarkActive records whether audio is currently flowing to the route.
func (r *Router) MarkActive(active bool) { r.active.Store(active) }

// Discover enumerates candidate output devices. Phase one of pairing; never
// mutates routing state.
func (r *Router) Discover(ctx context.Context) ([]types.Device, error) {
	return r.mgr.Discover(ctx)
}

// Pair binds the devices into a new route in one atomic swap. The binding
// set must form a valid solo, stereo (left+right), or group (one leader plus
// members) topology, and every id must be discoverable. While audio is
// active the old route is muted before the swap.
func (r *Router) Pair(ctx context.Context, bindings []Binding) error {
	mode, err := topology(bindings)
	if err != nil {
		return err
	}

	return r.do(ctx, func(ctx context.Context, route *OutputRoute) error {
		known, err := r.mgr.Discover(ctx)
		if err != nil {
			return fmt.Errorf("router: discover before pair: %w", err)
		}
		byID := make(map[string]types.Device, len(known))
		for _, d := range known {
			byID[d.ID] = d
		}

		devices := make([]types.Device, 0, len(bindings))
		for _, b := range bindings {
			d, ok := byID[b.DeviceID]
			if !ok {
				return fmt.Errorf("router: pair %q: %w", b.DeviceID, device.ErrUnknownDevice)
			}
			d.Role = b.Role
			devices = append(devices, d)
		}

		if r.active.Load() && !route.Empty() {
			r.drain(ctx, route)
		}

		for _, d := range route.Devices {
			if err := r.mgr.Unpair(ctx, d.ID); err != nil {
				slog.Warn("router: unpair during swap failed", "device", d.ID, "error", err)
			}
		}
		for _, d := range devices {
			if err := r.mgr.Pair(ctx, d.ID, d.Role); err != nil {
				return fmt.Errorf("router: pair %q as %s: %w", d.ID, d.Role, err)
			}
		}

		r.recordDelta(ctx, len(devices)-len(route.Devices))

		prev := len(route.Devices)
		route.Mode = mode
		route.Devices = devices
		pruneOverrides(route)
		r.restore(ctx, route)

		slog.Info("router: route swapped",
			"mode", mode, "devices", len(devices), "previous", prev)
		return nil
	})
}

// Unpair removes one device from the route.
func (r *Router) Unpair(ctx context.Context, deviceID string) error {
	return r.do(ctx, func(ctx context.Context, route *OutputRoute) error {
		idx := indexOf(route.Devices, deviceID)
		if idx < 0 {
			return fmt.Errorf("router: unpair %q: %w", deviceID, ErrNotRouted)
		}
		if err := r.mgr.Unpair(ctx, deviceID); err != nil {
			return fmt.Errorf("router: unpair %q: %w", deviceID, err)
		}
		route.Devices = append(route.Devices[:idx], route.Devices[idx+1:]...)
		delete(route.Overrides, deviceID)
		if route.Empty() {
			route.Mode = ModeNone
		}
		r.recordDelta(ctx, -1)
		return nil
	})
}

// SetVolume sets a routed device's output volume and records it as an
// override so it survives a route swap.
func (r *Router) SetVolume(ctx context.Context, deviceID string, level int) error {
	return r.do(ctx, func(ctx context.Context, route *OutputRoute) error {
		if indexOf(route.Devices, deviceID) < 0 {
			return fmt.Errorf("router: volume for %q: %w", deviceID, ErrNotRouted)
		}
		if err := r.mgr.SetVolume(ctx, deviceID, level); err != nil {
			return fmt.Errorf("router: volume for %q: %w", deviceID, err)
		}
		ov := override(route, deviceID)
		ov.Volume = level
		route.Overrides[deviceID] = ov
		return nil
	})
}

// SetEqualizer applies the band gains to every routed device's output DSP
// stage. The playback application's internal mix is never touched.
func (r *Router) SetEqualizer(ctx context.Context, bands device.EqualizerBands) error {
	return r.do(ctx, func(ctx context.Context, route *OutputRoute) error {
		if route.Empty() {
			return ErrNotRouted
		}
		for _, d := range route.Devices {
			if err := r.mgr.SetEqualizer(ctx, d.ID, bands); err != nil {
				return fmt.Errorf("router: equalizer for %q: %w", d.ID, err)
			}
			ov := override(route, d.ID)
			ov.Equalizer = append(device.EqualizerBands(nil), bands...)
			route.Overrides[d.ID] = ov
		}
		return nil
	})
}

// Rename sets a device's display name. The device does not have to be
// routed; a routed device's snapshot name is updated as well.
func (r *Router) Rename(ctx context.Context, deviceID, name string) error {
	return r.do(ctx, func(ctx context.Context, route *OutputRoute) error {
		if err := r.mgr.Rename(ctx, deviceID, name); err != nil {
			return fmt.Errorf("router: rename %q: %w", deviceID, err)
		}
		if idx := indexOf(route.Devices, deviceID); idx >= 0 {
			route.Devices[idx].Name = name
			ov := override(route, deviceID)
			ov.Name = name
			route.Overrides[deviceID] = ov
		}
		return nil
	})
}

// Snapshot returns a copy of the active route.
func (r *Router) Snapshot(ctx context.Context) (OutputRoute, error) {
	var out OutputRoute
	err := r.do(ctx, func(_ context.Context, route *OutputRoute) error {
		out = route.clone()
		return nil
	})
	return out, err
}

// drain mutes the current devices ahead of a route swap. Best-effort: a
// device that fails to mute still gets swapped out.
func (r *Router) drain(ctx context.Context, route *OutputRoute) {
	for _, d := range route.Devices {
		if err := r.mgr.SetVolume(ctx, d.ID, 0); err != nil {
			slog.Warn("router: drain mute failed", "device", d.ID, "error", err)
		}
	}
}

// restore re-applies recorded volume overrides to the devices of a freshly
// swapped route.
func (r *Router) restore(ctx context.Context, route *OutputRoute) {
	for _, d := range route.Devices {
		ov, ok := route.Overrides[d.ID]
		if !ok || ov.Volume < 0 {
			continue
		}
		if err := r.mgr.SetVolume(ctx, d.ID, ov.Volume); err != nil {
			slog.Warn("router: volume restore failed", "device", d.ID, "error", err)
		}
	}
}

func (r *Router) recordDelta(ctx context.Context, delta int) {
	if r.metrics != nil && delta != 0 {
		r.metrics.ActiveRouteDevices.Add(ctx, int64(delta))
	}
}

// topology validates a binding set and derives its mode.
func topology(bindings []Binding) (Mode, error) {
	if len(bindings) == 0 {
		return ModeNone, fmt.Errorf("%w: empty binding set", ErrBadTopology)
	}

	var solo, left, right, leader, member int
	for _, b := range bindings {
		switch b.Role {
		case types.RoleSolo:
			solo++
		case types.RoleLeft:
			left++
		case types.RoleRight:
			right++
		case types.RoleGroupLeader:
			leader++
		case types.RoleGroupMember:
			member++
		default:
			return ModeNone, fmt.Errorf("%w: unknown role %q", ErrBadTopology, b.Role)
		}
	}

	switch {
	case solo == 1 && len(bindings) == 1:
		return ModeSolo, nil
	case left == 1 && right == 1 && len(bindings) == 2:
		return ModeStereo, nil
	case leader == 1 && member >= 1 && leader+member == len(bindings):
		return ModeGroup, nil
	}
	return ModeNone, fmt.Errorf("%w: solo=%d left=%d right=%d leader=%d member=%d",
		ErrBadTopology, solo, left, right, leader, member)
}

func indexOf(devices []types.Device, id string) int {
	for i, d := range devices {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func override(route *OutputRoute, id string) Override {
	if ov, ok := route.Overrides[id]; ok {
		return ov
	}
	return Override{Volume: -1}
}

func pruneOverrides(route *OutputRoute) {
	routed := make(map[string]bool, len(route.Devices))
	for _, d := range route.Devices {
		routed[d.ID] = true
	}
	for id := range route.Overrides {
		if !routed[id] {
			delete(route.Overrides, id)
		}
	}
}
