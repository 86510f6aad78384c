// Package dispatch executes interpreted voice commands against the playback
// backends and the output route.
//
// The dispatcher is the only component that talks to both the remote music
// service and the local offline player; which one a command reaches depends
// on the source of the resolved item and on what is currently active. Every
// Intent carries a sequence id assigned at interpretation; the dispatcher
// keeps a high-water mark and rejects replayed or reordered ids, so retrying
// a delivery can never double-skip or duplicate a playlist.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxahq/voxa/internal/intent"
	"github.com/voxahq/voxa/internal/observe"
	"github.com/voxahq/voxa/internal/phonetic"
	"github.com/voxahq/voxa/internal/router"
	"github.com/voxahq/voxa/pkg/audio"
	"github.com/voxahq/voxa/pkg/device"
	"github.com/voxahq/voxa/pkg/music"
	"github.com/voxahq/voxa/pkg/types"
)

var (
	// ErrStaleDispatch is returned for an Intent whose sequence id is at or
	// below the high-water mark. Replays are rejected, not re-executed.
	ErrStaleDispatch = errors.New("dispatch: stale or duplicate intent")

	// ErrNoOutputDevice is returned for playback commands while no device is
	// routed.
	ErrNoOutputDevice = errors.New("dispatch: no output device routed")

	// ErrOfflineUnsupported is returned for commands that have no offline
	// equivalent, such as playlist creation.
	ErrOfflineUnsupported = errors.New("dispatch: not supported while offline")

	// ErrNothingToResume is returned for a Resume when neither the remote
	// session nor the local player has a current track.
	ErrNothingToResume = errors.New("dispatch: nothing to resume")
)

// defaultVolume is assumed until the user sets one.
const defaultVolume = 50

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics attaches metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithMatcher replaces the phonetic matcher used for spoken device names.
func WithMatcher(m *phonetic.Matcher) Option {
	return func(d *Dispatcher) { d.matcher = m }
}

// Dispatcher executes Intents.
type Dispatcher struct {
	svc     music.Service
	route   *router.Router
	player  audio.Player
	matcher *phonetic.Matcher
	metrics *observe.Metrics

	mu        sync.Mutex
	highWater uint64
	volume    int
	offline   bool // current playback is the local player
}

// New creates a Dispatcher. svc is typically the breaker-guarded remote
// service.
func New(svc music.Service, route *router.Router, player audio.Player, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		svc:     svc,
		route:   route,
		player:  player,
		matcher: phonetic.New(),
		volume:  defaultVolume,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch executes one voice-initiated Intent. items are the resolved
// catalog items for entity-carrying intents (Play targets, playlist seeds).
// The returned Announcement is non-nil only when the command changed what is
// playing; the caller publishes it to the UI stream.
func (d *Dispatcher) Dispatch(ctx context.Context, in intent.Intent, items []types.CatalogItem) (*types.Announcement, error) {
	start := time.Now()
	name := intent.Name(in)

	if err := d.accept(in.Seq()); err != nil {
		return nil, err
	}

	route, err := d.routeFor(ctx, in)
	if err != nil {
		return nil, err
	}

	ann, err := d.execute(ctx, in, items, route)

	if d.metrics != nil {
		d.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(
				attribute.String("intent", name),
				attribute.Bool("error", err != nil),
			))
	}
	if err != nil {
		return nil, err
	}

	slog.Info("dispatch: intent executed", "intent", name, "seq", in.Seq())
	return ann, nil
}

// accept advances the high-water mark or rejects a stale sequence id.
func (d *Dispatcher) accept(seq uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq <= d.highWater {
		return fmt.Errorf("%w: seq %d, high-water %d", ErrStaleDispatch, seq, d.highWater)
	}
	d.highWater = seq
	return nil
}

// routeFor snapshots the output route and enforces the no-device rule for
// everything that is not itself a device-control command.
func (d *Dispatcher) routeFor(ctx context.Context, in intent.Intent) (router.OutputRoute, error) {
	switch in.(type) {
	case intent.PairDevice, intent.SetEqualizer:
		return router.OutputRoute{}, nil
	}

	route, err := d.route.Snapshot(ctx)
	if err != nil {
		return router.OutputRoute{}, fmt.Errorf("dispatch: route snapshot: %w", err)
	}
	if route.Empty() {
		return router.OutputRoute{}, ErrNoOutputDevice
	}
	return route, nil
}

func (d *Dispatcher) execute(ctx context.Context, in intent.Intent, items []types.CatalogItem, route router.OutputRoute) (*types.Announcement, error) {
	switch in := in.(type) {
	case intent.Play:
		return d.play(ctx, in, items, route)
	case intent.Pause:
		return nil, d.pause(ctx)
	case intent.Resume:
		return d.resume(ctx, route)
	case intent.Skip:
		return d.skip(ctx)
	case intent.SetVolume:
		return nil, d.setVolume(ctx, in, route)
	case intent.SetShuffle:
		return nil, d.setShuffle(ctx, in)
	case intent.CreatePlaylist:
		return nil, d.createPlaylist(ctx, in, items)
	case intent.PairDevice:
		return nil, d.pairDevice(ctx, in)
	case intent.SetEqualizer:
		return nil, d.setEqualizer(ctx, in)
	default:
		return nil, fmt.Errorf("dispatch: unhandled intent %q", intent.Name(in))
	}
}

func (d *Dispatcher) play(ctx context.Context, in intent.Play, items []types.CatalogItem, route router.OutputRoute) (*types.Announcement, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("dispatch: play with no resolved items")
	}
	item := items[0]

	if item.Source == types.SourceOffline {
		if err := d.player.Play(ctx, item.ID); err != nil {
			return nil, fmt.Errorf("dispatch: local play: %w", err)
		}
		d.setOffline(true)
	} else {
		// A new remote track supersedes any local playback.
		if d.player.Playing() {
			_ = d.player.Stop()
		}
		if err := d.svc.Play(ctx, item.ID, targetDevice(route)); err != nil {
			return nil, fmt.Errorf("dispatch: remote play: %w", err)
		}
		d.setOffline(false)
	}
	d.route.MarkActive(true)

	ann := &types.Announcement{Title: item.Title, Artist: item.Artist}
	for _, e := range in.Entities {
		if e.Kind == types.EntityPlaylist {
			ann.SourcePlaylist = e.RawText
		}
	}
	return ann, nil
}

func (d *Dispatcher) pause(ctx context.Context) error {
	if d.isOffline() && d.player.Playing() {
		if err := d.player.Pause(); err != nil {
			return fmt.Errorf("dispatch: local pause: %w", err)
		}
	} else if err := d.svc.Pause(ctx); err != nil {
		return fmt.Errorf("dispatch: remote pause: %w", err)
	}
	d.route.MarkActive(false)
	return nil
}

// resume continues paused playback. The remote interface has no resume call,
// so the remote path replays the current track.
func (d *Dispatcher) resume(ctx context.Context, route router.OutputRoute) (*types.Announcement, error) {
	if d.isOffline() && d.player.Playing() {
		if err := d.player.Resume(); err != nil {
			return nil, fmt.Errorf("dispatch: local resume: %w", err)
		}
		d.route.MarkActive(true)
		return nil, nil
	}

	current, err := d.svc.CurrentlyPlaying(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch: resume: %w", err)
	}
	if current == nil {
		return nil, ErrNothingToResume
	}
	if err := d.svc.Play(ctx, current.ID, targetDevice(route)); err != nil {
		return nil, fmt.Errorf("dispatch: resume: %w", err)
	}
	d.route.MarkActive(true)
	return &types.Announcement{Title: current.Title, Artist: current.Artist}, nil
}

func (d *Dispatcher) skip(ctx context.Context) (*types.Announcement, error) {
	if d.isOffline() && d.player.Playing() {
		// Cached playback is a single track; skipping ends it.
		if err := d.player.Stop(); err != nil {
			return nil, fmt.Errorf("dispatch: local skip: %w", err)
		}
		d.setOffline(false)
		d.route.MarkActive(false)
		return nil, nil
	}

	if err := d.svc.Skip(ctx); err != nil {
		return nil, fmt.Errorf("dispatch: skip: %w", err)
	}

	// Best-effort announcement of the track skipped to.
	if current, err := d.svc.CurrentlyPlaying(ctx); err == nil && current != nil {
		return &types.Announcement{Title: current.Title, Artist: current.Artist}, nil
	}
	return nil, nil
}

// setVolume applies the level at the device output stage of every routed
// device, which works identically for remote and offline playback.
func (d *Dispatcher) setVolume(ctx context.Context, in intent.SetVolume, route router.OutputRoute) error {
	d.mu.Lock()
	level := in.Level
	if in.Relative {
		level = d.volume + in.Level
	}
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	d.volume = level
	d.mu.Unlock()

	for _, dev := range route.Devices {
		if err := d.route.SetVolume(ctx, dev.ID, level); err != nil {
			return fmt.Errorf("dispatch: volume: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) setShuffle(ctx context.Context, in intent.SetShuffle) error {
	if d.isOffline() && d.player.Playing() {
		return fmt.Errorf("dispatch: shuffle: %w", ErrOfflineUnsupported)
	}
	if err := d.svc.SetShuffle(ctx, in.On); err != nil {
		return fmt.Errorf("dispatch: shuffle: %w", err)
	}
	return nil
}

func (d *Dispatcher) createPlaylist(ctx context.Context, in intent.CreatePlaylist, items []types.CatalogItem) error {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Source != types.SourceRemote {
			continue
		}
		ids = append(ids, it.ID)
	}

	id, err := d.svc.CreatePlaylist(ctx, in.Name, ids)
	if errors.Is(err, music.ErrUnavailable) {
		// Playlist creation has no offline equivalent.
		return fmt.Errorf("dispatch: create playlist: %w", ErrOfflineUnsupported)
	}
	if err != nil {
		return fmt.Errorf("dispatch: create playlist: %w", err)
	}
	slog.Info("dispatch: playlist created", "name", in.Name, "id", id, "seeds", len(ids))
	return nil
}

// pairDevice matches the spoken name against discovered devices and binds
// the best match as a solo route.
func (d *Dispatcher) pairDevice(ctx context.Context, in intent.PairDevice) error {
	discovered, err := d.route.Discover(ctx)
	if err != nil {
		return fmt.Errorf("dispatch: pair: %w", err)
	}

	names := make([]string, len(discovered))
	for i, dev := range discovered {
		names[i] = dev.Name
	}
	best, _, matched := d.matcher.Match(in.Device, names)
	if !matched {
		return fmt.Errorf("dispatch: pair %q: %w", in.Device, device.ErrUnknownDevice)
	}

	var target types.Device
	for _, dev := range discovered {
		if dev.Name == best {
			target = dev
			break
		}
	}

	binding := router.Binding{DeviceID: target.ID, Role: types.RoleSolo}
	if err := d.route.Pair(ctx, []router.Binding{binding}); err != nil {
		return fmt.Errorf("dispatch: pair %q: %w", in.Device, err)
	}
	return nil
}

func (d *Dispatcher) setEqualizer(ctx context.Context, in intent.SetEqualizer) error {
	bands := device.EqualizerBands(in.Bands)
	if err := d.route.SetEqualizer(ctx, bands); err != nil {
		return fmt.Errorf("dispatch: equalizer %q: %w", in.Preset, err)
	}
	return nil
}

func (d *Dispatcher) isOffline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offline
}

func (d *Dispatcher) setOffline(v bool) {
	d.mu.Lock()
	d.offline = v
	d.mu.Unlock()
}

// targetDevice picks the routed device the remote service should address:
// the group leader when grouped, otherwise the first bound device.
func targetDevice(route router.OutputRoute) string {
	for _, dev := range route.Devices {
		if dev.Role == types.RoleGroupLeader {
			return dev.ID
		}
	}
	if len(route.Devices) > 0 {
		return route.Devices[0].ID
	}
	return ""
}
