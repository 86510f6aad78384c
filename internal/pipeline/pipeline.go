// Package pipeline runs the voice control loop: wake detection over the
// microphone stream, an optional keyword-spotting fast path, full speech
// recognition, intent interpretation, catalog resolution, and dispatch.
//
// One session is active at a time. A wake trigger that arrives during an
// open session is never served: it is dropped and counted, either on arrival
// when the pending slot is occupied or at session-end re-arm when it is
// still unconsumed. Every stage failure is isolated to its session: the loop reports
// a notice on the event stream, re-arms wake detection, and waits for the
// next wake event. The ingestion loop, session worker, and now-playing
// poller run under one errgroup.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/voxahq/voxa/internal/catalog"
	"github.com/voxahq/voxa/internal/config"
	"github.com/voxahq/voxa/internal/dispatch"
	"github.com/voxahq/voxa/internal/intent"
	"github.com/voxahq/voxa/internal/observe"
	"github.com/voxahq/voxa/internal/recognizer"
	"github.com/voxahq/voxa/internal/router"
	"github.com/voxahq/voxa/internal/spotter"
	"github.com/voxahq/voxa/internal/wake"
	"github.com/voxahq/voxa/pkg/audio"
	"github.com/voxahq/voxa/pkg/device"
	"github.com/voxahq/voxa/pkg/music"
	"github.com/voxahq/voxa/pkg/types"
)

const (
	// sessionTimeout bounds one wake-to-dispatch session.
	sessionTimeout = 20 * time.Second

	// eventBufferDepth is the UI event channel capacity. A UI that falls
	// further behind loses events rather than stalling the pipeline.
	eventBufferDepth = 64

	// tapBufferDepth buffers session audio between the ingestion loop and
	// the recognition stages.
	tapBufferDepth = 128

	defaultSpotThreshold = 0.75
	defaultPollInterval  = 5 * time.Second
)

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithSpotter enables the keyword-spotting fast path. Matches at or above
// threshold short-circuit full recognition.
func WithSpotter(s *spotter.Spotter, threshold float64) Option {
	return func(p *Pipeline) {
		p.spot = s
		if threshold > 0 {
			p.spotThreshold = threshold
		}
	}
}

// WithMetrics attaches metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithPollInterval sets the now-playing poll cadence. Zero disables the
// poller.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.pollInterval = d }
}

// WithLogLevel attaches the process log-level var so settings changes can
// retune verbosity at runtime.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(p *Pipeline) { p.logLevel = v }
}

// Pipeline is the voice control loop.
type Pipeline struct {
	source   audio.Source
	wake     *wake.Detector
	spot     *spotter.Spotter
	rec      *recognizer.Recognizer
	interp   *intent.Interpreter
	resolver *catalog.Resolver
	disp     *dispatch.Dispatcher
	route    *router.Router
	svc      music.Service

	metrics  *observe.Metrics
	logLevel *slog.LevelVar

	spotThreshold float64
	pollInterval  time.Duration

	events chan Event

	mu          sync.Mutex
	tap         chan types.AudioFrame
	lastBusy    uint64
	lastDropped uint64
}

// New assembles a Pipeline. svc is the (guarded) remote service used by the
// now-playing poller; the dispatcher holds its own reference.
func New(
	source audio.Source,
	det *wake.Detector,
	rec *recognizer.Recognizer,
	interp *intent.Interpreter,
	resolver *catalog.Resolver,
	disp *dispatch.Dispatcher,
	route *router.Router,
	svc music.Service,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		source:        source,
		wake:          det,
		rec:           rec,
		interp:        interp,
		resolver:      resolver,
		disp:          disp,
		route:         route,
		svc:           svc,
		spotThreshold: defaultSpotThreshold,
		pollInterval:  defaultPollInterval,
		events:        make(chan Event, eventBufferDepth),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Events returns the UI event stream. Events are dropped, not queued
// unboundedly, when the consumer falls behind.
func (p *Pipeline) Events() <-chan Event { return p.events }

// Run drives the pipeline until ctx is cancelled or the audio source closes.
func (p *Pipeline) Run(ctx context.Context) error {
	p.publish(Event{Kind: EventState, State: StateIdle, At: time.Now()})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.ingest(ctx) })
	g.Go(func() error { return p.sessions(ctx) })
	if p.svc != nil && p.pollInterval > 0 {
		g.Go(func() error { return p.poll(ctx) })
	}
	return g.Wait()
}

// ApplySettings hot-applies a config change coming from the settings UI
// through the config watcher. Settings arrive as configuration, never as
// voice intents.
func (p *Pipeline) ApplySettings(ctx context.Context, diff config.SettingsDiff) {
	if diff.InputDeviceChanged {
		if err := p.source.SwitchDevice(ctx, diff.NewInputDevice); err != nil {
			slog.Error("pipeline: microphone switch failed",
				"device", diff.NewInputDevice, "error", err)
		}
	}

	if diff.EqualizerChanged {
		err := p.route.SetEqualizer(ctx, device.EqualizerBands(diff.NewEqualizer))
		if err != nil && !errors.Is(err, router.ErrNotRouted) {
			slog.Error("pipeline: equalizer settings failed", "error", err)
		}
	}

	if diff.DeviceNameChanged {
		route, err := p.route.Snapshot(ctx)
		if err == nil && !route.Empty() {
			if err := p.route.Rename(ctx, route.Devices[0].ID, diff.NewDeviceName); err != nil {
				slog.Error("pipeline: device rename failed", "error", err)
			}
		}
	}

	if diff.LogLevelChanged && p.logLevel != nil {
		p.logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("pipeline: log level changed", "level", diff.NewLogLevel)
	}
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ingest feeds every captured frame to the wake detector and, during an
// open session, into the session tap.
func (p *Pipeline) ingest(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-p.source.Frames():
			if !ok {
				return nil
			}
			if err := p.wake.Feed(frame); err != nil {
				slog.Error("pipeline: wake feed failed", "error", err)
				if p.metrics != nil {
					p.metrics.RecordPipelineError(ctx, "wake", "feed")
				}
			}
			p.forward(frame)
		}
	}
}

func (p *Pipeline) forward(frame types.AudioFrame) {
	p.mu.Lock()
	tap := p.tap
	p.mu.Unlock()
	if tap == nil {
		return
	}
	select {
	case tap <- frame:
	default:
		// Session consumer is behind; losing a frame beats stalling capture.
	}
}

func (p *Pipeline) setTap(tap chan types.AudioFrame) {
	p.mu.Lock()
	p.tap = tap
	p.mu.Unlock()
}

// sessions waits for wake events and runs one session at a time.
func (p *Pipeline) sessions(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.wake.Events():
			p.runSession(ctx, ev)
			p.recordDrops(ctx)
		}
	}
}

// recordDrops forwards the wake busy-drop and capture frame-drop counter
// deltas to their metrics after each session.
func (p *Pipeline) recordDrops(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	busy := p.wake.BusyDrops()
	dropped := p.source.DroppedFrames()
	p.mu.Lock()
	busyDelta := busy - p.lastBusy
	droppedDelta := dropped - p.lastDropped
	p.lastBusy = busy
	p.lastDropped = dropped
	p.mu.Unlock()
	if busyDelta > 0 {
		slog.Info("pipeline: wake events dropped while busy", "count", busyDelta)
		p.metrics.BusyWakeDrops.Add(ctx, int64(busyDelta))
	}
	if droppedDelta > 0 {
		slog.Debug("pipeline: capture frames dropped", "count", droppedDelta)
		p.metrics.DroppedFrames.Add(ctx, int64(droppedDelta))
	}
}

// runSession drives one wake-to-dispatch session. All failures are local to
// the session.
func (p *Pipeline) runSession(ctx context.Context, ev wake.Event) {
	slog.Info("pipeline: wake event", "score", ev.Score)
	if p.metrics != nil {
		p.metrics.WakeEvents.Add(ctx, 1)
	}

	ctx, cancel := context.WithTimeout(ctx, sessionTimeout)
	defer cancel()

	tap := make(chan types.AudioFrame, tapBufferDepth)
	p.setTap(tap)
	defer p.setTap(nil)
	defer p.wake.Rearm()
	defer p.publish(Event{Kind: EventState, State: StateIdle, At: time.Now()})

	// Fast path: a short audio window against the closed vocabulary.
	var prefix []types.AudioFrame
	if p.spot != nil {
		p.setState(StateSpotting)
		var pcm []int16
		var rate int
		prefix, pcm, rate = collect(ctx, tap, p.spot.Window())

		token, conf, err := p.spot.Spot(ctx, pcm, rate)
		if err == nil && conf >= p.spotThreshold {
			if in, kerr := p.interp.FromKeyword(string(token)); kerr == nil {
				slog.Info("pipeline: keyword short-circuit", "token", token, "confidence", conf)
				if p.metrics != nil {
					p.metrics.SpotterShortCircuits.Add(ctx, 1)
				}
				p.finish(ctx, in, nil)
				return
			}
		}
		if err != nil && !errors.Is(err, spotter.ErrNoMatch) {
			slog.Warn("pipeline: spotting failed, falling back to recognition", "error", err)
		}
	}

	// Full recognition over the spotted prefix plus the live stream.
	p.setState(StateRecognizing)
	start := time.Now()
	tr, err := p.rec.Listen(ctx, replay(ctx, prefix, tap))
	if p.metrics != nil {
		p.metrics.RecognitionDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Bool("error", err != nil)))
	}
	if err != nil {
		p.fail(ctx, "recognize", err, noticeFor(err))
		return
	}

	p.setState(StateInterpreting)
	in, err := p.interp.Interpret(tr.Text)
	if err != nil {
		p.fail(ctx, "interpret", err, "Sorry, I didn't understand that.")
		return
	}

	var items []types.CatalogItem
	if entities := entitiesOf(in); len(entities) > 0 {
		p.setState(StateResolving)
		start = time.Now()
		items, err = p.resolver.Resolve(ctx, entities)
		if p.metrics != nil {
			p.metrics.ResolutionDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.Bool("error", err != nil)))
		}
		if err != nil {
			p.fail(ctx, "resolve", err, noticeFor(err))
			return
		}
	}

	p.finish(ctx, in, items)
}

// finish dispatches the intent and publishes the outcome.
func (p *Pipeline) finish(ctx context.Context, in intent.Intent, items []types.CatalogItem) {
	p.setState(StateDispatching)

	ann, err := p.disp.Dispatch(ctx, in, items)
	if err != nil {
		p.fail(ctx, "dispatch", err, noticeFor(err))
		return
	}

	if p.metrics != nil {
		p.metrics.RecordIntent(ctx, intent.Name(in), sourceOf(items))
	}
	if ann != nil {
		p.publish(Event{Kind: EventAnnouncement, Announcement: ann, At: time.Now()})
	}
}

func (p *Pipeline) fail(ctx context.Context, stage string, err error, notice string) {
	slog.Warn("pipeline: session failed", "stage", stage, "error", err)
	if p.metrics != nil {
		p.metrics.RecordPipelineError(ctx, stage, errorKind(err))
	}
	p.publish(Event{Kind: EventNotice, Notice: notice, At: time.Now()})
}

// poll probes the current track and publishes changes. It runs independently
// of voice sessions so the UI album display follows app-initiated changes
// too.
func (p *Pipeline) poll(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var lastID string
	var hadTrack bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			current, err := p.svc.CurrentlyPlaying(ctx)
			if err != nil {
				slog.Debug("pipeline: now-playing probe failed", "error", err)
				continue
			}
			switch {
			case current == nil && hadTrack:
				hadTrack = false
				lastID = ""
				p.publish(Event{Kind: EventNowPlaying, At: time.Now()})
			case current != nil && current.ID != lastID:
				hadTrack = true
				lastID = current.ID
				p.publish(Event{Kind: EventNowPlaying, NowPlaying: current, At: time.Now()})
			}
		}
	}
}

func (p *Pipeline) setState(s State) {
	p.publish(Event{Kind: EventState, State: s, At: time.Now()})
}

func (p *Pipeline) publish(ev Event) {
	select {
	case p.events <- ev:
	default:
		slog.Debug("pipeline: event dropped, consumer behind", "kind", ev.Kind)
	}
}

// collect gathers frames from the tap until the requested audio duration is
// buffered. Wall-clock is bounded at twice the window so a silent capture
// gap cannot hang the session.
func collect(ctx context.Context, tap <-chan types.AudioFrame, window time.Duration) ([]types.AudioFrame, []int16, int) {
	deadline := time.NewTimer(2 * window)
	defer deadline.Stop()

	var (
		frames   []types.AudioFrame
		pcm      []int16
		rate     = 16000
		captured time.Duration
	)
	for captured < window {
		select {
		case <-ctx.Done():
			return frames, pcm, rate
		case <-deadline.C:
			return frames, pcm, rate
		case f, ok := <-tap:
			if !ok {
				return frames, pcm, rate
			}
			frames = append(frames, f)
			pcm = append(pcm, f.PCM...)
			if f.SampleRate > 0 {
				rate = f.SampleRate
			}
			captured += f.Duration()
		}
	}
	return frames, pcm, rate
}

// replay yields the buffered prefix frames and then pipes the live tap, so
// the recognition window includes the audio the spotter already consumed.
func replay(ctx context.Context, prefix []types.AudioFrame, tap <-chan types.AudioFrame) <-chan types.AudioFrame {
	out := make(chan types.AudioFrame, tapBufferDepth)
	go func() {
		defer close(out)
		for _, f := range prefix {
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-tap:
				if !ok {
					return
				}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// entitiesOf returns the entity spans an intent needs resolved.
func entitiesOf(in intent.Intent) []types.Entity {
	switch in := in.(type) {
	case intent.Play:
		return in.Entities
	case intent.CreatePlaylist:
		return in.Seeds
	}
	return nil
}

func sourceOf(items []types.CatalogItem) string {
	if len(items) > 0 && items[0].Source == types.SourceOffline {
		return "offline"
	}
	return "remote"
}

// noticeFor maps a stage error to the short notice the UI shows or speaks.
func noticeFor(err error) string {
	switch {
	case errors.Is(err, recognizer.ErrRecognitionTimeout):
		return "I didn't hear anything."
	case errors.Is(err, recognizer.ErrLowConfidence):
		return "Sorry, I didn't catch that."
	case errors.Is(err, catalog.ErrEntityNotFound):
		return "I couldn't find that in your library."
	case errors.Is(err, catalog.ErrAmbiguousEntity):
		return "I found more than one match, please be more specific."
	case errors.Is(err, dispatch.ErrNoOutputDevice):
		return "No speaker is connected."
	case errors.Is(err, dispatch.ErrOfflineUnsupported):
		return "That needs an online connection."
	case errors.Is(err, music.ErrUnavailable):
		return "The music service is unavailable right now."
	default:
		return "Something went wrong, please try again."
	}
}

// errorKind is the low-cardinality label recorded with pipeline errors.
func errorKind(err error) string {
	switch {
	case errors.Is(err, recognizer.ErrRecognitionTimeout):
		return "timeout"
	case errors.Is(err, recognizer.ErrLowConfidence):
		return "low_confidence"
	case errors.Is(err, intent.ErrUnrecognizedIntent):
		return "unrecognized"
	case errors.Is(err, catalog.ErrEntityNotFound):
		return "not_found"
	case errors.Is(err, catalog.ErrAmbiguousEntity):
		return "ambiguous"
	case errors.Is(err, dispatch.ErrStaleDispatch):
		return "stale"
	case errors.Is(err, dispatch.ErrNoOutputDevice):
		return "no_device"
	case errors.Is(err, dispatch.ErrOfflineUnsupported):
		return "offline_unsupported"
	case errors.Is(err, music.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	default:
		return "internal"
	}
}
