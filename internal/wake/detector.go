// Package wake turns per-frame wake-word scores into discrete trigger events.
//
// The Detector sits between the audio ingestion loop and the session
// pipeline. It smooths the raw engine score over a small rolling window,
// requires the smoothed score to stay above the threshold for a number of
// consecutive frames (dwell), and suppresses re-triggering for a cool-down
// period after each event. Triggers land in a single-slot pending queue: if
// the pipeline has not consumed the previous event yet, the new one is
// dropped and counted, never queued up.
package wake

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/voxahq/voxa/pkg/provider/wakeword"
	"github.com/voxahq/voxa/pkg/types"
)

// DefaultSmoothing is the rolling-average window length in frames when
// WithSmoothing is not given. Binary engines must hold a hit score for at
// least DefaultSmoothing plus dwell frames to survive the averaging; wrap
// them in wakeword.Latch.
const DefaultSmoothing = 3

// Event is a single wake trigger.
type Event struct {
	// At is when the trigger fired.
	At time.Time

	// Score is the smoothed score at the moment of the trigger.
	Score float64
}

// Option customises a Detector.
type Option func(*Detector)

// WithThreshold sets the smoothed-score trigger threshold. Default: 0.5.
func WithThreshold(v float64) Option {
	return func(d *Detector) { d.threshold = v }
}

// WithDwell sets how many consecutive frames must stay above the threshold
// before the detector fires. Default: 2.
func WithDwell(n int) Option {
	return func(d *Detector) { d.dwell = n }
}

// WithCooldown sets the re-trigger suppression period. Default: 2s.
func WithCooldown(v time.Duration) Option {
	return func(d *Detector) { d.cooldown = v }
}

// WithSmoothing sets the rolling-average window length in frames.
// Default: DefaultSmoothing.
func WithSmoothing(n int) Option {
	return func(d *Detector) { d.smoothing = n }
}

// Detector converts engine scores into debounced wake events.
//
// Feed must be called from a single goroutine (the ingestion loop); Events,
// Rearm, and BusyDrops are safe to use from other goroutines.
type Detector struct {
	engine    wakeword.Engine
	threshold float64
	dwell     int
	cooldown  time.Duration
	smoothing int

	buf         []int16   // partial engine frame carried between Feed calls
	recent      []float64 // rolling score window
	above       int       // consecutive frames with smoothed score above threshold
	lastTrigger time.Time

	events    chan Event
	busyDrops atomic.Uint64
}

// New creates a Detector around engine.
func New(engine wakeword.Engine, opts ...Option) *Detector {
	d := &Detector{
		engine:    engine,
		threshold: 0.5,
		dwell:     2,
		cooldown:  2 * time.Second,
		smoothing: DefaultSmoothing,
		events:    make(chan Event, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.dwell < 1 {
		d.dwell = 1
	}
	if d.smoothing < 1 {
		d.smoothing = 1
	}
	return d
}

// Events returns the single-slot trigger channel.
func (d *Detector) Events() <-chan Event {
	return d.events
}

// BusyDrops reports how many triggers were discarded because the pipeline
// was busy: the pending slot was occupied, or the trigger was still
// unconsumed when the session re-armed.
func (d *Detector) BusyDrops() uint64 {
	return d.busyDrops.Load()
}

// Feed scores one captured frame. The frame is chunked to the engine's
// native frame length; partial chunks are carried over to the next call.
func (d *Detector) Feed(frame types.AudioFrame) error {
	d.buf = append(d.buf, frame.PCM...)

	n := d.engine.FrameLength()
	for len(d.buf) >= n {
		chunk := d.buf[:n]
		d.buf = d.buf[n:]

		score, err := d.engine.Process(chunk)
		if err != nil {
			return err
		}
		d.observe(score, frame.Timestamp)
	}
	return nil
}

// observe folds one engine score into the dwell/cool-down state machine.
func (d *Detector) observe(score float64, at time.Time) {
	d.recent = append(d.recent, score)
	if len(d.recent) > d.smoothing {
		d.recent = d.recent[1:]
	}
	var sum float64
	for _, s := range d.recent {
		sum += s
	}
	avg := sum / float64(len(d.recent))

	if avg <= d.threshold {
		d.above = 0
		return
	}
	d.above++
	if d.above < d.dwell {
		return
	}

	// Dwell satisfied. Reset so a sustained score does not fire per frame.
	d.above = 0
	d.recent = d.recent[:0]

	if !d.lastTrigger.IsZero() && time.Since(d.lastTrigger) < d.cooldown {
		return
	}
	d.lastTrigger = time.Now()

	if at.IsZero() {
		at = d.lastTrigger
	}
	select {
	case d.events <- Event{At: at, Score: avg}:
	default:
		d.busyDrops.Add(1)
		slog.Debug("wake: trigger dropped, pending slot occupied", "score", avg)
	}
}

// Rearm discards any unconsumed trigger. Call it when the session returns to
// idle so a stale trigger from the previous utterance does not start a new
// one. A discarded trigger counts as a busy drop and is logged, same as the
// drop-on-arrival path. Safe to call from any goroutine.
func (d *Detector) Rearm() {
	select {
	case ev := <-d.events:
		d.busyDrops.Add(1)
		slog.Info("wake: pending trigger discarded on re-arm", "score", ev.Score)
	default:
	}
}
