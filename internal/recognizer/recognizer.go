// Package recognizer implements the bounded speech-recognition window.
//
// After a wake event (and a spotter miss) the pipeline routes captured
// frames here. The recognizer accumulates them into a window that is
// terminated by trailing silence or by the hard maximum duration, whichever
// comes first, and then hands the window to the speech-to-text engine. A
// window that never shows speech energy inside the startup deadline is
// abandoned — the user probably triggered the wake word by accident.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxahq/voxa/pkg/provider/stt"
	"github.com/voxahq/voxa/pkg/provider/vad"
	"github.com/voxahq/voxa/pkg/types"
)

var (
	// ErrRecognitionTimeout is returned when no speech energy appears within
	// the startup deadline.
	ErrRecognitionTimeout = errors.New("recognizer: no speech within startup deadline")

	// ErrLowConfidence is returned when the transcript confidence is below
	// the usability floor.
	ErrLowConfidence = errors.New("recognizer: transcript confidence too low")
)

// Option customises a Recognizer.
type Option func(*Recognizer)

// WithStartupDeadline sets how long the recognizer waits for the first
// speech energy. Default: 2s.
func WithStartupDeadline(d time.Duration) Option {
	return func(r *Recognizer) { r.startupDeadline = d }
}

// WithTrailingSilence sets the silence run that terminates the window.
// Default: 700ms.
func WithTrailingSilence(d time.Duration) Option {
	return func(r *Recognizer) { r.trailingSilence = d }
}

// WithMaxWindow sets the hard window cap. Default: 8s.
func WithMaxWindow(d time.Duration) Option {
	return func(r *Recognizer) { r.maxWindow = d }
}

// WithMinConfidence sets the transcript usability floor. Default: 0.55.
func WithMinConfidence(v float64) Option {
	return func(r *Recognizer) { r.minConfidence = v }
}

// Recognizer turns a stream of captured frames into one Transcript.
//
// A Recognizer runs one window at a time; the pipeline guarantees a single
// recognition window is in flight.
type Recognizer struct {
	engine   stt.Engine
	detector vad.Detector

	startupDeadline time.Duration
	trailingSilence time.Duration
	maxWindow       time.Duration
	minConfidence   float64
}

// New creates a Recognizer over engine and detector. The engine is typically
// a resilience.STTFallback (vosk primary, whisper fallback) but any
// stt.Engine works.
func New(engine stt.Engine, detector vad.Detector, opts ...Option) *Recognizer {
	r := &Recognizer{
		engine:          engine,
		detector:        detector,
		startupDeadline: 2 * time.Second,
		trailingSilence: 700 * time.Millisecond,
		maxWindow:       8 * time.Second,
		minConfidence:   0.55,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Listen accumulates frames until the window terminates, then transcribes it.
//
// Termination rules, in priority order:
//   - no speech energy within the startup deadline → ErrRecognitionTimeout
//   - trailing silence after speech → window closed, transcribed
//   - window reaches the hard cap → window closed, transcribed
//   - ctx cancelled or frames closed → ctx error / ErrRecognitionTimeout
func (r *Recognizer) Listen(ctx context.Context, frames <-chan types.AudioFrame) (types.Transcript, error) {
	r.detector.Reset()

	var (
		window     []int16
		sampleRate int
		start      = time.Now()

		speechSeen bool
		silence    time.Duration // trailing silence accumulated after speech
		captured   time.Duration // total audio accumulated in the window
	)

	startup := time.NewTimer(r.startupDeadline)
	defer startup.Stop()

collect:
	for {
		select {
		case <-ctx.Done():
			return types.Transcript{}, ctx.Err()

		case <-startup.C:
			if !speechSeen {
				return types.Transcript{}, ErrRecognitionTimeout
			}

		case frame, ok := <-frames:
			if !ok {
				if !speechSeen {
					return types.Transcript{}, ErrRecognitionTimeout
				}
				break collect
			}
			if sampleRate == 0 {
				sampleRate = frame.SampleRate
			}

			window = append(window, frame.PCM...)
			captured += frame.Duration()

			ev := r.detector.ProcessFrame(frame.PCM)
			switch ev.Type {
			case vad.SpeechStart, vad.SpeechContinue:
				speechSeen = true
				silence = 0
			case vad.SpeechEnd, vad.Silence:
				if speechSeen {
					silence += frame.Duration()
					if silence >= r.trailingSilence {
						break collect
					}
				}
			}

			if captured >= r.maxWindow {
				if !speechSeen {
					return types.Transcript{}, ErrRecognitionTimeout
				}
				break collect
			}
		}
	}

	tr, err := r.engine.Transcribe(ctx, window, sampleRate)
	if err != nil {
		if errors.Is(err, stt.ErrNoSpeech) {
			return types.Transcript{}, fmt.Errorf("recognizer: %w", ErrRecognitionTimeout)
		}
		return types.Transcript{}, fmt.Errorf("recognizer: transcribe: %w", err)
	}
	if tr.Confidence < r.minConfidence {
		return types.Transcript{}, fmt.Errorf("recognizer: %w (%.2f < %.2f)",
			ErrLowConfidence, tr.Confidence, r.minConfidence)
	}

	if tr.Start.IsZero() {
		tr.Start = start
	}
	if tr.End.IsZero() {
		tr.End = start.Add(captured)
	}
	return tr, nil
}
