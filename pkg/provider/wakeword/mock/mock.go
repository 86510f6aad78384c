// Package mock provides a test double for the wakeword package interfaces.
//
// Use Engine to feed a scripted sequence of per-frame scores into the wake
// detector. When the script is exhausted, Process returns 0.
package mock

import (
	"sync"

	"github.com/voxahq/voxa/pkg/provider/wakeword"
)

// Engine is a mock implementation of wakeword.Engine.
type Engine struct {
	mu sync.Mutex

	// Scores is the scripted sequence of scores returned by successive
	// Process calls. When exhausted, Process returns 0.
	Scores []float64

	// Err, if non-nil, is returned by every Process call.
	Err error

	// Frames is the frame length reported by FrameLength. Defaults to 512.
	Frames int

	// Rate is the sample rate reported by SampleRate. Defaults to 16000.
	Rate int

	// ProcessCalls counts Process invocations.
	ProcessCalls int

	closed bool
}

// Ensure Engine implements wakeword.Engine at compile time.
var _ wakeword.Engine = (*Engine)(nil)

// Process pops the next scripted score.
func (e *Engine) Process(_ []int16) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, wakeword.ErrClosed
	}
	e.ProcessCalls++
	if e.Err != nil {
		return 0, e.Err
	}
	if len(e.Scores) == 0 {
		return 0, nil
	}
	score := e.Scores[0]
	e.Scores = e.Scores[1:]
	return score, nil
}

// FrameLength returns Frames or the 512-sample default.
func (e *Engine) FrameLength() int {
	if e.Frames > 0 {
		return e.Frames
	}
	return 512
}

// SampleRate returns Rate or the 16 kHz default.
func (e *Engine) SampleRate() int {
	if e.Rate > 0 {
		return e.Rate
	}
	return 16000
}

// Close marks the engine closed; subsequent Process calls fail.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
