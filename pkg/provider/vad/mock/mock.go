// Package mock provides a test double for the vad package interfaces.
//
// Use Detector to feed a scripted sequence of events into the recognizer's
// silence-termination logic. When the script is exhausted, ProcessFrame
// returns Silence.
package mock

import (
	"sync"

	"github.com/voxahq/voxa/pkg/provider/vad"
)

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Events is the scripted sequence returned by successive ProcessFrame
	// calls. When exhausted, ProcessFrame returns Silence.
	Events []vad.Event

	// Frames counts ProcessFrame invocations.
	Frames int

	// Resets counts Reset invocations.
	Resets int
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)

// ProcessFrame pops the next scripted event.
func (d *Detector) ProcessFrame(_ []int16) vad.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Frames++
	if len(d.Events) == 0 {
		return vad.Event{Type: vad.Silence}
	}
	ev := d.Events[0]
	d.Events = d.Events[1:]
	return ev
}

// Reset records the call.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Resets++
}
