// Package vad defines the Detector interface for voice-activity detection.
//
// A VAD detector classifies individual audio frames as speech or silence.
// It is synchronous by design: ProcessFrame returns immediately, making it
// suitable for the low-latency stages that gate the speech recognizer —
// startup-deadline detection and trailing-silence termination both sit on
// top of this interface.
//
// A single Detector holds per-stream smoothing state and should not be
// shared across goroutines unless the implementation documents otherwise.
package vad

// EventType enumerates VAD detection states.
type EventType int

const (
	// SpeechStart indicates speech has just begun.
	SpeechStart EventType = iota

	// SpeechContinue indicates ongoing speech.
	SpeechContinue

	// SpeechEnd indicates speech has just ended.
	SpeechEnd

	// Silence indicates no speech detected.
	Silence
)

// String returns the human-readable name of the event type.
func (t EventType) String() string {
	switch t {
	case SpeechStart:
		return "speech-start"
	case SpeechContinue:
		return "speech-continue"
	case SpeechEnd:
		return "speech-end"
	default:
		return "silence"
	}
}

// Event is the detection result for a single audio frame.
type Event struct {
	// Type is the detection result.
	Type EventType

	// Energy is the detector's raw activity measure for the frame. The scale
	// is implementation-specific; it exists for logging and tuning only.
	Energy float64
}

// Detector classifies audio frames as speech or silence.
type Detector interface {
	// ProcessFrame analyses one frame of 16-bit mono PCM and returns the
	// detection result. It must not block.
	ProcessFrame(frame []int16) Event

	// Reset clears accumulated smoothing state. Use between recognition
	// windows so a stale speech run does not bleed into the next window.
	Reset()
}
