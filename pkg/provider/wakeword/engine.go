// Package wakeword defines the Engine interface for wake-word detection
// backends.
//
// A wake-word engine wraps a small-footprint acoustic model (e.g., Picovoice
// Porcupine) that scores every incoming audio frame for the trigger phrase.
// Scoring is synchronous by design: Process returns immediately, making it
// suitable for the continuous ingestion loop that must never block frame
// capture. Dwell, cool-down, and re-arm policy live above the engine in
// internal/wake.
package wakeword

import "errors"

// ErrClosed is returned by Process after the engine has been closed.
var ErrClosed = errors.New("wakeword: engine is closed")

// Engine scores audio frames for the wake phrase.
//
// A single Engine instance is owned by one ingestion loop and need not be
// safe for concurrent use unless the implementation documents otherwise.
type Engine interface {
	// Process scores one frame of 16-bit mono PCM and returns the wake-phrase
	// confidence in [0.0, 1.0]. The frame length must equal FrameLength.
	//
	// Process must not block; models that only produce binary detections
	// report 1.0 on a hit and 0.0 otherwise.
	Process(frame []int16) (float64, error)

	// FrameLength is the exact number of samples Process expects per call.
	FrameLength() int

	// SampleRate is the audio sample rate in Hz the model was trained for.
	SampleRate() int

	// Close releases model resources. Calling Close more than once is safe.
	Close() error
}
