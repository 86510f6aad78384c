// Package stt defines the Engine interface for on-device speech-to-text
// backends.
//
// Unlike a streaming dictation API, the Voxa pipeline transcribes one bounded
// audio window per wake event: the recognizer accumulates frames until
// silence or the window cap, then hands the whole window to an Engine. This
// keeps the engine surface small and lets the vosk and whisper.cpp backends
// share one contract.
//
// Implementations must be safe for concurrent use; the pipeline may probe an
// engine from the health checker while a recognition is in flight.
package stt

import (
	"context"
	"errors"

	"github.com/voxahq/voxa/pkg/types"
)

// ErrNoSpeech is returned when the engine finds no transcribable speech in
// the window.
var ErrNoSpeech = errors.New("stt: no speech in audio window")

// Engine transcribes a bounded audio window.
type Engine interface {
	// Transcribe decodes one window of 16-bit mono PCM at the given sample
	// rate and returns the transcript with an overall confidence score.
	// Returns ErrNoSpeech when the window decodes to an empty hypothesis.
	Transcribe(ctx context.Context, pcm []int16, sampleRate int) (types.Transcript, error)

	// Close releases model resources. Calling Close more than once is safe.
	Close() error
}

// PhraseDecoder decodes a short audio window against a closed vocabulary.
// It is the fast path used by the keyword spotter: a grammar-constrained
// decode is much cheaper than full transcription. Engines that cannot
// constrain their vocabulary simply do not implement this interface.
type PhraseDecoder interface {
	// DecodePhrase returns the best vocabulary hypothesis for the window and
	// its confidence. An empty hypothesis with a nil error means the decoder
	// heard nothing usable.
	DecodePhrase(ctx context.Context, pcm []int16, sampleRate int) (string, float64, error)
}
