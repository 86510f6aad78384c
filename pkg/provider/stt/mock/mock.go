// Package mock provides test doubles for the stt package interfaces.
//
// Use Engine to return a scripted Transcript (or error) from Transcribe, and
// Decoder to script the keyword spotter's fast path.
package mock

import (
	"context"
	"sync"

	"github.com/voxahq/voxa/pkg/provider/stt"
	"github.com/voxahq/voxa/pkg/types"
)

// Engine is a mock implementation of stt.Engine.
type Engine struct {
	mu sync.Mutex

	// Transcript is returned from Transcribe when Err is nil.
	Transcript types.Transcript

	// Err, if non-nil, is returned from Transcribe.
	Err error

	// Windows records the sample count of every transcribed window.
	Windows []int

	// Closed reports whether Close was called.
	Closed bool
}

// Ensure Engine implements stt.Engine at compile time.
var _ stt.Engine = (*Engine)(nil)

// Transcribe records the window length and returns the scripted result.
func (e *Engine) Transcribe(_ context.Context, pcm []int16, _ int) (types.Transcript, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Windows = append(e.Windows, len(pcm))
	if e.Err != nil {
		return types.Transcript{}, e.Err
	}
	return e.Transcript, nil
}

// Close marks the engine closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Closed = true
	return nil
}

// Decoder is a mock implementation of stt.PhraseDecoder.
type Decoder struct {
	mu sync.Mutex

	// Text and Confidence are returned from DecodePhrase when Err is nil.
	Text       string
	Confidence float64

	// Err, if non-nil, is returned from DecodePhrase.
	Err error

	// Calls counts DecodePhrase invocations.
	Calls int
}

// Ensure Decoder implements stt.PhraseDecoder at compile time.
var _ stt.PhraseDecoder = (*Decoder)(nil)

// DecodePhrase returns the scripted hypothesis.
func (d *Decoder) DecodePhrase(_ context.Context, _ []int16, _ int) (string, float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls++
	if d.Err != nil {
		return "", 0, d.Err
	}
	return d.Text, d.Confidence, nil
}
