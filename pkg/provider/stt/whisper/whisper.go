// Package whisper implements the stt.Engine interface using the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// must be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//
// Whisper is the fallback engine: slower than vosk but markedly more robust
// on noisy windows, which is exactly the case where the primary decode has
// already failed.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxahq/voxa/pkg/provider/stt"
	"github.com/voxahq/voxa/pkg/types"
)

// Compile-time assertion that Engine satisfies stt.Engine.
var _ stt.Engine = (*Engine)(nil)

const defaultLanguage = "en"

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLanguage sets the transcription language code (e.g., "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// Engine wraps a shared whisper.cpp model. The model is loaded once; each
// Transcribe call creates its own whisper context because contexts are not
// thread-safe while the model is.
type Engine struct {
	mu       sync.Mutex
	model    whisperlib.Model
	language string
	closed   bool
}

// New loads the whisper.cpp model from modelPath.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	e := &Engine{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Transcribe runs whisper inference over the window.
//
// Whisper does not report per-word confidence, so the transcript carries a
// fixed mid-high confidence; the recognizer's usability threshold is tuned
// with that in mind.
func (e *Engine) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: %w", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return types.Transcript{}, errors.New("whisper: engine is closed")
	}
	model := e.model
	lang := e.language
	e.mu.Unlock()

	wctx, err := model.NewContext()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: set language %q: %w", lang, err)
	}

	samples := pcmToFloat32(pcm)
	if err := wctx.Process(samples, nil, nil); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	text := strings.Join(parts, " ")
	if text == "" {
		return types.Transcript{}, stt.ErrNoSpeech
	}
	return types.Transcript{Text: text, Confidence: 0.8}, nil
}

// Close releases the whisper model.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.model.Close()
}

// pcmToFloat32 converts int16 samples to the normalized float32 samples
// whisper.cpp expects.
func pcmToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}
