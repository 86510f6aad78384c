// Package porcupine implements the wakeword.Engine interface using the
// Picovoice Porcupine binding.
//
// Porcupine produces a binary detection per frame rather than a continuous
// score, so Process reports 1.0 when the keyword fires and 0.0 otherwise;
// the rolling-confidence smoothing in internal/wake handles the rest.
package porcupine

import (
	"errors"
	"fmt"
	"sync"

	pv "github.com/Picovoice/porcupine/binding/go"

	"github.com/voxahq/voxa/pkg/provider/wakeword"
)

// Compile-time assertion that Engine satisfies wakeword.Engine.
var _ wakeword.Engine = (*Engine)(nil)

// Config holds the Porcupine model parameters.
type Config struct {
	// AccessKey is the Picovoice console access key.
	AccessKey string

	// KeywordPath is the path to the trained .ppn keyword file for the wake
	// phrase ("Hey Voxa").
	KeywordPath string

	// ModelPath optionally overrides the default acoustic model (.pv file).
	ModelPath string

	// Sensitivity trades false-accepts against false-rejects, 0.0–1.0.
	// Default: 0.5.
	Sensitivity float32
}

// Engine wraps a Porcupine instance.
type Engine struct {
	mu     sync.Mutex
	p      pv.Porcupine
	closed bool
}

// New initialises a Porcupine engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.AccessKey == "" {
		return nil, errors.New("porcupine: access key must not be empty")
	}
	if cfg.KeywordPath == "" {
		return nil, errors.New("porcupine: keyword path must not be empty")
	}
	sensitivity := cfg.Sensitivity
	if sensitivity <= 0 {
		sensitivity = 0.5
	}

	p := pv.Porcupine{
		AccessKey:     cfg.AccessKey,
		KeywordPaths:  []string{cfg.KeywordPath},
		ModelPath:     cfg.ModelPath,
		Sensitivities: []float32{sensitivity},
	}
	if err := p.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init: %w", err)
	}
	return &Engine{p: p}, nil
}

// Process scores one frame. Porcupine reports the index of the detected
// keyword or -1; with a single keyword the result collapses to hit/no-hit.
func (e *Engine) Process(frame []int16) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, wakeword.ErrClosed
	}

	idx, err := e.p.Process(frame)
	if err != nil {
		return 0, fmt.Errorf("porcupine: process: %w", err)
	}
	if idx >= 0 {
		return 1.0, nil
	}
	return 0.0, nil
}

// FrameLength returns the sample count Porcupine requires per frame.
func (e *Engine) FrameLength() int { return pv.FrameLength }

// SampleRate returns the sample rate Porcupine operates at (16 kHz).
func (e *Engine) SampleRate() int { return pv.SampleRate }

// Close releases the underlying Porcupine resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.p.Delete()
	return nil
}
