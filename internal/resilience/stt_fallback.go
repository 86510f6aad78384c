package resilience

import (
	"context"

	"github.com/voxahq/voxa/pkg/provider/stt"
	"github.com/voxahq/voxa/pkg/types"
)

// STTFallback implements [stt.Engine] with automatic failover across multiple
// speech-to-text backends. Each backend has its own circuit breaker.
//
// An optional acceptance function lets the caller treat a successful but
// unusable transcript (for example, below the confidence floor) as a failure,
// which pushes the request to the next backend.
type STTFallback struct {
	group  *FallbackGroup[stt.Engine]
	accept func(types.Transcript) error
}

// Compile-time interface assertion.
var _ stt.Engine = (*STTFallback)(nil)

// STTOption customises an [STTFallback].
type STTOption func(*STTFallback)

// WithAcceptance installs a transcript acceptance check. When accept returns
// a non-nil error the transcript is discarded and the next backend is tried.
func WithAcceptance(accept func(types.Transcript) error) STTOption {
	return func(f *STTFallback) {
		f.accept = accept
	}
}

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Engine, primaryName string, cfg FallbackConfig, opts ...STTOption) *STTFallback {
	f := &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AddFallback registers an additional STT engine as a fallback.
func (f *STTFallback) AddFallback(name string, engine stt.Engine) {
	f.group.AddFallback(name, engine)
}

// Transcribe runs the utterance through the first healthy backend whose
// transcript passes the acceptance check.
func (f *STTFallback) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (types.Transcript, error) {
	return ExecuteWithResult(f.group, func(e stt.Engine) (types.Transcript, error) {
		tr, err := e.Transcribe(ctx, pcm, sampleRate)
		if err != nil {
			return types.Transcript{}, err
		}
		if f.accept != nil {
			if err := f.accept(tr); err != nil {
				return types.Transcript{}, err
			}
		}
		return tr, nil
	})
}

// Close closes every backend in the group. The first error wins.
func (f *STTFallback) Close() error {
	var firstErr error
	f.group.Each(func(_ string, e stt.Engine) {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}
