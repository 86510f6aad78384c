// Package spotter implements the keyword fast path of the voice pipeline.
//
// Immediately after a wake event the pipeline hands the spotter a very short
// audio window. A grammar-constrained recognizer decodes it against a closed
// control vocabulary and the hypothesis is ranked phonetically. When the
// combined confidence clears the caller's threshold the pipeline
// short-circuits straight to intent interpretation, skipping the full
// transcription window entirely — "pause" should not cost a second of
// recognizer latency.
package spotter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxahq/voxa/internal/phonetic"
	"github.com/voxahq/voxa/pkg/provider/stt"
)

// ErrNoMatch is returned when the decoded window does not resemble any
// vocabulary token closely enough.
var ErrNoMatch = errors.New("spotter: no keyword match")

// Token is a matched control keyword, in vocabulary spelling.
type Token string

// DefaultVocabulary is the closed control vocabulary. Tokens map 1:1 to
// control intents; the interpreter resolves them without further parsing.
var DefaultVocabulary = []string{
	"pause",
	"resume",
	"play",
	"continue",
	"stop",
	"skip",
	"next",
	"shuffle on",
	"shuffle off",
	"louder",
	"quieter",
	"volume up",
	"volume down",
	"mute",
}

// Option customises a Spotter.
type Option func(*Spotter)

// WithVocabulary replaces the default vocabulary.
func WithVocabulary(vocab []string) Option {
	return func(s *Spotter) {
		s.vocab = append([]string(nil), vocab...)
	}
}

// WithWindow sets the maximum audio window the spotter accepts. Default:
// 300ms. The same duration bounds the decode deadline.
func WithWindow(d time.Duration) Option {
	return func(s *Spotter) { s.window = d }
}

// WithMatcher replaces the phonetic matcher.
func WithMatcher(m *phonetic.Matcher) Option {
	return func(s *Spotter) { s.matcher = m }
}

// Spotter matches a short post-wake audio window against the control
// vocabulary.
type Spotter struct {
	decoder stt.PhraseDecoder
	matcher *phonetic.Matcher
	vocab   []string
	window  time.Duration
}

// New creates a Spotter over decoder. The decoder is expected to be
// grammar-constrained to the vocabulary (e.g. a vosk recognizer built with
// stt/vosk.WithGrammar), but any PhraseDecoder works — the phonetic ranking
// does the final word.
func New(decoder stt.PhraseDecoder, opts ...Option) *Spotter {
	s := &Spotter{
		decoder: decoder,
		matcher: phonetic.New(),
		vocab:   DefaultVocabulary,
		window:  300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window reports the audio window the caller should collect before Spot.
func (s *Spotter) Window() time.Duration {
	return s.window
}

// Vocabulary returns the active vocabulary, for building the decoder grammar.
func (s *Spotter) Vocabulary() []string {
	return append([]string(nil), s.vocab...)
}

// Spot decodes the window and ranks the hypothesis against the vocabulary.
// The decode runs under a hard deadline equal to the window length: a slow
// decoder yields ErrNoMatch rather than delaying the full-recognition path.
func (s *Spotter) Spot(ctx context.Context, pcm []int16, sampleRate int) (Token, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.window)
	defer cancel()

	type decoded struct {
		text string
		conf float64
		err  error
	}
	ch := make(chan decoded, 1)
	go func() {
		text, conf, err := s.decoder.DecodePhrase(ctx, pcm, sampleRate)
		ch <- decoded{text: text, conf: conf, err: err}
	}()

	var dec decoded
	select {
	case dec = <-ch:
	case <-ctx.Done():
		return "", 0, fmt.Errorf("spotter: decode deadline: %w", ErrNoMatch)
	}
	if errors.Is(dec.err, context.DeadlineExceeded) {
		return "", 0, fmt.Errorf("spotter: decode deadline: %w", ErrNoMatch)
	}
	if dec.err != nil {
		return "", 0, fmt.Errorf("spotter: decode: %w", dec.err)
	}
	if dec.text == "" {
		return "", 0, ErrNoMatch
	}

	best, score, matched := s.matcher.Match(dec.text, s.vocab)
	if !matched {
		return "", 0, ErrNoMatch
	}

	conf := score
	if dec.conf > 0 {
		conf = score * dec.conf
	}
	return Token(best), conf, nil
}
