// Package vosk implements the stt.Engine and stt.PhraseDecoder interfaces
// using the Kaldi-based vosk-api binding.
//
// The model is loaded once and shared; each Transcribe call creates a fresh
// recognizer so concurrent calls do not share decoder state. Word-level
// confidences are enabled so the pipeline can compute a usable overall
// transcript confidence (vosk does not report one directly).
package vosk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	vosklib "github.com/alphacep/vosk-api/go"

	"github.com/voxahq/voxa/pkg/provider/stt"
	"github.com/voxahq/voxa/pkg/types"
)

// Compile-time assertions for the stt interfaces.
var (
	_ stt.Engine        = (*Engine)(nil)
	_ stt.PhraseDecoder = (*Engine)(nil)
)

// Engine wraps a shared vosk model.
type Engine struct {
	mu      sync.Mutex
	model   *vosklib.VoskModel
	grammar string // JSON list of spotter vocabulary, empty = unconstrained
	closed  bool
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithGrammar restricts DecodePhrase to the given vocabulary. The special
// token "[unk]" is appended automatically so out-of-vocabulary speech decodes
// to unknown instead of the nearest vocabulary entry.
func WithGrammar(vocabulary []string) Option {
	return func(e *Engine) {
		withUnk := make([]string, 0, len(vocabulary)+1)
		for _, v := range vocabulary {
			withUnk = append(withUnk, strings.ToLower(v))
		}
		withUnk = append(withUnk, "[unk]")
		data, err := json.Marshal(withUnk)
		if err != nil {
			return
		}
		e.grammar = string(data)
	}
}

// New loads the vosk model from modelPath.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("vosk: model path must not be empty")
	}
	model, err := vosklib.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("vosk: load model %q: %w", modelPath, err)
	}
	e := &Engine{model: model}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// fullResult mirrors the JSON vosk emits from FinalResult with SetWords(1).
type fullResult struct {
	Text   string `json:"text"`
	Result []struct {
		Word  string  `json:"word"`
		Conf  float64 `json:"conf"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"result"`
}

// Transcribe decodes the whole window with an unconstrained recognizer.
func (e *Engine) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("vosk: %w", err)
	}

	raw, err := e.decode(pcm, sampleRate, "")
	if err != nil {
		return types.Transcript{}, err
	}

	var res fullResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return types.Transcript{}, fmt.Errorf("vosk: unmarshal result: %w", err)
	}
	if strings.TrimSpace(res.Text) == "" {
		return types.Transcript{}, stt.ErrNoSpeech
	}

	t := types.Transcript{Text: res.Text}
	if len(res.Result) > 0 {
		var sum float64
		for _, w := range res.Result {
			sum += w.Conf
			t.Words = append(t.Words, types.WordDetail{
				Word:       w.Word,
				Start:      time.Duration(w.Start * float64(time.Second)),
				End:        time.Duration(w.End * float64(time.Second)),
				Confidence: w.Conf,
			})
		}
		t.Confidence = sum / float64(len(res.Result))
	}
	return t, nil
}

// DecodePhrase decodes the window with the grammar-constrained recognizer.
// Requires WithGrammar at construction; otherwise it behaves like an
// unconstrained decode of the best single hypothesis.
func (e *Engine) DecodePhrase(ctx context.Context, pcm []int16, sampleRate int) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, fmt.Errorf("vosk: %w", err)
	}

	raw, err := e.decode(pcm, sampleRate, e.grammar)
	if err != nil {
		return "", 0, err
	}

	var res fullResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return "", 0, fmt.Errorf("vosk: unmarshal result: %w", err)
	}

	text := strings.TrimSpace(strings.ReplaceAll(res.Text, "[unk]", ""))
	if text == "" {
		return "", 0, nil
	}
	conf := 1.0
	if len(res.Result) > 0 {
		var sum float64
		for _, w := range res.Result {
			sum += w.Conf
		}
		conf = sum / float64(len(res.Result))
	}
	return text, conf, nil
}

// decode runs one recognizer over the window and returns the final JSON.
func (e *Engine) decode(pcm []int16, sampleRate int, grammar string) (string, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", fmt.Errorf("vosk: engine is closed")
	}
	model := e.model
	e.mu.Unlock()

	var (
		rec *vosklib.VoskRecognizer
		err error
	)
	if grammar != "" {
		rec, err = vosklib.NewRecognizerGrm(model, float64(sampleRate), grammar)
	} else {
		rec, err = vosklib.NewRecognizer(model, float64(sampleRate))
	}
	if err != nil {
		return "", fmt.Errorf("vosk: create recognizer: %w", err)
	}
	defer rec.Free()
	rec.SetWords(1)

	rec.AcceptWaveform(pcmToBytes(pcm))
	return rec.FinalResult(), nil
}

// Close releases the model.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.model.Free()
	return nil
}

// pcmToBytes converts int16 samples to the little-endian byte layout vosk
// expects.
func pcmToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
