package spotter

import (
	"context"
	"errors"
	"testing"
	"time"

	sttmock "github.com/voxahq/voxa/pkg/provider/stt/mock"
)

func TestSpot_ExactToken(t *testing.T) {
	t.Parallel()

	dec := &sttmock.Decoder{Text: "pause", Confidence: 0.95}
	s := New(dec)

	tok, conf, err := s.Spot(context.Background(), make([]int16, 4800), 16000)
	if err != nil {
		t.Fatalf("Spot: unexpected error: %v", err)
	}
	if tok != "pause" {
		t.Errorf("token = %q, want %q", tok, "pause")
	}
	if conf < 0.8 {
		t.Errorf("confidence = %f, want >= 0.8 for an exact hit", conf)
	}
	if dec.Calls != 1 {
		t.Errorf("decoder calls = %d, want 1", dec.Calls)
	}
}

func TestSpot_PhoneticallyDamagedToken(t *testing.T) {
	t.Parallel()

	// "shuffle on" heard as "shufle on".
	dec := &sttmock.Decoder{Text: "shufle on", Confidence: 0.8}
	s := New(dec)

	tok, _, err := s.Spot(context.Background(), make([]int16, 4800), 16000)
	if err != nil {
		t.Fatalf("Spot: unexpected error: %v", err)
	}
	if tok != "shuffle on" {
		t.Errorf("token = %q, want %q", tok, "shuffle on")
	}
}

func TestSpot_NoMatch(t *testing.T) {
	t.Parallel()

	dec := &sttmock.Decoder{Text: "photosynthesis", Confidence: 0.9}
	s := New(dec)

	_, _, err := s.Spot(context.Background(), make([]int16, 4800), 16000)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestSpot_EmptyHypothesis(t *testing.T) {
	t.Parallel()

	dec := &sttmock.Decoder{Text: "", Confidence: 0}
	s := New(dec)

	_, _, err := s.Spot(context.Background(), make([]int16, 4800), 16000)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestSpot_DecoderError(t *testing.T) {
	t.Parallel()

	dec := &sttmock.Decoder{Err: errors.New("model not loaded")}
	s := New(dec)

	_, _, err := s.Spot(context.Background(), make([]int16, 4800), 16000)
	if err == nil {
		t.Fatal("expected error from failing decoder")
	}
	if errors.Is(err, ErrNoMatch) {
		t.Fatalf("decoder failure must not be reported as ErrNoMatch: %v", err)
	}
}

func TestSpot_CustomVocabulary(t *testing.T) {
	t.Parallel()

	dec := &sttmock.Decoder{Text: "lights off", Confidence: 0.9}
	s := New(dec, WithVocabulary([]string{"lights on", "lights off"}))

	tok, _, err := s.Spot(context.Background(), make([]int16, 4800), 16000)
	if err != nil {
		t.Fatalf("Spot: unexpected error: %v", err)
	}
	if tok != "lights off" {
		t.Errorf("token = %q, want %q", tok, "lights off")
	}
}

func TestSpot_DeadlineCutsSlowDecoder(t *testing.T) {
	t.Parallel()

	s := New(slowDecoder{}, WithWindow(20*time.Millisecond))

	start := time.Now()
	_, _, err := s.Spot(context.Background(), make([]int16, 4800), 16000)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch from deadline", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Spot took %v, deadline did not cut the decode", elapsed)
	}
}

func TestWindowAndVocabularyAccessors(t *testing.T) {
	t.Parallel()

	s := New(&sttmock.Decoder{}, WithWindow(250*time.Millisecond))
	if s.Window() != 250*time.Millisecond {
		t.Errorf("Window = %v, want 250ms", s.Window())
	}

	vocab := s.Vocabulary()
	if len(vocab) == 0 {
		t.Fatal("Vocabulary is empty")
	}
	vocab[0] = "mutated"
	if s.Vocabulary()[0] == "mutated" {
		t.Error("Vocabulary returned internal slice, want a copy")
	}
}

// slowDecoder blocks until its context is cancelled.
type slowDecoder struct{}

func (slowDecoder) DecodePhrase(ctx context.Context, _ []int16, _ int) (string, float64, error) {
	<-ctx.Done()
	return "", 0, ctx.Err()
}
