package phonetic_test

import (
	"testing"

	"github.com/voxahq/voxa/internal/phonetic"
)

func TestMatcher_NearHomophone(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	// A mangled STT hypothesis should still land on the right title.
	candidates := []string{"Thriller", "Billie Jean", "Beat It"}

	best, conf, matched := m.Match("thriler", candidates)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "thriler")
	}
	if best != "Thriller" {
		t.Errorf("Match(%q): best=%q, want %q", "thriler", best, "Thriller")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): score=%f, want >= 0.7", "thriler", conf)
	}
}

func TestMatcher_MultiWordPhrase(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	candidates := []string{"Billie Jean", "Thriller", "Smooth Criminal"}

	// Merged words are handled by the space-stripped alignment.
	best, conf, matched := m.Match("billiejean", candidates)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "billiejean")
	}
	if best != "Billie Jean" {
		t.Errorf("Match(%q): best=%q, want %q", "billiejean", best, "Billie Jean")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): score=%f, want >= 0.7", "billiejean", conf)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	candidates := []string{"Thriller", "Billie Jean"}

	best, conf, matched := m.Match("xylophone", candidates)
	if matched {
		t.Fatalf("Match(%q): matched=true, want false", "xylophone")
	}
	if best != "xylophone" {
		t.Errorf("Match(%q): best=%q, want original hypothesis", "xylophone", best)
	}
	if conf != 0 {
		t.Errorf("Match(%q): score=%f, want 0", "xylophone", conf)
	}
}

func TestMatcher_CaseInsensitivity(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	candidates := []string{"Thriller"}

	best, _, matched := m.Match("THRILLER", candidates)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "THRILLER")
	}
	// The original candidate casing is returned.
	if best != "Thriller" {
		t.Errorf("Match(%q): best=%q, want %q", "THRILLER", best, "Thriller")
	}
}

func TestMatcher_ExactMatchScoresHigh(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	candidates := []string{"pause", "resume", "skip"}

	best, conf, matched := m.Match("pause", candidates)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "pause")
	}
	if best != "pause" {
		t.Errorf("Match(%q): best=%q, want %q", "pause", best, "pause")
	}
	if conf < 0.9 {
		t.Errorf("Match(%q): score=%f, want >= 0.9 for exact match", "pause", conf)
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	candidates := []string{"Thriller"}

	_, _, matched := m.Match("thriler", candidates)
	if matched {
		t.Fatal("Match with threshold=0.99 should reject near-matches")
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	if _, _, matched := m.Match("thriller", nil); matched {
		t.Error("Match with no candidates should return matched=false")
	}
	if _, _, matched := m.Match("", []string{"Thriller"}); matched {
		t.Error("Match with empty hypothesis should return matched=false")
	}
}

func TestScore_Symmetric(t *testing.T) {
	t.Parallel()

	a := phonetic.Score("billie jean", "billiejean")
	b := phonetic.Score("billiejean", "billie jean")
	if a != b {
		t.Errorf("Score not symmetric: %f vs %f", a, b)
	}
	if a < 0.9 {
		t.Errorf("Score(%q, %q) = %f, want >= 0.9", "billie jean", "billiejean", a)
	}
}
