// Package phonetic ranks noisy speech hypotheses against known phrases using
// Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity.
//
// The matcher runs in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word of the hypothesis and each candidate phrase. A candidate with
//     any overlapping code passes at the lower phonetic threshold.
//
//  2. Jaro-Winkler ranking: candidates are ranked by their best similarity
//     score; phrases without phonetic overlap need to clear the stricter
//     fuzzy threshold instead.
//
// Multi-word phrases are supported: scores are computed on the full strings,
// the space-stripped strings, and the best pairwise word alignment, and the
// highest of the three wins. This absorbs the usual STT damage — split
// words, merged words, and near-homophones.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-overlapping candidate to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when a
// candidate has no phonetic overlap with the hypothesis. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher ranks candidate phrases against a spoken hypothesis. All methods
// are safe for concurrent use — the Matcher is read-only after construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the candidate most phonetically similar to hypothesis.
//
// When matched is false, best equals hypothesis unchanged and score is 0.
func (m *Matcher) Match(hypothesis string, candidates []string) (best string, score float64, matched bool) {
	if len(candidates) == 0 || strings.TrimSpace(hypothesis) == "" {
		return hypothesis, 0, false
	}

	hypLower := strings.ToLower(strings.TrimSpace(hypothesis))
	hypTokens := strings.Fields(hypLower)
	hypCodes := codesForTokens(hypTokens)

	type ranked struct {
		phrase   string
		score    float64
		phonetic bool
	}

	var top ranked

	for _, cand := range candidates {
		candLower := strings.ToLower(strings.TrimSpace(cand))
		if candLower == "" {
			continue
		}
		candTokens := strings.Fields(candLower)

		overlap := codesOverlap(hypCodes, codesForTokens(candTokens))
		jw := Score(hypLower, candLower)

		if overlap {
			if jw >= m.phoneticThreshold {
				if !top.phonetic || jw > top.score {
					top = ranked{phrase: cand, score: jw, phonetic: true}
				}
			}
		} else if !top.phonetic {
			if jw >= m.fuzzyThreshold && jw > top.score {
				top = ranked{phrase: cand, score: jw, phonetic: false}
			}
		}
	}

	if top.phrase != "" {
		return top.phrase, top.score, true
	}
	return hypothesis, 0, false
}

// Score computes the highest Jaro-Winkler similarity between two phrases
// using three alignments: the full strings, the space-stripped strings, and
// the best pairwise word score. Inputs are compared as given; callers that
// want case-insensitive scores lower-case first.
func Score(a, b string) float64 {
	score := matchr.JaroWinkler(a, b, false)

	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}

	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}

	return score
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or contains
// no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
