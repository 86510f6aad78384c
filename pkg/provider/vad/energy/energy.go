// Package energy implements the vad.Detector interface with a spectral-flux
// detector.
//
// Each frame is transformed with a real FFT; the positive change in
// per-bin magnitude against the previous frame (the spectral flux) is the
// activity measure. Flux tracks the onset of speech far better than plain
// RMS because steady background noise contributes almost nothing frame over
// frame. A frame counts as speech when its flux exceeds an adaptive multiple
// of the running noise floor.
package energy

import (
	"math"

	"github.com/mjibson/go-dsp/fft"

	"github.com/voxahq/voxa/pkg/provider/vad"
)

// Compile-time assertion that Detector satisfies vad.Detector.
var _ vad.Detector = (*Detector)(nil)

const (
	// defaultFluxRatio is how far above the noise floor a frame's flux must
	// rise to count as speech.
	defaultFluxRatio = 1.75

	// defaultFloorDecay controls how quickly the noise floor adapts toward
	// quieter input (exponential moving average weight of the new sample).
	defaultFloorDecay = 0.05

	// defaultHangoverFrames is how many non-speech frames are tolerated
	// inside a speech run before SpeechEnd fires. Keeps short intra-word
	// gaps from splitting an utterance.
	defaultHangoverFrames = 8
)

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithFluxRatio sets the speech threshold as a multiple of the running noise
// floor. Default: 1.75.
func WithFluxRatio(r float64) Option {
	return func(d *Detector) {
		if r > 1 {
			d.fluxRatio = r
		}
	}
}

// WithHangover sets how many sub-threshold frames a speech run absorbs
// before ending. Default: 8.
func WithHangover(frames int) Option {
	return func(d *Detector) {
		if frames >= 0 {
			d.hangover = frames
		}
	}
}

// Detector is a spectral-flux voice-activity detector. Not safe for
// concurrent use; each audio stream owns its own Detector.
type Detector struct {
	fluxRatio  float64
	floorDecay float64
	hangover   int

	prevMags   []float64
	noiseFloor float64
	inSpeech   bool
	quietRun   int
	primed     bool
}

// New creates a Detector with the supplied options.
func New(opts ...Option) *Detector {
	d := &Detector{
		fluxRatio:  defaultFluxRatio,
		floorDecay: defaultFloorDecay,
		hangover:   defaultHangoverFrames,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ProcessFrame classifies one frame.
func (d *Detector) ProcessFrame(frame []int16) vad.Event {
	flux := d.flux(frame)

	// Prime the noise floor from the first frame so the very first utterance
	// does not trigger on an uninitialised floor.
	if !d.primed {
		d.noiseFloor = flux
		d.primed = true
		return vad.Event{Type: vad.Silence, Energy: flux}
	}

	speech := d.noiseFloor > 0 && flux >= d.noiseFloor*d.fluxRatio
	if !speech {
		// Only quiet frames feed the floor, so speech never drags it upward.
		d.noiseFloor = (1-d.floorDecay)*d.noiseFloor + d.floorDecay*flux
	}

	switch {
	case speech && !d.inSpeech:
		d.inSpeech = true
		d.quietRun = 0
		return vad.Event{Type: vad.SpeechStart, Energy: flux}

	case speech && d.inSpeech:
		d.quietRun = 0
		return vad.Event{Type: vad.SpeechContinue, Energy: flux}

	case !speech && d.inSpeech:
		d.quietRun++
		if d.quietRun > d.hangover {
			d.inSpeech = false
			d.quietRun = 0
			return vad.Event{Type: vad.SpeechEnd, Energy: flux}
		}
		return vad.Event{Type: vad.SpeechContinue, Energy: flux}

	default:
		return vad.Event{Type: vad.Silence, Energy: flux}
	}
}

// Reset clears all smoothing state.
func (d *Detector) Reset() {
	d.prevMags = nil
	d.noiseFloor = 0
	d.inSpeech = false
	d.quietRun = 0
	d.primed = false
}

// flux computes the positive spectral flux of the frame against the previous
// frame's magnitude spectrum.
func (d *Detector) flux(frame []int16) float64 {
	samples := make([]float64, len(frame))
	for i, s := range frame {
		samples[i] = float64(s) / 32768.0
	}

	spectrum := fft.FFTReal(samples)
	mags := make([]float64, len(spectrum)/2+1)
	for i := range mags {
		mags[i] = cmplxAbs(spectrum[i])
	}

	var flux float64
	if d.prevMags != nil && len(d.prevMags) == len(mags) {
		for i := range mags {
			if delta := mags[i] - d.prevMags[i]; delta > 0 {
				flux += delta
			}
		}
	}
	d.prevMags = mags
	return flux
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
