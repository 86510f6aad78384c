package wakeword

// Latch wraps an engine that reports binary detections so a single hit frame
// is stretched into a run of full-score frames. Layers that smooth scores
// over a rolling window would otherwise average a one-frame hit below their
// trigger threshold and the wake phrase could never fire. frames is the run
// length; it must cover the consumer's smoothing window plus its dwell
// requirement.
//
// Engines with continuous sub-1.0 scores pass through unchanged.
func Latch(engine Engine, frames int) Engine {
	if frames < 1 {
		frames = 1
	}
	return &latched{Engine: engine, frames: frames}
}

type latched struct {
	Engine
	frames    int
	remaining int
}

// Process scores the frame on the wrapped engine and holds a full score for
// the configured run after each hit. The hit frame itself counts toward the
// run.
func (l *latched) Process(frame []int16) (float64, error) {
	score, err := l.Engine.Process(frame)
	if err != nil {
		return 0, err
	}
	if score >= 1 {
		l.remaining = l.frames
	}
	if l.remaining > 0 {
		l.remaining--
		return 1, nil
	}
	return score, nil
}
