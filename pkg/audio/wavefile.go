package audio

import (
	"fmt"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// TrackInfo describes a locally cached audio file.
type TrackInfo struct {
	Path       string
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// ProbeWAV validates a cached WAV file and reports its format. The offline
// cache probes entries at load time so a corrupt download is detected before
// a voice command tries to play it.
func ProbeWAV(fs afero.Fs, path string) (TrackInfo, error) {
	f, err := fs.Open(path)
	if err != nil {
		return TrackInfo{}, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return TrackInfo{}, fmt.Errorf("audio: %q is not a valid WAV file", path)
	}

	dur, err := dec.Duration()
	if err != nil {
		return TrackInfo{}, fmt.Errorf("audio: duration of %q: %w", path, err)
	}

	return TrackInfo{
		Path:       path,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Duration:   dur,
	}, nil
}

// DecodeWAV loads the full PCM content of a cached WAV file as int16 mono
// samples (stereo content is downmixed by averaging). Used by the local
// player when the dispatcher falls back to offline playback.
func DecodeWAV(fs afero.Fs, path string) ([]int16, int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("audio: %q is not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("audio: decode %q: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	samples := make([]int16, 0, len(buf.Data)/channels)
	for i := 0; i+channels <= len(buf.Data); i += channels {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i+c]
		}
		samples = append(samples, int16(sum/channels))
	}
	return samples, buf.Format.SampleRate, nil
}
