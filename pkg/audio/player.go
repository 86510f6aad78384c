package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/afero"
)

// ErrNotPlaying is returned by Pause/Resume when no local playback is active.
var ErrNotPlaying = errors.New("audio: no local playback active")

// Player plays locally cached tracks to the default output device. It is the
// offline half of the playback dispatcher: when the remote music service is
// unreachable, cached WAV content is rendered locally instead.
type Player interface {
	// Play starts playback of the WAV file at path. A running track is
	// stopped first. Play returns once playback has started.
	Play(ctx context.Context, path string) error

	// Pause suspends playback, keeping the position.
	Pause() error

	// Resume continues a paused track.
	Resume() error

	// Stop ends playback and discards the position.
	Stop() error

	// Playing reports whether a track is active (playing or paused).
	Playing() bool

	// Close stops playback and releases the output stream.
	Close() error
}

// Compile-time assertion that PortAudioPlayer satisfies Player.
var _ Player = (*PortAudioPlayer)(nil)

// playerChunk is the number of samples written per output buffer.
const playerChunk = 1024

// PortAudioPlayer renders cached WAV files through PortAudio. One track at a
// time; decoding happens up front, so cached content (single songs) is
// assumed to fit in memory.
type PortAudioPlayer struct {
	fs afero.Fs

	mu      sync.Mutex
	samples []int16
	rate    int
	pos     int
	paused  bool
	active  bool
	gen     int
	closed  bool
}

// NewPortAudioPlayer creates a player reading cached content from fs.
// PortAudio must already be initialised (the capture source does this).
func NewPortAudioPlayer(fs afero.Fs) *PortAudioPlayer {
	return &PortAudioPlayer{fs: fs}
}

// Play decodes the file and starts the render loop.
func (p *PortAudioPlayer) Play(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}

	samples, rate, err := DecodeWAV(p.fs, path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrSourceClosed
	}
	p.gen++
	gen := p.gen
	p.samples = samples
	p.rate = rate
	p.pos = 0
	p.paused = false
	p.active = true
	p.mu.Unlock()

	go p.renderLoop(gen, path)
	return nil
}

// renderLoop writes chunks until the track ends, is stopped, or a newer
// track takes over (generation bump).
func (p *PortAudioPlayer) renderLoop(gen int, path string) {
	p.mu.Lock()
	rate := p.rate
	p.mu.Unlock()

	buf := make([]int16, playerChunk)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(rate), playerChunk, buf)
	if err != nil {
		slog.Error("audio: open output stream", "path", path, "error", err)
		p.Stop()
		return
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		slog.Error("audio: start output stream", "path", path, "error", err)
		p.Stop()
		return
	}
	defer stream.Stop()

	for {
		p.mu.Lock()
		if p.closed || p.gen != gen || !p.active {
			p.mu.Unlock()
			return
		}
		if p.paused {
			p.mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			continue
		}
		n := copy(buf, p.samples[p.pos:])
		p.pos += n
		done := p.pos >= len(p.samples)
		if done {
			p.active = false
		}
		p.mu.Unlock()

		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil {
			slog.Warn("audio: output write failed", "path", path, "error", err)
		}
		if done {
			slog.Info("audio: local track finished", "path", path)
			return
		}
	}
}

// Pause suspends the render loop.
func (p *PortAudioPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return ErrNotPlaying
	}
	p.paused = true
	return nil
}

// Resume continues a paused track.
func (p *PortAudioPlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return ErrNotPlaying
	}
	p.paused = false
	return nil
}

// Stop ends playback.
func (p *PortAudioPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	p.paused = false
	p.samples = nil
	p.pos = 0
	return nil
}

// Playing reports whether a track is active.
func (p *PortAudioPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Close stops playback permanently.
func (p *PortAudioPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.active = false
	p.samples = nil
	return nil
}
