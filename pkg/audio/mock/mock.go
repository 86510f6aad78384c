// Package mock provides a scriptable test double for the audio package
// interfaces.
//
// Use Source to push frames into the pipeline from a test, close the stream,
// and assert on device switches.
package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/voxahq/voxa/pkg/audio"
	"github.com/voxahq/voxa/pkg/types"
)

// Source is a mock implementation of audio.Source.
type Source struct {
	mu sync.Mutex

	// FramesCh is the channel returned by Frames. Created lazily with a
	// small buffer if nil.
	FramesCh chan types.AudioFrame

	// Current is returned by Device.
	Current audio.DeviceInfo

	// SwitchErr, if non-nil, is returned from SwitchDevice.
	SwitchErr error

	// Switches records every device id passed to SwitchDevice.
	Switches []string

	// Dropped is returned by DroppedFrames.
	Dropped atomic.Uint64

	closed bool
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)

// Push delivers a frame to the consumer. Returns false once Close was called.
func (s *Source) Push(frame types.AudioFrame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.frames() <- frame
	return true
}

// Frames returns the scripted channel.
func (s *Source) Frames() <-chan types.AudioFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames()
}

func (s *Source) frames() chan types.AudioFrame {
	if s.FramesCh == nil {
		s.FramesCh = make(chan types.AudioFrame, 256)
	}
	return s.FramesCh
}

// Device returns Current.
func (s *Source) Device() audio.DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Current
}

// SwitchDevice records the call and updates Current on success.
func (s *Source) SwitchDevice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Switches = append(s.Switches, id)
	if s.SwitchErr != nil {
		return s.SwitchErr
	}
	s.Current = audio.DeviceInfo{ID: id, Name: id}
	return nil
}

// DroppedFrames returns the scripted drop counter.
func (s *Source) DroppedFrames() uint64 { return s.Dropped.Load() }

// Close closes the frame channel.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.frames())
	return nil
}

// Player is a mock implementation of audio.Player.
// The zero value is usable: every method succeeds.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned from Play.
	PlayErr error

	// Recorded calls.
	PlayCalls   []string
	PauseCalls  int
	ResumeCalls int
	StopCalls   int

	playing bool
	paused  bool
}

// Ensure Player implements audio.Player at compile time.
var _ audio.Player = (*Player)(nil)

// Play records the path and marks the player active.
func (p *Player) Play(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls = append(p.PlayCalls, path)
	if p.PlayErr != nil {
		return p.PlayErr
	}
	p.playing = true
	p.paused = false
	return nil
}

// Pause records the call.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PauseCalls++
	if !p.playing {
		return audio.ErrNotPlaying
	}
	p.paused = true
	return nil
}

// Resume records the call.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResumeCalls++
	if !p.playing {
		return audio.ErrNotPlaying
	}
	p.paused = false
	return nil
}

// Stop records the call and marks the player idle.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StopCalls++
	p.playing = false
	p.paused = false
	return nil
}

// Playing reports the scripted state.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Paused reports whether Pause was the last transport call.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Close marks the player idle.
func (p *Player) Close() error { return p.Stop() }
