package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/voxahq/voxa/pkg/types"
)

// Compile-time assertion that PortAudioSource satisfies Source.
var _ Source = (*PortAudioSource)(nil)

const (
	// frameBufferDepth is the capacity of the consumer channel. At 20 ms per
	// frame this buffers about 1.3 s of audio before drops begin.
	frameBufferDepth = 64
)

// PortAudioConfig holds capture parameters for a PortAudioSource.
type PortAudioConfig struct {
	// DeviceID selects the capture device; empty means the host default.
	DeviceID string

	// SampleRate in Hz. Default: 16000.
	SampleRate int

	// FrameLength is the number of samples per frame. Default: 320 (20 ms at
	// 16 kHz). Wake-word engines dictate their own frame length; pass
	// Engine.FrameLength here.
	FrameLength int
}

// PortAudioSource captures microphone frames through PortAudio.
type PortAudioSource struct {
	sampleRate  int
	frameLength int

	frames  chan types.AudioFrame
	dropped atomic.Uint64

	mu      sync.Mutex
	stream  *portaudio.Stream
	device  DeviceInfo
	buf     []int16
	closed  bool
	swapGen int
}

// ListDevices enumerates the host's capture devices. PortAudio must already
// be initialised.
func ListDevices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate devices: %w", err)
	}
	def, err := portaudio.DefaultInputDevice()
	if err != nil {
		def = nil
	}

	var infos []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		infos = append(infos, DeviceInfo{
			ID:      d.Name,
			Name:    d.Name,
			Default: def != nil && d.Name == def.Name,
		})
	}
	return infos, nil
}

// NewPortAudioSource initialises PortAudio, opens the configured capture
// device, and starts the capture loop. The caller must call Close when done.
func NewPortAudioSource(cfg PortAudioConfig) (*PortAudioSource, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FrameLength <= 0 {
		cfg.FrameLength = 320
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: initialize portaudio: %w", err)
	}

	s := &PortAudioSource{
		sampleRate:  cfg.SampleRate,
		frameLength: cfg.FrameLength,
		frames:      make(chan types.AudioFrame, frameBufferDepth),
	}

	if err := s.open(cfg.DeviceID); err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	go s.captureLoop(s.swapGen)
	return s, nil
}

// open opens a capture stream on the named device (or the default) and
// records the selection. Caller holds no lock.
func (s *PortAudioSource) open(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := findInputDevice(deviceID)
	if err != nil {
		return err
	}

	s.buf = make([]int16, s.frameLength)
	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(s.sampleRate)
	params.FramesPerBuffer = s.frameLength

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		return fmt.Errorf("audio: open stream on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("audio: start stream on %q: %w", dev.Name, err)
	}

	s.stream = stream
	s.device = DeviceInfo{ID: dev.Name, Name: dev.Name}
	return nil
}

// findInputDevice resolves a device id to a PortAudio device, defaulting to
// the host default input.
func findInputDevice(id string) (*portaudio.DeviceInfo, error) {
	if id == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("audio: default input device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == id && d.MaxInputChannels >= 1 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("audio: no capture device named %q", id)
}

// captureLoop reads frames until the stream for its generation is replaced
// or the source closes. Each SwitchDevice bumps the generation so the old
// loop exits cleanly.
func (s *PortAudioSource) captureLoop(gen int) {
	for {
		s.mu.Lock()
		if s.closed || s.swapGen != gen {
			s.mu.Unlock()
			return
		}
		stream := s.stream
		buf := s.buf
		deviceID := s.device.ID
		s.mu.Unlock()

		if err := stream.Read(); err != nil {
			slog.Warn("audio: stream read failed", "device", deviceID, "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		frame := types.AudioFrame{
			PCM:        append([]int16(nil), buf...),
			SampleRate: s.sampleRate,
			Timestamp:  time.Now(),
			DeviceID:   deviceID,
		}

		// Drop-oldest: capture must never block on a slow consumer.
		select {
		case s.frames <- frame:
		default:
			select {
			case <-s.frames:
				s.dropped.Add(1)
			default:
			}
			select {
			case s.frames <- frame:
			default:
				s.dropped.Add(1)
			}
		}
	}
}

// Frames returns the capture channel.
func (s *PortAudioSource) Frames() <-chan types.AudioFrame { return s.frames }

// Device reports the currently selected capture device.
func (s *PortAudioSource) Device() DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// SwitchDevice hot-swaps capture to the named device. The consumer channel
// is untouched; the old capture loop exits and a new one starts on the new
// stream.
func (s *PortAudioSource) SwitchDevice(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSourceClosed
	}
	old := s.stream
	s.swapGen++
	s.mu.Unlock()

	if old != nil {
		if err := old.Stop(); err != nil {
			slog.Warn("audio: stopping old stream failed", "error", err)
		}
		old.Close()
	}

	if err := s.open(id); err != nil {
		return err
	}

	s.mu.Lock()
	gen := s.swapGen
	s.mu.Unlock()
	go s.captureLoop(gen)

	slog.Info("audio: capture device switched", "device", id)
	return nil
}

// DroppedFrames reports the total frames discarded by the drop-oldest policy.
func (s *PortAudioSource) DroppedFrames() uint64 { return s.dropped.Load() }

// Close stops capture, closes the frame channel, and terminates PortAudio.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stream := s.stream
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
		stream.Close()
	}
	close(s.frames)
	return portaudio.Terminate()
}
