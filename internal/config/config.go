// Package config provides the configuration schema, loader, and file watcher
// for the Voxa voice playback controller.
//
// The watcher doubles as the settings pass-through from the UI layer: the UI
// writes settings (selected microphone, equalizer bands, custom device name)
// into the config file, and the running pipeline applies the diff as
// configuration updates — never as voice intents.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxa.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Audio    AudioConfig    `yaml:"audio"`
	Wake     WakeConfig     `yaml:"wake"`
	Spotter  SpotterConfig  `yaml:"spotter"`
	STT      STTConfig      `yaml:"stt"`
	Resolver ResolverConfig `yaml:"resolver"`
	Remote   RemoteConfig   `yaml:"remote"`
	Offline  OfflineConfig  `yaml:"offline"`
	Output   OutputConfig   `yaml:"output"`
}

// ServerConfig holds logging and admin-endpoint settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for the /metrics and health endpoints
	// (e.g., ":9090"). Empty disables the admin server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	// InputDevice selects the capture device by name; empty means the host
	// default. Changing this at runtime hot-swaps the microphone.
	InputDevice string `yaml:"input_device"`

	// SampleRate in Hz. Must match the wake-word model's rate. Default: 16000.
	SampleRate int `yaml:"sample_rate"`
}

// WakeConfig holds wake-word detection settings.
type WakeConfig struct {
	// AccessKey is the Picovoice access key for the Porcupine engine.
	AccessKey string `yaml:"access_key"`

	// KeywordPath is the trained wake-phrase model file (.ppn).
	KeywordPath string `yaml:"keyword_path"`

	// ModelPath optionally overrides the Porcupine acoustic model (.pv).
	ModelPath string `yaml:"model_path"`

	// Sensitivity trades false-accepts against false-rejects, 0.0–1.0.
	Sensitivity float32 `yaml:"sensitivity"`

	// Threshold is the rolling-score level that counts toward a trigger.
	Threshold float64 `yaml:"threshold"`

	// DwellFrames is how many consecutive frames the rolling score must hold
	// above Threshold before a wake event fires.
	DwellFrames int `yaml:"dwell_frames"`

	// CooldownMs suppresses re-triggering for this long after a wake event.
	CooldownMs int `yaml:"cooldown_ms"`
}

// SpotterConfig holds keyword-spotting settings.
type SpotterConfig struct {
	// Enabled toggles the fast path. When off, every wake event goes through
	// full recognition.
	Enabled bool `yaml:"enabled"`

	// WindowMs is the audio budget for a spotting attempt. Default: 300.
	WindowMs int `yaml:"window_ms"`

	// Threshold is the minimum match confidence for a short-circuit.
	Threshold float64 `yaml:"threshold"`
}

// STTConfig holds speech-recognition settings.
type STTConfig struct {
	// VoskModelPath is the primary (vosk) model directory.
	VoskModelPath string `yaml:"vosk_model_path"`

	// WhisperModelPath is the fallback (whisper.cpp) model file. Empty
	// disables the fallback engine.
	WhisperModelPath string `yaml:"whisper_model_path"`

	// StartupDeadlineMs is how long after a wake event speech energy must be
	// detected before the attempt fails with a recognition timeout.
	StartupDeadlineMs int `yaml:"startup_deadline_ms"`

	// TrailingSilenceMs ends the recognition window after this much silence.
	TrailingSilenceMs int `yaml:"trailing_silence_ms"`

	// MaxWindowMs caps the recognition window length.
	MaxWindowMs int `yaml:"max_window_ms"`

	// MinConfidence is the usability threshold below which a transcript is
	// rejected as low confidence.
	MinConfidence float64 `yaml:"min_confidence"`
}

// ResolverConfig holds catalog-resolution settings.
type ResolverConfig struct {
	// FuzzyThreshold is the minimum Jaro-Winkler score for a fuzzy match.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// AmbiguityMargin is how far the top fuzzy candidate must outscore the
	// runner-up; closer results fail as ambiguous rather than guess.
	AmbiguityMargin float64 `yaml:"ambiguity_margin"`

	// ArtistThreshold is the minimum similarity for artist agreement.
	ArtistThreshold float64 `yaml:"artist_threshold"`
}

// RemoteConfig holds remote music-service settings.
type RemoteConfig struct {
	// CallTimeoutMs bounds every remote call. Default: 3000.
	CallTimeoutMs int `yaml:"call_timeout_ms"`

	// BreakerMaxFailures opens the circuit after this many consecutive
	// failures. Default: 5.
	BreakerMaxFailures int `yaml:"breaker_max_failures"`

	// BreakerResetMs is how long the circuit stays open before probing.
	// Default: 30000.
	BreakerResetMs int `yaml:"breaker_reset_ms"`
}

// OfflineConfig holds offline-cache settings.
type OfflineConfig struct {
	// IndexPath is the JSON index file for cached tracks.
	IndexPath string `yaml:"index_path"`

	// ContentDir is where cached audio content lives.
	ContentDir string `yaml:"content_dir"`
}

// OutputConfig holds output-routing and per-device settings. Equalizer and
// device-name fields are UI settings passed through the config watcher.
type OutputConfig struct {
	// SnapcastURL is the Snapcast control endpoint for network speakers
	// (e.g., "ws://hub:1780/jsonrpc"). Empty disables network speakers.
	SnapcastURL string `yaml:"snapcast_url"`

	// DefaultDevice is paired solo at startup.
	DefaultDevice string `yaml:"default_device"`

	// DeviceName is the custom display name applied to the default device.
	DeviceName string `yaml:"device_name"`

	// EqualizerBands holds per-band dB gains applied at the output stage.
	EqualizerBands []float64 `yaml:"equalizer_bands"`
}
