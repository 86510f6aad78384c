package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued tunables with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Wake.Sensitivity <= 0 {
		cfg.Wake.Sensitivity = 0.5
	}
	if cfg.Wake.Threshold <= 0 {
		cfg.Wake.Threshold = 0.5
	}
	if cfg.Wake.DwellFrames <= 0 {
		cfg.Wake.DwellFrames = 2
	}
	if cfg.Wake.CooldownMs <= 0 {
		cfg.Wake.CooldownMs = 2000
	}
	if cfg.Spotter.WindowMs <= 0 {
		cfg.Spotter.WindowMs = 300
	}
	if cfg.Spotter.Threshold <= 0 {
		cfg.Spotter.Threshold = 0.8
	}
	if cfg.STT.StartupDeadlineMs <= 0 {
		cfg.STT.StartupDeadlineMs = 2000
	}
	if cfg.STT.TrailingSilenceMs <= 0 {
		cfg.STT.TrailingSilenceMs = 700
	}
	if cfg.STT.MaxWindowMs <= 0 {
		cfg.STT.MaxWindowMs = 8000
	}
	if cfg.STT.MinConfidence <= 0 {
		cfg.STT.MinConfidence = 0.55
	}
	if cfg.Resolver.FuzzyThreshold <= 0 {
		cfg.Resolver.FuzzyThreshold = 0.82
	}
	if cfg.Resolver.AmbiguityMargin <= 0 {
		cfg.Resolver.AmbiguityMargin = 0.05
	}
	if cfg.Resolver.ArtistThreshold <= 0 {
		cfg.Resolver.ArtistThreshold = 0.85
	}
	if cfg.Remote.CallTimeoutMs <= 0 {
		cfg.Remote.CallTimeoutMs = 3000
	}
	if cfg.Remote.BreakerMaxFailures <= 0 {
		cfg.Remote.BreakerMaxFailures = 5
	}
	if cfg.Remote.BreakerResetMs <= 0 {
		cfg.Remote.BreakerResetMs = 30000
	}
	if cfg.Offline.IndexPath == "" {
		cfg.Offline.IndexPath = "offline/index.json"
	}
	if cfg.Offline.ContentDir == "" {
		cfg.Offline.ContentDir = "offline/content"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Wake.Sensitivity < 0 || cfg.Wake.Sensitivity > 1 {
		errs = append(errs, fmt.Errorf("wake.sensitivity %.2f is out of range [0, 1]", cfg.Wake.Sensitivity))
	}
	if cfg.Wake.Threshold < 0 || cfg.Wake.Threshold > 1 {
		errs = append(errs, fmt.Errorf("wake.threshold %.2f is out of range [0, 1]", cfg.Wake.Threshold))
	}
	if cfg.Spotter.Threshold < 0 || cfg.Spotter.Threshold > 1 {
		errs = append(errs, fmt.Errorf("spotter.threshold %.2f is out of range [0, 1]", cfg.Spotter.Threshold))
	}
	if cfg.STT.MinConfidence < 0 || cfg.STT.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("stt.min_confidence %.2f is out of range [0, 1]", cfg.STT.MinConfidence))
	}
	if cfg.Resolver.FuzzyThreshold < 0 || cfg.Resolver.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("resolver.fuzzy_threshold %.2f is out of range [0, 1]", cfg.Resolver.FuzzyThreshold))
	}
	if cfg.Resolver.AmbiguityMargin < 0 || cfg.Resolver.AmbiguityMargin > 1 {
		errs = append(errs, fmt.Errorf("resolver.ambiguity_margin %.2f is out of range [0, 1]", cfg.Resolver.AmbiguityMargin))
	}
	if cfg.STT.TrailingSilenceMs >= cfg.STT.MaxWindowMs {
		errs = append(errs, fmt.Errorf("stt.trailing_silence_ms (%d) must be less than stt.max_window_ms (%d)", cfg.STT.TrailingSilenceMs, cfg.STT.MaxWindowMs))
	}

	return errors.Join(errs...)
}
