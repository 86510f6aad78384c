// Command voxa is the main entry point for the Voxa voice playback
// controller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/voxahq/voxa/internal/catalog"
	"github.com/voxahq/voxa/internal/catalog/offline"
	"github.com/voxahq/voxa/internal/config"
	"github.com/voxahq/voxa/internal/dispatch"
	"github.com/voxahq/voxa/internal/health"
	"github.com/voxahq/voxa/internal/intent"
	"github.com/voxahq/voxa/internal/observe"
	"github.com/voxahq/voxa/internal/pipeline"
	"github.com/voxahq/voxa/internal/recognizer"
	"github.com/voxahq/voxa/internal/resilience"
	"github.com/voxahq/voxa/internal/router"
	"github.com/voxahq/voxa/internal/spotter"
	"github.com/voxahq/voxa/internal/wake"
	"github.com/voxahq/voxa/pkg/audio"
	"github.com/voxahq/voxa/pkg/device"
	"github.com/voxahq/voxa/pkg/device/snapcast"
	"github.com/voxahq/voxa/pkg/music"
	"github.com/voxahq/voxa/pkg/provider/stt"
	"github.com/voxahq/voxa/pkg/provider/stt/vosk"
	"github.com/voxahq/voxa/pkg/provider/stt/whisper"
	"github.com/voxahq/voxa/pkg/provider/vad/energy"
	"github.com/voxahq/voxa/pkg/provider/wakeword"
	"github.com/voxahq/voxa/pkg/provider/wakeword/porcupine"
	"github.com/voxahq/voxa/pkg/types"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxa: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxa: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxa starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxa",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── Wake-word engine + microphone capture ─────────────────────────────────
	engine, err := porcupine.New(porcupine.Config{
		AccessKey:   cfg.Wake.AccessKey,
		KeywordPath: cfg.Wake.KeywordPath,
		ModelPath:   cfg.Wake.ModelPath,
		Sensitivity: cfg.Wake.Sensitivity,
	})
	if err != nil {
		slog.Error("failed to initialise wake-word engine", "err", err)
		return 1
	}
	defer engine.Close()

	source, err := audio.NewPortAudioSource(audio.PortAudioConfig{
		DeviceID:    cfg.Audio.InputDevice,
		SampleRate:  cfg.Audio.SampleRate,
		FrameLength: engine.FrameLength(),
	})
	if err != nil {
		slog.Error("failed to open microphone", "err", err)
		return 1
	}
	defer source.Close()

	// Porcupine reports one full-score frame per detection; latch it across
	// the smoothing window plus dwell so the debounce can see it.
	latched := wakeword.Latch(engine, wake.DefaultSmoothing+cfg.Wake.DwellFrames)
	det := wake.New(latched,
		wake.WithThreshold(cfg.Wake.Threshold),
		wake.WithDwell(cfg.Wake.DwellFrames),
		wake.WithCooldown(time.Duration(cfg.Wake.CooldownMs)*time.Millisecond),
	)

	// ── Speech recognition ────────────────────────────────────────────────────
	// One vosk model serves both the grammar-constrained spotter decode and
	// the full transcription path.
	voskEngine, err := vosk.New(cfg.STT.VoskModelPath, vosk.WithGrammar(spotter.DefaultVocabulary))
	if err != nil {
		slog.Error("failed to load vosk model", "err", err)
		return 1
	}

	sttEngine, err := buildSTT(voskEngine, cfg)
	if err != nil {
		_ = voskEngine.Close()
		slog.Error("failed to build speech recognition", "err", err)
		return 1
	}
	defer sttEngine.Close()

	rec := recognizer.New(sttEngine, energy.New(),
		recognizer.WithStartupDeadline(time.Duration(cfg.STT.StartupDeadlineMs)*time.Millisecond),
		recognizer.WithTrailingSilence(time.Duration(cfg.STT.TrailingSilenceMs)*time.Millisecond),
		recognizer.WithMaxWindow(time.Duration(cfg.STT.MaxWindowMs)*time.Millisecond),
		recognizer.WithMinConfidence(cfg.STT.MinConfidence),
	)

	// ── Output devices ────────────────────────────────────────────────────────
	mgr, closeMgr, err := buildDeviceManager(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to speaker backend", "err", err)
		return 1
	}
	defer closeMgr()

	rt := router.New(mgr, router.WithMetrics(metrics))
	defer rt.Close()

	if cfg.Output.DefaultDevice != "" {
		if err := pairDefaultDevice(ctx, rt, cfg.Output); err != nil {
			// Degraded start: voice control works, playback dispatch will
			// report the missing route until a device is paired by voice.
			slog.Warn("default output device not paired", "device", cfg.Output.DefaultDevice, "err", err)
		}
	}

	// ── Music service + offline catalog ───────────────────────────────────────
	// The streaming backend is linked in behind music.Service; without one the
	// controller runs entirely from the offline cache.
	guarded := resilience.NewGuardedMusic(music.Unconfigured(), resilience.CircuitBreakerConfig{
		Name:         "music",
		MaxFailures:  cfg.Remote.BreakerMaxFailures,
		ResetTimeout: time.Duration(cfg.Remote.BreakerResetMs) * time.Millisecond,
	})

	fs := afero.NewOsFs()

	store, err := offline.New(fs, cfg.Offline.IndexPath,
		offline.WithContentDir(cfg.Offline.ContentDir),
	)
	if err != nil {
		slog.Error("failed to open offline catalog", "path", cfg.Offline.IndexPath, "err", err)
		return 1
	}
	defer store.Close()

	resolver := catalog.New(guarded, store,
		catalog.WithFuzzyThreshold(cfg.Resolver.FuzzyThreshold),
		catalog.WithAmbiguityMargin(cfg.Resolver.AmbiguityMargin),
		catalog.WithArtistThreshold(cfg.Resolver.ArtistThreshold),
		catalog.WithMetrics(metrics),
	)
	defer resolver.Close()

	// ── Dispatch + pipeline ───────────────────────────────────────────────────
	player := audio.NewPortAudioPlayer(fs)
	defer player.Close()

	disp := dispatch.New(guarded, rt, player, dispatch.WithMetrics(metrics))

	pipeOpts := []pipeline.Option{
		pipeline.WithMetrics(metrics),
		pipeline.WithLogLevel(logLevel),
	}
	if cfg.Spotter.Enabled {
		sp := spotter.New(voskEngine,
			spotter.WithWindow(time.Duration(cfg.Spotter.WindowMs)*time.Millisecond),
		)
		pipeOpts = append(pipeOpts, pipeline.WithSpotter(sp, cfg.Spotter.Threshold))
	}

	pipe := pipeline.New(source, det, rec, intent.New(), resolver, disp, rt, guarded, pipeOpts...)

	go logEvents(pipe.Events())

	// ── Settings watcher ──────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.Empty() {
			return
		}
		applyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pipe.ApplySettings(applyCtx, diff)
	})
	if err != nil {
		slog.Error("failed to start settings watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── Admin endpoints ───────────────────────────────────────────────────────
	var admin *http.Server
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		health.New(
			health.MusicChecker(guarded),
			health.OfflineStoreChecker(store),
			health.AudioChecker(source),
		).Register(mux)
		mux.Handle("/metrics", promhttp.Handler())

		admin = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("admin server error", "err", err)
			}
		}()
	}

	slog.Info("listening for the wake phrase — press Ctrl+C to shut down")

	runErr := pipe.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			slog.Warn("admin server shutdown error", "err", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// newLogger builds the process logger. The returned LevelVar is handed to the
// pipeline so settings changes can retune verbosity at runtime.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	v := &slog.LevelVar{}
	switch level {
	case config.LogDebug:
		v.Set(slog.LevelDebug)
	case config.LogWarn:
		v.Set(slog.LevelWarn)
	case config.LogError:
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: v})
	return slog.New(handler), v
}

// buildSTT wires the transcription stack: vosk as primary and, when a model
// is configured, whisper.cpp as fallback behind per-engine circuit breakers.
// Low-confidence vosk transcripts fail acceptance and retry on whisper.
func buildSTT(primary *vosk.Engine, cfg *config.Config) (stt.Engine, error) {
	if cfg.STT.WhisperModelPath == "" {
		return primary, nil
	}

	fallbackEngine, err := whisper.New(cfg.STT.WhisperModelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}

	minConf := cfg.STT.MinConfidence
	fb := resilience.NewSTTFallback(primary, "vosk",
		resilience.FallbackConfig{
			CircuitBreaker: resilience.CircuitBreakerConfig{
				MaxFailures:  cfg.Remote.BreakerMaxFailures,
				ResetTimeout: time.Duration(cfg.Remote.BreakerResetMs) * time.Millisecond,
			},
		},
		resilience.WithAcceptance(func(tr types.Transcript) error {
			if tr.Confidence < minConf {
				return fmt.Errorf("transcript confidence %.2f below %.2f", tr.Confidence, minConf)
			}
			return nil
		}),
	)
	fb.AddFallback("whisper", fallbackEngine)
	return fb, nil
}

// buildDeviceManager connects to the configured Snapcast hub, or returns the
// no-op manager when network speakers are disabled.
func buildDeviceManager(ctx context.Context, cfg *config.Config) (device.Manager, func(), error) {
	if cfg.Output.SnapcastURL == "" {
		slog.Info("no snapcast endpoint configured, output routing disabled")
		return device.Noop(), func() {}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mgr, err := snapcast.Dial(dialCtx, cfg.Output.SnapcastURL,
		snapcast.WithCallTimeout(time.Duration(cfg.Remote.CallTimeoutMs)*time.Millisecond),
	)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("snapcast connected", "url", cfg.Output.SnapcastURL)
	return mgr, func() { _ = mgr.Close() }, nil
}

// pairDefaultDevice routes the configured default device solo and applies the
// persisted per-device settings (custom name, equalizer bands).
func pairDefaultDevice(ctx context.Context, rt *router.Router, out config.OutputConfig) error {
	devices, err := rt.Discover(ctx)
	if err != nil {
		return err
	}

	var target *types.Device
	for i := range devices {
		if devices[i].ID == out.DefaultDevice || devices[i].Name == out.DefaultDevice {
			target = &devices[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("device %q not discovered", out.DefaultDevice)
	}

	if err := rt.Pair(ctx, []router.Binding{{DeviceID: target.ID, Role: types.RoleSolo}}); err != nil {
		return err
	}

	if out.DeviceName != "" && out.DeviceName != target.Name {
		if err := rt.Rename(ctx, target.ID, out.DeviceName); err != nil {
			slog.Warn("rename failed", "device", target.ID, "err", err)
		}
	}
	if len(out.EqualizerBands) > 0 {
		if err := rt.SetEqualizer(ctx, device.EqualizerBands(out.EqualizerBands)); err != nil {
			slog.Warn("equalizer apply failed", "err", err)
		}
	}

	slog.Info("default output device paired", "device", target.ID, "name", target.Name)
	return nil
}

// logEvents drains the pipeline event stream. A graphical shell would render
// these; the headless binary logs them.
func logEvents(events <-chan pipeline.Event) {
	for ev := range events {
		switch ev.Kind {
		case pipeline.EventState:
			slog.Debug("session state", "state", ev.State)
		case pipeline.EventAnnouncement:
			slog.Info("now playing",
				"title", ev.Announcement.Title,
				"artist", ev.Announcement.Artist,
				"playlist", ev.Announcement.SourcePlaylist,
			)
		case pipeline.EventNowPlaying:
			if ev.NowPlaying == nil {
				slog.Info("playback stopped")
			} else {
				slog.Info("track changed", "title", ev.NowPlaying.Title, "artist", ev.NowPlaying.Artist)
			}
		case pipeline.EventNotice:
			slog.Info("notice", "text", ev.Notice)
		}
	}
}
