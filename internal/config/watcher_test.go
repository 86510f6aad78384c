package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voxa.yaml")
	writeConfigFile(t, path, "audio:\n  input_device: \"Mic A\"\n")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Audio.InputDevice; got != "Mic A" {
		t.Errorf("Current().Audio.InputDevice = %q, want %q", got, "Mic A")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voxa.yaml")
	writeConfigFile(t, path, "audio:\n  input_device: \"Mic A\"\n")

	var (
		mu      sync.Mutex
		changed *Config
	)
	onChange := func(_, new *Config) {
		mu.Lock()
		changed = new
		mu.Unlock()
	}

	w, err := NewWatcher(path, onChange, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Backdate-proof: ensure the mtime actually moves on coarse filesystems.
	time.Sleep(20 * time.Millisecond)
	writeConfigFile(t, path, "audio:\n  input_device: \"Mic B\"\n")
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		got := changed
		mu.Unlock()
		if got != nil {
			if got.Audio.InputDevice != "Mic B" {
				t.Errorf("onChange config input device = %q, want %q", got.Audio.InputDevice, "Mic B")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("watcher did not report the config change in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatcher_KeepsPreviousOnParseError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voxa.yaml")
	writeConfigFile(t, path, "audio:\n  input_device: \"Mic A\"\n")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	time.Sleep(20 * time.Millisecond)
	writeConfigFile(t, path, ": not yaml {{{")
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := w.Current().Audio.InputDevice; got != "Mic A" {
		t.Errorf("Current() after broken reload = %q, want previous value %q", got, "Mic A")
	}
}
