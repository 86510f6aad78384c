package config

import "testing"

func baseConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Audio.InputDevice = "Built-in Mic"
	cfg.Output.DeviceName = "Kitchen"
	cfg.Output.EqualizerBands = []float64{0, 0, 0}
	return cfg
}

func TestDiff_NoChange(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()

	if d := Diff(old, new); !d.Empty() {
		t.Errorf("Diff of identical configs = %+v, want empty", d)
	}
}

func TestDiff_InputDevice(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Audio.InputDevice = "USB Microphone"

	d := Diff(old, new)
	if !d.InputDeviceChanged {
		t.Fatal("InputDeviceChanged = false, want true")
	}
	if d.NewInputDevice != "USB Microphone" {
		t.Errorf("NewInputDevice = %q, want %q", d.NewInputDevice, "USB Microphone")
	}
	if d.EqualizerChanged || d.DeviceNameChanged {
		t.Errorf("unrelated fields flagged: %+v", d)
	}
}

func TestDiff_Equalizer(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Output.EqualizerBands = []float64{1.0, 0, -1.0}

	d := Diff(old, new)
	if !d.EqualizerChanged {
		t.Fatal("EqualizerChanged = false, want true")
	}
	if len(d.NewEqualizer) != 3 || d.NewEqualizer[0] != 1.0 {
		t.Errorf("NewEqualizer = %v, want [1 0 -1]", d.NewEqualizer)
	}
}

func TestDiff_DeviceNameAndLogLevel(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Output.DeviceName = "Living Room"
	new.Server.LogLevel = LogDebug

	d := Diff(old, new)
	if !d.DeviceNameChanged || d.NewDeviceName != "Living Room" {
		t.Errorf("device name diff = %+v, want Living Room change", d)
	}
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("log level diff = %+v, want debug change", d)
	}
}
