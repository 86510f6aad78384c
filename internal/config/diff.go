package config

// SettingsDiff describes what changed between two configs.
// Only fields that can be safely hot-applied are tracked; everything else
// requires a restart and is intentionally ignored here.
type SettingsDiff struct {
	// InputDeviceChanged is true when the selected microphone changed.
	InputDeviceChanged bool
	NewInputDevice     string

	// EqualizerChanged is true when the equalizer bands changed.
	EqualizerChanged bool
	NewEqualizer     []float64

	// DeviceNameChanged is true when the custom output-device name changed.
	DeviceNameChanged bool
	NewDeviceName     string

	// LogLevelChanged is true when the log level changed.
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// Empty reports whether the diff contains no hot-applicable change.
func (d SettingsDiff) Empty() bool {
	return !d.InputDeviceChanged && !d.EqualizerChanged &&
		!d.DeviceNameChanged && !d.LogLevelChanged
}

// Diff compares old and new configs and returns the hot-applicable changes.
func Diff(old, new *Config) SettingsDiff {
	d := SettingsDiff{}

	if old.Audio.InputDevice != new.Audio.InputDevice {
		d.InputDeviceChanged = true
		d.NewInputDevice = new.Audio.InputDevice
	}

	if !equalBands(old.Output.EqualizerBands, new.Output.EqualizerBands) {
		d.EqualizerChanged = true
		d.NewEqualizer = append([]float64(nil), new.Output.EqualizerBands...)
	}

	if old.Output.DeviceName != new.Output.DeviceName {
		d.DeviceNameChanged = true
		d.NewDeviceName = new.Output.DeviceName
	}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	return d
}

// equalBands compares two equalizer band slices elementwise.
func equalBands(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
