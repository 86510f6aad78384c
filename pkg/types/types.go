// Package types defines the shared types used across all Voxa packages.
//
// These types form the lingua franca between the audio front end, the
// recognition stages, the catalog resolver, and the playback dispatcher.
// They are intentionally minimal — each package defines its own domain
// types, but cross-cutting data structures live here to avoid circular
// imports.
package types

import "time"

// AudioFrame is a single fixed-duration block of PCM samples flowing through
// the pipeline. Frames are ephemeral: they are owned by the stage currently
// processing them and are never retained beyond one recognition window.
type AudioFrame struct {
	// PCM is 16-bit little-endian signed mono audio.
	PCM []int16

	// SampleRate in Hz (16000 for all recognition stages).
	SampleRate int

	// Timestamp is a monotonic capture timestamp.
	Timestamp time.Time

	// DeviceID identifies the capture device that produced this frame.
	DeviceID string
}

// Duration returns the play time covered by the frame's samples.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.PCM)) * time.Second / time.Duration(f.SampleRate)
}

// Transcript is a speech-to-text result for one recognition window.
// It is produced by the recognizer, consumed once by the command
// interpreter, then discarded.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the engine does not report confidence.
	Confidence float64

	// Words contains per-word detail when the engine supports it (vosk).
	Words []WordDetail

	// Start and End bound the utterance within the recognition window.
	Start time.Time
	End   time.Time
}

// WordDetail holds per-word metadata from STT engines that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// EntityKind discriminates the raw entity spans extracted from a command.
type EntityKind int

const (
	EntitySong EntityKind = iota
	EntityArtist
	EntityAlbum
	EntityPlaylist
)

// String returns the human-readable name of the entity kind.
func (k EntityKind) String() string {
	switch k {
	case EntitySong:
		return "song"
	case EntityArtist:
		return "artist"
	case EntityAlbum:
		return "album"
	case EntityPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// Entity is a raw text span referring to a song, artist, album, or playlist
// before catalog resolution.
type Entity struct {
	Kind    EntityKind
	RawText string
}

// ItemSource identifies where a resolved catalog item is playable from.
type ItemSource int

const (
	// SourceRemote means the item plays through the remote music service.
	SourceRemote ItemSource = iota

	// SourceOffline means the item plays from a locally cached file.
	SourceOffline
)

// String returns the human-readable name of the item source.
func (s ItemSource) String() string {
	if s == SourceOffline {
		return "offline"
	}
	return "remote"
}

// CatalogItem is a resolved, addressable playable unit. It is the output of
// catalog resolution and the unit the playback dispatcher acts on.
type CatalogItem struct {
	// ID is the canonical catalog identifier (remote track ID, or the local
	// content path for offline items).
	ID string

	// Title is the canonical track title.
	Title string

	// Artist is the canonical artist name.
	Artist string

	// AlbumID is the canonical album identifier, when known.
	AlbumID string

	// Source says whether this item plays remotely or from the offline cache.
	Source ItemSource
}

// Announcement is the now-playing notice emitted only for voice-initiated
// playback. The UI layer renders or speaks it; app-UI-initiated playback
// changes never produce one.
type Announcement struct {
	Title          string
	Artist         string
	SourcePlaylist string
}

// DeviceKind classifies output devices known to the audio router.
type DeviceKind int

const (
	DeviceDirect DeviceKind = iota
	DeviceBluetooth
	DeviceNetworkSpeaker
)

// String returns the human-readable name of the device kind.
func (k DeviceKind) String() string {
	switch k {
	case DeviceBluetooth:
		return "bluetooth"
	case DeviceNetworkSpeaker:
		return "network-speaker"
	default:
		return "direct"
	}
}

// DeviceRole is the channel assignment a device receives when it is bound
// into a stereo pair or group.
type DeviceRole string

const (
	RoleSolo        DeviceRole = "solo"
	RoleLeft        DeviceRole = "left"
	RoleRight       DeviceRole = "right"
	RoleGroupLeader DeviceRole = "leader"
	RoleGroupMember DeviceRole = "member"
)

// Device describes a discovered or paired output device.
type Device struct {
	ID   string
	Name string
	Kind DeviceKind
	Role DeviceRole
}
