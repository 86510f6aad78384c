// Package music defines the narrow interface to the remote music-streaming
// backend.
//
// The backend is treated as an opaque remote service: authentication, session
// management, and transport details live behind this interface. Every method
// takes a context and is expected to honour per-call timeouts; callers wrap
// the service in a circuit breaker so that an unreachable backend fails fast
// and resolution falls back to the offline cache.
//
// Implementations must be safe for concurrent use.
package music

import (
	"context"
	"errors"

	"github.com/voxahq/voxa/pkg/types"
)

// ErrUnavailable is returned by implementations when the remote service
// cannot be reached (network failure, timeout, 5xx). Callers treat it as the
// trigger for offline fallback.
var ErrUnavailable = errors.New("music: remote service unavailable")

// Service is the abstraction over the remote music-streaming backend.
type Service interface {
	// Search returns catalog candidates for a free-text query. The query is
	// the raw entity text; ranking and disambiguation happen in the resolver,
	// not here. An empty result slice with a nil error means the catalog has
	// no candidates at all.
	Search(ctx context.Context, query string) ([]types.CatalogItem, error)

	// Play starts playback of the given catalog item on the given output
	// device.
	Play(ctx context.Context, itemID, deviceID string) error

	// Pause pauses the active playback session.
	Pause(ctx context.Context) error

	// Skip advances to the next track in the active session.
	Skip(ctx context.Context) error

	// SetVolume sets the playback volume, 0–100.
	SetVolume(ctx context.Context, level int) error

	// SetShuffle toggles shuffle mode for the active session.
	SetShuffle(ctx context.Context, on bool) error

	// CreatePlaylist creates a playlist with the given name and seed items,
	// returning the new playlist's catalog ID. Playlist creation has no
	// offline equivalent.
	CreatePlaylist(ctx context.Context, name string, itemIDs []string) (string, error)

	// CurrentlyPlaying reports the item the remote session is playing, or
	// nil when nothing is playing.
	CurrentlyPlaying(ctx context.Context) (*types.CatalogItem, error)
}
