// Package mock provides a scriptable test double for the music package.
//
// Use Service to stub catalog search results and to inject remote failures:
// set Unavailable to force every call to fail with music.ErrUnavailable, or
// set per-method error fields for finer control. All calls are recorded so
// tests can assert on dispatch behaviour.
package mock

import (
	"context"
	"sync"

	"github.com/voxahq/voxa/pkg/music"
	"github.com/voxahq/voxa/pkg/types"
)

// PlayCall records a single invocation of Service.Play.
type PlayCall struct {
	ItemID   string
	DeviceID string
}

// PlaylistCall records a single invocation of Service.CreatePlaylist.
type PlaylistCall struct {
	Name    string
	ItemIDs []string
}

// Service is a mock implementation of music.Service.
// The zero value is usable: every method succeeds and Search returns no
// candidates.
type Service struct {
	mu sync.Mutex

	// Catalog is returned (filtered by nothing — the resolver does its own
	// matching) from Search.
	Catalog []types.CatalogItem

	// Unavailable forces every method to return music.ErrUnavailable.
	Unavailable bool

	// SearchErr, PlayErr, and ControlErr override specific method results.
	SearchErr  error
	PlayErr    error
	ControlErr error

	// NowPlaying is returned by CurrentlyPlaying.
	NowPlaying *types.CatalogItem

	// Recorded calls.
	SearchQueries []string
	PlayCalls     []PlayCall
	PauseCalls    int
	SkipCalls     int
	VolumeCalls   []int
	ShuffleCalls  []bool
	PlaylistCalls []PlaylistCall
}

// Ensure Service implements music.Service at compile time.
var _ music.Service = (*Service)(nil)

// Search records the query and returns Catalog.
func (s *Service) Search(_ context.Context, query string) ([]types.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchQueries = append(s.SearchQueries, query)
	if s.Unavailable {
		return nil, music.ErrUnavailable
	}
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	out := make([]types.CatalogItem, len(s.Catalog))
	copy(out, s.Catalog)
	return out, nil
}

// Play records the call.
func (s *Service) Play(_ context.Context, itemID, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlayCalls = append(s.PlayCalls, PlayCall{ItemID: itemID, DeviceID: deviceID})
	if s.Unavailable {
		return music.ErrUnavailable
	}
	return s.PlayErr
}

// Pause records the call.
func (s *Service) Pause(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PauseCalls++
	if s.Unavailable {
		return music.ErrUnavailable
	}
	return s.ControlErr
}

// Skip records the call.
func (s *Service) Skip(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SkipCalls++
	if s.Unavailable {
		return music.ErrUnavailable
	}
	return s.ControlErr
}

// SetVolume records the call.
func (s *Service) SetVolume(_ context.Context, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.VolumeCalls = append(s.VolumeCalls, level)
	if s.Unavailable {
		return music.ErrUnavailable
	}
	return s.ControlErr
}

// SetShuffle records the call.
func (s *Service) SetShuffle(_ context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ShuffleCalls = append(s.ShuffleCalls, on)
	if s.Unavailable {
		return music.ErrUnavailable
	}
	return s.ControlErr
}

// CreatePlaylist records the call and returns a synthetic playlist ID.
func (s *Service) CreatePlaylist(_ context.Context, name string, itemIDs []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(itemIDs))
	copy(ids, itemIDs)
	s.PlaylistCalls = append(s.PlaylistCalls, PlaylistCall{Name: name, ItemIDs: ids})
	if s.Unavailable {
		return "", music.ErrUnavailable
	}
	if s.ControlErr != nil {
		return "", s.ControlErr
	}
	return "playlist-" + name, nil
}

// CurrentlyPlaying returns NowPlaying.
func (s *Service) CurrentlyPlaying(_ context.Context) (*types.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return nil, music.ErrUnavailable
	}
	return s.NowPlaying, nil
}

// Reset clears all recorded calls. Thread-safe.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchQueries = nil
	s.PlayCalls = nil
	s.PauseCalls = 0
	s.SkipCalls = 0
	s.VolumeCalls = nil
	s.ShuffleCalls = nil
	s.PlaylistCalls = nil
}
