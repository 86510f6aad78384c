package music

import (
	"context"

	"github.com/voxahq/voxa/pkg/types"
)

// unconfigured is the Service used when no remote backend is wired in. Every
// call fails with ErrUnavailable, which sends the resolver and dispatcher
// down the offline path immediately.
type unconfigured struct{}

// Unconfigured returns a Service that is permanently unavailable. The voice
// pipeline then works entirely from the offline cache.
func Unconfigured() Service { return unconfigured{} }

var _ Service = unconfigured{}

func (unconfigured) Search(context.Context, string) ([]types.CatalogItem, error) {
	return nil, ErrUnavailable
}

func (unconfigured) Play(context.Context, string, string) error { return ErrUnavailable }
func (unconfigured) Pause(context.Context) error                { return ErrUnavailable }
func (unconfigured) Skip(context.Context) error                 { return ErrUnavailable }
func (unconfigured) SetVolume(context.Context, int) error       { return ErrUnavailable }
func (unconfigured) SetShuffle(context.Context, bool) error     { return ErrUnavailable }

func (unconfigured) CreatePlaylist(context.Context, string, []string) (string, error) {
	return "", ErrUnavailable
}

func (unconfigured) CurrentlyPlaying(context.Context) (*types.CatalogItem, error) {
	return nil, ErrUnavailable
}
