package resilience

import (
	"context"
	"errors"

	"github.com/voxahq/voxa/pkg/music"
	"github.com/voxahq/voxa/pkg/types"
)

// GuardedMusic wraps a [music.Service] with a single circuit breaker so a
// flapping remote endpoint stops eating the per-call timeout on every
// request. While the breaker is open, calls fail fast with
// [music.ErrUnavailable] and the caller switches to the offline path
// immediately.
type GuardedMusic struct {
	svc     music.Service
	breaker *CircuitBreaker
}

// Compile-time interface assertion.
var _ music.Service = (*GuardedMusic)(nil)

// NewGuardedMusic wraps svc with a breaker built from cfg.
func NewGuardedMusic(svc music.Service, cfg CircuitBreakerConfig) *GuardedMusic {
	if cfg.Name == "" {
		cfg.Name = "music"
	}
	return &GuardedMusic{
		svc:     svc,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedMusic) Breaker() *CircuitBreaker {
	return g.breaker
}

// guard runs fn through the breaker, translating an open circuit into
// [music.ErrUnavailable] so callers only need to handle one sentinel.
func (g *GuardedMusic) guard(fn func() error) error {
	err := g.breaker.Execute(fn)
	if errors.Is(err, ErrCircuitOpen) {
		return music.ErrUnavailable
	}
	return err
}

func (g *GuardedMusic) Search(ctx context.Context, query string) ([]types.CatalogItem, error) {
	var items []types.CatalogItem
	err := g.guard(func() error {
		var err error
		items, err = g.svc.Search(ctx, query)
		return err
	})
	return items, err
}

func (g *GuardedMusic) Play(ctx context.Context, itemID, deviceID string) error {
	return g.guard(func() error {
		return g.svc.Play(ctx, itemID, deviceID)
	})
}

func (g *GuardedMusic) Pause(ctx context.Context) error {
	return g.guard(func() error {
		return g.svc.Pause(ctx)
	})
}

func (g *GuardedMusic) Skip(ctx context.Context) error {
	return g.guard(func() error {
		return g.svc.Skip(ctx)
	})
}

func (g *GuardedMusic) SetVolume(ctx context.Context, level int) error {
	return g.guard(func() error {
		return g.svc.SetVolume(ctx, level)
	})
}

func (g *GuardedMusic) SetShuffle(ctx context.Context, on bool) error {
	return g.guard(func() error {
		return g.svc.SetShuffle(ctx, on)
	})
}

func (g *GuardedMusic) CreatePlaylist(ctx context.Context, name string, itemIDs []string) (string, error) {
	var id string
	err := g.guard(func() error {
		var err error
		id, err = g.svc.CreatePlaylist(ctx, name, itemIDs)
		return err
	})
	return id, err
}

func (g *GuardedMusic) CurrentlyPlaying(ctx context.Context) (*types.CatalogItem, error) {
	var item *types.CatalogItem
	err := g.guard(func() error {
		var err error
		item, err = g.svc.CurrentlyPlaying(ctx)
		return err
	})
	return item, err
}
