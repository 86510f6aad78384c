// Package catalog resolves raw spoken entities against the music catalog.
//
// Resolution prefers the remote service and falls back to the offline cache
// when the remote is unreachable, running the same matching algorithm over
// whichever candidate set it got. Matching is exact-first (case and
// diacritic folded), then fuzzy with an ambiguity margin, and always under
// the artist-agreement rule: when the user named an artist, a same-titled
// track by anyone else is never substituted.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/voxahq/voxa/internal/catalog/offline"
	"github.com/voxahq/voxa/internal/observe"
	"github.com/voxahq/voxa/internal/phonetic"
	"github.com/voxahq/voxa/pkg/music"
	"github.com/voxahq/voxa/pkg/types"
)

var (
	// ErrEntityNotFound is returned when no candidate clears the match
	// thresholds anywhere (remote or cache).
	ErrEntityNotFound = errors.New("catalog: entity not found")

	// ErrAmbiguousEntity is returned when the two best fuzzy candidates are
	// closer than the ambiguity margin.
	ErrAmbiguousEntity = errors.New("catalog: ambiguous entity")
)

// writebackTimeout bounds the asynchronous cache write-back.
const writebackTimeout = 2 * time.Second

// Option customises a Resolver.
type Option func(*Resolver)

// WithFuzzyThreshold sets the minimum fuzzy score for acceptance.
// Default: 0.82.
func WithFuzzyThreshold(v float64) Option {
	return func(r *Resolver) { r.fuzzyThreshold = v }
}

// WithAmbiguityMargin sets the required gap between the best and
// second-best fuzzy candidates. Default: 0.05.
func WithAmbiguityMargin(v float64) Option {
	return func(r *Resolver) { r.margin = v }
}

// WithArtistThreshold sets the fuzzy floor for artist agreement.
// Default: 0.85.
func WithArtistThreshold(v float64) Option {
	return func(r *Resolver) { r.artistThreshold = v }
}

// WithMetrics attaches metric instruments for write-back failures.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// Resolver matches entities to playable catalog items.
type Resolver struct {
	remote music.Service
	cache  *offline.Store

	fuzzyThreshold  float64
	margin          float64
	artistThreshold float64

	metrics *observe.Metrics

	// writebacks caps the number of in-flight asynchronous cache updates;
	// wg lets Close wait for them in tests and during shutdown.
	writebacks chan struct{}
	wg         sync.WaitGroup
}

// New creates a Resolver over the (typically breaker-guarded) remote service
// and the offline cache.
func New(remote music.Service, cache *offline.Store, opts ...Option) *Resolver {
	r := &Resolver{
		remote:          remote,
		cache:           cache,
		fuzzyThreshold:  0.82,
		margin:          0.05,
		artistThreshold: 0.85,
		writebacks:      make(chan struct{}, 64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve matches the entity set to catalog items. The song entity (or the
// playlist entity, for playlist-only commands) drives the search; an artist
// entity constrains it. For an unchanged catalog the result is
// deterministic.
func (r *Resolver) Resolve(ctx context.Context, entities []types.Entity) ([]types.CatalogItem, error) {
	var song, artist, playlist string
	for _, e := range entities {
		switch e.Kind {
		case types.EntitySong:
			song = e.RawText
		case types.EntityArtist:
			artist = e.RawText
		case types.EntityAlbum:
			if song == "" {
				song = e.RawText
			}
		case types.EntityPlaylist:
			playlist = e.RawText
		}
	}

	query := song
	if query == "" {
		query = playlist
	}
	if query == "" {
		return nil, fmt.Errorf("%w: no searchable entity", ErrEntityNotFound)
	}

	candidates, offlinePath, err := r.candidates(ctx, query)
	if err != nil {
		return nil, err
	}

	item, err := r.pick(candidates, query, artist)
	if err != nil {
		// A remote miss can still hit locally cached content.
		if !offlinePath && errors.Is(err, ErrEntityNotFound) {
			cached, cerr := r.cache.Entries(ctx)
			if cerr == nil {
				if item, err = r.pick(cached, query, artist); err == nil {
					return []types.CatalogItem{item}, nil
				}
			}
		}
		return nil, err
	}

	if !offlinePath && item.Source == types.SourceRemote {
		r.writeBack(item)
	}
	return []types.CatalogItem{item}, nil
}

// Close waits for in-flight write-backs. Only needed at shutdown.
func (r *Resolver) Close() {
	r.wg.Wait()
}

// candidates fetches the match set, falling back to the cache when the
// remote is unreachable.
func (r *Resolver) candidates(ctx context.Context, query string) (items []types.CatalogItem, offlinePath bool, err error) {
	items, err = r.remote.Search(ctx, query)
	if err == nil {
		return items, false, nil
	}
	slog.Info("catalog: remote search unavailable, using offline cache",
		"query", query, "error", err)

	items, cerr := r.cache.Entries(ctx)
	if cerr != nil {
		return nil, true, fmt.Errorf("catalog: offline fallback: %w", cerr)
	}
	return items, true, nil
}

// pick runs exact-then-fuzzy matching with artist agreement over candidates.
func (r *Resolver) pick(candidates []types.CatalogItem, query, artist string) (types.CatalogItem, error) {
	foldedQuery := phonetic.Fold(query)
	foldedArtist := phonetic.Fold(artist)

	// Artist agreement: drop candidates by the wrong artist before any
	// scoring, so a same-titled track cannot win on title similarity.
	filtered := candidates
	if foldedArtist != "" {
		filtered = filtered[:0:0]
		for _, c := range candidates {
			ca := phonetic.Fold(c.Artist)
			if ca == foldedArtist || phonetic.Score(foldedArtist, ca) >= r.artistThreshold {
				filtered = append(filtered, c)
			}
		}
	}
	if len(filtered) == 0 {
		return types.CatalogItem{}, fmt.Errorf("%w: %q", ErrEntityNotFound, query)
	}

	// Exact pass.
	var exacts []types.CatalogItem
	for _, c := range filtered {
		if phonetic.Fold(c.Title) == foldedQuery {
			exacts = append(exacts, c)
		}
	}
	if len(exacts) > 0 {
		sort.Slice(exacts, func(i, j int) bool { return exacts[i].ID < exacts[j].ID })
		return exacts[0], nil
	}

	// Fuzzy pass.
	type scored struct {
		item  types.CatalogItem
		score float64
	}
	ranked := make([]scored, 0, len(filtered))
	for _, c := range filtered {
		ranked = append(ranked, scored{
			item:  c,
			score: phonetic.Score(foldedQuery, phonetic.Fold(c.Title)),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].item.ID < ranked[j].item.ID
	})

	top := ranked[0]
	if top.score < r.fuzzyThreshold {
		return types.CatalogItem{}, fmt.Errorf("%w: %q (best %.2f)", ErrEntityNotFound, query, top.score)
	}
	if len(ranked) > 1 {
		second := ranked[1]
		if second.item.Title != top.item.Title && top.score-second.score < r.margin {
			return types.CatalogItem{}, fmt.Errorf("%w: %q vs %q (%.2f vs %.2f)",
				ErrAmbiguousEntity, top.item.Title, second.item.Title, top.score, second.score)
		}
	}
	return top.item, nil
}

// writeBack records a successful remote resolution in the offline cache,
// asynchronously and best-effort. Failures are logged and counted, never
// surfaced, and never retried.
func (r *Resolver) writeBack(item types.CatalogItem) {
	select {
	case r.writebacks <- struct{}{}:
	default:
		return // too many in flight, skip this one
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.writebacks }()

		ctx, cancel := context.WithTimeout(context.Background(), writebackTimeout)
		defer cancel()

		entry := offline.Entry{Title: item.Title, Artist: item.Artist}
		if existing, ok, err := r.cache.Lookup(ctx, item.Title, item.Artist); err == nil && ok {
			// Keep the cached audio; only the metadata is refreshed.
			entry.ContentPath = existing.ContentPath
		}

		if err := r.cache.Upsert(ctx, entry); err != nil {
			slog.Warn("catalog: cache write-back failed",
				"title", item.Title, "artist", item.Artist, "error", err)
			if r.metrics != nil {
				r.metrics.CacheWriteFailures.Add(ctx, 1)
			}
		}
	}()
}
