package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/voxahq/voxa/internal/catalog/offline"
	musicmock "github.com/voxahq/voxa/pkg/music/mock"
	"github.com/voxahq/voxa/pkg/types"
)

func newTestStore(t *testing.T) *offline.Store {
	t.Helper()
	s, err := offline.New(afero.NewMemMapFs(), "cache/index.json")
	if err != nil {
		t.Fatalf("offline.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func song(raw string) types.Entity {
	return types.Entity{Kind: types.EntitySong, RawText: raw}
}

func artist(raw string) types.Entity {
	return types.Entity{Kind: types.EntityArtist, RawText: raw}
}

func TestResolve_ExactMatch(t *testing.T) {
	t.Parallel()

	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r1", Title: "Thriller", Artist: "Michael Jackson", Source: types.SourceRemote},
		{ID: "r2", Title: "Bad", Artist: "Michael Jackson", Source: types.SourceRemote},
	}}
	r := New(svc, newTestStore(t))
	t.Cleanup(r.Close)

	items, err := r.Resolve(context.Background(), []types.Entity{song("thriller")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(items) != 1 || items[0].ID != "r1" {
		t.Errorf("Resolve = %+v, want thriller by id", items)
	}
}

func TestResolve_ExactMatchFoldsDiacritics(t *testing.T) {
	t.Parallel()

	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r1", Title: "Désenchantée", Artist: "Mylène Farmer", Source: types.SourceRemote},
	}}
	r := New(svc, newTestStore(t))
	t.Cleanup(r.Close)

	items, err := r.Resolve(context.Background(), []types.Entity{song("desenchantee"), artist("mylene farmer")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if items[0].ID != "r1" {
		t.Errorf("Resolve = %+v", items)
	}
}

func TestResolve_FuzzyMatch(t *testing.T) {
	t.Parallel()

	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r1", Title: "Beat It", Artist: "Michael Jackson", Source: types.SourceRemote},
		{ID: "r2", Title: "Take On Me", Artist: "a-ha", Source: types.SourceRemote},
	}}
	r := New(svc, newTestStore(t))
	t.Cleanup(r.Close)

	// STT-damaged title still resolves.
	items, err := r.Resolve(context.Background(), []types.Entity{song("beet it")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if items[0].ID != "r1" {
		t.Errorf("Resolve = %+v, want Beat It", items)
	}
}

func TestResolve_ArtistAgreement(t *testing.T) {
	t.Parallel()

	// Same title by two artists: the named artist must win.
	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r1", Title: "Hurt", Artist: "Nine Inch Nails", Source: types.SourceRemote},
		{ID: "r2", Title: "Hurt", Artist: "Johnny Cash", Source: types.SourceRemote},
	}}
	r := New(svc, newTestStore(t))
	t.Cleanup(r.Close)

	items, err := r.Resolve(context.Background(), []types.Entity{song("hurt"), artist("johnny cash")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if items[0].ID != "r2" {
		t.Errorf("Resolve = %+v, want the Johnny Cash recording", items)
	}
}

func TestResolve_ArtistAgreementNeverSubstitutes(t *testing.T) {
	t.Parallel()

	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r1", Title: "Hurt", Artist: "Nine Inch Nails", Source: types.SourceRemote},
	}}
	r := New(svc, newTestStore(t))
	t.Cleanup(r.Close)

	// The only same-titled track is by a different artist: not found, never
	// a silent substitution.
	_, err := r.Resolve(context.Background(), []types.Entity{song("hurt"), artist("johnny cash")})
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("err = %v, want ErrEntityNotFound", err)
	}
}

func TestResolve_AmbiguityMargin(t *testing.T) {
	t.Parallel()

	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r1", Title: "Hold On", Artist: "Wilson Phillips", Source: types.SourceRemote},
		{ID: "r2", Title: "Hold Onto", Artist: "Somebody Else", Source: types.SourceRemote},
	}}
	r := New(svc, newTestStore(t), WithAmbiguityMargin(0.3))
	t.Cleanup(r.Close)

	// "holld on" is close to both candidates; with a wide margin that is an
	// ambiguity, not a guess.
	_, err := r.Resolve(context.Background(), []types.Entity{song("holld on")})
	if !errors.Is(err, ErrAmbiguousEntity) {
		t.Fatalf("err = %v, want ErrAmbiguousEntity", err)
	}
}

func TestResolve_OfflineFallbackWhenRemoteUnavailable(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	err := store.Upsert(ctx, offline.Entry{
		Title:       "Thriller",
		Artist:      "Michael Jackson",
		ContentPath: "thriller.wav",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	svc := &musicmock.Service{Unavailable: true}
	r := New(svc, store)
	t.Cleanup(r.Close)

	items, err := r.Resolve(ctx, []types.Entity{song("thriller")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if items[0].Source != types.SourceOffline {
		t.Errorf("Source = %v, want offline", items[0].Source)
	}
	if items[0].ID != "thriller.wav" {
		t.Errorf("ID = %q, want the cached content path", items[0].ID)
	}
}

func TestResolve_RemoteMissFallsToCache(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Upsert(ctx, offline.Entry{Title: "Rare B-Side", Artist: "Obscure Band", ContentPath: "rare.wav"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Remote is up but does not carry the track.
	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r1", Title: "Something Unrelated", Artist: "Whoever", Source: types.SourceRemote},
	}}
	r := New(svc, store)
	t.Cleanup(r.Close)

	items, err := r.Resolve(ctx, []types.Entity{song("rare b-side")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if items[0].Source != types.SourceOffline {
		t.Errorf("Source = %v, want offline", items[0].Source)
	}
}

func TestResolve_NotFoundAnywhere(t *testing.T) {
	t.Parallel()

	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r1", Title: "Thriller", Artist: "Michael Jackson", Source: types.SourceRemote},
	}}
	r := New(svc, newTestStore(t))
	t.Cleanup(r.Close)

	_, err := r.Resolve(context.Background(), []types.Entity{song("stairway to heaven")})
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("err = %v, want ErrEntityNotFound", err)
	}
}

func TestResolve_NoSearchableEntity(t *testing.T) {
	t.Parallel()

	r := New(&musicmock.Service{}, newTestStore(t))
	t.Cleanup(r.Close)

	_, err := r.Resolve(context.Background(), []types.Entity{artist("michael jackson")})
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("err = %v, want ErrEntityNotFound", err)
	}
}

func TestResolve_WritesBackRemoteHits(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r1", Title: "Beat It", Artist: "Michael Jackson", Source: types.SourceRemote},
	}}
	r := New(svc, store)

	ctx := context.Background()
	if _, err := r.Resolve(ctx, []types.Entity{song("beat it")}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	r.Close() // wait for the async write-back

	_, ok, err := store.Lookup(ctx, "Beat It", "Michael Jackson")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Error("remote hit was not written back to the cache")
	}
}

func TestResolve_WriteBackKeepsCachedContent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Upsert(ctx, offline.Entry{Title: "Beat It", Artist: "Michael Jackson", ContentPath: "beatit.wav"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r1", Title: "Beat It", Artist: "Michael Jackson", Source: types.SourceRemote},
	}}
	r := New(svc, store)

	if _, err := r.Resolve(ctx, []types.Entity{song("beat it")}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	r.Close()

	e, ok, err := store.Lookup(ctx, "Beat It", "Michael Jackson")
	if err != nil || !ok {
		t.Fatalf("Lookup: ok=%v err=%v", ok, err)
	}
	if e.ContentPath != "beatit.wav" {
		t.Errorf("ContentPath = %q, write-back must not drop cached audio", e.ContentPath)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	svc := &musicmock.Service{Catalog: []types.CatalogItem{
		{ID: "r2", Title: "Thriller", Artist: "Michael Jackson", Source: types.SourceRemote},
		{ID: "r1", Title: "Thriller", Artist: "Michael Jackson", Source: types.SourceRemote},
	}}
	r := New(svc, newTestStore(t))
	t.Cleanup(r.Close)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		items, err := r.Resolve(ctx, []types.Entity{song("thriller")})
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if items[0].ID != "r1" {
			t.Fatalf("run %d: ID = %q, want stable lowest id", i, items[0].ID)
		}
	}
}
