// Package offline implements the local catalog cache that keeps voice
// playback working when the remote music service is unreachable.
//
// The cache is a JSON index file plus a directory of locally cached audio
// content. A single goroutine owns the in-memory index; Lookup, Entries, and
// Upsert are request-response messages to that goroutine, which makes
// concurrent write-backs from resolutions and reads from the resolver safe
// without a lock around the file. Every Upsert is flushed to disk through a
// temp-file rename so a crash never leaves a torn index.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/voxahq/voxa/internal/phonetic"
	"github.com/voxahq/voxa/pkg/audio"
	"github.com/voxahq/voxa/pkg/types"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("offline: store is closed")

// keySep joins the folded title and artist into an index key. NUL cannot
// appear in either field.
const keySep = "\x00"

// Entry is one cached track.
type Entry struct {
	// Title and Artist are the canonical names as last seen remotely.
	Title  string `json:"title"`
	Artist string `json:"artist"`

	// ContentPath is the cached audio file, relative to the content dir.
	ContentPath string `json:"content_path"`

	// CachedAt is when this entry was last written.
	CachedAt time.Time `json:"cached_at"`
}

// Key returns the index key for a title/artist pair: both case/diacritic
// folded, so "Désenchantée" and "desenchantee" collide intentionally.
func Key(title, artist string) string {
	return phonetic.Fold(title) + keySep + phonetic.Fold(artist)
}

// Option customises a Store.
type Option func(*Store)

// WithContentDir sets the directory cached audio lives in. Entry content
// paths are joined onto it when building playable item IDs, and every entry
// is checked against its audio file at load time.
func WithContentDir(dir string) Option {
	return func(s *Store) { s.contentDir = dir }
}

// Store is the single-writer offline index.
type Store struct {
	fs         afero.Fs
	path       string
	contentDir string

	ops       chan func(map[string]Entry)
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New loads the index at path (a missing file is an empty cache), verifies
// cached audio against the content dir, and starts the owner goroutine.
func New(fs afero.Fs, path string, opts ...Option) (*Store, error) {
	s := &Store{
		fs:   fs,
		path: path,
		ops:  make(chan func(map[string]Entry)),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	index, err := load(fs, path)
	if err != nil {
		return nil, err
	}
	s.verify(index)

	go s.run(index)
	return s, nil
}

// verify drops entries whose cached audio is missing or corrupt, so a bad
// download surfaces at startup instead of when a voice command tries to play
// it. A later re-cache restores the entry. Skipped when no content dir is
// configured.
func (s *Store) verify(index map[string]Entry) {
	if s.contentDir == "" {
		return
	}
	for key, e := range index {
		if _, err := audio.ProbeWAV(s.fs, filepath.Join(s.contentDir, e.ContentPath)); err != nil {
			slog.Warn("offline: dropping unplayable cached entry",
				"title", e.Title, "artist", e.Artist, "error", err)
			delete(index, key)
		}
	}
}

// item converts an entry to a resolvable catalog item. The item ID is the
// playable path, content-dir joined, so the dispatcher can hand it straight
// to the local player.
func (s *Store) item(e Entry) types.CatalogItem {
	id := e.ContentPath
	if s.contentDir != "" && id != "" {
		id = filepath.Join(s.contentDir, id)
	}
	return types.CatalogItem{
		ID:     id,
		Title:  e.Title,
		Artist: e.Artist,
		Source: types.SourceOffline,
	}
}

// run is the owner goroutine. It applies ops until Close.
func (s *Store) run(index map[string]Entry) {
	defer close(s.done)
	for {
		select {
		case op := <-s.ops:
			op(index)
		case <-s.quit:
			return
		}
	}
}

// do submits an op and waits for it to finish, honoring ctx.
func (s *Store) do(ctx context.Context, op func(map[string]Entry)) error {
	ran := make(chan struct{})
	wrapped := func(index map[string]Entry) {
		op(index)
		close(ran)
	}

	select {
	case s.ops <- wrapped:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lookup finds the entry for a title/artist pair. The second return is false
// when the pair is not cached.
func (s *Store) Lookup(ctx context.Context, title, artist string) (Entry, bool, error) {
	var (
		entry Entry
		found bool
	)
	err := s.do(ctx, func(index map[string]Entry) {
		entry, found = index[Key(title, artist)]
	})
	return entry, found, err
}

// Entries returns all cached tracks as catalog items, ordered by title for
// deterministic resolution.
func (s *Store) Entries(ctx context.Context) ([]types.CatalogItem, error) {
	var items []types.CatalogItem
	err := s.do(ctx, func(index map[string]Entry) {
		items = make([]types.CatalogItem, 0, len(index))
		for _, e := range index {
			items = append(items, s.item(e))
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Title != items[j].Title {
			return items[i].Title < items[j].Title
		}
		return items[i].Artist < items[j].Artist
	})
	return items, nil
}

// Upsert writes an entry (last write wins) and flushes the index.
func (s *Store) Upsert(ctx context.Context, entry Entry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}

	var flushErr error
	err := s.do(ctx, func(index map[string]Entry) {
		index[Key(entry.Title, entry.Artist)] = entry
		flushErr = s.flush(index)
	})
	if err != nil {
		return err
	}
	if flushErr != nil {
		return fmt.Errorf("offline: flush index: %w", flushErr)
	}
	return nil
}

// Close stops the owner goroutine. Calling Close more than once is safe.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
	return nil
}

// load reads the index file. A missing file yields an empty index.
func load(fs afero.Fs, path string) (map[string]Entry, error) {
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]Entry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("offline: read index: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("offline: parse index: %w", err)
	}

	index := make(map[string]Entry, len(entries))
	for _, e := range entries {
		index[Key(e.Title, e.Artist)] = e
	}
	return index, nil
}

// flush writes the index atomically: marshal, write a sibling temp file,
// rename over the target.
func (s *Store) flush(index map[string]Entry) error {
	entries := make([]Entry, 0, len(index))
	for _, e := range index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return Key(entries[i].Title, entries[i].Artist) < Key(entries[j].Title, entries[j].Artist)
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, s.path)
}
