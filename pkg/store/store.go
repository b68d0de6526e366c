// Package store implements the project-local package cache.
//
// The cache is a directory tree (conventionally <project>/.vessel) with one
// slot per package name and one subdirectory per identity token, plus a
// persisted JSON index mapping (name, token) to the materialized directory.
// The store exclusively owns this tree; fetchers materialize into a staging
// area below it and rename into place, so an entry either exists completely
// or not at all.
//
// Identity is structural (ref string or URL), never content-based: computing
// a content hash would require fetching first, defeating the cache. A moving
// git branch therefore keeps its cache entry across pushes; callers that
// need a fresh checkout must invalidate explicitly.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dfinity/vessel/pkg/cache"
	"github.com/dfinity/vessel/pkg/pkgset"
)

const (
	indexFile  = "index.json"
	stagingDir = ".tmp"
	binDir     = ".bin"
)

// Store owns a local cache directory. Safe for concurrent use: each package
// name has its own slot, and index writes are serialized by a single lock.
type Store struct {
	root string

	mu    sync.Mutex
	index map[string]Entry // name -> entry
}

// Entry records one cached package materialization.
type Entry struct {
	Token      string    `json:"token"`
	Dir        string    `json:"dir"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Open creates (if needed) and opens the cache rooted at dir, loading the
// persisted index. A missing or corrupt index is rebuilt empty; existing
// entry directories without an index row are treated as absent.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{root: dir, index: make(map[string]Entry)}

	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.index); err != nil {
		// Corrupt index - start over rather than trust it.
		s.index = make(map[string]Entry)
	}
	return s, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

// StagingRoot returns the directory fetchers should stage into before the
// atomic rename. It lives on the same filesystem as the entry slots.
func (s *Store) StagingRoot() string { return filepath.Join(s.root, stagingDir) }

// BinDir returns the directory compiler toolchains are installed under.
func (s *Store) BinDir() string { return filepath.Join(s.root, binDir) }

// EntryDir returns the directory an entry for (name, token) occupies,
// whether or not it exists yet. Fetchers rename their staging output here.
func (s *Store) EntryDir(name, token string) string {
	return filepath.Join(s.root, name, tokenDirname(token))
}

// Lookup returns the materialized directory for (name, token) if present.
// It checks both the index and the directory itself, so a crash between
// rename and index write (or a hand-deleted directory) reads as a miss.
// Lookup never touches the network.
func (s *Store) Lookup(name, token string) (string, bool) {
	s.mu.Lock()
	entry, ok := s.index[name]
	s.mu.Unlock()
	if !ok || entry.Token != token {
		return "", false
	}
	if info, err := os.Stat(entry.Dir); err != nil || !info.IsDir() {
		return "", false
	}
	return entry.Dir, true
}

// Record persists the mapping (name, token) -> dir. Called only after a
// successful materialization. Concurrent calls for different names are safe.
func (s *Store) Record(name, token, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[name] = Entry{Token: token, Dir: dir, RecordedAt: time.Now().UTC()}
	return s.writeIndex()
}

// Invalidate removes the cache entry and backing directory for name.
// Removing an absent entry is not an error.
func (s *Store) Invalidate(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.index, name)
	if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
		return err
	}
	return s.writeIndex()
}

// InvalidateAll removes every cache entry, the staging area, and any
// installed toolchains, leaving an empty cache root.
func (s *Store) InvalidateAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = make(map[string]Entry)
	if err := os.RemoveAll(s.root); err != nil {
		return err
	}
	return os.MkdirAll(s.root, 0o755)
}

// Entries returns a snapshot of the index, keyed by package name.
func (s *Store) Entries() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]Entry, len(s.index))
	for name, entry := range s.index {
		snapshot[name] = entry
	}
	return snapshot
}

// writeIndex persists the index. Caller holds s.mu.
func (s *Store) writeIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.root, indexFile), data, 0o644)
}

// tokenDirname converts an identity token to a directory name. Tokens that
// are already safe directory names (git refs, versions) are used verbatim
// so the tree stays browsable; anything else (archive URLs) is hashed.
func tokenDirname(token string) string {
	if pkgset.ValidVersion(token) {
		return token
	}
	return cache.Hash([]byte(token))[:16]
}
