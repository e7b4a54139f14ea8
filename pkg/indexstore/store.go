// Package indexstore loads and owns the per-collection retrieval
// artifacts on the data volume: FAISS dense indexes, pre-tokenized
// BM25 corpora, and document tables. The store is a process-wide
// singleton publishing immutable snapshots; readers never observe a
// partially loaded state.
//
// File discovery is suffix-driven. For each file under the indices
// directory:
//
//	<key>.faiss      dense vector index
//	<key>_bm25.json  pre-tokenized corpus ([][]string)
//	<key>_data.json  document records
//	<key>.tsv[.gz]   tabular document fallback
//
// A collection becomes usable once it has documents and at least one
// of the two index kinds. Per-file failures are logged and skipped;
// they never block startup.
package indexstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/lexlanka/gavel/pkg/bm25"
	"github.com/lexlanka/gavel/pkg/embedders"
	"github.com/lexlanka/gavel/pkg/faults"
)

// Collection bundles the aligned retrieval artifacts of one bucket.
type Collection struct {
	Key    string
	Dense  *DenseIndex
	Sparse *bm25.Index
	Docs   []Document
}

// Usable reports whether the collection can serve queries: it needs
// documents and at least one retrieval path.
func (c *Collection) Usable() bool {
	return len(c.Docs) > 0 && (c.Dense != nil || c.Sparse != nil)
}

// Snapshot is an immutable view of all loaded collections. A snapshot
// is never mutated after publication.
type Snapshot struct {
	Collections map[string]*Collection
	LoadedAt    time.Time
}

// Usable returns the usable collections sorted deterministically by
// the map iteration of callers; use Keys for ordering.
func (s *Snapshot) Usable() []*Collection {
	var out []*Collection
	for _, c := range s.Collections {
		if c.Usable() {
			out = append(out, c)
		}
	}
	return out
}

// UsableCount returns the number of usable collections.
func (s *Snapshot) UsableCount() int {
	n := 0
	for _, c := range s.Collections {
		if c.Usable() {
			n++
		}
	}
	return n
}

// CollectionStatus describes one collection for the status surface.
type CollectionStatus struct {
	Key       string `json:"key"`
	HasDense  bool   `json:"has_dense"`
	HasSparse bool   `json:"has_sparse"`
	Documents int    `json:"documents"`
	Usable    bool   `json:"usable"`
}

// Store owns the loaded artifacts for the process lifetime. Reads are
// lock-free via an atomic snapshot pointer; reloads publish a fully
// built snapshot in one step.
type Store struct {
	indicesDir string
	embedder   embedders.Provider

	mu       sync.Mutex
	snapshot atomic.Pointer[Snapshot]
}

// New builds a Store over indicesDir. The embedder is consulted for
// dimension checks against dense indexes; it may be nil when the
// service runs without an encoder.
func New(indicesDir string, embedder embedders.Provider) *Store {
	s := &Store{
		indicesDir: indicesDir,
		embedder:   embedder,
	}
	s.snapshot.Store(&Snapshot{Collections: map[string]*Collection{}})
	return s
}

// Snapshot returns the current immutable snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Loaded reports whether a scan has completed and found collections.
func (s *Store) Loaded() bool {
	return len(s.Snapshot().Collections) > 0
}

// Initialize scans the indices directory and publishes a snapshot.
// Without force, a previously loaded snapshot is returned untouched.
// A missing directory loads empty: the service starts degraded and
// retrieval returns nothing.
func (s *Store) Initialize(ctx context.Context, force bool) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current := s.snapshot.Load(); !force && len(current.Collections) > 0 {
		return current, nil
	}

	snap, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	old := s.snapshot.Swap(snap)
	closeDense(old)

	slog.Info("index store initialized",
		"dir", s.indicesDir,
		"collections", len(snap.Collections),
		"usable", snap.UsableCount())
	return snap, nil
}

// Clear drops to an empty snapshot and closes dense handles.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snapshot.Swap(&Snapshot{Collections: map[string]*Collection{}})
	closeDense(old)
	slog.Info("index store cleared")
}

// Status reports per-collection artifact presence, sorted by key.
func (s *Store) Status() []CollectionStatus {
	snap := s.Snapshot()

	keys := make([]string, 0, len(snap.Collections))
	for key := range snap.Collections {
		keys = append(keys, key)
	}
	sortStrings(keys)

	out := make([]CollectionStatus, 0, len(keys))
	for _, key := range keys {
		c := snap.Collections[key]
		out = append(out, CollectionStatus{
			Key:       key,
			HasDense:  c.Dense != nil,
			HasSparse: c.Sparse != nil,
			Documents: len(c.Docs),
			Usable:    c.Usable(),
		})
	}
	return out
}

func closeDense(snap *Snapshot) {
	if snap == nil {
		return
	}
	for _, c := range snap.Collections {
		if c.Dense != nil {
			c.Dense.Close()
		}
	}
}

// scan walks the indices directory and classifies every file by
// suffix into a collection entry.
func (s *Store) scan(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Collections: map[string]*Collection{},
		LoadedAt:    time.Now(),
	}

	entries, err := os.ReadDir(s.indicesDir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("indices directory missing, starting with empty index store",
				"dir", s.indicesDir)
			return snap, nil
		}
		return nil, fmt.Errorf("scanning %s: %w", s.indicesDir, err)
	}

	// Pass 1: indexes and precomputed document lists.
	// Pass 2: TSV fallbacks, which never overwrite _data documents.
	var tsvFiles []string

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		path := filepath.Join(s.indicesDir, name)

		switch {
		case strings.HasSuffix(name, ".faiss"):
			s.loadDense(snap, path, strings.TrimSuffix(name, ".faiss"))

		case strings.Contains(name, "_bm25."):
			key, ext, _ := strings.Cut(name, "_bm25.")
			s.loadSparse(snap, path, key, ext)

		case strings.Contains(name, "_data."):
			key, ext, _ := strings.Cut(name, "_data.")
			s.loadData(snap, path, key, ext)

		case strings.HasSuffix(name, ".tsv"), strings.HasSuffix(name, ".tsv.gz"):
			tsvFiles = append(tsvFiles, name)
		}
	}

	for _, name := range tsvFiles {
		key := strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".tsv")
		s.loadTSV(snap, filepath.Join(s.indicesDir, name), key)
	}

	return snap, nil
}

func (s *Store) collection(snap *Snapshot, key string) *Collection {
	c, ok := snap.Collections[key]
	if !ok {
		c = &Collection{Key: key}
		snap.Collections[key] = c
	}
	return c
}

func (s *Store) loadDense(snap *Snapshot, path, key string) {
	index, err := OpenDenseIndex(path)
	if err != nil {
		s.skip(path, "open dense index", err)
		return
	}

	if s.embedder != nil && index.Dim() != s.embedder.Dimension() {
		slog.Error("dense index dimension does not match embedder, dropping dense path",
			"collection", key,
			"index_dim", index.Dim(),
			"embedder_dim", s.embedder.Dimension())
		index.Close()
		return
	}

	s.collection(snap, key).Dense = index
	slog.Info("loaded dense index", "collection", key, "vectors", index.Count())
}

func (s *Store) loadSparse(snap *Snapshot, path, key, ext string) {
	if ext != "json" {
		slog.Warn("skipping bm25 corpus with unsupported format", "path", path, "format", ext)
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		s.skip(path, "read bm25 corpus", err)
		return
	}

	var corpus [][]string
	if err := json.Unmarshal(raw, &corpus); err != nil {
		s.skip(path, "decode bm25 corpus", err)
		return
	}

	s.collection(snap, key).Sparse = bm25.NewIndex(corpus)
	slog.Info("loaded bm25 corpus", "collection", key, "documents", len(corpus))
}

func (s *Store) loadData(snap *Snapshot, path, key, ext string) {
	if ext != "json" {
		slog.Warn("skipping document data with unsupported format", "path", path, "format", ext)
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		s.skip(path, "read document data", err)
		return
	}

	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		s.skip(path, "decode document data", err)
		return
	}

	docs := make([]Document, 0, len(records))
	for i, record := range records {
		var doc Document
		if err := mapstructure.Decode(record, &doc); err != nil {
			slog.Warn("skipping malformed document record", "path", path, "row", i, "error", err)
			continue
		}
		doc.CollectionKey = key
		if doc.Type == "" {
			doc.Type = key
		}
		docs = append(docs, doc)
	}

	s.collection(snap, key).Docs = docs
	slog.Info("loaded documents", "collection", key, "documents", len(docs))
}

func (s *Store) loadTSV(snap *Snapshot, path, key string) {
	c := s.collection(snap, key)
	if len(c.Docs) > 0 {
		// A _data file already supplied this collection's documents.
		return
	}

	result, err := readTSV(path, key)
	if err != nil {
		s.skip(path, "read tsv", err)
		return
	}

	c.Docs = result.Docs
	slog.Info("loaded documents from tsv",
		"collection", key,
		"documents", len(result.Docs),
		"skipped_rows", result.Skipped,
		"encoding", result.Encoding)
}

func (s *Store) skip(path, op string, err error) {
	fault := faults.New(faults.IndexLoadError, "indexstore", op, path, err)
	slog.Warn("skipping index artifact", "path", path, "error", fault)
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j] < ss[j-1]; j-- {
			ss[j], ss[j-1] = ss[j-1], ss[j]
		}
	}
}
