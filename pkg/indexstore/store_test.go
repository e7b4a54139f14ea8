package indexstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, dir, name string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0o644))
}

func seedCollection(t *testing.T, dir, key string) {
	t.Helper()
	writeJSON(t, dir, key+"_bm25.json", [][]string{
		{"budget", "deadline", "extended"},
		{"tax", "schedule", "amended"},
	})
	writeJSON(t, dir, key+"_data.json", []map[string]any{
		{"name": "01-2013_2024_E", "type": "bill", "content": "Budget provisions."},
		{"name": "02-2014_2024_E", "type": "bill", "content": "Tax schedule."},
	})
}

func TestInitializeScanClassification(t *testing.T) {
	dir := t.TempDir()
	seedCollection(t, dir, "bills")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acts.tsv"),
		[]byte("name\tcontent\na1\tact text\n"), 0o644))
	// Unknown files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))

	store := New(dir, nil)
	snap, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, snap.Collections, 2)

	bills := snap.Collections["bills"]
	require.NotNil(t, bills)
	assert.Nil(t, bills.Dense)
	assert.NotNil(t, bills.Sparse)
	assert.Len(t, bills.Docs, 2)
	assert.True(t, bills.Usable())

	// TSV-only collections carry documents but no index.
	acts := snap.Collections["acts"]
	require.NotNil(t, acts)
	assert.Len(t, acts.Docs, 1)
	assert.False(t, acts.Usable())
}

func TestInitializeDataWinsOverTSV(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "bills_data.json", []map[string]any{
		{"name": "from-data", "content": "precomputed"},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bills.tsv"),
		[]byte("name\tcontent\nfrom-tsv\tfallback\n"), 0o644))

	store := New(dir, nil)
	snap, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	docs := snap.Collections["bills"].Docs
	require.Len(t, docs, 1)
	assert.Equal(t, "from-data", docs[0].Name)
}

func TestInitializeDataDefaultsAndMetadata(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "bills_data.json", []map[string]any{
		{"name": "d1", "content": "text", "year": "2024", "language": "en"},
	})

	store := New(dir, nil)
	snap, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	docs := snap.Collections["bills"].Docs
	require.Len(t, docs, 1)
	assert.Equal(t, "bills", docs[0].CollectionKey)
	// Type falls back to the collection key.
	assert.Equal(t, "bills", docs[0].Type)
	assert.Equal(t, map[string]any{"year": "2024", "language": "en"}, docs[0].Metadata)
}

func TestInitializeSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	seedCollection(t, dir, "bills")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acts_bm25.json"),
		[]byte("{not valid"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acts.faiss"),
		[]byte("not a faiss file"), 0o644))

	store := New(dir, nil)
	snap, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	// The healthy collection loads in full; the corrupt artifacts
	// are skipped without aborting the scan.
	assert.True(t, snap.Collections["bills"].Usable())
	if acts, ok := snap.Collections["acts"]; ok {
		assert.Nil(t, acts.Sparse)
		assert.Nil(t, acts.Dense)
	}
}

func TestInitializeIdempotentWithoutForce(t *testing.T) {
	dir := t.TempDir()
	seedCollection(t, dir, "bills")

	store := New(dir, nil)
	first, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)
	second, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)
	assert.Same(t, first, second)

	forced, err := store.Initialize(context.Background(), true)
	require.NoError(t, err)
	assert.NotSame(t, first, forced)
	assert.Len(t, forced.Collections, 1)
}

func TestForceReloadPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	seedCollection(t, dir, "bills")

	store := New(dir, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	seedCollection(t, dir, "acts")
	snap, err := store.Initialize(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, snap.Collections, 2)
	assert.Equal(t, 2, snap.UsableCount())
}

func TestInitializeMissingDirectory(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "nope"), nil)
	snap, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, snap.Collections)
	assert.False(t, store.Loaded())
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	seedCollection(t, dir, "bills")

	store := New(dir, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)
	require.True(t, store.Loaded())

	store.Clear()
	assert.False(t, store.Loaded())
	assert.Empty(t, store.Snapshot().Collections)
}

func TestStatus(t *testing.T) {
	dir := t.TempDir()
	seedCollection(t, dir, "gazettes")
	writeJSON(t, dir, "acts_data.json", []map[string]any{
		{"name": "a1", "content": "doc only"},
	})

	store := New(dir, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	status := store.Status()
	require.Len(t, status, 2)
	// Sorted by key.
	assert.Equal(t, "acts", status[0].Key)
	assert.False(t, status[0].Usable)
	assert.Equal(t, "gazettes", status[1].Key)
	assert.True(t, status[1].HasSparse)
	assert.True(t, status[1].Usable)
	assert.Equal(t, 2, status[1].Documents)
}

func TestInitializeCancelledContext(t *testing.T) {
	dir := t.TempDir()
	seedCollection(t, dir, "bills")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := New(dir, nil)
	_, err := store.Initialize(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
}
