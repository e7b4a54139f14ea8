package retrievers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexlanka/gavel/pkg/bm25"
	"github.com/lexlanka/gavel/pkg/indexstore"
)

type stubEmbedder struct {
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	return make([]float32, 384), nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (s *stubEmbedder) Dimension() int    { return 384 }
func (s *stubEmbedder) ModelName() string { return "stub" }
func (s *stubEmbedder) Available() bool   { return true }
func (s *stubEmbedder) Close() error      { return nil }

// sparseStore builds a store whose single collection has a BM25 index
// and documents but no dense index.
func sparseStore(t *testing.T, key string, contents []string, docs []map[string]any) *indexstore.Store {
	t.Helper()
	dir := t.TempDir()

	corpus := make([][]string, len(contents))
	for i, c := range contents {
		corpus[i] = bm25.Tokenize(c)
	}
	writeArtifact(t, dir, key+"_bm25.json", corpus)
	writeArtifact(t, dir, key+"_data.json", docs)

	store := indexstore.New(dir, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)
	return store
}

func writeArtifact(t *testing.T, dir, name string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0o644))
}

func TestRetrieveEmptyQuery(t *testing.T) {
	embedder := &stubEmbedder{}
	store := sparseStore(t, "bills",
		[]string{"budget provisions"},
		[]map[string]any{{"name": "d0", "content": "budget provisions"}})

	r := New(store, embedder, 5)
	for _, query := range []string{"", "   ", "\t\n"} {
		out, err := r.Retrieve(context.Background(), query, 5)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
	assert.Zero(t, embedder.calls)
}

func TestRetrieveSparseRanking(t *testing.T) {
	store := sparseStore(t, "bills",
		[]string{
			"Urban Council budget passes within two weeks.",
			"Municipal composition amended.",
			"Fisheries licensing schedule revised.",
		},
		[]map[string]any{
			{"name": "d0", "type": "bill", "content": "Urban Council budget passes within two weeks."},
			{"name": "d1", "type": "bill", "content": "Municipal composition amended."},
			{"name": "d2", "type": "bill", "content": "Fisheries licensing schedule revised."},
		})

	r := New(store, nil, 5)
	out, err := r.Retrieve(context.Background(), "Urban Council budget deadline", 2)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "d0", out[0].Document.Name)
	assert.Positive(t, out[0].Score)
	assert.Equal(t, 1, out[0].SparseRank)
	assert.Zero(t, out[0].DenseRank)
}

func TestRetrieveTruncatesToK(t *testing.T) {
	contents := []string{
		"budget first", "budget second", "budget third",
		"budget fourth", "budget fifth", "budget sixth",
	}
	docs := make([]map[string]any, len(contents))
	for i, c := range contents {
		docs[i] = map[string]any{"name": string(rune('a' + i)), "content": c}
	}
	store := sparseStore(t, "bills", contents, docs)

	r := New(store, nil, 4)
	out, err := r.Retrieve(context.Background(), "budget", 3)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	// k <= 0 falls back to the configured default.
	out, err = r.Retrieve(context.Background(), "budget", 0)
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func TestRetrieveScoreMonotonicity(t *testing.T) {
	store := sparseStore(t, "bills",
		[]string{
			"budget deadline extension approved budget",
			"budget committee report",
			"committee membership list",
		},
		[]map[string]any{
			{"name": "d0", "content": "budget deadline extension approved budget"},
			{"name": "d1", "content": "budget committee report"},
			{"name": "d2", "content": "committee membership list"},
		})

	r := New(store, nil, 5)
	out, err := r.Retrieve(context.Background(), "budget deadline", 5)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
	assert.Equal(t, "d0", out[0].Document.Name)
}

func TestFuseCombinesPaths(t *testing.T) {
	c := &indexstore.Collection{
		Key: "bills",
		Docs: []indexstore.Document{
			{Name: "d0", CollectionKey: "bills", Content: "Urban Council budget passes within two weeks."},
			{Name: "d1", CollectionKey: "bills", Content: "Municipal composition amended."},
		},
	}

	dense := []pathHit{{docIdx: 0, score: 0.9}, {docIdx: 1, score: 0.4}}
	sparse := []pathHit{{docIdx: 0, score: 1.0}}

	out := fuse(c, dense, sparse, 2)
	require.Len(t, out, 2)

	// d0: rank 1 in both lists → 2/61. d1: dense rank 2 → 1/62.
	assert.Equal(t, "d0", out[0].Document.Name)
	assert.InDelta(t, 2.0/61.0, out[0].Score, 1e-12)
	assert.Equal(t, 2, out[0].Lists)
	assert.Equal(t, "d1", out[1].Document.Name)
	assert.InDelta(t, 1.0/62.0, out[1].Score, 1e-12)
	assert.Greater(t, out[0].Score, out[1].Score)
}

func TestMergeAccumulatesCrossListedDocuments(t *testing.T) {
	shared := "Shared provision text appearing in both collections."

	acts := []Scored{{
		Document: indexstore.Document{Name: "x", CollectionKey: "acts", Content: shared},
		Score:    2.0 / 61.0, DenseRank: 1, SparseRank: 1, Lists: 2,
	}}
	bills := []Scored{
		{
			Document: indexstore.Document{Name: "x", CollectionKey: "bills", Content: shared},
			Score:    2.0 / 61.0, DenseRank: 1, SparseRank: 1, Lists: 2,
		},
		{
			Document: indexstore.Document{Name: "y", CollectionKey: "bills", Content: "Another provision."},
			Score:    3.0 / 61.0, DenseRank: 1, Lists: 1,
		},
	}

	out := mergeCollections([][]Scored{acts, bills}, 5)
	require.Len(t, out, 2)

	// The cross-listed document earns 2/61 from each collection and
	// outranks the 3/61 singleton.
	assert.Equal(t, "x", out[0].Document.Name)
	assert.InDelta(t, 4.0/61.0, out[0].Score, 1e-12)
	assert.Equal(t, "y", out[1].Document.Name)
}

func TestMergeDedupeKeepsDistinctDocuments(t *testing.T) {
	a := []Scored{{Document: indexstore.Document{Name: "a", CollectionKey: "acts", Content: "alpha"}, Score: 0.01}}
	b := []Scored{{Document: indexstore.Document{Name: "b", CollectionKey: "bills", Content: "beta"}, Score: 0.02}}

	out := mergeCollections([][]Scored{a, b}, 5)
	assert.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Document.Name)
}

func TestSortScoredTieBreaks(t *testing.T) {
	doc := func(key, name string) indexstore.Document {
		return indexstore.Document{CollectionKey: key, Name: name}
	}

	t.Run("more lists wins", func(t *testing.T) {
		ss := []Scored{
			{Document: doc("bills", "a"), Score: 0.5, Lists: 1, DenseRank: 1},
			{Document: doc("bills", "b"), Score: 0.5, Lists: 2, DenseRank: 2},
		}
		sortScored(ss)
		assert.Equal(t, "b", ss[0].Document.Name)
	})

	t.Run("lower dense rank wins", func(t *testing.T) {
		ss := []Scored{
			{Document: doc("bills", "a"), Score: 0.5, Lists: 1, DenseRank: 3},
			{Document: doc("bills", "b"), Score: 0.5, Lists: 1, DenseRank: 1},
		}
		sortScored(ss)
		assert.Equal(t, "b", ss[0].Document.Name)
	})

	t.Run("absent dense rank loses", func(t *testing.T) {
		ss := []Scored{
			{Document: doc("bills", "a"), Score: 0.5, Lists: 1},
			{Document: doc("bills", "b"), Score: 0.5, Lists: 1, DenseRank: 4},
		}
		sortScored(ss)
		assert.Equal(t, "b", ss[0].Document.Name)
	})

	t.Run("lexicographic key last", func(t *testing.T) {
		ss := []Scored{
			{Document: doc("bills", "z"), Score: 0.5, Lists: 1, DenseRank: 1},
			{Document: doc("acts", "z"), Score: 0.5, Lists: 1, DenseRank: 1},
		}
		sortScored(ss)
		assert.Equal(t, "acts", ss[0].Document.CollectionKey)
	})
}

func TestSparseSearchNormalization(t *testing.T) {
	corpus := [][]string{
		{"budget", "deadline", "budget"},
		{"budget", "report"},
		{"unrelated", "text"},
	}
	c := &indexstore.Collection{
		Key:    "bills",
		Sparse: bm25.NewIndex(corpus),
		Docs: []indexstore.Document{
			{Name: "d0"}, {Name: "d1"}, {Name: "d2"},
		},
	}

	hits := sparseSearch(c, []string{"budget", "deadline"}, 5)
	require.Len(t, hits, 2)
	// Min-max within the returned set: best 1.0, worst 0.0.
	assert.Equal(t, 0, hits[0].docIdx)
	assert.InDelta(t, 1.0, hits[0].score, 1e-12)
	assert.InDelta(t, 0.0, hits[1].score, 1e-12)
}

func TestSparseSearchAllEqualNormalizesToOne(t *testing.T) {
	corpus := [][]string{
		{"budget", "alpha"},
		{"budget", "beta"},
		{"gamma", "delta"},
	}
	c := &indexstore.Collection{
		Key:    "bills",
		Sparse: bm25.NewIndex(corpus),
		Docs:   []indexstore.Document{{Name: "d0"}, {Name: "d1"}, {Name: "d2"}},
	}

	hits := sparseSearch(c, []string{"budget"}, 5)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.InDelta(t, 1.0, h.score, 1e-12)
	}
}

func TestRetrieveDocsFilenames(t *testing.T) {
	store := sparseStore(t, "bills",
		[]string{"budget provisions text", "fisheries licensing", "land registry notice"},
		[]map[string]any{
			{"name": "01-2013_2024_E", "type": "bill", "content": "budget provisions text"},
			{"name": "02-2014_2024_E", "type": "bill", "content": "fisheries licensing"},
			{"name": "03-2015_2024_E", "type": "bill", "content": "land registry notice"},
		})

	r := New(store, nil, 5)
	contents, filenames, err := r.RetrieveDocs(context.Background(), "budget", 5)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, "budget provisions text", contents[0])
	assert.Equal(t, []string{"bills/01-2013_2024_E"}, filenames)
}
