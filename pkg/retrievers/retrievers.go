// Package retrievers implements hybrid retrieval over the index
// store: dense FAISS search and sparse BM25 search per collection,
// fused with Reciprocal Rank Fusion and merged across collections.
package retrievers

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lexlanka/gavel/pkg/bm25"
	"github.com/lexlanka/gavel/pkg/documents"
	"github.com/lexlanka/gavel/pkg/embedders"
	"github.com/lexlanka/gavel/pkg/indexstore"
)

// rrfK is the Reciprocal Rank Fusion constant: each list contributes
// 1/(rrfK+rank) with 1-based ranks.
const rrfK = 60

// Scored is one fused retrieval result.
type Scored struct {
	Document indexstore.Document

	// Score is the fused RRF score, accumulated across every list
	// the document appeared in.
	Score float64

	// DenseRank and SparseRank are 1-based positions in the
	// per-path lists, 0 when the document was absent from that path.
	DenseRank  int
	SparseRank int

	// Lists counts how many ranked lists contributed to the score.
	Lists int
}

// Retriever runs hybrid queries against the current store snapshot.
type Retriever struct {
	store    *indexstore.Store
	embedder embedders.Provider
	topK     int
}

// New builds a Retriever. topK is the default result count when a
// caller passes k <= 0.
func New(store *indexstore.Store, embedder embedders.Provider, topK int) *Retriever {
	if topK < 1 {
		topK = 5
	}
	return &Retriever{store: store, embedder: embedder, topK: topK}
}

// TopK returns the configured default result count.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve runs the hybrid query and returns at most k fused results.
// An empty or whitespace query returns nothing without touching the
// embedder. The dense path degrades silently when the embedder is
// unavailable; the sparse path still serves.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Scored, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if k <= 0 {
		k = r.topK
	}

	snap := r.store.Snapshot()
	collections := usableSorted(snap)
	if len(collections) == 0 {
		return nil, nil
	}

	// Embed once for all collections. A failed embed drops the dense
	// path for this query; sparse retrieval carries on.
	var vector []float32
	if r.embedder != nil && anyDense(collections) {
		v, err := r.embedder.Embed(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("query embedding failed, dense retrieval disabled for this query",
				"error", err)
		} else {
			vector = v
		}
	}

	tokens := bm25.Tokenize(query)

	results := make([][]Scored, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range collections {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.searchCollection(c, vector, tokens, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeCollections(results, k), nil
}

// RetrieveDocs is the legacy surface returning parallel content and
// filename slices, filenames rendered `<pluralized-type>/<name>`.
func (r *Retriever) RetrieveDocs(ctx context.Context, query string, k int) (contents []string, filenames []string, err error) {
	scored, err := r.Retrieve(ctx, query, k)
	if err != nil {
		return nil, nil, err
	}

	for _, s := range scored {
		contents = append(contents, s.Document.Content)
		filenames = append(filenames, documents.Pluralize(s.Document.Type)+"/"+s.Document.Name)
	}
	return contents, filenames, nil
}

func usableSorted(snap *indexstore.Snapshot) []*indexstore.Collection {
	out := snap.Usable()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func anyDense(collections []*indexstore.Collection) bool {
	for _, c := range collections {
		if c.Dense != nil {
			return true
		}
	}
	return false
}

// pathHit is one entry of a per-path ranked list.
type pathHit struct {
	docIdx int
	score  float64
}

// searchCollection runs both paths for one collection and fuses them.
func (r *Retriever) searchCollection(c *indexstore.Collection, vector []float32, tokens []string, k int) []Scored {
	var dense, sparse []pathHit

	if c.Dense != nil && vector != nil {
		dense = r.denseSearch(c, vector, k)
	}
	if c.Sparse != nil && len(tokens) > 0 {
		sparse = sparseSearch(c, tokens, k)
	}

	return fuse(c, dense, sparse, k)
}

// denseSearch returns the k nearest documents, nearest first, with L2
// distances converted to 1/(1+d) scores.
func (r *Retriever) denseSearch(c *indexstore.Collection, vector []float32, k int) []pathHit {
	labels, distances, err := c.Dense.Search(vector, k)
	if err != nil {
		slog.Warn("dense search failed", "collection", c.Key, "error", err)
		return nil
	}

	var hits []pathHit
	for i, label := range labels {
		if label < 0 || int(label) >= len(c.Docs) {
			continue
		}
		hits = append(hits, pathHit{
			docIdx: int(label),
			score:  1.0 / (1.0 + float64(distances[i])),
		})
	}
	return hits
}

// sparseSearch scores the whole corpus, keeps the top-k positive
// scores and min-max normalizes them within the returned set.
func sparseSearch(c *indexstore.Collection, tokens []string, k int) []pathHit {
	scores := c.Sparse.Scores(tokens)

	var hits []pathHit
	for i, score := range scores {
		if score <= 0 || i >= len(c.Docs) {
			continue
		}
		hits = append(hits, pathHit{docIdx: i, score: score})
	}
	if len(hits) == 0 {
		return nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].docIdx < hits[j].docIdx
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	lo, hi := hits[len(hits)-1].score, hits[0].score
	for i := range hits {
		if hi == lo {
			hits[i].score = 1.0
		} else {
			hits[i].score = (hits[i].score - lo) / (hi - lo)
		}
	}
	return hits
}

// fuse combines the per-path lists with RRF and returns the
// collection's top-k.
func fuse(c *indexstore.Collection, dense, sparse []pathHit, k int) []Scored {
	fused := make(map[int]*Scored)

	accumulate := func(hits []pathHit, isDense bool) {
		for rank, hit := range hits {
			s, ok := fused[hit.docIdx]
			if !ok {
				s = &Scored{Document: c.Docs[hit.docIdx]}
				fused[hit.docIdx] = s
			}
			s.Score += 1.0 / float64(rrfK+rank+1)
			s.Lists++
			if isDense {
				s.DenseRank = rank + 1
			} else {
				s.SparseRank = rank + 1
			}
		}
	}
	accumulate(dense, true)
	accumulate(sparse, false)

	out := make([]Scored, 0, len(fused))
	for _, s := range fused {
		out = append(out, *s)
	}
	sortScored(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// mergeCollections concatenates per-collection results, deduplicates
// by document identity accumulating scores, sorts and truncates. The
// same document cross-listed in several collections earns the sum of
// its per-collection fused scores.
func mergeCollections(results [][]Scored, k int) []Scored {
	merged := make(map[string]*Scored)
	var order []string

	for _, list := range results {
		for _, s := range list {
			key := mergeKey(&s.Document)
			existing, ok := merged[key]
			if !ok {
				copied := s
				merged[key] = &copied
				order = append(order, key)
				continue
			}
			existing.Score += s.Score
			existing.Lists += s.Lists
			if existing.DenseRank == 0 ||
				(s.DenseRank != 0 && s.DenseRank < existing.DenseRank) {
				existing.DenseRank = s.DenseRank
			}
		}
	}

	out := make([]Scored, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	sortScored(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// mergeKey identifies a document across collections: a content prefix
// when present, the store identity otherwise.
func mergeKey(d *indexstore.Document) string {
	if d.Content != "" {
		prefix := d.Content
		if len(prefix) > 100 {
			prefix = prefix[:100]
		}
		return prefix
	}
	return d.ID()
}

// sortScored orders by fused score descending with deterministic
// tie-breaks: more contributing lists, then lower dense rank, then the
// lexicographically smaller (collection key, name) pair.
func sortScored(ss []Scored) {
	sort.SliceStable(ss, func(i, j int) bool {
		a, b := &ss[i], &ss[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Lists != b.Lists {
			return a.Lists > b.Lists
		}
		if a.DenseRank != b.DenseRank {
			if a.DenseRank == 0 {
				return false
			}
			if b.DenseRank == 0 {
				return true
			}
			return a.DenseRank < b.DenseRank
		}
		ak := a.Document.CollectionKey + "/" + a.Document.Name
		bk := b.Document.CollectionKey + "/" + b.Document.Name
		return ak < bk
	})
}
