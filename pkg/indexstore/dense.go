package indexstore

import (
	"fmt"

	faiss "github.com/blevesearch/go-faiss"
)

// DenseIndex wraps a read-only FAISS index file. Searches are safe
// for concurrent use; the underlying index is never mutated after
// load.
type DenseIndex struct {
	index faiss.Index
}

// OpenDenseIndex memory-maps the FAISS index at path.
func OpenDenseIndex(path string) (*DenseIndex, error) {
	index, err := faiss.ReadIndex(path, faiss.IOFlagReadOnly)
	if err != nil {
		return nil, fmt.Errorf("reading faiss index %s: %w", path, err)
	}
	return &DenseIndex{index: index}, nil
}

// Search returns the positions and L2 distances of the k nearest
// neighbors of vector, nearest first. FAISS pads short result sets
// with label -1; callers must drop those.
func (d *DenseIndex) Search(vector []float32, k int) (labels []int64, distances []float32, err error) {
	if len(vector) != d.Dim() {
		return nil, nil, fmt.Errorf("query vector dimension %d does not match index dimension %d",
			len(vector), d.Dim())
	}

	distances, labels, err = d.index.Search(vector, int64(k))
	if err != nil {
		return nil, nil, fmt.Errorf("faiss search: %w", err)
	}
	return labels, distances, nil
}

// Dim returns the index vector dimension.
func (d *DenseIndex) Dim() int {
	return d.index.D()
}

// Count returns the number of indexed vectors.
func (d *DenseIndex) Count() int64 {
	return d.index.Ntotal()
}

// Close frees the native index.
func (d *DenseIndex) Close() {
	if d.index != nil {
		d.index.Delete()
		d.index = nil
	}
}
