// Package index holds the nearest-neighbour structures the RAG pipeline searches.
//
// Vectors are addressed by position: the i-th vector passed to Build belongs to the
// i-th document of the corpus, and every Neighbor returned by Search carries that
// position back.
package index

import (
	"context"
	"errors"
)

var (
	ErrDimensionMismatch = errors.New("index: vector dimension mismatch")
	ErrInvalidK          = errors.New("index: k must be at least 1")
	ErrEmptyIndex        = errors.New("index: index is empty")
)

// Neighbor is one search hit.
type Neighbor struct {
	Position int
	Distance float64
}

// Index is built once and then queried; there is no delete or update path.
type Index interface {
	// Build replaces the contents of the index with vectors.
	Build(ctx context.Context, vectors [][]float32) error

	// Search returns up to k neighbors of query in ascending distance order.
	// k larger than Len is clamped to Len.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)

	Len() int
}

// ClampK bounds k by the number of indexed vectors.
func ClampK(k, size int) (int, error) {
	if k < 1 {
		return 0, ErrInvalidK
	}
	if size == 0 {
		return 0, ErrEmptyIndex
	}
	if k > size {
		return size, nil
	}
	return k, nil
}
