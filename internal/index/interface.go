// Package index defines the vector index boundary used by the search engine
// and its concrete backends: a local flat inner-product index loaded from a
// pre-built file, and a Qdrant-backed index for larger catalogs. Both are
// read-only after construction and safe for concurrent searches.
package index

import (
	"context"
)

// SentinelID is the neighbor id emitted for padding slots when an index
// holds fewer vectors than the requested top-k. Callers must skip it.
const SentinelID int64 = -1

// Hit is a single nearest-neighbor result.
type Hit struct {
	// ID is the catalog row position of the matched vector, or SentinelID
	// for a padding slot.
	ID int64

	// Score is the inner-product similarity with the query vector. Because
	// stored vectors are unit-normalized this equals cosine similarity.
	Score float32
}

// Index is the read-only nearest-neighbor search boundary.
// Query vectors must be L2-normalized and match Dimensions.
type Index interface {
	// Search returns up to topK hits ordered by descending similarity.
	// Backends may pad the tail with SentinelID hits when fewer than topK
	// vectors exist.
	Search(ctx context.Context, vec []float32, topK int) ([]Hit, error)

	// Dimensions returns the vector dimensionality of the index.
	Dimensions() int

	// Close releases any resources held by the index.
	Close() error
}
