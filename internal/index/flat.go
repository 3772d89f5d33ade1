package index

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
)

// Flat index file layout, all little-endian:
//
//	[4]byte magic "SMIX"
//	uint32  format version (currently 1)
//	uint32  vector dimensionality
//	uint32  vector count
//	count × dim × float32 vector data, row-major
//
// Vectors must be unit-normalized at build time; search scores them with a
// plain inner product.
const (
	flatMagic   = "SMIX"
	flatVersion = 1
)

// FlatIndex is an exhaustive inner-product index held fully in memory.
// It is immutable after Open and safe for concurrent Search calls.
// For catalogs in the tens of thousands of rows a linear scan is faster
// than maintaining an ANN structure and has no recall loss.
type FlatIndex struct {
	// dim is the vector dimensionality.
	dim int
	// vectors holds all row vectors contiguously: row i starts at i*dim.
	vectors []float32
}

// Open reads a pre-built flat index file from path.
func Open(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	defer f.Close()

	var header struct {
		Magic   [4]byte
		Version uint32
		Dim     uint32
		Count   uint32
	}
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("index: read header of %s: %w", path, err)
	}
	if string(header.Magic[:]) != flatMagic {
		return nil, fmt.Errorf("index: %s is not a flat index file (bad magic %q)", path, header.Magic)
	}
	if header.Version != flatVersion {
		return nil, fmt.Errorf("index: %s has unsupported format version %d", path, header.Version)
	}
	if header.Dim == 0 {
		return nil, fmt.Errorf("index: %s declares zero dimensionality", path)
	}

	vectors := make([]float32, int(header.Dim)*int(header.Count))
	if err := binary.Read(f, binary.LittleEndian, vectors); err != nil {
		return nil, fmt.Errorf("index: read %d vectors from %s: %w", header.Count, path, err)
	}
	// A well-formed file ends exactly at the last vector.
	if _, err := f.Read(make([]byte, 1)); err != io.EOF {
		return nil, fmt.Errorf("index: %s has trailing data after %d vectors", path, header.Count)
	}

	return &FlatIndex{dim: int(header.Dim), vectors: vectors}, nil
}

// Dimensions returns the vector dimensionality of the index.
func (x *FlatIndex) Dimensions() int { return x.dim }

// Count returns the number of vectors in the index.
func (x *FlatIndex) Count() int { return len(x.vectors) / x.dim }

// Search scans every row and returns exactly topK hits ordered by descending
// inner-product score. When the index holds fewer than topK vectors the tail
// is padded with SentinelID hits, matching the contract of the ANN libraries
// this format replaces. Ties are broken by ascending row id so results are
// deterministic.
func (x *FlatIndex) Search(ctx context.Context, vec []float32, topK int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vec) != x.dim {
		return nil, fmt.Errorf("index: query dimension %d does not match index dimension %d", len(vec), x.dim)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("index: topK must be positive, got %d", topK)
	}

	count := x.Count()
	hits := make([]Hit, count)
	for i := 0; i < count; i++ {
		row := x.vectors[i*x.dim : (i+1)*x.dim]
		var score float32
		for j, v := range vec {
			score += row[j] * v
		}
		hits[i] = Hit{ID: int64(i), Score: score}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].ID < hits[b].ID
	})

	if count > topK {
		return hits[:topK], nil
	}
	for len(hits) < topK {
		hits = append(hits, Hit{ID: SentinelID})
	}
	return hits, nil
}

// Close releases the in-memory vector data.
func (x *FlatIndex) Close() error {
	x.vectors = nil
	return nil
}
