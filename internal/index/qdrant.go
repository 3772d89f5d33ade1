package index

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection holding the product vectors.
	// Point ids must be the numeric catalog row positions.
	Collection string

	// VectorSize is the dimensionality of the stored embeddings.
	VectorSize int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Index backed by a Qdrant collection. The collection
// is treated strictly read-only: it must already exist and contain
// unit-normalized vectors produced by the same encoder the engine queries
// with. Unlike the flat backend, Qdrant never emits sentinel padding — a
// short collection simply returns fewer hits.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex connects to Qdrant and verifies the target collection
// exists. A missing collection is an initialization failure — the engine
// must not start against an empty or absent index.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("index: failed to create qdrant client: %w", err)
	}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("index: failed to check qdrant collection: %w", err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("index: qdrant collection %q does not exist — build the product index first", cfg.Collection)
	}

	return &QdrantIndex{client: client, cfg: cfg}, nil
}

// Dimensions returns the configured vector dimensionality.
func (x *QdrantIndex) Dimensions() int { return x.cfg.VectorSize }

// Client exposes the underlying gRPC client for readiness probes.
func (x *QdrantIndex) Client() *qdrant.Client { return x.client }

// Search performs a similarity query and returns hits ordered by descending
// score, with point ids mapped back to catalog row positions.
func (x *QdrantIndex) Search(ctx context.Context, vec []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("index: topK must be positive, got %d", topK)
	}

	limit := uint64(topK)
	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.cfg.Collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant query failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:    int64(r.Id.GetNum()),
			Score: r.Score,
		})
	}
	return hits, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (x *QdrantIndex) Close() error {
	return x.client.Close()
}
