package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/lmarban/shopmind-go/internal/catalog"
	"github.com/lmarban/shopmind-go/internal/encoder"
	"github.com/lmarban/shopmind-go/internal/engine"
	"github.com/lmarban/shopmind-go/internal/generator"
	"github.com/lmarban/shopmind-go/internal/index"
	"github.com/lmarban/shopmind-go/internal/provider"
	"github.com/lmarban/shopmind-go/internal/rerank"
	"github.com/lmarban/shopmind-go/internal/server"
)

// buildEngine wires the full discovery pipeline from environment config:
// encoder, index backend, catalog, optional reranker, and optional
// generation backend. The returned cleanup function closes the index and
// must be called before exit. The returned pingers probe the remote
// dependencies for GET /api/ready.
func buildEngine(ctx context.Context, log *slog.Logger) (*engine.Engine, []server.Pinger, func(), error) {
	enc, err := encoder.NewFromEnv()
	if err != nil {
		return nil, nil, nil, err
	}

	idx, err := buildIndex(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = idx.Close() }

	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		cleanup()
		return nil, nil, nil, fmt.Errorf("CATALOG_PATH is required — point it at the product metadata JSON built alongside the index")
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	// The flat index and catalog are built as a pair; a row-count mismatch
	// means the files are from different builds and every result would map
	// to the wrong product.
	if flat, ok := idx.(*index.FlatIndex); ok && flat.Count() != cat.Len() {
		cleanup()
		return nil, nil, nil, fmt.Errorf("index holds %d vectors but catalog has %d records — rebuild them together", flat.Count(), cat.Len())
	}

	rr := rerank.NewFromEnv()
	if rr == nil {
		log.Info("reranker disabled", slog.String("reason", "RERANKER_ENDPOINT not set"))
	}

	var gen generator.Generator
	if provider.Configured() {
		chatModel, err := provider.NewFromEnv(ctx)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
		}
		gen = generator.NewChatGenerator(chatModel)
	} else {
		log.Warn("generation backend not configured — replies will use the fixed fallback",
			slog.String("provider", os.Getenv("MODEL_PROVIDER")))
	}

	eng := engine.New(&engine.Config{
		Encoder:       enc,
		Index:         idx,
		Catalog:       cat,
		Reranker:      rr,
		Generator:     gen,
		TopK:          getEnvInt("RETRIEVAL_TOP_K", 0),
		FinalK:        getEnvInt("RETRIEVAL_FINAL_K", 0),
		HistoryWindow: getEnvInt("RETRIEVAL_HISTORY_WINDOW", 0),
	})

	var pingers []server.Pinger
	if p, ok := enc.(server.Pinger); ok {
		pingers = append(pingers, p)
	}
	if q, ok := idx.(*index.QdrantIndex); ok {
		pingers = append(pingers, server.NewQdrantPinger(q.Client()))
	}
	if p, ok := rr.(server.Pinger); ok {
		pingers = append(pingers, p)
	}

	return eng, pingers, cleanup, nil
}

// buildIndex constructs the vector index selected by INDEX_BACKEND.
//
//	INDEX_BACKEND = flat | qdrant (default: flat)
//	flat:   INDEX_PATH points at the pre-built vector file
//	qdrant: QDRANT_HOST, QDRANT_PORT, QDRANT_COLLECTION, QDRANT_API_KEY, QDRANT_TLS
func buildIndex(ctx context.Context) (index.Index, error) {
	backend := os.Getenv("INDEX_BACKEND")
	if backend == "" {
		backend = "flat"
	}

	switch backend {
	case "flat":
		path := os.Getenv("INDEX_PATH")
		if path == "" {
			return nil, fmt.Errorf("INDEX_PATH is required for the flat index backend")
		}
		return index.Open(path)

	case "qdrant":
		collection := os.Getenv("QDRANT_COLLECTION")
		if collection == "" {
			return nil, fmt.Errorf("QDRANT_COLLECTION is required for the qdrant index backend")
		}
		return index.NewQdrantIndex(ctx, &index.QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       getEnvInt("QDRANT_PORT", 0),
			Collection: collection,
			VectorSize: encoder.DefaultDimensions(os.Getenv("ENCODER_BACKEND")),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})

	default:
		return nil, fmt.Errorf("unknown INDEX_BACKEND %q — valid values: flat, qdrant", backend)
	}
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
