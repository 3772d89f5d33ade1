// Package rerank provides the second-stage relevance scorer: a cross-encoder
// model that jointly scores (query, candidate-description) pairs. It is more
// accurate than the first-stage vector search but costs one model call per
// batch, so it only runs over the small retrieved candidate set.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Reranker scores a batch of candidate texts against a single query.
// Implementations must be safe to call from multiple goroutines.
type Reranker interface {
	// Rank returns one relevance score per text, parallel to the input
	// slice, computed in a single batched model call. Higher is more
	// relevant. Callers must not pass an empty batch.
	Rank(ctx context.Context, query string, texts []string) ([]float32, error)
}

// CrossEncoder implements Reranker against an HTTP reranking service
// exposing a POST /rerank endpoint (text-embeddings-inference style).
type CrossEncoder struct {
	// endpoint is the reranker service base URL.
	endpoint string
	// model is the cross-encoder model name (e.g. "ms-marco-MiniLM-L-6-v2").
	model string
	// apiKey is the optional Bearer token for the service.
	apiKey string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// Config holds the settings for constructing a CrossEncoder.
type Config struct {
	// Endpoint is the reranker service base URL.
	Endpoint string
	// Model is the cross-encoder model name.
	Model string
	// APIKey is the optional Bearer token for the service.
	APIKey string
}

// NewCrossEncoder constructs a CrossEncoder from the given config.
func NewCrossEncoder(cfg *Config) *CrossEncoder {
	return &CrossEncoder{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// NewFromEnv constructs a Reranker from environment variables, or nil when
// RERANKER_ENDPOINT is unset — reranking is optional and text queries then
// keep their nearest-neighbor order.
//
//	RERANKER_ENDPOINT = service base URL
//	RERANKER_MODEL    = model name (default: ms-marco-MiniLM-L-6-v2)
//	RERANKER_API_KEY  = optional Bearer token
func NewFromEnv() Reranker {
	endpoint := os.Getenv("RERANKER_ENDPOINT")
	if endpoint == "" {
		return nil
	}
	model := os.Getenv("RERANKER_MODEL")
	if model == "" {
		model = "ms-marco-MiniLM-L-6-v2"
	}
	return NewCrossEncoder(&Config{
		Endpoint: endpoint,
		Model:    model,
		APIKey:   os.Getenv("RERANKER_API_KEY"),
	})
}

// rerankRequest is the JSON body sent to the /rerank endpoint.
type rerankRequest struct {
	Model string   `json:"model"`
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

// rerankResponse is the JSON body returned from the /rerank endpoint.
// Scores are parallel to the request texts.
type rerankResponse struct {
	Scores []float32 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

// Rank scores every (query, text) pair in one batched call.
func (r *CrossEncoder) Rank(ctx context.Context, query string, texts []string) ([]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("reranker: empty batch — callers must short-circuit before scoring")
	}

	payload, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("reranker: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("reranker: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reranker: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("reranker: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("reranker: %s", msg)
	}

	if len(result.Scores) != len(texts) {
		return nil, fmt.Errorf("reranker: expected %d scores, got %d", len(texts), len(result.Scores))
	}

	return result.Scores, nil
}

// Ping probes the reranker service health endpoint. Used by readiness checks.
func (r *CrossEncoder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("reranker: create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("reranker: unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reranker: health returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (r *CrossEncoder) Name() string { return "reranker" }
