package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"time"
)

// OllamaEncoder implements Encoder using the Ollama /api/embed endpoint.
// Ollama embedding models are text-only, so this backend can only serve
// text queries; it exists for deployments that skip visual search entirely.
// No API key is required — Ollama runs locally.
type OllamaEncoder struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string
	// model is the embedding model name (e.g. "nomic-embed-text").
	model string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEncoder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
}

// NewOllamaEncoder constructs an OllamaEncoder from the given config.
func NewOllamaEncoder(cfg *OllamaConfig) *OllamaEncoder {
	return &OllamaEncoder{
		host:   cfg.Host,
		model:  cfg.Model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// ollamaEmbedRequest is the JSON body sent to the Ollama /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the JSON body returned from the Ollama /api/embed endpoint.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// EncodeText returns the embedding for a single text query.
func (e *OllamaEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	body := ollamaEmbedRequest{Model: e.model, Input: []string{text}}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ollama encoder: marshal request: %w", err)
	}

	url := e.host + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama encoder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama encoder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama encoder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("ollama encoder: %s", msg)
	}

	if len(result.Embeddings) != 1 {
		return nil, fmt.Errorf("ollama encoder: expected 1 embedding, got %d", len(result.Embeddings))
	}

	return result.Embeddings[0], nil
}

// EncodeImage always fails: Ollama embedding models have no image tower.
// Deployments that need visual search must use the clip backend.
func (e *OllamaEncoder) EncodeImage(ctx context.Context, _ image.Image) ([]float32, error) {
	return nil, fmt.Errorf("ollama encoder: image queries are not supported by the ollama backend — set ENCODER_BACKEND=clip")
}
