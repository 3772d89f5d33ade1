package encoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"
)

// ClipEncoder implements Encoder against a CLIP-style multimodal embedding
// service exposing a POST /embed endpoint. Text and images share one model,
// which guarantees both query kinds land in the same vector space.
// It is safe for concurrent use.
type ClipEncoder struct {
	// endpoint is the encoder service base URL (e.g. "http://localhost:8090").
	endpoint string
	// model is the encoder model name (e.g. "clip-vit-b-32-multilingual-v1").
	model string
	// apiKey is the optional Bearer token for the service.
	apiKey string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// ClipConfig holds the settings for constructing a ClipEncoder.
type ClipConfig struct {
	// Endpoint is the encoder service base URL.
	Endpoint string
	// Model is the encoder model name.
	Model string
	// APIKey is the optional Bearer token for the service.
	APIKey string
}

// NewClipEncoder constructs a ClipEncoder from the given config.
func NewClipEncoder(cfg *ClipConfig) *ClipEncoder {
	return &ClipEncoder{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// clipEmbedRequest is the JSON body sent to the /embed endpoint. Exactly one
// of Input or Images is populated. Both are batches — images in particular
// must be wrapped as a single-element batch so the service never
// mis-interprets a bare payload as text.
type clipEmbedRequest struct {
	Model  string   `json:"model"`
	Input  []string `json:"input,omitempty"`
	Images []string `json:"images,omitempty"`
}

// clipEmbedResponse is the JSON body returned from the /embed endpoint.
type clipEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// EncodeText returns the embedding for a single text query.
func (e *ClipEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, &clipEmbedRequest{Model: e.model, Input: []string{text}})
}

// EncodeImage returns the embedding for a single decoded image. The image is
// flattened to 3-channel RGB first — alpha and palette inputs would
// otherwise hit a shape mismatch inside the encoder — then PNG-encoded and
// sent base64 as a one-element batch.
func (e *ClipEncoder) EncodeImage(ctx context.Context, img image.Image) ([]float32, error) {
	rgb := FlattenRGB(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgb); err != nil {
		return nil, fmt.Errorf("clip encoder: encode image: %w", err)
	}
	b64 := base64.StdEncoding.EncodeToString(buf.Bytes())

	return e.embed(ctx, &clipEmbedRequest{Model: e.model, Images: []string{b64}})
}

// embed posts the request to the service and returns the single embedding.
func (e *ClipEncoder) embed(ctx context.Context, body *clipEmbedRequest) ([]float32, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("clip encoder: marshal request: %w", err)
	}

	url := e.endpoint + "/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("clip encoder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clip encoder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result clipEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("clip encoder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("clip encoder: %s", msg)
	}

	if len(result.Embeddings) != 1 {
		return nil, fmt.Errorf("clip encoder: expected 1 embedding, got %d", len(result.Embeddings))
	}
	if len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("clip encoder: service returned empty embedding")
	}

	return result.Embeddings[0], nil
}

// Ping probes the encoder service health endpoint. Used by readiness checks.
func (e *ClipEncoder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("clip encoder: create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("clip encoder: unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clip encoder: health returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (e *ClipEncoder) Name() string { return "encoder" }
