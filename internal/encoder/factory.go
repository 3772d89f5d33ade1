package encoder

import (
	"fmt"
	"os"
	"strconv"
)

// Default encoder models per backend.
const (
	defaultClipModel   = "clip-vit-b-32-multilingual-v1"
	defaultOllamaModel = "nomic-embed-text"

	// defaultClipDimensions is the output dimension of the CLIP ViT-B/32
	// family. Other models may differ — override with ENCODER_DIMENSIONS.
	defaultClipDimensions = 512
	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	defaultOllamaDimensions = 768
)

// DefaultDimensions returns the default embedding vector size for the given
// backend name. Callers that need to pre-check index compatibility should
// use this rather than hardcoding a value. ENCODER_DIMENSIONS always takes
// precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("ENCODER_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultClipDimensions
	}
}

// NewFromEnv constructs an Encoder from environment variables.
//
//	ENCODER_BACKEND    = clip | ollama                 (default: clip)
//	ENCODER_ENDPOINT   = service base URL              (default per backend)
//	ENCODER_MODEL      = model name                    (default per backend)
//	ENCODER_API_KEY    = optional Bearer token (clip only)
//	ENCODER_DIMENSIONS = override for index pre-checks
func NewFromEnv() (Encoder, error) {
	backend := getEnvOrDefault("ENCODER_BACKEND", "clip")

	switch backend {
	case "clip":
		endpoint := getEnvOrDefault("ENCODER_ENDPOINT", "http://localhost:8090")
		model := getEnvOrDefault("ENCODER_MODEL", defaultClipModel)
		return NewClipEncoder(&ClipConfig{
			Endpoint: endpoint,
			Model:    model,
			APIKey:   os.Getenv("ENCODER_API_KEY"),
		}), nil

	case "ollama":
		host := getEnv("ENCODER_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		model := getEnvOrDefault("ENCODER_MODEL", defaultOllamaModel)
		return NewOllamaEncoder(&OllamaConfig{
			Host:  host,
			Model: model,
		}), nil

	default:
		return nil, fmt.Errorf("encoder: unknown backend %q — valid values: clip, ollama", backend)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
