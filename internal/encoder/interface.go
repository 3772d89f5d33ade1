// Package encoder provides the multimodal embedding boundary: it maps a text
// string or a decoded image into a fixed-length vector in the shared space
// the product index was built in. The encoder service must run the same
// model weights used by the offline indexing job — mismatched weights make
// every search result meaningless.
package encoder

import (
	"context"
	"image"
)

// Encoder converts queries into dense vectors. Text and image inputs must
// land in the same vector space with the same dimensionality.
// Implementations must be safe to call from multiple goroutines.
type Encoder interface {
	// EncodeText returns the embedding for a single text query.
	EncodeText(ctx context.Context, text string) ([]float32, error)

	// EncodeImage returns the embedding for a single decoded image.
	// Implementations normalize the image to 3-channel RGB before encoding.
	EncodeImage(ctx context.Context, img image.Image) ([]float32, error)
}
