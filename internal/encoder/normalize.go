package encoder

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Normalize scales vec to unit length in place and returns it. The index is
// built for cosine similarity via inner product, so every query vector must
// be unit-normalized before search. A zero vector is returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// FlattenRGB converts img to a plain 3-channel RGB representation.
// Images with an alpha channel are composited over a white background and
// palette images are expanded, so the encoder never sees a shape it cannot
// handle. Images that are already alpha-free are still redrawn to strip the
// source color model.
func FlattenRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Over)
	return out
}
