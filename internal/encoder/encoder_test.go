package encoder

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_Normalize_UnitLength(t *testing.T) {
	t.Parallel()
	v := Normalize([]float32{3, 4})

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("normalized vector has squared norm %v, want 1", sum)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("unexpected direction after normalize: %v", v)
	}
}

func Test_Normalize_ZeroVectorUnchanged(t *testing.T) {
	t.Parallel()
	v := Normalize([]float32{0, 0, 0})
	for i, x := range v {
		if x != 0 {
			t.Errorf("zero vector changed at %d: %v", i, x)
		}
	}
}

func Test_FlattenRGB_AlphaComposited(t *testing.T) {
	t.Parallel()
	// Fully transparent source pixel must come out white, not black.
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	src.Set(1, 1, color.NRGBA{A: 0})

	out := FlattenRGB(src)

	r, g, b, a := out.At(1, 1).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("transparent pixel not composited over white: r=%v g=%v b=%v", r, g, b)
	}
	if a != 0xffff {
		t.Errorf("output should be fully opaque, alpha=%v", a)
	}

	r, g, b, _ = out.At(0, 0).RGBA()
	if r != 0xffff || g != 0 || b != 0 {
		t.Errorf("opaque red pixel altered: r=%v g=%v b=%v", r, g, b)
	}
}

func Test_FlattenRGB_PaletteExpanded(t *testing.T) {
	t.Parallel()
	pal := color.Palette{color.Black, color.NRGBA{G: 255, A: 255}}
	src := image.NewPaletted(image.Rect(0, 0, 1, 1), pal)
	src.SetColorIndex(0, 0, 1)

	out := FlattenRGB(src)
	_, g, _, _ := out.At(0, 0).RGBA()
	if g != 0xffff {
		t.Errorf("palette pixel lost on conversion: g=%v", g)
	}
}

// newClipTestServer returns a ClipEncoder wired to a stub embed service and
// a pointer to the most recent decoded request body.
func newClipTestServer(t *testing.T, embedding []float32) (*ClipEncoder, *clipEmbedRequest) {
	t.Helper()
	last := &clipEmbedRequest{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(last); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(clipEmbedResponse{Embeddings: [][]float32{embedding}})
	}))
	t.Cleanup(srv.Close)

	return NewClipEncoder(&ClipConfig{Endpoint: srv.URL, Model: "clip-test"}), last
}

func Test_ClipEncoder_EncodeText(t *testing.T) {
	t.Parallel()
	enc, last := newClipTestServer(t, []float32{0.1, 0.2})

	vec, err := enc.EncodeText(context.Background(), "red running shoes")
	if err != nil {
		t.Fatalf("encode text: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("want 2-dim vector, got %d", len(vec))
	}
	if len(last.Input) != 1 || last.Input[0] != "red running shoes" {
		t.Errorf("unexpected request input: %+v", last.Input)
	}
	if last.Model != "clip-test" {
		t.Errorf("model not forwarded: %q", last.Model)
	}
}

func Test_ClipEncoder_EncodeTextDeterministic(t *testing.T) {
	t.Parallel()
	enc, _ := newClipTestServer(t, []float32{0.5, 0.5})

	a, err := enc.EncodeText(context.Background(), "same query")
	if err != nil {
		t.Fatalf("first encode: %v", err)
	}
	b, err := enc.EncodeText(context.Background(), "same query")
	if err != nil {
		t.Fatalf("second encode: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("embedding differs at %d between identical inputs", i)
		}
	}
}

func Test_ClipEncoder_EncodeImageSingleElementBatch(t *testing.T) {
	t.Parallel()
	enc, last := newClipTestServer(t, []float32{0.3, 0.4})

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	if _, err := enc.EncodeImage(context.Background(), img); err != nil {
		t.Fatalf("encode image: %v", err)
	}

	if len(last.Images) != 1 {
		t.Fatalf("image must be sent as a single-element batch, got %d elements", len(last.Images))
	}
	if len(last.Input) != 0 {
		t.Errorf("image request must not carry text input: %+v", last.Input)
	}
	if last.Images[0] == "" {
		t.Error("image payload is empty")
	}
}

func Test_ClipEncoder_ServiceError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(clipEmbedResponse{Error: "model not loaded"})
	}))
	t.Cleanup(srv.Close)

	enc := NewClipEncoder(&ClipConfig{Endpoint: srv.URL, Model: "clip-test"})
	_, err := enc.EncodeText(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error from failing service")
	}
}

func Test_OllamaEncoder_RejectsImages(t *testing.T) {
	t.Parallel()
	enc := NewOllamaEncoder(&OllamaConfig{Host: "http://localhost:11434", Model: "nomic-embed-text"})

	_, err := enc.EncodeImage(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err == nil {
		t.Fatal("ollama backend must reject image queries")
	}
}

func Test_NewFromEnv_UnknownBackend(t *testing.T) {
	t.Setenv("ENCODER_BACKEND", "word2vec")
	if _, err := NewFromEnv(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func Test_DefaultDimensions(t *testing.T) {
	t.Setenv("ENCODER_DIMENSIONS", "")
	if got := DefaultDimensions("clip"); got != defaultClipDimensions {
		t.Errorf("clip dimensions: got %d, want %d", got, defaultClipDimensions)
	}
	if got := DefaultDimensions("ollama"); got != defaultOllamaDimensions {
		t.Errorf("ollama dimensions: got %d, want %d", got, defaultOllamaDimensions)
	}

	t.Setenv("ENCODER_DIMENSIONS", "1024")
	if got := DefaultDimensions("clip"); got != 1024 {
		t.Errorf("env override ignored: got %d", got)
	}
}
