package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lmarban/shopmind-go/internal/catalog"
	"github.com/lmarban/shopmind-go/internal/engine"
	"github.com/lmarban/shopmind-go/internal/store"
)

// fakeAssistant is a canned discovery pipeline for handler tests.
type fakeAssistant struct {
	cands      engine.CandidateSet
	searchErr  error
	reply      string
	gotQuery   engine.Query
	gotHistory []engine.ConversationTurn
}

func (f *fakeAssistant) Search(_ context.Context, q engine.Query) (engine.CandidateSet, error) {
	f.gotQuery = q
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.cands, nil
}

func (f *fakeAssistant) Respond(_ context.Context, _ string, _ engine.CandidateSet, history []engine.ConversationTurn) string {
	f.gotHistory = history
	return f.reply
}

// newTestServer builds a Server with a fresh registry and returns it with
// its assistant fake. Extra config is merged over the test defaults.
func newTestServer(t *testing.T, fake *fakeAssistant, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	s, err := New(fake, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

// twoCandidates is a small fixture result set.
func twoCandidates() engine.CandidateSet {
	return engine.CandidateSet{
		{Product: catalog.Product{Name: "Trail Runner X", Colour: "Blue"}, Score: 0.91},
		{Product: catalog.Product{Name: "City Walker", Colour: "Black"}, Score: 0.72},
	}
}

// pngUpload builds a multipart body with a tiny PNG in the named part.
func pngUpload(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "query.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(img.Bytes()); err != nil {
		t.Fatalf("write image part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func Test_HandleSearch_ReturnsScoredProducts(t *testing.T) {
	t.Parallel()
	fake := &fakeAssistant{cands: twoCandidates()}
	s := newTestServer(t, fake, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"blue shoes"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var resp searchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Products) != 2 {
		t.Fatalf("want 2 products, got %d", len(resp.Products))
	}
	if resp.Products[0].Name != "Trail Runner X" || resp.Products[0].Score != 0.91 {
		t.Errorf("product[0]: got %+v", resp.Products[0])
	}
	if q, ok := fake.gotQuery.(engine.TextQuery); !ok || string(q) != "blue shoes" {
		t.Errorf("query not forwarded: %#v", fake.gotQuery)
	}
}

func Test_HandleSearch_RejectsMissingQuery(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAssistant{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func Test_HandleSearch_RejectsMalformedBody(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAssistant{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func Test_HandleSearch_PipelineErrorReturns502(t *testing.T) {
	t.Parallel()
	fake := &fakeAssistant{searchErr: errors.New("reranker unreachable")}
	s := newTestServer(t, fake, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"q"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", rec.Code)
	}
}

func Test_HandleSearchImage_DecodesUpload(t *testing.T) {
	t.Parallel()
	fake := &fakeAssistant{cands: twoCandidates()}
	s := newTestServer(t, fake, nil)

	body, contentType := pngUpload(t, "image")
	req := httptest.NewRequest(http.MethodPost, "/api/search/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	if _, ok := fake.gotQuery.(engine.ImageQuery); !ok {
		t.Errorf("want ImageQuery, got %#v", fake.gotQuery)
	}
}

func Test_HandleSearchImage_RejectsMissingPart(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAssistant{}, nil)

	body, contentType := pngUpload(t, "file") // wrong field name
	req := httptest.NewRequest(http.MethodPost, "/api/search/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func Test_HandleSearchImage_RejectsCorruptImage(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAssistant{}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "broken.png")
	part.Write([]byte("definitely not a png"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/search/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func Test_HandleChat_ReturnsReplyAndProducts(t *testing.T) {
	t.Parallel()
	fake := &fakeAssistant{cands: twoCandidates(), reply: "try the trail runners"}
	s := newTestServer(t, fake, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"shoes for hiking"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var resp chatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != "try the trail runners" {
		t.Errorf("reply: got %q", resp.Reply)
	}
	if len(resp.Products) != 2 {
		t.Errorf("want 2 products, got %d", len(resp.Products))
	}
}

func Test_HandleChat_PersistsSessionHistory(t *testing.T) {
	t.Parallel()
	hs, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = hs.Close() })

	fake := &fakeAssistant{cands: twoCandidates(), reply: "first reply"}
	s := newTestServer(t, fake, &Config{History: hs})

	send := func(msg string) {
		body := `{"message":"` + msg + `","session":"sess-1"}`
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
		}
	}

	send("first question")
	if len(fake.gotHistory) != 0 {
		t.Errorf("first turn must see no history, got %d turns", len(fake.gotHistory))
	}

	send("second question")
	if len(fake.gotHistory) != 2 {
		t.Fatalf("second turn must see the first exchange, got %d turns", len(fake.gotHistory))
	}
	if fake.gotHistory[0].Role != engine.RoleUser || fake.gotHistory[0].Content != "first question" {
		t.Errorf("history[0]: got %+v", fake.gotHistory[0])
	}
	if fake.gotHistory[1].Role != engine.RoleAssistant || fake.gotHistory[1].Content != "first reply" {
		t.Errorf("history[1]: got %+v", fake.gotHistory[1])
	}
}

func Test_HandleChat_NoSessionSkipsHistory(t *testing.T) {
	t.Parallel()
	hs, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = hs.Close() })

	fake := &fakeAssistant{cands: twoCandidates(), reply: "ok"}
	s := newTestServer(t, fake, &Config{History: hs})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	turns, err := hs.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("sessionless chats must not be persisted, got %d turns", len(turns))
	}
}

func Test_New_RejectsNilAssistant(t *testing.T) {
	t.Parallel()
	if _, err := New(nil, &Config{Registry: prometheus.NewRegistry()}); err == nil {
		t.Fatal("expected error for nil assistant")
	}
}
