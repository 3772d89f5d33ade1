package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_CrossEncoder_RankParallelScores(t *testing.T) {
	t.Parallel()
	var got rerankRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scores := make([]float32, len(got.Texts))
		for i := range scores {
			scores[i] = float32(i)
		}
		json.NewEncoder(w).Encode(rerankResponse{Scores: scores})
	}))
	t.Cleanup(srv.Close)

	ce := NewCrossEncoder(&Config{Endpoint: srv.URL, Model: "ce-test"})
	scores, err := ce.Rank(context.Background(), "red shoes", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	if len(scores) != 3 {
		t.Fatalf("want 3 scores, got %d", len(scores))
	}
	if got.Query != "red shoes" || got.Model != "ce-test" {
		t.Errorf("request not forwarded: %+v", got)
	}
	if len(got.Texts) != 3 {
		t.Errorf("texts must be sent in one batched call, got %d", len(got.Texts))
	}
}

func Test_CrossEncoder_RejectsEmptyBatch(t *testing.T) {
	t.Parallel()
	ce := NewCrossEncoder(&Config{Endpoint: "http://localhost:1", Model: "ce-test"})
	if _, err := ce.Rank(context.Background(), "query", nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func Test_CrossEncoder_ScoreCountMismatch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rerankResponse{Scores: []float32{0.5}})
	}))
	t.Cleanup(srv.Close)

	ce := NewCrossEncoder(&Config{Endpoint: srv.URL, Model: "ce-test"})
	if _, err := ce.Rank(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("expected error when score count does not match text count")
	}
}

func Test_CrossEncoder_ServiceError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(rerankResponse{Error: "model warming up"})
	}))
	t.Cleanup(srv.Close)

	ce := NewCrossEncoder(&Config{Endpoint: srv.URL, Model: "ce-test"})
	if _, err := ce.Rank(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("expected error from failing service")
	}
}

func Test_NewFromEnv_DisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("RERANKER_ENDPOINT", "")
	if rr := NewFromEnv(); rr != nil {
		t.Fatal("reranker should be nil when RERANKER_ENDPOINT is unset")
	}
}

func Test_NewFromEnv_DefaultModel(t *testing.T) {
	t.Setenv("RERANKER_ENDPOINT", "http://reranker.internal:8091")
	t.Setenv("RERANKER_MODEL", "")

	rr := NewFromEnv()
	ce, ok := rr.(*CrossEncoder)
	if !ok {
		t.Fatalf("want *CrossEncoder, got %T", rr)
	}
	if ce.model != "ms-marco-MiniLM-L-6-v2" {
		t.Errorf("default model: got %q", ce.model)
	}
}
