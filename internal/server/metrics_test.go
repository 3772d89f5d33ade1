package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func Test_Metrics_SearchCounterIncrements(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	s := newTestServer(t, &fakeAssistant{cands: twoCandidates()}, &Config{Registry: reg})

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"q"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	got := testutil.ToFloat64(s.metrics.searchRequestsTotal.WithLabelValues("text", "ok"))
	if got != 1 {
		t.Errorf("shopmind_search_requests_total{kind=text,outcome=ok} = %v, want 1", got)
	}
}

func Test_Metrics_ChatOutcomeLabels(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	s := newTestServer(t, &fakeAssistant{cands: twoCandidates(), reply: "ok"}, &Config{Registry: reg})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"q"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := testutil.ToFloat64(s.metrics.chatRequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("chat ok counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.metrics.chatRequestsTotal.WithLabelValues("error")); got != 0 {
		t.Errorf("chat error counter = %v, want 0", got)
	}
}

func Test_Metrics_EndpointExposesRegistry(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	s := newTestServer(t, &fakeAssistant{cands: twoCandidates()}, &Config{Registry: reg})

	// Generate one request so the counters have samples.
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"q"}`))
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	scrape := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, scrape)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"shopmind_search_requests_total",
		"shopmind_http_requests_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics exposition missing %q", want)
		}
	}
}

func Test_Metrics_HermeticRegistries(t *testing.T) {
	t.Parallel()
	// Two servers with separate registries must not collide on registration.
	s1 := newTestServer(t, &fakeAssistant{}, &Config{Registry: prometheus.NewRegistry()})
	s2 := newTestServer(t, &fakeAssistant{}, &Config{Registry: prometheus.NewRegistry()})
	_ = s1
	_ = s2
}
