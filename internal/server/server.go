// Package server implements the HTTP server that exposes the product
// discovery pipeline as a REST API: text and image search plus a
// conversational chat endpoint with per-session history.
// The server is started by the `shopmind serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder for uploaded images
	_ "image/jpeg" // register JPEG decoder for uploaded images
	_ "image/png"  // register PNG decoder for uploaded images
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lmarban/shopmind-go/internal/engine"
	"github.com/lmarban/shopmind-go/internal/logging"
)

// defaultMaxImageBytes caps uploaded query images when Config.MaxImageBytes
// is zero.
const defaultMaxImageBytes = 8 << 20

// New constructs a Server around the given discovery pipeline.
func New(asst assistant, cfg *Config) (*Server, error) {
	if asst == nil {
		return nil, fmt.Errorf("server: assistant must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Generation calls dominate chat latency; allow for slow backends.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.MaxImageBytes == 0 {
		cfg.MaxImageBytes = defaultMaxImageBytes
	}

	s := &Server{
		assistant: asst,
		cfg:       cfg,
		log:       cfg.Logger,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.Registry),
		history:   cfg.History,
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		cfg.Logger.Warn("authentication disabled: SHOPMIND_API_KEY is not set")
	}
	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/search", protect("search", s.handleSearch))
	mux.Handle("POST /api/search/image", protect("search_image", s.handleSearchImage))
	mux.Handle("POST /api/chat", protect("chat", s.handleChat))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(cfg.Logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler. Exposed for tests that drive
// the full middleware chain through httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleSearch handles POST /api/search: a one-shot text query returning the
// final scored candidates as JSON.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	cands, err := s.assistant.Search(r.Context(), engine.TextQuery(req.Query))
	if err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues("text", "error").Inc()
		logging.FromContext(r.Context()).Error("search failed", slog.Any("error", err))
		http.Error(w, "search failed", http.StatusBadGateway)
		return
	}
	s.metrics.searchRequestsTotal.WithLabelValues("text", "ok").Inc()
	s.metrics.searchDurationSeconds.WithLabelValues("text").Observe(time.Since(start).Seconds())

	writeJSON(w, r, searchResponse{Products: toProductResults(cands)})
}

// handleSearchImage handles POST /api/search/image: a multipart upload with
// an "image" part, decoded and searched in the shared vector space. Image
// queries never pass through the reranker, so results keep their
// nearest-neighbor order.
func (s *Server) handleSearchImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxImageBytes)

	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, `multipart "image" part is required`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		http.Error(w, "could not decode image: unsupported or corrupt format", http.StatusBadRequest)
		return
	}

	start := time.Now()
	cands, err := s.assistant.Search(r.Context(), engine.ImageQuery{Image: img})
	if err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues("image", "error").Inc()
		logging.FromContext(r.Context()).Error("image search failed", slog.Any("error", err))
		http.Error(w, "search failed", http.StatusBadGateway)
		return
	}
	s.metrics.searchRequestsTotal.WithLabelValues("image", "ok").Inc()
	s.metrics.searchDurationSeconds.WithLabelValues("image").Observe(time.Since(start).Seconds())

	writeJSON(w, r, searchResponse{Products: toProductResults(cands)})
}

// handleChat handles POST /api/chat: search, generate a grounded reply over
// the session history, and persist both turns when a history store and
// session id are present.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	log := logging.FromContext(ctx)
	start := time.Now()

	var history []engine.ConversationTurn
	if s.history != nil && req.Session != "" {
		var err error
		history, err = s.history.Recent(ctx, req.Session, engine.DefaultHistoryWindow)
		if err != nil {
			// A broken history store degrades to a fresh conversation.
			log.Warn("history load failed, continuing without context", slog.Any("error", err))
		}
	}

	cands, err := s.assistant.Search(ctx, engine.TextQuery(req.Message))
	if err != nil {
		s.metrics.chatRequestsTotal.WithLabelValues("error").Inc()
		log.Error("chat search failed", slog.Any("error", err))
		http.Error(w, "search failed", http.StatusBadGateway)
		return
	}

	reply := s.assistant.Respond(ctx, req.Message, cands, history)

	if s.history != nil && req.Session != "" {
		userTurn := engine.ConversationTurn{Role: engine.RoleUser, Content: req.Message}
		asstTurn := engine.ConversationTurn{Role: engine.RoleAssistant, Content: reply, Products: cands}
		if err := s.history.Append(ctx, req.Session, userTurn); err != nil {
			log.Warn("history append failed", slog.Any("error", err))
		} else if err := s.history.Append(ctx, req.Session, asstTurn); err != nil {
			log.Warn("history append failed", slog.Any("error", err))
		}
	}

	s.metrics.chatRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.chatDurationSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	writeJSON(w, r, chatResponse{Reply: reply, Products: toProductResults(cands)})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the JSON response body.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}
