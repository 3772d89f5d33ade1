package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lmarban/shopmind-go/internal/engine"
	"github.com/lmarban/shopmind-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs GET /metrics.
	// If nil a private registry is created — tests stay hermetic either way.
	Registry *prometheus.Registry
	// History persists chat turns per session. If nil, history is disabled
	// and each /api/chat request is answered without prior context.
	History store.HistoryStore
	// MaxImageBytes caps the uploaded image size on /api/search/image.
	// Defaults to 8 MiB if zero.
	MaxImageBytes int64
}

// assistant is the interface the handlers call into the discovery pipeline.
// *engine.Engine satisfies it; tests inject a fake.
type assistant interface {
	// Search returns the final candidates for a query.
	Search(ctx context.Context, q engine.Query) (engine.CandidateSet, error)
	// Respond generates the conversational reply for a text query.
	Respond(ctx context.Context, queryText string, cands engine.CandidateSet, history []engine.ConversationTurn) string
}

// Server is the HTTP server that exposes the product discovery pipeline.
type Server struct {
	// assistant runs search and response generation for all handlers.
	assistant assistant
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// history persists chat turns; nil when history is disabled.
	history store.HistoryStore
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the user's natural language product query.
	Query string `json:"query"`
}

// productResult is one scored product in a search or chat response.
type productResult struct {
	Name        string  `json:"name"`
	Brand       string  `json:"brand,omitempty"`
	Category    string  `json:"category,omitempty"`
	SubCategory string  `json:"subcategory,omitempty"`
	ProductType string  `json:"product_type,omitempty"`
	Colour      string  `json:"colour,omitempty"`
	Usage       string  `json:"usage,omitempty"`
	Gender      string  `json:"gender,omitempty"`
	Image       string  `json:"image,omitempty"`
	Score       float32 `json:"score"`
}

// searchResponse is the JSON response for POST /api/search and
// POST /api/search/image.
type searchResponse struct {
	// Products holds the final candidates, most relevant first.
	Products []productResult `json:"products"`
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's natural language query.
	Message string `json:"message"`
	// Session groups turns into one conversation thread. Optional; an empty
	// session gets no history even when a history store is configured.
	Session string `json:"session,omitempty"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// Reply is the generated conversational recommendation.
	Reply string `json:"reply"`
	// Products holds the candidates the reply is grounded on.
	Products []productResult `json:"products"`
}

// toProductResults converts a candidate set to the wire representation.
func toProductResults(cands engine.CandidateSet) []productResult {
	out := make([]productResult, len(cands))
	for i, c := range cands {
		out[i] = productResult{
			Name:        c.Product.Name,
			Brand:       c.Product.Brand,
			Category:    c.Product.Category,
			SubCategory: c.Product.SubCategory,
			ProductType: c.Product.ProductType,
			Colour:      c.Product.Colour,
			Usage:       c.Product.Usage,
			Gender:      c.Product.Gender,
			Image:       c.Product.Image,
			Score:       c.Score,
		}
	}
	return out
}
