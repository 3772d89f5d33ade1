// Package engine implements the conversational product discovery pipeline:
// encode the query into the shared vector space, retrieve nearest catalog
// records, optionally rerank text queries with a cross-encoder, and generate
// a grounded natural-language recommendation over the final candidates.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/lmarban/shopmind-go/internal/budget"
	"github.com/lmarban/shopmind-go/internal/catalog"
	"github.com/lmarban/shopmind-go/internal/encoder"
	"github.com/lmarban/shopmind-go/internal/generator"
	"github.com/lmarban/shopmind-go/internal/index"
	"github.com/lmarban/shopmind-go/internal/logging"
	"github.com/lmarban/shopmind-go/internal/rerank"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	// DefaultTopK is the candidate pool size retrieved from the index
	// before reranking.
	DefaultTopK = 20
	// DefaultFinalK is the number of candidates surfaced to the user and
	// the generation prompt.
	DefaultFinalK = 3
	// DefaultHistoryWindow is the number of most recent conversation turns
	// included in the generation prompt.
	DefaultHistoryWindow = 3
)

// FallbackNoBackend is returned by Respond when no generation backend is
// configured. Retrieval results still reach the user through the candidate
// set.
const FallbackNoBackend = "Here are the closest matches I found. Configure a language model backend to get personalised recommendations."

// FallbackNoResults is returned by Respond when retrieval produced no
// candidates to ground a recommendation on.
const FallbackNoResults = "I couldn't find any matching products for that. Could you describe what you're looking for in a different way?"

// Config holds the collaborators and tuning knobs for an Engine.
// Encoder, Index and Catalog are required; Reranker and Generator are
// optional and degrade gracefully when nil.
type Config struct {
	Encoder encoder.Encoder
	Index   index.Index
	Catalog *catalog.Store

	// Reranker refines text-query candidate order. Nil disables the stage
	// and text queries keep their nearest-neighbor order.
	Reranker rerank.Reranker

	// Generator produces the conversational reply. Nil makes Respond fall
	// back to a fixed message.
	Generator generator.Generator

	// TopK is the first-stage retrieval depth (default DefaultTopK).
	TopK int
	// FinalK is the number of candidates returned by Search (default DefaultFinalK).
	FinalK int
	// HistoryWindow is the number of recent turns fed to the prompt
	// (default DefaultHistoryWindow).
	HistoryWindow int
	// MaxContextTokens bounds the assembled prompt size
	// (default budget.DefaultMaxContextTokens).
	MaxContextTokens int
}

// Engine runs the retrieve → rerank → respond pipeline. It is stateless
// between calls and safe for concurrent use; conversation history is owned
// by the caller.
type Engine struct {
	enc encoder.Encoder
	idx index.Index
	cat *catalog.Store
	rr  rerank.Reranker
	gen generator.Generator

	topK             int
	finalK           int
	historyWindow    int
	maxContextTokens int
}

// New constructs an Engine, applying defaults for zero-valued knobs.
func New(cfg *Config) *Engine {
	e := &Engine{
		enc:              cfg.Encoder,
		idx:              cfg.Index,
		cat:              cfg.Catalog,
		rr:               cfg.Reranker,
		gen:              cfg.Generator,
		topK:             cfg.TopK,
		finalK:           cfg.FinalK,
		historyWindow:    cfg.HistoryWindow,
		maxContextTokens: cfg.MaxContextTokens,
	}
	if e.topK <= 0 {
		e.topK = DefaultTopK
	}
	if e.finalK <= 0 {
		e.finalK = DefaultFinalK
	}
	if e.historyWindow <= 0 {
		e.historyWindow = DefaultHistoryWindow
	}
	if e.maxContextTokens <= 0 {
		e.maxContextTokens = budget.DefaultMaxContextTokens
	}
	return e
}

// Ready reports whether the required collaborators are wired. The optional
// reranker and generator do not affect readiness.
func (e *Engine) Ready() bool {
	return e.enc != nil && e.idx != nil && e.cat != nil
}

// Retrieve runs the first pipeline stage: embed the query and map the
// nearest index rows to catalog records. Retrieval failures are recovered
// to an empty candidate set — the conversation continues with "no results"
// rather than an error page.
func (e *Engine) Retrieve(ctx context.Context, q Query) CandidateSet {
	log := logging.FromContext(ctx)

	if !e.Ready() {
		log.WarnContext(ctx, "engine not ready, returning no candidates")
		return CandidateSet{}
	}

	vec, err := e.encode(ctx, q)
	if err != nil {
		log.WarnContext(ctx, "query encoding failed, returning no candidates", "error", err)
		return CandidateSet{}
	}
	encoder.Normalize(vec)

	hits, err := e.idx.Search(ctx, vec, e.topK)
	if err != nil {
		log.WarnContext(ctx, "index search failed, returning no candidates", "error", err)
		return CandidateSet{}
	}

	seen := make(map[int64]bool, len(hits))
	cands := make(CandidateSet, 0, len(hits))
	for _, h := range hits {
		if h.ID == index.SentinelID || seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		p, ok := e.cat.Get(int(h.ID))
		if !ok {
			log.WarnContext(ctx, "neighbor id out of catalog range, skipping", "id", h.ID, "catalog_size", e.cat.Len())
			continue
		}
		cands = append(cands, ScoredProduct{Product: p, Score: h.Score})
	}
	return cands
}

// Search runs retrieval plus, for text queries with a configured reranker,
// a single batched cross-encoder pass, and returns the top candidates.
// Unlike retrieval failures, a rerank failure is surfaced as an error:
// silently returning un-reranked results would change result quality
// without any signal to the caller.
func (e *Engine) Search(ctx context.Context, q Query) (CandidateSet, error) {
	cands := e.Retrieve(ctx, q)

	if text, ok := q.(TextQuery); ok && e.rr != nil && len(cands) > 0 {
		texts := make([]string, len(cands))
		for i, c := range cands {
			texts[i] = c.Product.SearchText()
		}
		scores, err := e.rr.Rank(ctx, string(text), texts)
		if err != nil {
			return nil, fmt.Errorf("engine: rerank failed: %w", err)
		}
		for i := range cands {
			cands[i].Score = scores[i]
		}
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].Score > cands[j].Score
		})
	}

	if len(cands) > e.finalK {
		cands = cands[:e.finalK]
	}
	return cands, nil
}

// Respond generates the conversational reply for a text query given the
// final candidates and prior turns. It never returns an error: generation
// failures become a user-visible explanation so the session survives
// backend outages.
func (e *Engine) Respond(ctx context.Context, queryText string, cands CandidateSet, history []ConversationTurn) string {
	if len(cands) == 0 {
		return FallbackNoResults
	}
	if e.gen == nil {
		return FallbackNoBackend
	}

	prompt := e.buildPrompt(queryText, cands, history)
	reply, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "generation failed", "error", err)
		return fmt.Sprintf("I found some matching products but couldn't write a recommendation right now (%v). Please try again.", err)
	}
	return reply
}

// encode dispatches to the encoder method matching the query kind.
func (e *Engine) encode(ctx context.Context, q Query) ([]float32, error) {
	switch v := q.(type) {
	case TextQuery:
		return e.enc.EncodeText(ctx, string(v))
	case ImageQuery:
		return e.enc.EncodeImage(ctx, v.Image)
	default:
		return nil, fmt.Errorf("engine: unsupported query type %T", q)
	}
}
