package engine

import (
	"image"

	"github.com/lmarban/shopmind-go/internal/catalog"
)

// Query is the closed set of input kinds the engine accepts. Exactly two
// implementations exist: TextQuery and ImageQuery.
type Query interface {
	isQuery()
}

// TextQuery is a natural-language product query.
type TextQuery string

func (TextQuery) isQuery() {}

// ImageQuery is a visual product query built from a decoded image.
type ImageQuery struct {
	// Image is the decoded query image in any color model; the encoder
	// flattens it to RGB before embedding.
	Image image.Image
}

func (ImageQuery) isQuery() {}

// ScoredProduct pairs a catalog record with its relevance score. After the
// first retrieval stage the score is cosine similarity; after reranking it
// is the cross-encoder score. The two scales are not comparable.
type ScoredProduct struct {
	Product catalog.Product
	Score   float32
}

// CandidateSet is an ordered list of scored products, most relevant first.
type CandidateSet []ScoredProduct

// Role labels who produced a conversation turn.
type Role string

const (
	// RoleUser marks a turn written by the shopper.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the engine.
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one entry in a session transcript.
type ConversationTurn struct {
	// Role identifies the speaker.
	Role Role `json:"role"`
	// Content is the turn text: the user's query or the assistant's reply.
	Content string `json:"content"`
	// Products holds the candidates shown alongside an assistant turn.
	// Empty for user turns.
	Products CandidateSet `json:"products,omitempty"`
}
