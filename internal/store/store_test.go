package store

import (
	"context"
	"testing"

	"github.com/lmarban/shopmind-go/internal/catalog"
	"github.com/lmarban/shopmind-go/internal/engine"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "sess-a", engine.ConversationTurn{Role: engine.RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := s.Append(ctx, "sess-a", engine.ConversationTurn{Role: engine.RoleAssistant, Content: "world"}); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	turns, err := s.Recent(ctx, "sess-a", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("want 2 turns, got %d", len(turns))
	}
	if turns[0].Role != engine.RoleUser || turns[0].Content != "hello" {
		t.Errorf("turn[0]: want user/hello, got %s/%s", turns[0].Role, turns[0].Content)
	}
	if turns[1].Role != engine.RoleAssistant || turns[1].Content != "world" {
		t.Errorf("turn[1]: want assistant/world, got %s/%s", turns[1].Role, turns[1].Content)
	}
}

func Test_Store_ProductsRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	turn := engine.ConversationTurn{
		Role:    engine.RoleAssistant,
		Content: "how about these",
		Products: engine.CandidateSet{
			{Product: catalog.Product{Name: "Trail Runner X", Colour: "Blue"}, Score: 0.91},
			{Product: catalog.Product{Name: "City Walker", Colour: "Black"}, Score: 0.72},
		},
	}
	if err := s.Append(ctx, "sess-p", turn); err != nil {
		t.Fatalf("append: %v", err)
	}

	turns, err := s.Recent(ctx, "sess-p", 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("want 1 turn, got %d", len(turns))
	}
	got := turns[0].Products
	if len(got) != 2 {
		t.Fatalf("want 2 products, got %d", len(got))
	}
	if got[0].Product.Name != "Trail Runner X" || got[0].Score != 0.91 {
		t.Errorf("product[0]: got %+v", got[0])
	}
	if got[1].Product.Colour != "Black" {
		t.Errorf("product[1]: got %+v", got[1])
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		role := engine.RoleUser
		if i%2 == 1 {
			role = engine.RoleAssistant
		}
		if err := s.Append(ctx, "sess-b", engine.ConversationTurn{Role: role, Content: "msg"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	turns, err := s.Recent(ctx, "sess-b", 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 4 {
		t.Errorf("want 4 turns, got %d", len(turns))
	}
}

func Test_Store_SessionIsolation(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "sess-x", engine.ConversationTurn{Role: engine.RoleUser, Content: "from x"}); err != nil {
		t.Fatalf("append x: %v", err)
	}
	if err := s.Append(ctx, "sess-y", engine.ConversationTurn{Role: engine.RoleUser, Content: "from y"}); err != nil {
		t.Fatalf("append y: %v", err)
	}

	turnsX, err := s.Recent(ctx, "sess-x", 10)
	if err != nil {
		t.Fatalf("recent x: %v", err)
	}
	turnsY, err := s.Recent(ctx, "sess-y", 10)
	if err != nil {
		t.Fatalf("recent y: %v", err)
	}

	if len(turnsX) != 1 || turnsX[0].Content != "from x" {
		t.Errorf("session x isolation failed: got %v", turnsX)
	}
	if len(turnsY) != 1 || turnsY[0].Content != "from y" {
		t.Errorf("session y isolation failed: got %v", turnsY)
	}
}

func Test_Store_EmptySessionReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	turns, err := s.Recent(context.Background(), "sess-empty", 10)
	if err != nil {
		t.Fatalf("recent empty: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("want 0 turns, got %d", len(turns))
	}
}

func Test_Store_OldestFirstOrdering(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		if err := s.Append(ctx, "sess-order", engine.ConversationTurn{Role: engine.RoleUser, Content: c}); err != nil {
			t.Fatalf("append %q: %v", c, err)
		}
	}

	turns, err := s.Recent(ctx, "sess-order", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("want 2 turns, got %d", len(turns))
	}
	if turns[0].Content != "second" || turns[1].Content != "third" {
		t.Errorf("want tail [second third] oldest-first, got [%s %s]", turns[0].Content, turns[1].Content)
	}
}
