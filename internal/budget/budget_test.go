package budget

import (
	"strings"
	"testing"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "empty", in: "", want: 0},
		{name: "short rounds up", in: "hi", want: 1},
		{name: "exact multiple", in: "12345678", want: 2},
		{name: "one over", in: "123456789", want: 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Estimate(tc.in); got != tc.want {
				t.Errorf("Estimate(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func Test_TrimOldest_KeepsAllWithinBudget(t *testing.T) {
	t.Parallel()
	items := []string{"aaaa", "bbbb", "cccc"}

	got := TrimOldest(10, items, 100)
	if len(got) != 3 {
		t.Fatalf("nothing should be trimmed, got %d items", len(got))
	}
}

func Test_TrimOldest_DropsOldestFirst(t *testing.T) {
	t.Parallel()
	// Each item costs 10 tokens; fixed cost 5; budget 25 fits two items.
	item := strings.Repeat("x", 40)
	items := []string{item + "old", item + "mid", item + "new"}

	got := TrimOldest(5, items, 27)
	if len(got) != 2 {
		t.Fatalf("want 2 surviving items, got %d", len(got))
	}
	if !strings.HasSuffix(got[0], "mid") || !strings.HasSuffix(got[1], "new") {
		t.Errorf("most recent items must survive, got %v", got)
	}
}

func Test_TrimOldest_FixedCostAloneOverBudget(t *testing.T) {
	t.Parallel()
	items := []string{"aaaa", "bbbb"}

	got := TrimOldest(1000, items, 10)
	if len(got) != 0 {
		t.Errorf("all items should be dropped when fixed cost exceeds budget, got %v", got)
	}
}

func Test_TrimOldest_EmptyInput(t *testing.T) {
	t.Parallel()
	if got := TrimOldest(0, nil, 10); len(got) != 0 {
		t.Errorf("want empty result for empty input, got %v", got)
	}
}

func Test_TrimOldest_DoesNotModifyInput(t *testing.T) {
	t.Parallel()
	items := []string{strings.Repeat("a", 100), "keep"}

	TrimOldest(0, items, 5)
	if items[0] != strings.Repeat("a", 100) || items[1] != "keep" {
		t.Error("input slice was modified")
	}
}
