// Package budget provides coarse token accounting for prompt assembly.
// Estimates use a fixed characters-per-token ratio rather than a real
// tokenizer; the goal is keeping prompts comfortably under model context
// limits, not exact counts.
package budget

// charsPerToken is a conservative approximation for English prose across
// the supported model families.
const charsPerToken = 4

// DefaultMaxContextTokens is the prompt budget used when no explicit limit
// is configured. It leaves generous headroom below the smallest context
// window among the supported backends.
const DefaultMaxContextTokens = 6000

// Estimate returns the approximate token count of s.
func Estimate(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// TrimOldest drops items from the front of the slice until the total of
// fixedTokens plus the estimated cost of the remaining items fits within
// maxTokens. Items are assumed ordered oldest first, so the most recent
// context survives. The input slice is not modified.
func TrimOldest(fixedTokens int, items []string, maxTokens int) []string {
	if len(items) == 0 {
		return items
	}

	total := fixedTokens
	costs := make([]int, len(items))
	for i, it := range items {
		costs[i] = Estimate(it)
		total += costs[i]
	}

	start := 0
	for start < len(items) && total > maxTokens {
		total -= costs[start]
		start++
	}
	return items[start:]
}
