package engine

import (
	"fmt"
	"strings"

	"github.com/lmarban/shopmind-go/internal/budget"
	"github.com/lmarban/shopmind-go/internal/catalog"
)

// promptPersona opens every generation prompt. The assistant voice is fixed
// here rather than configured, so responses stay consistent across backends.
const promptPersona = "You are a friendly and knowledgeable shopping assistant for a fashion store. You help customers find products they will love."

// promptInstructions closes every generation prompt with the grounding rules
// the model must follow.
const promptInstructions = `Instructions:
- Recommend only products from the list above. Never invent products.
- Justify each recommendation using the product attributes shown.
- If the customer asked for a variant that is not in the list (a different colour or size), say so honestly instead of pretending it exists.
- Keep the answer brief and persuasive.`

// buildPrompt assembles the generation prompt: persona, recent conversation
// turns, the verbatim query, the candidate products, and the grounding
// instructions. History is trimmed oldest-first when the assembled prompt
// would exceed the context budget.
func (e *Engine) buildPrompt(queryText string, cands CandidateSet, history []ConversationTurn) string {
	var products strings.Builder
	for _, c := range cands {
		products.WriteString(formatProduct(c.Product))
		products.WriteByte('\n')
	}

	fixed := promptPersona + "\n\nCustomer: " + queryText + "\n\nAvailable products:\n" + products.String() + "\n" + promptInstructions

	turns := history
	if len(turns) > e.historyWindow {
		turns = turns[len(turns)-e.historyWindow:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		label := "Customer"
		if t.Role == RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, label+": "+t.Content)
	}
	lines = budget.TrimOldest(budget.Estimate(fixed), lines, e.maxContextTokens)

	var b strings.Builder
	b.WriteString(promptPersona)
	b.WriteString("\n\n")
	if len(lines) > 0 {
		b.WriteString("Conversation so far:\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n\n")
	}
	b.WriteString("Customer: ")
	b.WriteString(queryText)
	b.WriteString("\n\nAvailable products:\n")
	b.WriteString(products.String())
	b.WriteString("\n")
	b.WriteString(promptInstructions)
	return b.String()
}

// formatProduct renders one candidate as a prompt bullet. Only populated
// attributes appear, so sparse catalog rows don't fill the prompt with
// empty fields.
func formatProduct(p catalog.Product) string {
	attrs := make([]string, 0, 7)
	for _, a := range []struct{ label, value string }{
		{"Category", p.Category},
		{"Subcategory", p.SubCategory},
		{"Product type", p.ProductType},
		{"Colour", p.Colour},
		{"Usage", p.Usage},
		{"Gender", p.Gender},
		{"Brand", p.Brand},
	} {
		if a.value != "" {
			attrs = append(attrs, a.label+": "+a.value)
		}
	}
	name := p.Name
	if name == "" {
		name = "Unnamed product"
	}
	if len(attrs) == 0 {
		return "- " + name
	}
	return fmt.Sprintf("- %s (%s)", name, strings.Join(attrs, ", "))
}
