// Package generator wraps a chat model behind a minimal prompt-in, text-out
// interface. Keeping the surface this small lets the conversation engine run
// with any backend — or none at all — without knowing about chat schemas.
package generator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Generator produces a natural-language response for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatGenerator adapts an eino chat model to the Generator interface.
// The prompt already carries persona, history, query and product context,
// so each call is a single user message with no server-side state.
type ChatGenerator struct {
	chatModel model.ToolCallingChatModel
}

// NewChatGenerator wraps the given chat model.
func NewChatGenerator(chatModel model.ToolCallingChatModel) *ChatGenerator {
	return &ChatGenerator{chatModel: chatModel}
}

// Generate sends the prompt as a single user message and returns the model's
// text content.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("generator: chat model call failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("generator: chat model returned no message")
	}
	return resp.Content, nil
}
