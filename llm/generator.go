package llm

import (
	"context"

	"legaldoc-backend/models"
)

// Generator produces text from a prompt. Implementations return a
// *RetryableError or *FatalError (possibly wrapped) when the call fails.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest is a single model call
type GenerateRequest struct {
	// Task names the caller for logs and traces ("validate", "analyze", "chat")
	Task        string
	System      string
	History     []models.ChatMessage
	Prompt      string
	JSON        bool // ask for a JSON object response
	Temperature float32
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}
