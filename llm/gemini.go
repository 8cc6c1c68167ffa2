package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"legaldoc-backend/models"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiGenerator calls a Gemini model through the genai SDK
type GeminiGenerator struct {
	client *genai.Client
	model  string
	policy RetryPolicy
}

// GeminiOption is a functional option for GeminiGenerator
type GeminiOption func(*GeminiGenerator)

// GeminiWithModel sets the model name
func GeminiWithModel(model string) GeminiOption {
	return func(g *GeminiGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// GeminiWithRetryPolicy overrides DefaultRetryPolicy
func GeminiWithRetryPolicy(p RetryPolicy) GeminiOption {
	return func(g *GeminiGenerator) {
		g.policy = p
	}
}

// NewGeminiGenerator creates a generator around an existing client
func NewGeminiGenerator(client *genai.Client, opts ...GeminiOption) *GeminiGenerator {
	g := &GeminiGenerator{
		client: client,
		model:  DefaultGeminiModel,
		policy: DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate sends the prompt, with history when present, and returns the text
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if g.client == nil {
		return "", Fatal(errors.New("gemini client not set"))
	}
	return Retry(ctx, g.policy, func(ctx context.Context) (string, error) {
		return g.generateOnce(ctx, req)
	})
}

func (g *GeminiGenerator) generateOnce(ctx context.Context, req GenerateRequest) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(req.Temperature)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	var (
		resp *genai.GenerateContentResponse
		err  error
	)
	if len(req.History) > 0 {
		cs := model.StartChat()
		cs.History = toGeminiHistory(req.History)
		resp, err = cs.SendMessage(ctx, genai.Text(req.Prompt))
	} else {
		resp, err = model.GenerateContent(ctx, genai.Text(req.Prompt))
	}
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", Fatal(fmt.Errorf("%w: %v", ErrBlocked, blocked))
		}
		return "", Classify(fmt.Errorf("failed to generate content: %w", err))
	}

	text := responseText(resp)
	if text == "" {
		// Empty candidates usually clear on a second attempt
		return "", Retryable(ErrEmptyResponse)
	}
	return text, nil
}

func toGeminiHistory(history []models.ChatMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
