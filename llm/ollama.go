package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"legaldoc-backend/models"
)

// OllamaGenerator talks to a local or remote Ollama server
type OllamaGenerator struct {
	Client *api.Client
	Model  string
	policy RetryPolicy
}

// NewOllamaClient builds an api client for host, falling back to OLLAMA_HOST
func NewOllamaClient(host string) (*api.Client, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	return api.NewClient(hostURL, http.DefaultClient), nil
}

// NewOllamaGenerator creates a generator for model
func NewOllamaGenerator(client *api.Client, model string, policy RetryPolicy) *OllamaGenerator {
	return &OllamaGenerator{
		Client: client,
		Model:  model,
		policy: policy,
	}
}

// Generate runs a non-streaming chat call
func (o *OllamaGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return Retry(ctx, o.policy, func(ctx context.Context) (string, error) {
		return o.generateOnce(ctx, req)
	})
}

func (o *OllamaGenerator) generateOnce(ctx context.Context, req GenerateRequest) (string, error) {
	messages := make([]api.Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.History {
		messages = append(messages, api.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, api.Message{Role: string(models.RoleUser), Content: req.Prompt})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    o.Model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
		},
	}
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var b strings.Builder
	err := o.Client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		_, err := b.WriteString(resp.Message.Content)
		return err
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) {
			return "", ClassifyStatus(se.StatusCode, se.ErrorMessage)
		}
		return "", Classify(fmt.Errorf("failed to generate response: %w", err))
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", Retryable(ErrEmptyResponse)
	}
	return text, nil
}
