package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/ollama/ollama/api"

	"legaldoc-backend/llm"
)

const DefaultOllamaEmbeddingModel = "nomic-embed-text"

// OllamaEmbedder uses the Ollama /api/embed endpoint
type OllamaEmbedder struct {
	Client *api.Client
	Model  string
}

// NewOllamaEmbedder creates an embedder for model, or the default model
func NewOllamaEmbedder(client *api.Client, model string) *OllamaEmbedder {
	if model == "" {
		model = DefaultOllamaEmbeddingModel
	}
	return &OllamaEmbedder{Client: client, Model: model}
}

// Embed sends all texts in one request
func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.Client.Embed(ctx, &api.EmbedRequest{
		Model: o.Model,
		Input: texts,
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) {
			return nil, llm.ClassifyStatus(se.StatusCode, se.ErrorMessage)
		}
		return nil, llm.Classify(fmt.Errorf("failed to generate embeddings: %w", err))
	}
	return resp.Embeddings, nil
}
