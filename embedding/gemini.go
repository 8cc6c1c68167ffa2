package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/sync/errgroup"

	"legaldoc-backend/llm"
)

const (
	DefaultGeminiEmbeddingModel = "gemini-embedding-001"
	geminiBatchSize             = 100
	geminiConcurrency           = 3
)

// GeminiEmbedder embeds through the Gemini batch embedding endpoint
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder for model, or the default model
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}
	return &GeminiEmbedder{client: client, model: model}
}

// Embed splits texts into API-sized batches and sends a few at a time
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(geminiConcurrency)

	for start := 0; start < len(texts); start += geminiBatchSize {
		end := min(start+geminiBatchSize, len(texts))

		g.Go(func() error {
			batch := em.NewBatch()
			for _, t := range texts[start:end] {
				batch.AddContent(genai.Text(t))
			}
			res, err := em.BatchEmbedContents(gctx, batch)
			if err != nil {
				return llm.Classify(fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err))
			}
			if len(res.Embeddings) != end-start {
				return llm.Fatal(fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(res.Embeddings), end-start))
			}
			for i, emb := range res.Embeddings {
				if emb == nil {
					return llm.Fatal(ErrEmptyVector)
				}
				out[start+i] = emb.Values
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
