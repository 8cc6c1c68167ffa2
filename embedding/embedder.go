package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"legaldoc-backend/llm"
)

// Embedder turns texts into vectors. The output has one vector per input,
// in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

var (
	ErrCountMismatch     = errors.New("embedding service returned a different number of vectors than inputs")
	ErrDimensionMismatch = errors.New("embedding dimensionality changed")
	ErrEmptyVector       = errors.New("embedding service returned an empty vector")
	ErrUnknownDimension  = errors.New("cannot embed blank text before the vector dimension is known")
)

// Gateway wraps an Embedder backend with retries and output checks. Blank
// inputs are never sent to the backend; they map to zero vectors of the
// dimension observed so far.
type Gateway struct {
	backend Embedder
	policy  llm.RetryPolicy

	mu  sync.RWMutex
	dim int
}

// GatewayOption is a functional option for Gateway
type GatewayOption func(*Gateway)

// WithRetryPolicy overrides llm.DefaultRetryPolicy
func WithRetryPolicy(p llm.RetryPolicy) GatewayOption {
	return func(g *Gateway) {
		g.policy = p
	}
}

// WithDimension seeds the expected dimension, e.g. from configuration
func WithDimension(dim int) GatewayOption {
	return func(g *Gateway) {
		g.dim = dim
	}
}

// NewGateway creates a new embedding gateway
func NewGateway(backend Embedder, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		backend: backend,
		policy:  llm.DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dimension returns the vector size seen so far, or 0
func (g *Gateway) Dimension() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dim
}

// Embed embeds texts, preserving order and length
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	positions := make([]int, 0, len(texts))
	inputs := make([]string, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		positions = append(positions, i)
		inputs = append(inputs, t)
	}

	if len(inputs) > 0 {
		vecs, err := llm.Retry(ctx, g.policy, func(ctx context.Context) ([][]float32, error) {
			return g.backend.Embed(ctx, inputs)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed %d texts: %w", len(inputs), err)
		}
		if len(vecs) != len(inputs) {
			return nil, llm.Fatal(fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vecs), len(inputs)))
		}
		if err := g.checkDimension(vecs); err != nil {
			return nil, err
		}
		for j, pos := range positions {
			out[pos] = vecs[j]
		}
	}

	if len(positions) < len(texts) {
		dim := g.Dimension()
		if dim == 0 {
			return nil, llm.Fatal(ErrUnknownDimension)
		}
		for i := range out {
			if out[i] == nil {
				out[i] = make([]float32, dim)
			}
		}
	}

	return out, nil
}

func (g *Gateway) checkDimension(vecs [][]float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	want := g.dim
	for _, v := range vecs {
		if len(v) == 0 {
			return llm.Fatal(ErrEmptyVector)
		}
		if want == 0 {
			want = len(v)
		}
		if len(v) != want {
			return llm.Fatal(fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), want))
		}
	}
	g.dim = want
	return nil
}
