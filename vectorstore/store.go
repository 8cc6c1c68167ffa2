package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"legaldoc-backend/embedding"
	"legaldoc-backend/models"
)

const DefaultTopK = 3

var ErrVectorCount = errors.New("embedder returned a different number of vectors than chunks")

// Store is an in-memory vector index holding the chunks of one document.
// Upsert replaces the whole content; a failed Upsert changes nothing.
type Store struct {
	embedder embedding.Embedder
	newIndex func() Index

	mu     sync.RWMutex
	chunks map[int]models.DocumentChunk
	index  Index
}

// StoreOption is a functional option for Store
type StoreOption func(*Store)

// WithIndex replaces the brute-force index factory
func WithIndex(factory func() Index) StoreOption {
	return func(s *Store) {
		s.newIndex = factory
	}
}

// NewStore creates an empty store that embeds through embedder
func NewStore(embedder embedding.Embedder, opts ...StoreOption) *Store {
	s := &Store{
		embedder: embedder,
		newIndex: NewBruteForceIndex,
		chunks:   map[int]models.DocumentChunk{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.index = s.newIndex()
	return s
}

// Upsert embeds every chunk and then swaps the new content in. Any failure,
// including ctx being cancelled before the swap, leaves the prior content.
func (s *Store) Upsert(ctx context.Context, chunks []models.DocumentChunk) error {
	ordered := append([]models.DocumentChunk(nil), chunks...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	texts := make([]string, len(ordered))
	ids := make([]int, len(ordered))
	byID := make(map[int]models.DocumentChunk, len(ordered))
	for i, c := range ordered {
		texts[i] = c.Text
		ids[i] = c.Index
		byID[c.Index] = c
	}

	var vecs [][]float32
	if len(texts) > 0 {
		var err error
		vecs, err = s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("%w: got %d, want %d", ErrVectorCount, len(vecs), len(texts))
		}
	}

	idx := s.newIndex()
	if err := idx.Build(ids, vecs); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.chunks = byID
	s.index = idx
	s.mu.Unlock()
	return nil
}

// Search returns the k chunks most similar to query. An empty store returns
// an empty slice without calling the embedder. k <= 0 means DefaultTopK.
func (s *Store) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	s.mu.RLock()
	chunks, idx := s.chunks, s.index
	s.mu.RUnlock()

	if len(chunks) == 0 {
		return []models.SearchResult{}, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d, want 1", ErrVectorCount, len(vecs))
	}

	ids, scores, err := idx.Query(vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	results := make([]models.SearchResult, 0, len(ids))
	for i, id := range ids {
		results = append(results, models.SearchResult{
			Chunk: chunks[id],
			Score: scores[i],
		})
	}
	return results, nil
}

// Len returns the number of stored chunks
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Clear drops all content
func (s *Store) Clear() {
	s.mu.Lock()
	s.chunks = map[int]models.DocumentChunk{}
	s.index = s.newIndex()
	s.mu.Unlock()
}
