package vectorstore

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/chunker"
	"legaldoc-backend/embedding"
	"legaldoc-backend/models"
)

// keywordEmbedder maps each text onto fixed axes by keyword presence
type keywordEmbedder struct {
	axes  []string
	calls int32
	fail  error
}

func (k *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&k.calls, 1)
	if k.fail != nil {
		return nil, k.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(k.axes))
		for j, a := range k.axes {
			if strings.Contains(strings.ToLower(t), a) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func chunksOf(texts ...string) []models.DocumentChunk {
	out := make([]models.DocumentChunk, len(texts))
	for i, t := range texts {
		out[i] = models.DocumentChunk{Text: t, Index: i}
	}
	return out
}

func TestStore_SearchRanksByCosine(t *testing.T) {
	emb := &keywordEmbedder{axes: []string{"rent", "deposit", "pets"}}
	s := NewStore(emb)

	require.NoError(t, s.Upsert(context.Background(), chunksOf(
		"Pets are not allowed.",
		"Rent is due monthly.",
		"The deposit covers damage and unpaid rent.",
		"Deposit is returned within 30 days.",
	)))

	res, err := s.Search(context.Background(), "When is rent due?", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 1, res[0].Chunk.Index)
	assert.Equal(t, 2, res[1].Chunk.Index)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)
}

func TestStore_TiesBreakByIndex(t *testing.T) {
	emb := &keywordEmbedder{axes: []string{"clause"}}
	s := NewStore(emb)
	require.NoError(t, s.Upsert(context.Background(), []models.DocumentChunk{
		{Text: "clause c", Index: 2},
		{Text: "clause a", Index: 0},
		{Text: "clause b", Index: 1},
	}))

	res, err := s.Search(context.Background(), "clause", 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	for i, r := range res {
		assert.Equal(t, i, r.Chunk.Index)
	}
}

func TestStore_DefaultKAndSmallStore(t *testing.T) {
	emb := &keywordEmbedder{axes: []string{"a"}}
	s := NewStore(emb)
	require.NoError(t, s.Upsert(context.Background(), chunksOf("a1", "a2", "a3", "a4", "a5")))

	res, err := s.Search(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Len(t, res, DefaultTopK)

	require.NoError(t, s.Upsert(context.Background(), chunksOf("a1")))
	res, err = s.Search(context.Background(), "a", 3)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestStore_EmptySearchSkipsEmbedder(t *testing.T) {
	emb := &keywordEmbedder{axes: []string{"x"}}
	s := NewStore(emb)

	res, err := s.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
	assert.Equal(t, int32(0), atomic.LoadInt32(&emb.calls))
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	emb := &keywordEmbedder{axes: []string{"rent", "term"}}
	s := NewStore(emb)
	chunks := chunksOf("rent", "term", "rent and term")

	require.NoError(t, s.Upsert(context.Background(), chunks))
	first, err := s.Search(context.Background(), "rent", 3)
	require.NoError(t, err)

	require.NoError(t, s.Upsert(context.Background(), chunks))
	second, err := s.Search(context.Background(), "rent", 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 3, s.Len())
}

func TestStore_ReplacementKeepsOnlyLatestDocument(t *testing.T) {
	emb := embedding.NewGateway(embedding.NewHashingEmbedder(128))
	s := NewStore(emb)

	docs := []string{
		strings.Repeat("The landlord leases the apartment to the tenant. ", 50),
		strings.Repeat("The employer hires the employee at a salary. ", 50),
		strings.Repeat("The discloser shares confidential information. ", 50),
	}
	var last []models.DocumentChunk
	for _, d := range docs {
		c, err := chunker.Split(d, 300, 50)
		require.NoError(t, err)
		require.NoError(t, s.Upsert(context.Background(), c))
		last = c
	}

	assert.Equal(t, len(last), s.Len())
	res, err := s.Search(context.Background(), "landlord tenant apartment", 10)
	require.NoError(t, err)
	for _, r := range res {
		assert.Contains(t, r.Chunk.Text, "confidential", "only the last document may be retrieved")
	}
}

func TestStore_FailedUpsertLeavesPriorContent(t *testing.T) {
	emb := &keywordEmbedder{axes: []string{"rent"}}
	s := NewStore(emb)
	require.NoError(t, s.Upsert(context.Background(), chunksOf("rent is 100")))

	emb.fail = errors.New("embedding service down")
	err := s.Upsert(context.Background(), chunksOf("new doc", "more"))
	require.Error(t, err)

	emb.fail = nil
	assert.Equal(t, 1, s.Len())
	res, err := s.Search(context.Background(), "rent", 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "rent is 100", res[0].Chunk.Text)
}

// cancelOnEmbed cancels the context after producing vectors
type cancelOnEmbed struct {
	inner  embedding.Embedder
	cancel context.CancelFunc
}

func (c *cancelOnEmbed) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := c.inner.Embed(ctx, texts)
	c.cancel()
	return out, err
}

func TestStore_CancelledUpsertLeavesPriorContent(t *testing.T) {
	inner := &keywordEmbedder{axes: []string{"rent"}}
	s := NewStore(inner)
	require.NoError(t, s.Upsert(context.Background(), chunksOf("rent is 100")))

	ctx, cancel := context.WithCancel(context.Background())
	s.embedder = &cancelOnEmbed{inner: inner, cancel: cancel}

	err := s.Upsert(ctx, chunksOf("a", "b", "c"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(&keywordEmbedder{axes: []string{"x"}})
	require.NoError(t, s.Upsert(context.Background(), chunksOf("x")))
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestBruteForceIndex(t *testing.T) {
	idx := NewBruteForceIndex()
	require.Error(t, idx.Build([]int{1}, nil))
	require.Error(t, idx.Build([]int{1, 2}, [][]float32{{1, 0}, {1}}))

	require.NoError(t, idx.Build([]int{0, 1, 2}, [][]float32{{1, 0}, {0, 0}, {0, 1}}))
	ids, scores, err := idx.Query([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, ids, "zero vector scores 0 and ties keep id order")
	assert.InDelta(t, 1.0, scores[0], 1e-9)

	_, _, err = idx.Query([]float32{1, 0, 0}, 1)
	assert.Error(t, err)
}
