package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/config"
	"legaldoc-backend/embedding"
	"legaldoc-backend/llm"
	"legaldoc-backend/logger"
	"legaldoc-backend/storage"
)

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.AI.Provider = "ollama"
	cfg.Ollama.Host = "http://127.0.0.1:1"
	cfg.Embedding.Provider = "local"
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewContainer_Offline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := offlineConfig(t)

	c, err := NewContainer(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer func() { assert.NoError(t, c.Close(context.Background())) }()

	assert.IsType(t, &llm.OllamaGenerator{}, c.Generator)
	assert.NotNil(t, c.Embedder)
	assert.Equal(t, 1000, c.Chunker.Size())
	assert.Equal(t, 200, c.Chunker.Overlap())
	assert.NotNil(t, c.Analysis)
	assert.NotNil(t, c.Chat)
	assert.IsType(t, &storage.LocalArchive{}, c.Archive)
	assert.Equal(t, int64(10<<20), c.Extractor.MaxBytes())

	rec := httptest.NewRecorder()
	c.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewEmbeddingBackend(t *testing.T) {
	cfg := offlineConfig(t)

	backend, err := newEmbeddingBackend(cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &embedding.HashingEmbedder{}, backend)

	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKeyEnv = "LEGALDOC_TEST_MISSING_KEY"
	_, err = newEmbeddingBackend(cfg, nil, nil)
	assert.Error(t, err)

	cfg.Embedding.Provider = "word2vec"
	_, err = newEmbeddingBackend(cfg, nil, nil)
	assert.Error(t, err)
}

func TestNewContainer_InvalidChunking(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Chunking.Overlap = cfg.Chunking.Size

	_, err := NewContainer(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}
