package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/ollama/ollama/api"
	"google.golang.org/api/option"

	"legaldoc-backend/chunker"
	"legaldoc-backend/config"
	"legaldoc-backend/embedding"
	"legaldoc-backend/extract"
	"legaldoc-backend/handlers"
	"legaldoc-backend/llm"
	"legaldoc-backend/logger"
	"legaldoc-backend/service"
	"legaldoc-backend/session"
	"legaldoc-backend/storage"
	"legaldoc-backend/tracer"
	"legaldoc-backend/vectorstore"
)

// Container holds every long-lived component of the service
type Container struct {
	Config *config.Config
	Log    logger.ILogger

	Generator llm.Generator
	Embedder  *embedding.Gateway
	Chunker   *chunker.Chunker
	Registry  *session.Registry

	Validator *service.ContentValidator
	Analyzer  *service.DocumentAnalyzer
	Analysis  *service.AnalysisWorkflow
	Chat      *service.ChatWorkflow

	Extractor *extract.Extractor
	Archive   storage.Archive

	closers []func(context.Context) error
}

// NewContainer wires the components described by cfg
func NewContainer(ctx context.Context, cfg *config.Config, log logger.ILogger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	shutdownTracer := tracer.InitTracer(ctx, tracer.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	}, log)
	c.closers = append(c.closers, shutdownTracer)

	policy := llm.RetryPolicy{
		MaxAttempts:    cfg.AI.MaxAttempts,
		InitialBackoff: llm.DefaultRetryPolicy.InitialBackoff,
		MaxBackoff:     llm.DefaultRetryPolicy.MaxBackoff,
	}

	var (
		geminiClient *genai.Client
		ollamaClient *api.Client
		err          error
	)
	if cfg.AI.Provider == "gemini" || cfg.Embedding.Provider == "gemini" {
		geminiClient, err = genai.NewClient(ctx, option.WithAPIKey(cfg.AI.APIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return geminiClient.Close() })
		log.Info("bootstrap", "Gemini client initialized", nil)
	}
	if cfg.AI.Provider == "ollama" || cfg.Embedding.Provider == "ollama" {
		ollamaClient, err = llm.NewOllamaClient(cfg.Ollama.Host)
		if err != nil {
			return nil, err
		}
		log.Info("bootstrap", "Ollama client initialized", nil)
	}

	switch cfg.AI.Provider {
	case "gemini":
		c.Generator = llm.NewGeminiGenerator(geminiClient,
			llm.GeminiWithModel(cfg.AI.Model),
			llm.GeminiWithRetryPolicy(policy),
		)
	case "ollama":
		c.Generator = llm.NewOllamaGenerator(ollamaClient, cfg.Ollama.Model, policy)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.AI.Provider)
	}

	backend, err := newEmbeddingBackend(cfg, geminiClient, ollamaClient)
	if err != nil {
		return nil, err
	}
	gatewayOpts := []embedding.GatewayOption{embedding.WithRetryPolicy(policy)}
	if cfg.Embedding.Dimension > 0 {
		gatewayOpts = append(gatewayOpts, embedding.WithDimension(cfg.Embedding.Dimension))
	}
	c.Embedder = embedding.NewGateway(backend, gatewayOpts...)

	c.Chunker, err = chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	registryOpts := []session.Option{session.WithMaxSessions(cfg.Session.MaxSessions)}
	if cfg.Session.IdleTTL > 0 {
		registryOpts = append(registryOpts, session.WithIdleTTL(cfg.Session.IdleTTL))
	}
	c.Registry = session.NewRegistry(func() *vectorstore.Store {
		return vectorstore.NewStore(c.Embedder)
	}, registryOpts...)

	c.Validator = service.NewContentValidator(
		service.ValidatorWithGenerator(c.Generator),
		service.ValidatorWithLogger(log),
		service.ValidatorWithMinLength(cfg.Upload.MinDocumentLength),
		service.ValidatorWithSampleSize(cfg.Upload.ValidatorSample),
	)
	c.Analyzer = service.NewDocumentAnalyzer(
		service.AnalyzerWithGenerator(c.Generator),
		service.AnalyzerWithLogger(log),
		service.AnalyzerWithMaxInput(cfg.Upload.AnalyzerMaxInput),
		service.AnalyzerWithTemperature(cfg.AI.Temperature),
	)
	c.Analysis = service.NewAnalysisWorkflow(c.Validator, c.Analyzer, log)

	c.Chat, err = service.NewChatWorkflow(
		service.ChatWithRegistry(c.Registry),
		service.ChatWithValidator(c.Validator),
		service.ChatWithChunker(c.Chunker),
		service.ChatWithGenerator(c.Generator),
		service.ChatWithLogger(log),
		service.ChatWithTopK(cfg.Retrieval.TopK),
		service.ChatWithTemperature(cfg.AI.ChatTemperature),
		service.ChatWithMaxMessageLength(cfg.Upload.MaxMessageLength),
	)
	if err != nil {
		return nil, err
	}

	c.Extractor = extract.New(
		extract.WithMaxBytes(cfg.MaxUploadBytes()),
		extract.WithTimeouts(cfg.Upload.PDFTimeout, cfg.Upload.DOCXTimeout),
		extract.WithLogger(log),
	)

	c.Archive, err = storage.New(ctx, storage.Config{
		Type:         storage.Type(cfg.Storage.Type),
		LocalPath:    cfg.Storage.LocalPath,
		S3Bucket:     cfg.Storage.S3Bucket,
		S3Region:     cfg.Storage.S3Region,
		AWSAccessKey: cfg.Storage.AccessKey,
		AWSSecretKey: cfg.Storage.SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Info("bootstrap", "container ready", map[string]interface{}{
		"llm_provider":       cfg.AI.Provider,
		"embedding_provider": cfg.Embedding.Provider,
		"chunk_size":         cfg.Chunking.Size,
		"chunk_overlap":      cfg.Chunking.Overlap,
		"max_sessions":       cfg.Session.MaxSessions,
		"storage":            cfg.Storage.Type,
	})
	return c, nil
}

func newEmbeddingBackend(cfg *config.Config, gemini *genai.Client, ollama *api.Client) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "gemini":
		return embedding.NewGeminiEmbedder(gemini, cfg.Embedding.Model), nil
	case "ollama":
		return embedding.NewOllamaEmbedder(ollama, cfg.Ollama.EmbeddingModel), nil
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL:   cfg.Embedding.BaseURL,
			APIKeyEnv: cfg.Embedding.APIKeyEnv,
			Model:     cfg.Embedding.Model,
			Timeout:   cfg.Embedding.Timeout,
		})
	case "local":
		return embedding.NewHashingEmbedder(cfg.Embedding.Dimension), nil
	}
	return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
}

// Router builds the HTTP router over the container's components
func (c *Container) Router() *gin.Engine {
	return handlers.NewRouter(handlers.RouterConfig{
		Info:           handlers.AppInfo{Name: c.Config.App.Name, Version: c.Config.App.Version},
		Log:            c.Log,
		Extractor:      c.Extractor,
		Analysis:       c.Analysis,
		Chat:           c.Chat,
		Sessions:       c.Registry,
		Archive:        c.Archive,
		MaxUploadBytes: c.Config.MaxUploadBytes(),
		RequestTimeout: c.Config.AI.RequestTimeout,
		Debug:          c.Config.App.Debug,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
	})
}

// Close releases clients in reverse creation order
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithTimeout is a convenience for callers outside HTTP, e.g. the CLI
func (c *Container) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Config.AI.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Config.AI.RequestTimeout)
}
