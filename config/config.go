package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	AI        AIConfig        `yaml:"ai"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Session   SessionConfig   `yaml:"session"`
	Upload    UploadConfig    `yaml:"upload"`
	Storage   StorageConfig   `yaml:"storage"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	Debug       bool   `yaml:"debug"`
	LogFilePath string `yaml:"log_file_path"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // "gemini" or "ollama"
	APIKey          string        `yaml:"-"`
	Model           string        `yaml:"model"`
	Temperature     float32       `yaml:"temperature"`
	ChatTemperature float32       `yaml:"chat_temperature"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
}

type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // "gemini", "ollama", "openai" or "local"
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
}

type OllamaConfig struct {
	Host           string `yaml:"host"` // empty uses OLLAMA_HOST
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type SessionConfig struct {
	MaxSessions int           `yaml:"max_sessions"`
	IdleTTL     time.Duration `yaml:"idle_ttl"` // zero keeps sessions until evicted
}

type UploadConfig struct {
	MaxFileSizeMB     int           `yaml:"max_file_size_mb"`
	MaxMessageLength  int           `yaml:"max_message_length"`
	MinDocumentLength int           `yaml:"min_document_length"`
	ValidatorSample   int           `yaml:"validator_sample"`
	AnalyzerMaxInput  int           `yaml:"analyzer_max_input"`
	PDFTimeout        time.Duration `yaml:"pdf_timeout"`
	DOCXTimeout       time.Duration `yaml:"docx_timeout"`
}

// StorageConfig selects where uploaded originals are archived. Type "none"
// disables archiving.
type StorageConfig struct {
	Type      string `yaml:"type"`
	LocalPath string `yaml:"local_path"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Region  string `yaml:"s3_region"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "Legal Document Analyzer",
			Version:     "1.0.0",
			Port:        "8000",
			Environment: "development",
			LogFilePath: "logs/app.log",
		},
		AI: AIConfig{
			Provider:        "gemini",
			Model:           "gemini-2.5-flash",
			Temperature:     0.1,
			ChatTemperature: 0.7,
			RequestTimeout:  60 * time.Second,
			MaxAttempts:     3,
		},
		Embedding: EmbeddingConfig{
			Provider:  "gemini",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   30 * time.Second,
		},
		Ollama: OllamaConfig{
			Model:          "llama3",
			EmbeddingModel: "nomic-embed-text",
		},
		Chunking:  ChunkingConfig{Size: 1000, Overlap: 200},
		Retrieval: RetrievalConfig{TopK: 3},
		Session:   SessionConfig{MaxSessions: 1000},
		Upload: UploadConfig{
			MaxFileSizeMB:     10,
			MaxMessageLength:  2000,
			MinDocumentLength: 100,
			ValidatorSample:   1500,
			AnalyzerMaxInput:  8000,
			PDFTimeout:        30 * time.Second,
			DOCXTimeout:       20 * time.Second,
		},
		Storage: StorageConfig{
			Type:      "none",
			LocalPath: "./storage/files",
			S3Region:  "us-east-1",
		},
		Tracing: TracingConfig{Endpoint: "localhost:4318"},
	}
}

// Load reads .env, then the YAML file named by CONFIG_FILE if set, then
// environment variables. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.App.Name, "APP_NAME")
	setString(&c.App.Version, "APP_VERSION")
	setString(&c.App.Port, "PORT")
	setString(&c.App.Environment, "GO_ENV")
	setBool(&c.App.Debug, "DEBUG")
	setString(&c.App.LogFilePath, "LOG_FILE_PATH")

	setString(&c.AI.Provider, "LLM_PROVIDER")
	setString(&c.AI.APIKey, "GOOGLE_API_KEY")
	setString(&c.AI.APIKey, "GEMINI_API_KEY")
	setString(&c.AI.Model, "MODEL_NAME")
	setFloat(&c.AI.Temperature, "TEMPERATURE")
	setFloat(&c.AI.ChatTemperature, "CHAT_TEMPERATURE")
	setDuration(&c.AI.RequestTimeout, "REQUEST_TIMEOUT")
	setInt(&c.AI.MaxAttempts, "LLM_MAX_ATTEMPTS")

	setString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setString(&c.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	setString(&c.Embedding.APIKeyEnv, "EMBEDDING_API_KEY_ENV")
	setInt(&c.Embedding.Dimension, "EMBEDDING_DIMENSION")
	setDuration(&c.Embedding.Timeout, "EMBEDDING_TIMEOUT")

	setString(&c.Ollama.Host, "OLLAMA_BASE_URL")
	setString(&c.Ollama.Model, "OLLAMA_MODEL")
	setString(&c.Ollama.EmbeddingModel, "OLLAMA_EMBEDDING_MODEL")

	setInt(&c.Chunking.Size, "CHUNK_SIZE")
	setInt(&c.Chunking.Overlap, "CHUNK_OVERLAP")
	setInt(&c.Retrieval.TopK, "RETRIEVAL_TOP_K")

	setInt(&c.Session.MaxSessions, "MAX_SESSIONS")
	setDuration(&c.Session.IdleTTL, "SESSION_IDLE_TTL")

	setInt(&c.Upload.MaxFileSizeMB, "MAX_FILE_SIZE_MB")
	setInt(&c.Upload.MaxMessageLength, "MAX_MESSAGE_LENGTH")
	setInt(&c.Upload.MinDocumentLength, "MIN_DOCUMENT_LENGTH")
	setDuration(&c.Upload.PDFTimeout, "PDF_TIMEOUT")
	setDuration(&c.Upload.DOCXTimeout, "DOCX_TIMEOUT")

	setString(&c.Storage.Type, "STORAGE_TYPE")
	setString(&c.Storage.LocalPath, "STORAGE_LOCAL_PATH")
	setString(&c.Storage.S3Bucket, "AWS_S3_BUCKET")
	setString(&c.Storage.S3Region, "AWS_REGION")
	setString(&c.Storage.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.Storage.SecretKey, "AWS_SECRET_ACCESS_KEY")

	setBool(&c.Tracing.Enabled, "OTEL_ENABLED")
	setString(&c.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// IsProduction reports whether the app runs with the production environment
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxFileSizeMB) << 20
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch c.AI.Provider {
	case "gemini":
		if c.AI.APIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY or GOOGLE_API_KEY is required for the gemini provider"))
		}
	case "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM provider %q", c.AI.Provider))
	}

	switch c.Embedding.Provider {
	case "gemini":
		if c.AI.APIKey == "" {
			errs = append(errs, errors.New("gemini embeddings need GEMINI_API_KEY or GOOGLE_API_KEY"))
		}
	case "ollama", "openai", "local":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}

	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval top-k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.AI.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("LLM max attempts must be positive, got %d", c.AI.MaxAttempts))
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("max file size must be positive, got %d", c.Upload.MaxFileSizeMB))
	}
	if c.Session.IdleTTL < 0 {
		errs = append(errs, fmt.Errorf("session idle TTL cannot be negative, got %s", c.Session.IdleTTL))
	}
	if c.Session.IdleTTL > 0 && c.Session.IdleTTL <= c.AI.RequestTimeout {
		errs = append(errs, fmt.Errorf("session idle TTL %s must exceed the request timeout %s",
			c.Session.IdleTTL, c.AI.RequestTimeout))
	}

	switch c.Storage.Type {
	case "none", "":
	case "local":
		if c.Storage.LocalPath == "" {
			errs = append(errs, errors.New("STORAGE_LOCAL_PATH is required for local storage"))
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("AWS_S3_BUCKET is required for S3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		} else {
			log.Printf("Warning: ignoring %s=%q: %v", key, v, err)
		}
	}
}

func setFloat(dst *float32, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil {
			*dst = float32(f)
		} else {
			log.Printf("Warning: ignoring %s=%q: %v", key, v, err)
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		} else {
			log.Printf("Warning: ignoring %s=%q: %v", key, v, err)
		}
	}
}

// setDuration accepts Go durations ("90s") or whole seconds ("90")
func setDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return
	}
	log.Printf("Warning: ignoring %s=%q: not a duration", key, v)
}
