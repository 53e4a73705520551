package config

import (
	"log/slog"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the gateway and summarizer services.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"52428800"` // 50MB in bytes

	// Store
	DBURL string `env:"DB_URL"`

	// Queue
	QueueURL string `env:"QUEUE_URL"`

	// Checkpoints (optional; pipeline state stays in memory when unset)
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// LLM & Embeddings
	LLMProvider    string `env:"LLM_PROVIDER" envDefault:"openai"` // "openai" (uses OpenAI API) or "stub" (for testing)
	OpenAIKey      string `env:"OPENAI_API_KEY"`
	LLMModel       string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	TokenizerModel string `env:"TOKENIZER_MODEL" envDefault:"gpt-4"`

	// Chunking. Retrieval chunks are small spans for vector search; summary
	// chunks are large sections fed to map-reduce summarization.
	RetrievalChunkSize    int `env:"RETRIEVAL_CHUNK_SIZE" envDefault:"1000"`
	RetrievalChunkOverlap int `env:"RETRIEVAL_CHUNK_OVERLAP" envDefault:"100"`
	SummaryChunkSize      int `env:"SUMMARY_CHUNK_SIZE" envDefault:"15000"`
	SummaryChunkOverlap   int `env:"SUMMARY_CHUNK_OVERLAP" envDefault:"500"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
