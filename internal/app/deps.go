package app

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"doc-pipeline/internal/checkpoint"
	"doc-pipeline/internal/chunker"
	"doc-pipeline/internal/config"
	"doc-pipeline/internal/embeddings"
	"doc-pipeline/internal/llm"
	"doc-pipeline/internal/logger"
	"doc-pipeline/internal/pipeline"
	"doc-pipeline/internal/queue"
	"doc-pipeline/internal/store"
	"doc-pipeline/internal/tokens"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config     config.Config
	Log        *slog.Logger
	Store      store.Store
	Queue      queue.Queue
	Chunker    *chunker.DualChunker
	Embedder   embeddings.Embedder
	Summarizer llm.Summarizer
	Checkpoint pipeline.Checkpointer
}

// Build loads env, config, and shared components.
func Build() (Deps, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	q, err := buildQueue(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	summarizer, err := buildSummarizer(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	embedder, err := buildEmbedder(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	ckpt, err := buildCheckpoint(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize checkpoint store: %w", err)
	}

	return Deps{
		Config:     cfg,
		Log:        log,
		Store:      st,
		Queue:      q,
		Chunker:    chunker.New(tokens.NewTiktokenCounter(), cfg.TokenizerModel),
		Embedder:   embedder,
		Summarizer: summarizer,
		Checkpoint: ckpt,
	}, nil
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.DBURL == "" {
		return nil, fmt.Errorf("DB_URL is required")
	}
	db, err := store.NewPostgres(cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
	}
	log.Info("using Postgres store")
	return db, nil
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("QUEUE_URL is required")
	}
	nc, err := nats.Connect(cfg.QueueURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("using NATS queue")
	return queue.NewNATS(log, nc), nil
}

func buildSummarizer(cfg config.Config, log *slog.Logger) (llm.Summarizer, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI summarizer", "model", cfg.LLMModel)
		return client, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid option: openai)", cfg.LLMProvider)
	}
}

func buildEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel)
		return embedder, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid option: openai)", cfg.LLMProvider)
	}
}

func buildCheckpoint(cfg config.Config, log *slog.Logger) (pipeline.Checkpointer, error) {
	if cfg.RedisAddr == "" {
		log.Info("no REDIS_ADDR set; pipeline checkpoints held in memory")
		return checkpoint.NewMemoryStore(), nil
	}
	rs, err := checkpoint.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, 0)
	if err != nil {
		return nil, err
	}
	log.Info("using Redis checkpoint store", "addr", cfg.RedisAddr)
	return rs, nil
}
