package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/onlysaid/kb-orchestrator/internal/adapters/embedding"
	"github.com/onlysaid/kb-orchestrator/internal/adapters/llm"
	"github.com/onlysaid/kb-orchestrator/internal/adapters/reader"
	"github.com/onlysaid/kb-orchestrator/internal/adapters/statusstore"
	"github.com/onlysaid/kb-orchestrator/internal/adapters/vectordb"
	"github.com/onlysaid/kb-orchestrator/internal/domain/kb"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
	"github.com/onlysaid/kb-orchestrator/internal/infrastructure/config"
	httpserver "github.com/onlysaid/kb-orchestrator/internal/infrastructure/http"
	"github.com/onlysaid/kb-orchestrator/internal/infrastructure/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and ingestion pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	var searchPaths []string
	if configPath != "" {
		searchPaths = append(searchPaths, configPath)
	}
	cfg, err := config.Load(searchPaths...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	vectorStore, err := buildVectorStore(cfg)
	if err != nil {
		return fmt.Errorf("building vector store: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	statusStore := statusstore.NewRedisStore(redisClient)

	embedder := embedding.NewOllamaAdapter(cfg.OllamaBaseURL, cfg.OllamaEmbedModel, logger)
	llmService := llm.NewOllamaLLMAdapter(cfg.OllamaBaseURL, cfg.OllamaCompleteModel)
	readers := reader.DefaultRegistry()

	manager := kb.NewManager(statusStore, vectorStore, embedder, llmService, readers, logger)
	server := httpserver.NewServer(manager, logger, cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go manager.Run(ctx)

	logger.Info("starting kb-orchestrator",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("vector_backend", string(cfg.VectorBackend)),
	)
	return server.Start(ctx)
}

func buildVectorStore(cfg config.Config) (ports.VectorStore, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		return vectordb.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.VectorSize)
	case config.VectorBackendSQLite:
		return vectordb.NewSQLiteStore(cfg.SQLitePath)
	case config.VectorBackendMemory:
		return vectordb.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}
