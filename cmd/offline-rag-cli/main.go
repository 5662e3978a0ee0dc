package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/akshayavb99/offline-rag-cli/internal/chat"
	"github.com/akshayavb99/offline-rag-cli/internal/chunker"
	"github.com/akshayavb99/offline-rag-cli/internal/config"
	"github.com/akshayavb99/offline-rag-cli/internal/docker"
	"github.com/akshayavb99/offline-rag-cli/internal/embedding"
	ollamaembed "github.com/akshayavb99/offline-rag-cli/internal/embedding/ollama"
	"github.com/akshayavb99/offline-rag-cli/internal/llm"
	"github.com/akshayavb99/offline-rag-cli/internal/loader"
	"github.com/akshayavb99/offline-rag-cli/internal/service"
	"github.com/akshayavb99/offline-rag-cli/internal/vectorstore"
	"github.com/akshayavb99/offline-rag-cli/internal/vectorstore/chromem"
	"github.com/akshayavb99/offline-rag-cli/internal/vectorstore/memory"
	"github.com/akshayavb99/offline-rag-cli/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath = flag.String("config", "config.yaml", "Path to YAML config file")
		reindex = flag.Bool("reindex", false, "Rebuild the vector store from the data directory before chatting")
		debug   = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(*debug || cfg.Debug)
	defer logger.Sync()

	if err := run(cfg, logger, *reindex); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func run(cfg *config.AppConfig, logger *zap.Logger, reindex bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := cfg.Ollama.BaseURL()

	if cfg.Runtime.IsManaged() {
		mgr := docker.NewManager(cfg.Runtime.ContainerName, cfg.Runtime.Volume, cfg.Ollama.Port, logger)
		if err := mgr.EnsureRunning(ctx, baseURL+"/api/tags"); err != nil {
			return err
		}
		defer mgr.Stop(context.Background())
	}

	timeout := time.Duration(cfg.Ollama.TimeoutSecs) * time.Second

	var emb embedding.Embedder
	emb, err := ollamaembed.NewClient(ollamaembed.Config{
		BaseURL: baseURL,
		Model:   cfg.Ollama.EmbeddingModel,
		Timeout: timeout,
	})
	if err != nil {
		return fmt.Errorf("embedder init failed: %w", err)
	}
	if _, err := emb.Embed(ctx, "ping"); err != nil {
		return fmt.Errorf("embedding model %s is not usable: %w", cfg.Ollama.EmbeddingModel, err)
	}

	chatClient, err := llm.NewClient(llm.Config{
		BaseURL: baseURL,
		Model:   cfg.Ollama.Model,
		Timeout: timeout,
	})
	if err != nil {
		return fmt.Errorf("chat client init failed: %w", err)
	}
	if err := chatClient.EnsureModel(ctx); err != nil {
		return err
	}

	var store vectorstore.Storage
	switch cfg.VectorStore.Type {
	case "memory":
		store = memory.NewStorage()
	case "chromem":
		store, err = chromem.NewStorage(cfg.VectorStore.Chromem.Path, cfg.VectorStore.Chromem.Collection)
		if err != nil {
			return err
		}
	case "qdrant":
		store = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
		})
	default:
		return fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("vector store is not reachable: %w", err)
	}

	ch, err := chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		return err
	}

	svc := service.New(loader.New(logger), ch, emb, store, logger, cfg.DataDir, cfg.Retrieval.MinScore)

	if reindex || count == 0 {
		logger.Info("building index", zap.String("data_dir", cfg.DataDir))
		stats, err := svc.Reindex(ctx)
		if err != nil {
			return err
		}
		logger.Info("index ready", zap.Int("documents", stats.Documents), zap.Int("chunks", stats.Chunks))
	} else {
		logger.Info("reusing existing index", zap.Int("vectors", count))
	}

	loop := chat.New(svc, chatClient, logger, cfg.Retrieval.TopK, os.Stdin, os.Stdout)
	return loop.Run(ctx)
}
