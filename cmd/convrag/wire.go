package main

import (
	"context"
	"fmt"
	"time"

	"convrag/internal/config"
	"convrag/internal/domain"
	"convrag/internal/embedding"
	"convrag/internal/embedding/hashing"
	"convrag/internal/embedding/openai"
	"convrag/internal/generation"
	"convrag/internal/generation/extractive"
	"convrag/internal/memory"
	redisstore "convrag/internal/memory/redis"
	"convrag/internal/observability"
	"convrag/internal/repository"
	"convrag/internal/service"
	"convrag/internal/vectorstore"
	vsmemory "convrag/internal/vectorstore/memory"
	"convrag/internal/vectorstore/qdrant"
)

// app holds the assembled components of one process.
type app struct {
	cfg     *config.AppConfig
	logger  observability.Logger
	store   *vectorstore.Store
	service *service.RAGService
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// buildApp assembles components from cfg.
func buildApp(ctx context.Context, cfg *config.AppConfig, logger observability.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "hashing", "":
		dim := 0
		if cfg.Embedder.Hashing != nil {
			dim = cfg.Embedder.Hashing.Dimension
		}
		emb = hashing.NewEmbedder(dim)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv:  cfg.Embedder.OpenAI.APIKeyEnv,
			Model:      cfg.Embedder.OpenAI.Model,
			Dimensions: cfg.Embedder.OpenAI.Dimensions,
			BatchSize:  cfg.Embedder.OpenAI.BatchSize,
			Timeout:    secs(cfg.Embedder.OpenAI.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var idx vectorstore.Index
	switch cfg.VectorStore.Type {
	case "memory", "":
		idx = vsmemory.NewStorage()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		idx = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Dimension:  cfg.VectorStore.Qdrant.VectorSize,
			Timeout:    secs(cfg.VectorStore.Qdrant.TimeoutSecs),
		})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
	a.store = vectorstore.NewStore(emb, idx, logger)

	var sessions memory.SessionStore
	switch cfg.Memory.Type {
	case "local", "":
		sessions = memory.NewLocalStore()
	case "redis":
		if cfg.Memory.Redis == nil {
			return nil, fmt.Errorf("redis config missing")
		}
		rs, err := redisstore.New(redisstore.Config{URL: cfg.Memory.Redis.URL, TTL: secs(cfg.Memory.Redis.TTLSecs)})
		if err != nil {
			return nil, err
		}
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		sessions = rs
	default:
		return nil, fmt.Errorf("unknown memory store: %s", cfg.Memory.Type)
	}
	opts := []memory.Option{memory.WithLogger(logger)}
	if cfg.Memory.KeyPrefix != "" {
		opts = append(opts, memory.WithKeyPrefix(cfg.Memory.KeyPrefix))
	}
	mem := memory.New(sessions, cfg.Memory.MaxTurns, opts...)

	var gen domain.Generator
	switch cfg.Generator.Type {
	case "extractive", "":
		gen = extractive.New(cfg.Generator.MaxSentences)
	case "openai":
		chat, err := generation.NewChat(generation.Config{
			BaseURL:     cfg.Generator.BaseURL,
			APIKeyEnv:   cfg.Generator.APIKeyEnv,
			Model:       cfg.Generator.Model,
			Temperature: cfg.Generator.Temperature,
			Timeout:     secs(cfg.Generator.TimeoutSecs),
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("openai generator init failed: %w", err)
		}
		gen = chat
	default:
		a.Close()
		return nil, fmt.Errorf("unknown generator: %s", cfg.Generator.Type)
	}

	var chunks service.ChunkStore = repository.NopChunkRepository{}
	if cfg.Database.URL != "" {
		db, err := repository.Open(ctx, cfg.Database.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		repo := repository.NewChunkRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		chunks = repo
	}

	a.service = service.NewRAGService(service.Deps{
		Retriever: a.store,
		Indexer:   a.store,
		Memory:    mem,
		Generator: gen,
		Chunks:    chunks,
		Logger:    logger,
	})
	logger.Info("Components ready", map[string]interface{}{
		"embedder":     emb.Name(),
		"vector_store": cfg.VectorStore.Type,
		"memory":       cfg.Memory.Type,
		"generator":    cfg.Generator.Type,
		"max_messages": mem.MaxMessages(),
	})
	return a, nil
}

func newLogger(cfg *config.AppConfig) observability.Logger {
	return observability.NewStandardLogger("convrag", observability.ParseLevel(cfg.Log.Level))
}
