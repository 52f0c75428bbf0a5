package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notebook-ai/internal/config"
	"notebook-ai/internal/contextbuilder"
	"notebook-ai/internal/http"
	"notebook-ai/internal/llm"
	"notebook-ai/internal/rag"
	"notebook-ai/internal/storage"
	"notebook-ai/internal/vectorstore"
	"notebook-ai/internal/visualcache"
)

// visualCacheSweepInterval bounds how long expired classifications can
// linger before the background sweep removes them.
const visualCacheSweepInterval = 5 * time.Minute

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize source store
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	sourceRepo := storage.NewSourceRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	// Select the second-pass reranker
	var reranker rag.Reranker
	switch cfg.RerankerKind {
	case "http":
		reranker = rag.NewHTTPReranker(cfg.RerankerURL)
	case "lexical":
		reranker = &rag.LexicalReranker{}
	case "off":
		reranker = nil
	}
	slog.Info("Reranker configured", "kind", cfg.RerankerKind)

	retriever := rag.NewCoordinator(vectorStore, cfg.QdrantCollection, reranker, cfg.RerankerTimeout, cfg.RetrievalOvercollect)
	scorer := rag.NewScorer(cfg.ConfidenceHighCutoff, cfg.ConfidenceMediumCutoff)

	engine := rag.NewEngine(
		embedder,
		retriever,
		sourceRepo,
		llmClient,
		scorer,
		cfg.DefaultTopK,
		cfg.MaxTopK,
		cfg.GenerationTimeout,
	)
	slog.Info("Answer engine initialized", "default_top_k", cfg.DefaultTopK, "max_top_k", cfg.MaxTopK)

	builder := contextbuilder.NewBuilder(
		sourceRepo,
		retriever,
		embedder,
		llmClient,
		cfg.LLMFastModelName,
		cfg.MapReduceCharThreshold,
		cfg.SummaryConcurrency,
	)

	cache := visualcache.New(cfg.VisualCacheTTL, cfg.VisualCacheMaxEntries)

	router := http.NewRouter(&http.Deps{
		Engine:         engine,
		ContextBuilder: builder,
		VisualCache:    cache,
		VectorStore:    vectorStore,
		CollectionName: cfg.QdrantCollection,
	})

	// Periodic sweep of expired visual classifications
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(visualCacheSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if removed := cache.CleanupExpired(); removed > 0 {
					slog.Debug("Visual cache sweep", "removed", removed)
				}
			}
		}
	}()

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("Starting API server", "addr", addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName, "fast_model", cfg.LLMFastModelName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown incomplete", "error", err)
	}
}
