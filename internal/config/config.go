package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// LLM generation backend (OpenAI-compatible chat completions API).
	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string
	// Fast model used for map-phase source summarization. Falls back to
	// LLMModelName when unset.
	LLMFastModelName string

	// Embeddings backend (OpenAI-compatible embeddings API).
	EmbeddingBaseURL   string
	EmbeddingModelName string

	// Qdrant vector index.
	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	// SQLite source store.
	DBPath string

	// Retrieval policy.
	RetrievalOvercollect int
	DefaultTopK          int
	MaxTopK              int

	// Reranker: "lexical" (built-in), "http" (cross-encoder endpoint), or "off".
	RerankerKind      string
	RerankerURL       string
	RerankerTimeout   time.Duration
	GenerationTimeout time.Duration

	// Citation confidence tiers. Must satisfy 0 < medium < high <= 1 so
	// every score maps to exactly one tier.
	ConfidenceHighCutoff   float64
	ConfidenceMediumCutoff float64

	// Visual classification cache.
	VisualCacheTTL        time.Duration
	VisualCacheMaxEntries int

	// Context builder.
	MapReduceCharThreshold int
	SummaryConcurrency     int

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded
// automatically. Environment variables already set take precedence over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up to find a project-root .env (where go.mod lives).
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:       getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:     getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:        getEnv("LLM_API_KEY", "dummy-key"),
		LLMFastModelName: getEnv("LLM_FAST_MODEL", ""),

		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "notebook_chunks"),

		DBPath: getEnv("DB_PATH", "./data/notebook-ai.db"),

		RerankerKind: getEnv("RERANKER_KIND", "lexical"),
		RerankerURL:  getEnv("RERANKER_URL", ""),

		APIPort:   getEnv("API_PORT", "9000"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
	if cfg.LLMFastModelName == "" {
		cfg.LLMFastModelName = cfg.LLMModelName
	}

	// QDRANT_VECTOR_SIZE must match the embedding model's output dimension.
	// If the size changes the Qdrant collection must be recreated.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	if cfg.RetrievalOvercollect, err = getEnvInt("RETRIEVAL_OVERCOLLECT", 12); err != nil {
		return nil, err
	}
	if cfg.DefaultTopK, err = getEnvInt("RETRIEVAL_TOP_K", 4); err != nil {
		return nil, err
	}
	if cfg.MaxTopK, err = getEnvInt("RETRIEVAL_MAX_TOP_K", 20); err != nil {
		return nil, err
	}
	if cfg.RetrievalOvercollect < cfg.DefaultTopK {
		return nil, fmt.Errorf("RETRIEVAL_OVERCOLLECT (%d) must be >= RETRIEVAL_TOP_K (%d)", cfg.RetrievalOvercollect, cfg.DefaultTopK)
	}

	switch cfg.RerankerKind {
	case "lexical", "off":
	case "http":
		if cfg.RerankerURL == "" {
			return nil, fmt.Errorf("RERANKER_URL is required when RERANKER_KIND=http")
		}
	default:
		return nil, fmt.Errorf("RERANKER_KIND must be one of lexical, http, off (got %q)", cfg.RerankerKind)
	}

	rerankerTimeoutMS, err := getEnvInt("RERANKER_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	cfg.RerankerTimeout = time.Duration(rerankerTimeoutMS) * time.Millisecond

	generationTimeoutS, err := getEnvInt("GENERATION_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	cfg.GenerationTimeout = time.Duration(generationTimeoutS) * time.Second

	if cfg.ConfidenceHighCutoff, err = getEnvFloat("CONFIDENCE_HIGH_CUTOFF", 0.7); err != nil {
		return nil, err
	}
	if cfg.ConfidenceMediumCutoff, err = getEnvFloat("CONFIDENCE_MEDIUM_CUTOFF", 0.4); err != nil {
		return nil, err
	}
	if cfg.ConfidenceMediumCutoff <= 0 || cfg.ConfidenceHighCutoff <= cfg.ConfidenceMediumCutoff || cfg.ConfidenceHighCutoff > 1 {
		return nil, fmt.Errorf("confidence cutoffs must satisfy 0 < medium < high <= 1 (got medium=%v high=%v)",
			cfg.ConfidenceMediumCutoff, cfg.ConfidenceHighCutoff)
	}

	cacheTTLSeconds, err := getEnvInt("VISUAL_CACHE_TTL_SECONDS", 1800)
	if err != nil {
		return nil, err
	}
	cfg.VisualCacheTTL = time.Duration(cacheTTLSeconds) * time.Second
	if cfg.VisualCacheMaxEntries, err = getEnvInt("VISUAL_CACHE_MAX_ENTRIES", 50); err != nil {
		return nil, err
	}
	if cfg.VisualCacheMaxEntries <= 0 {
		return nil, fmt.Errorf("VISUAL_CACHE_MAX_ENTRIES must be greater than 0")
	}

	if cfg.MapReduceCharThreshold, err = getEnvInt("MAP_REDUCE_CHAR_THRESHOLD", 120000); err != nil {
		return nil, err
	}
	if cfg.SummaryConcurrency, err = getEnvInt("SUMMARY_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.SummaryConcurrency <= 0 {
		return nil, fmt.Errorf("SUMMARY_CONCURRENCY must be greater than 0")
	}

	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	// Create the data directory if it doesn't exist (for the DB file).
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}

// getEnvFloat gets a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return parsed, nil
}
