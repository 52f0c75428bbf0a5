package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/vectorstore"
	"notebook-ai/internal/visualcache"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	vectorStore        vectorstore.VectorStore
	visualCache        *visualcache.Cache
	collectionName     string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(vectorStore vectorstore.VectorStore, visualCache *visualcache.Cache, collectionName string) *HealthHandler {
	return &HealthHandler{
		vectorStore:        vectorStore,
		visualCache:        visualCache,
		collectionName:     collectionName,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy".
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	Checks      map[string]string `json:"checks"`
	Issues      []string          `json:"issues,omitempty"`
	VisualCache visualcache.Stats `json:"visual_cache"`
}

// ServeHTTP handles GET /api/health. The vector index is the critical
// dependency; the LLM backends are not probed to keep the check cheap.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	if h.checkVectorStore(checkCtx, logger) {
		checks["vector_store"] = "ok"
	} else {
		checks["vector_store"] = "error"
		issues = append(issues, "vector_store_unavailable")
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Checks:      checks,
		Issues:      issues,
		VisualCache: h.visualCache.Stats(),
	})
}

// checkVectorStore checks if the vector index is accessible.
func (h *HealthHandler) checkVectorStore(ctx context.Context, logger *slog.Logger) bool {
	exists, err := h.vectorStore.CollectionExists(ctx, h.collectionName)
	if err != nil {
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		return false
	}
	if !exists {
		logger.WarnContext(ctx, "vector store collection does not exist", "collection", h.collectionName)
		return false
	}
	return true
}
