package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/visualcache"
)

// VisualHandler exposes the visual classification cache.
type VisualHandler struct {
	cache *visualcache.Cache
}

// NewVisualHandler creates a new VisualHandler.
func NewVisualHandler(cache *visualcache.Cache) *VisualHandler {
	return &VisualHandler{cache: cache}
}

// GetClassification handles GET /api/notebooks/{notebookID}/visual/classification.
// With `query` (and optionally `answer_preview`) query parameters it does a
// point lookup; without them it returns the freshest cached classification
// for the notebook.
func (h *VisualHandler) GetClassification(w http.ResponseWriter, r *http.Request) {
	notebookID := chi.URLParam(r, "notebookID")

	var classification visualcache.Classification
	var ok bool
	if query := r.URL.Query().Get("query"); query != "" {
		classification, ok = h.cache.Get(notebookID, query, r.URL.Query().Get("answer_preview"))
	} else {
		classification, ok = h.cache.GetByNotebook(notebookID)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "No cached classification for notebook")
		return
	}
	writeJSON(w, http.StatusOK, classification)
}

// StoreClassification handles POST /api/notebooks/{notebookID}/visual/classification.
// The visual classifier worker stores its results here so later requests
// skip the classifier call.
func (h *VisualHandler) StoreClassification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var classification visualcache.Classification
	if err := json.NewDecoder(r.Body).Decode(&classification); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	classification.NotebookID = chi.URLParam(r, "notebookID")
	if classification.Query == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	h.cache.Set(classification)
	logger.InfoContext(ctx, "visual classification cached",
		"notebook_id", classification.NotebookID,
		"visual_type", classification.VisualType,
	)
	w.WriteHeader(http.StatusNoContent)
}

// Ready handles GET /api/notebooks/{notebookID}/visual/ready.
func (h *VisualHandler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.IsReady(chi.URLParam(r, "notebookID")))
}

// ClearResponse reports how many cache entries were removed.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// Clear handles DELETE /api/notebooks/{notebookID}/visual.
func (h *VisualHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	notebookID := chi.URLParam(r, "notebookID")
	removed := h.cache.ClearNotebook(notebookID)
	logger.InfoContext(ctx, "visual cache cleared", "notebook_id", notebookID, "removed", removed)
	writeJSON(w, http.StatusOK, ClearResponse{Removed: removed})
}

// Stats handles GET /api/visual/stats.
func (h *VisualHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}
