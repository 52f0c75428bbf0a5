package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"notebook-ai/internal/contextbuilder"
	"notebook-ai/internal/contextutil"
)

// ContextHandler handles context assembly for content generation.
type ContextHandler struct {
	builder *contextbuilder.Builder
}

// NewContextHandler creates a new ContextHandler.
func NewContextHandler(builder *contextbuilder.Builder) *ContextHandler {
	return &ContextHandler{builder: builder}
}

// ContextRequest represents the HTTP request payload for context assembly.
type ContextRequest struct {
	OutputType      string   `json:"output_type"`
	Topic           string   `json:"topic,omitempty"`
	SourceIDs       []string `json:"source_ids,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
}

// ContextResponse is the assembled context plus build timing.
type ContextResponse struct {
	contextbuilder.BuiltContext
	BuildTimeMs int64 `json:"build_time_ms"`
}

// Build handles POST /api/notebooks/{notebookID}/context.
func (h *ContextHandler) Build(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	notebookID := chi.URLParam(r, "notebookID")
	if notebookID == "" {
		writeError(w, http.StatusBadRequest, "Notebook ID is required")
		return
	}

	built, err := h.builder.BuildContext(ctx, contextbuilder.BuildRequest{
		NotebookID:      notebookID,
		OutputType:      req.OutputType,
		Topic:           req.Topic,
		SourceIDs:       req.SourceIDs,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		writeServiceError(w, ctx, err, "Failed to build context")
		return
	}

	writeJSON(w, http.StatusOK, ContextResponse{
		BuiltContext: built,
		BuildTimeMs:  built.BuildTime.Milliseconds(),
	})
}
