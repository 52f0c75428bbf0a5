package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/rag"
)

// AnswerHandler handles question answering over a notebook's sources.
type AnswerHandler struct {
	engine rag.Engine
}

// NewAnswerHandler creates a new AnswerHandler.
func NewAnswerHandler(engine rag.Engine) *AnswerHandler {
	return &AnswerHandler{engine: engine}
}

// AnswerRequest represents the HTTP request payload for answering.
// This mirrors rag.AnswerRequest but is defined here for HTTP layer separation.
type AnswerRequest struct {
	Question        string   `json:"question"`
	SourceIDs       []string `json:"source_ids,omitempty"`
	TopK            int      `json:"top_k,omitempty"`
	EnableWebSearch bool     `json:"enable_web_search,omitempty"`
}

// Answer handles POST /api/notebooks/{notebookID}/answer.
func (h *AnswerHandler) Answer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.Answer(ctx, req)
	if err != nil {
		writeServiceError(w, ctx, err, "Failed to answer question")
		return
	}

	logger.InfoContext(ctx, "question answered",
		"notebook_id", req.NotebookID,
		"confidence_level", result.ConfidenceLevel,
		"citations", len(result.Citations),
	)
	writeJSON(w, http.StatusOK, result)
}

// Stream handles POST /api/notebooks/{notebookID}/answer/stream using
// Server-Sent Events. Token events arrive as they are generated, followed by
// exactly one final event carrying the full result, then [DONE].
func (h *AnswerHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.ErrorContext(ctx, "streaming not supported by response writer")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	err := h.engine.AnswerStream(ctx, req, func(event rag.StreamEvent) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Headers are already sent; the error has to travel in-band.
		logger.ErrorContext(ctx, "error streaming answer", "error", err)
		_, _ = fmt.Fprintf(w, "data: {\"type\":\"error\",\"content\":%q}\n\n", err.Error())
		flusher.Flush()
		return
	}

	_, _ = fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// decodeRequest parses and validates the shared answer payload. It writes
// the error response itself and reports success via the bool.
func (h *AnswerHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (rag.AnswerRequest, bool) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return rag.AnswerRequest{}, false
	}

	notebookID := chi.URLParam(r, "notebookID")
	if notebookID == "" {
		writeError(w, http.StatusBadRequest, "Notebook ID is required")
		return rag.AnswerRequest{}, false
	}
	if req.Question == "" {
		logger.WarnContext(ctx, "empty question in request")
		writeError(w, http.StatusBadRequest, "Question is required")
		return rag.AnswerRequest{}, false
	}
	if req.TopK < 0 {
		req.TopK = 0
	}

	return rag.AnswerRequest{
		NotebookID:      notebookID,
		Question:        req.Question,
		SourceIDs:       req.SourceIDs,
		TopK:            req.TopK,
		EnableWebSearch: req.EnableWebSearch,
	}, true
}
