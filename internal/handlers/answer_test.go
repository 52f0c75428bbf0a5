package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"notebook-ai/internal/rag"
	rag_mocks "notebook-ai/internal/rag/mocks"
	"notebook-ai/internal/service"
)

// withNotebookID attaches a chi route context so handlers invoked directly
// can read the URL parameter.
func withNotebookID(r *http.Request, notebookID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("notebookID", notebookID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func postJSON(t *testing.T, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
}

func TestAnswerHandlerSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := rag_mocks.NewMockEngine(ctrl)
	handler := NewAnswerHandler(engine)

	engine.EXPECT().
		Answer(gomock.Any(), rag.AnswerRequest{
			NotebookID: "nb-1",
			Question:   "What were Q3 revenues?",
			TopK:       6,
		}).
		Return(rag.AnswerResult{
			Answer:          "Revenues were $4M [1].",
			Citations:       []rag.Citation{{Number: 1, SourceID: "s1", Snippet: "Q3 revenue was $4M", Confidence: 0.8, ConfidenceLevel: "high"}},
			ConfidenceLevel: "medium",
			QueryType:       rag.QueryFactual,
			ConversationID:  "conv-1",
		}, nil)

	req := withNotebookID(postJSON(t, "/api/notebooks/nb-1/answer", AnswerRequest{
		Question: "What were Q3 revenues?",
		TopK:     6,
	}), "nb-1")
	rec := httptest.NewRecorder()

	handler.Answer(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp rag.AnswerResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "Revenues were $4M [1]." || len(resp.Citations) != 1 {
		t.Errorf("response = %+v", resp)
	}
	if resp.ConversationID != "conv-1" {
		t.Errorf("conversation_id = %q", resp.ConversationID)
	}
}

func TestAnswerHandlerRejectsBadRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := rag_mocks.NewMockEngine(ctrl)
	handler := NewAnswerHandler(engine)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{
			name: "invalid json",
			req: withNotebookID(
				httptest.NewRequest(http.MethodPost, "/api/notebooks/nb-1/answer", strings.NewReader("{not json")),
				"nb-1"),
		},
		{
			name: "empty question",
			req:  withNotebookID(postJSON(t, "/api/notebooks/nb-1/answer", AnswerRequest{}), "nb-1"),
		},
		{
			name: "missing notebook id",
			req:  postJSON(t, "/api/notebooks//answer", AnswerRequest{Question: "hi"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.Answer(rec, tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAnswerHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", &service.ValidationError{Field: "question", Message: "required"}, http.StatusBadRequest},
		{"not found", service.WrapError(service.ErrNotFound, "notebook missing"), http.StatusNotFound},
		{"retrieval unavailable", service.WrapError(service.ErrRetrievalUnavailable, "qdrant down"), http.StatusServiceUnavailable},
		{"external service", service.WrapError(service.ErrExternalService, "llm down"), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			engine := rag_mocks.NewMockEngine(ctrl)
			engine.EXPECT().Answer(gomock.Any(), gomock.Any()).Return(rag.AnswerResult{}, tt.err)
			handler := NewAnswerHandler(engine)

			req := withNotebookID(postJSON(t, "/api/notebooks/nb-1/answer", AnswerRequest{Question: "q"}), "nb-1")
			rec := httptest.NewRecorder()
			handler.Answer(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Error == "" {
				t.Error("error message should not be empty")
			}
		})
	}
}

func TestAnswerHandlerStream(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := rag_mocks.NewMockEngine(ctrl)
	handler := NewAnswerHandler(engine)

	engine.EXPECT().
		AnswerStream(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ rag.AnswerRequest, emit func(rag.StreamEvent) error) error {
			for _, chunk := range []string{"The answer ", "is 42 [1]."} {
				if err := emit(rag.StreamEvent{Type: "token", Content: chunk}); err != nil {
					return err
				}
			}
			return emit(rag.StreamEvent{Type: "final", Result: &rag.AnswerResult{
				Answer:          "The answer is 42 [1].",
				Citations:       []rag.Citation{{Number: 1, SourceID: "s1"}},
				ConfidenceLevel: "medium",
			}})
		})

	req := withNotebookID(postJSON(t, "/api/notebooks/nb-1/answer/stream", AnswerRequest{Question: "q"}), "nb-1")
	rec := httptest.NewRecorder()
	handler.Stream(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	if strings.Count(body, `"type":"token"`) != 2 {
		t.Errorf("expected 2 token events, body:\n%s", body)
	}
	if strings.Count(body, `"type":"final"`) != 1 {
		t.Errorf("expected exactly 1 final event, body:\n%s", body)
	}
	if !strings.Contains(body, "data: [DONE]") {
		t.Errorf("missing [DONE] terminator, body:\n%s", body)
	}
	if !strings.Contains(body, `"confidence_level":"medium"`) {
		t.Errorf("final event should carry the result, body:\n%s", body)
	}
}

func TestAnswerHandlerStreamErrorInBand(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := rag_mocks.NewMockEngine(ctrl)
	handler := NewAnswerHandler(engine)

	engine.EXPECT().
		AnswerStream(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ rag.AnswerRequest, emit func(rag.StreamEvent) error) error {
			if err := emit(rag.StreamEvent{Type: "token", Content: "partial"}); err != nil {
				return err
			}
			return service.WrapError(service.ErrExternalService, "llm died mid-stream")
		})

	req := withNotebookID(postJSON(t, "/api/notebooks/nb-1/answer/stream", AnswerRequest{Question: "q"}), "nb-1")
	rec := httptest.NewRecorder()
	handler.Stream(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `"type":"error"`) {
		t.Errorf("stream errors must be reported in-band, body:\n%s", body)
	}
	if strings.Contains(body, "data: [DONE]") {
		t.Errorf("failed stream must not be terminated with [DONE], body:\n%s", body)
	}
}
