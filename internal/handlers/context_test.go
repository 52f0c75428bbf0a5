package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"notebook-ai/internal/contextbuilder"
	"notebook-ai/internal/storage"
	storage_mocks "notebook-ai/internal/storage/mocks"
)

func newContextHandler(t *testing.T) (*ContextHandler, *storage_mocks.MockSourceStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := storage_mocks.NewMockSourceStore(ctrl)
	builder := contextbuilder.NewBuilder(store, nil, nil, nil, "fast-model", 120000, 4)
	return NewContextHandler(builder), store
}

func TestContextHandlerSuccess(t *testing.T) {
	handler, store := newContextHandler(t)

	store.EXPECT().List(gomock.Any(), "nb-1").Return([]storage.SourceMeta{
		{ID: "s1", NotebookID: "nb-1", Filename: "report.pdf", ContentChars: 500, CreatedAt: time.Now()},
	}, nil)
	store.EXPECT().GetContent(gomock.Any(), "s1").Return("quarterly report content", nil)

	req := withNotebookID(postJSON(t, "/api/notebooks/nb-1/context", ContextRequest{
		OutputType: "summary",
	}), "nb-1")
	rec := httptest.NewRecorder()
	handler.Build(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp ContextResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Context, "quarterly report content") {
		t.Errorf("context = %q", resp.Context)
	}
	if resp.Profile != "summary" || len(resp.Sources) != 1 {
		t.Errorf("response = %+v", resp)
	}
	if resp.TotalChars != len(resp.Context) {
		t.Errorf("total_chars = %d, context length = %d", resp.TotalChars, len(resp.Context))
	}
}

func TestContextHandlerEmptyNotebook(t *testing.T) {
	handler, store := newContextHandler(t)
	store.EXPECT().List(gomock.Any(), "nb-1").Return([]storage.SourceMeta{}, nil)

	req := withNotebookID(postJSON(t, "/api/notebooks/nb-1/context", ContextRequest{OutputType: "briefing"}), "nb-1")
	rec := httptest.NewRecorder()
	handler.Build(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ContextResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Context != "" || resp.TotalChars != 0 {
		t.Errorf("empty notebook should produce empty context, got %+v", resp)
	}
}

func TestContextHandlerRejectsBadRequests(t *testing.T) {
	handler, _ := newContextHandler(t)

	req := withNotebookID(
		httptest.NewRequest(http.MethodPost, "/api/notebooks/nb-1/context", strings.NewReader("{not json")),
		"nb-1")
	rec := httptest.NewRecorder()
	handler.Build(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid json status = %d, want 400", rec.Code)
	}

	req = postJSON(t, "/api/notebooks//context", ContextRequest{OutputType: "summary"})
	rec = httptest.NewRecorder()
	handler.Build(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing notebook id status = %d, want 400", rec.Code)
	}
}

func TestContextHandlerStorageFailure(t *testing.T) {
	handler, store := newContextHandler(t)
	store.EXPECT().List(gomock.Any(), "nb-1").Return(nil, errors.New("db locked"))

	req := withNotebookID(postJSON(t, "/api/notebooks/nb-1/context", ContextRequest{OutputType: "summary"}), "nb-1")
	rec := httptest.NewRecorder()
	handler.Build(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
