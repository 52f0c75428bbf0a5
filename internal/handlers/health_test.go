package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	vectorstore_mocks "notebook-ai/internal/vectorstore/mocks"
	"notebook-ai/internal/visualcache"
)

func TestHealthHandlerHealthy(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := vectorstore_mocks.NewMockVectorStore(ctrl)
	store.EXPECT().CollectionExists(gomock.Any(), "notebook_chunks").Return(true, nil)

	cache := visualcache.New(30*time.Minute, 50)
	cache.Set(visualcache.Classification{NotebookID: "nb-1", Query: "q"})

	handler := NewHealthHandler(store, cache, "notebook_chunks")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "healthy" || resp.Checks["vector_store"] != "ok" {
		t.Errorf("response = %+v", resp)
	}
	if resp.VisualCache.TotalEntries != 1 || resp.VisualCache.MaxEntries != 50 {
		t.Errorf("visual cache stats = %+v", resp.VisualCache)
	}
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		err    error
	}{
		{"store unreachable", false, errors.New("connection refused")},
		{"collection missing", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := vectorstore_mocks.NewMockVectorStore(ctrl)
			store.EXPECT().CollectionExists(gomock.Any(), "notebook_chunks").Return(tt.exists, tt.err)

			handler := NewHealthHandler(store, visualcache.New(30*time.Minute, 50), "notebook_chunks")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want 503", rec.Code)
			}
			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Status != "unhealthy" || len(resp.Issues) == 0 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}
