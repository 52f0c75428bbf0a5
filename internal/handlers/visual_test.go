package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"notebook-ai/internal/visualcache"
)

func newVisualHandler() (*VisualHandler, *visualcache.Cache) {
	cache := visualcache.New(30*time.Minute, 50)
	return NewVisualHandler(cache), cache
}

func storedClassification(notebookID string) visualcache.Classification {
	return visualcache.Classification{
		NotebookID:    notebookID,
		Query:         "what are the main themes?",
		AnswerPreview: "The main themes are growth and churn.",
		VisualType:    "mindmap",
		Structure: visualcache.Structure{
			Kind: visualcache.KindThemes,
			Themes: []visualcache.Theme{
				{Name: "growth", Items: []string{"new markets"}},
				{Name: "churn", Items: []string{"pricing"}},
			},
		},
	}
}

func TestVisualStoreAndGetClassification(t *testing.T) {
	handler, _ := newVisualHandler()

	req := withNotebookID(postJSON(t, "/api/notebooks/nb-1/visual/classification", storedClassification("")), "nb-1")
	rec := httptest.NewRecorder()
	handler.StoreClassification(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("store status = %d, body = %s", rec.Code, rec.Body.String())
	}

	getReq := withNotebookID(httptest.NewRequest(http.MethodGet, "/api/notebooks/nb-1/visual/classification", nil), "nb-1")
	rec = httptest.NewRecorder()
	handler.GetClassification(rec, getReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	var got visualcache.Classification
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.NotebookID != "nb-1" || got.VisualType != "mindmap" {
		t.Errorf("classification = %+v", got)
	}
	if got.Structure.Kind != visualcache.KindThemes || got.Structure.ThemeCount() != 2 {
		t.Errorf("structure = %+v", got.Structure)
	}
}

func TestVisualPointGetWithQueryParams(t *testing.T) {
	handler, cache := newVisualHandler()
	stored := storedClassification("nb-1")
	cache.Set(stored)
	other := storedClassification("nb-1")
	other.Query = "different question"
	other.VisualType = "timeline"
	cache.Set(other)

	target := "/api/notebooks/nb-1/visual/classification?query=" +
		"what+are+the+main+themes%3F&answer_preview=" +
		"The+main+themes+are+growth+and+churn."
	req := withNotebookID(httptest.NewRequest(http.MethodGet, target, nil), "nb-1")
	rec := httptest.NewRecorder()
	handler.GetClassification(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got visualcache.Classification
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Query != "what are the main themes?" || got.VisualType != "mindmap" {
		t.Errorf("point lookup returned %+v", got)
	}

	// A query with no matching entry is a miss even though the notebook
	// has other entries.
	req = withNotebookID(httptest.NewRequest(http.MethodGet,
		"/api/notebooks/nb-1/visual/classification?query=unseen", nil), "nb-1")
	rec = httptest.NewRecorder()
	handler.GetClassification(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestVisualGetClassificationMiss(t *testing.T) {
	handler, _ := newVisualHandler()

	req := withNotebookID(httptest.NewRequest(http.MethodGet, "/api/notebooks/nb-9/visual/classification", nil), "nb-9")
	rec := httptest.NewRecorder()
	handler.GetClassification(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestVisualStoreRejectsMissingQuery(t *testing.T) {
	handler, _ := newVisualHandler()

	payload := storedClassification("")
	payload.Query = ""
	req := withNotebookID(postJSON(t, "/api/notebooks/nb-1/visual/classification", payload), "nb-1")
	rec := httptest.NewRecorder()
	handler.StoreClassification(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	req = withNotebookID(
		httptest.NewRequest(http.MethodPost, "/api/notebooks/nb-1/visual/classification", strings.NewReader("{bad")),
		"nb-1")
	rec = httptest.NewRecorder()
	handler.StoreClassification(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid json status = %d, want 400", rec.Code)
	}
}

func TestVisualReady(t *testing.T) {
	handler, cache := newVisualHandler()
	cache.Set(storedClassification("nb-1"))

	req := withNotebookID(httptest.NewRequest(http.MethodGet, "/api/notebooks/nb-1/visual/ready", nil), "nb-1")
	rec := httptest.NewRecorder()
	handler.Ready(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var readiness visualcache.Readiness
	if err := json.Unmarshal(rec.Body.Bytes(), &readiness); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !readiness.Ready || readiness.ThemeCount != 2 {
		t.Errorf("readiness = %+v", readiness)
	}

	// Readiness is always a 200, even when nothing is cached.
	req = withNotebookID(httptest.NewRequest(http.MethodGet, "/api/notebooks/nb-9/visual/ready", nil), "nb-9")
	rec = httptest.NewRecorder()
	handler.Ready(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &readiness); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if readiness.Ready || readiness.Reason != visualcache.ReasonNotFound {
		t.Errorf("readiness = %+v", readiness)
	}
}

func TestVisualClear(t *testing.T) {
	handler, cache := newVisualHandler()
	cache.Set(storedClassification("nb-1"))
	other := storedClassification("nb-2")
	other.Query = "other notebook"
	cache.Set(other)

	req := withNotebookID(httptest.NewRequest(http.MethodDelete, "/api/notebooks/nb-1/visual", nil), "nb-1")
	rec := httptest.NewRecorder()
	handler.Clear(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp ClearResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Removed != 1 {
		t.Errorf("removed = %d, want 1", resp.Removed)
	}
	if _, ok := cache.GetByNotebook("nb-2"); !ok {
		t.Error("other notebook's entries should survive")
	}
}

func TestVisualStats(t *testing.T) {
	handler, cache := newVisualHandler()
	cache.Set(storedClassification("nb-1"))

	req := httptest.NewRequest(http.MethodGet, "/api/visual/stats", nil)
	rec := httptest.NewRecorder()
	handler.Stats(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats visualcache.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.TotalEntries != 1 || stats.ValidEntries != 1 || stats.MaxEntries != 50 {
		t.Errorf("stats = %+v", stats)
	}
}
