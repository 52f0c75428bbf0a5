package visualcache

import (
	"strings"
	"testing"
	"time"
)

// testClock lets tests advance time without sleeping.
type testClock struct {
	current time.Time
}

func (tc *testClock) now() time.Time { return tc.current }

func (tc *testClock) advance(d time.Duration) { tc.current = tc.current.Add(d) }

func newTestCache(ttl time.Duration, maxEntries int) (*Cache, *testClock) {
	clock := &testClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(ttl, maxEntries)
	c.now = clock.now
	return c, clock
}

func themedClassification(notebookID, query string, themes int) Classification {
	structure := Structure{Kind: KindThemes}
	for i := 0; i < themes; i++ {
		structure.Themes = append(structure.Themes, Theme{Name: "theme"})
	}
	return Classification{
		NotebookID:    notebookID,
		Query:         query,
		AnswerPreview: "answer to " + query,
		VisualType:    "mindmap",
		Structure:     structure,
	}
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(30*time.Minute, 50)
	if _, ok := c.Get("nb-1", "q", "a"); ok {
		t.Fatal("empty cache should miss")
	}
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(30*time.Minute, 50)
	c.Set(themedClassification("nb-1", "what themes?", 3))

	got, ok := c.Get("nb-1", "what themes?", "answer to what themes?")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.VisualType != "mindmap" || got.Structure.ThemeCount() != 3 {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped on store")
	}
}

func TestGetExpiredEntryIsRemoved(t *testing.T) {
	c, clock := newTestCache(30*time.Minute, 50)
	c.Set(themedClassification("nb-1", "q", 2))

	clock.advance(31 * time.Minute)

	if _, ok := c.Get("nb-1", "q", "answer to q"); ok {
		t.Fatal("expired entry should miss")
	}
	if stats := c.Stats(); stats.TotalEntries != 0 {
		t.Errorf("expired entry should be removed on get, stats = %+v", stats)
	}
}

func TestGetExpiresOnProvidedCreatedAt(t *testing.T) {
	c, clock := newTestCache(30*time.Minute, 50)

	// The classifier worker can post results stamped in the past; validity
	// is bounded by that timestamp, not by when the cache saw the entry.
	stale := themedClassification("nb-1", "q", 2)
	stale.CreatedAt = clock.now().Add(-2 * time.Hour)
	c.Set(stale)

	if _, ok := c.Get("nb-1", "q", "answer to q"); ok {
		t.Fatal("entry created 2h ago must not be valid under a 30m TTL")
	}
	if stats := c.Stats(); stats.TotalEntries != 0 {
		t.Errorf("expired entry should be removed, stats = %+v", stats)
	}

	fresh := themedClassification("nb-1", "q2", 2)
	fresh.CreatedAt = clock.now().Add(-2 * time.Hour)
	c.Set(fresh)
	if r := c.IsReady("nb-1"); r.Ready || r.Reason != ReasonExpired {
		t.Errorf("readiness = %+v, want expired", r)
	}
	if _, ok := c.GetByNotebook("nb-1"); ok {
		t.Error("notebook scan must skip entries past their created_at window")
	}
}

func TestLRUEvictionAtCapacity(t *testing.T) {
	c, _ := newTestCache(30*time.Minute, 3)
	c.Set(themedClassification("nb-1", "q1", 2))
	c.Set(themedClassification("nb-1", "q2", 2))
	c.Set(themedClassification("nb-1", "q3", 2))

	// Touch q1 so q2 becomes the eviction candidate.
	if _, ok := c.Get("nb-1", "q1", "answer to q1"); !ok {
		t.Fatal("q1 should be cached")
	}

	c.Set(themedClassification("nb-1", "q4", 2))

	if _, ok := c.Get("nb-1", "q2", "answer to q2"); ok {
		t.Error("q2 should have been evicted")
	}
	for _, q := range []string{"q1", "q3", "q4"} {
		if _, ok := c.Get("nb-1", q, "answer to "+q); !ok {
			t.Errorf("%s should still be cached", q)
		}
	}
	if stats := c.Stats(); stats.TotalEntries != 3 {
		t.Errorf("cache should hold exactly max entries, stats = %+v", stats)
	}
}

func TestSetExistingKeyRefreshes(t *testing.T) {
	c, clock := newTestCache(30*time.Minute, 50)
	c.Set(themedClassification("nb-1", "q", 2))

	clock.advance(29 * time.Minute)
	updated := themedClassification("nb-1", "q", 4)
	updated.CreatedAt = clock.now()
	c.Set(updated)

	// The refresh restarted the TTL.
	clock.advance(2 * time.Minute)
	got, ok := c.Get("nb-1", "q", "answer to q")
	if !ok {
		t.Fatal("refreshed entry should not be expired")
	}
	if got.Structure.ThemeCount() != 4 {
		t.Errorf("refresh should replace the classification, got %d themes", got.Structure.ThemeCount())
	}
	if stats := c.Stats(); stats.TotalEntries != 1 {
		t.Errorf("refresh should not add an entry, stats = %+v", stats)
	}
}

func TestCacheKeyUsesAnswerPrefix(t *testing.T) {
	c, _ := newTestCache(30*time.Minute, 50)
	prefix := strings.Repeat("x", previewKeyLength)
	stored := themedClassification("nb-1", "q", 2)
	stored.AnswerPreview = prefix + " tail one"
	c.Set(stored)

	if _, ok := c.Get("nb-1", "q", prefix+" tail two"); !ok {
		t.Error("answers sharing the first 200 characters should share a cache entry")
	}
}

func TestGetByNotebookReturnsMostRecent(t *testing.T) {
	c, _ := newTestCache(30*time.Minute, 50)
	c.Set(themedClassification("nb-1", "old question", 2))
	c.Set(themedClassification("nb-2", "other notebook", 2))
	c.Set(themedClassification("nb-1", "new question", 3))

	got, ok := c.GetByNotebook("nb-1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.Query != "new question" {
		t.Errorf("expected the most recently stored entry, got %q", got.Query)
	}

	if _, ok := c.GetByNotebook("nb-3"); ok {
		t.Error("unknown notebook should miss")
	}
}

func TestGetByNotebookSkipsExpired(t *testing.T) {
	c, clock := newTestCache(30*time.Minute, 50)
	c.Set(themedClassification("nb-1", "old", 2))

	clock.advance(20 * time.Minute)
	c.Set(themedClassification("nb-1", "fresh", 2))

	clock.advance(15 * time.Minute) // "old" is now past its TTL

	got, ok := c.GetByNotebook("nb-1")
	if !ok || got.Query != "fresh" {
		t.Fatalf("got %+v, %v", got, ok)
	}
	if stats := c.Stats(); stats.TotalEntries != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestIsReady(t *testing.T) {
	c, clock := newTestCache(30*time.Minute, 50)

	if r := c.IsReady("nb-1"); r.Ready || r.Reason != ReasonNotFound {
		t.Errorf("empty cache readiness = %+v", r)
	}

	c.Set(themedClassification("nb-1", "thin", 1))
	if r := c.IsReady("nb-1"); r.Ready || r.Reason != ReasonNoThemes || r.ThemeCount != 1 {
		t.Errorf("single theme readiness = %+v", r)
	}

	c.Set(themedClassification("nb-1", "rich", 4))
	clock.advance(90 * time.Second)
	r := c.IsReady("nb-1")
	if !r.Ready || r.ThemeCount != 4 || r.AgeSeconds != 90 {
		t.Errorf("readiness = %+v", r)
	}

	clock.advance(30 * time.Minute)
	if r := c.IsReady("nb-1"); r.Ready || r.Reason != ReasonExpired {
		t.Errorf("expired readiness = %+v", r)
	}
}

func TestClearNotebook(t *testing.T) {
	c, _ := newTestCache(30*time.Minute, 50)
	c.Set(themedClassification("nb-1", "q1", 2))
	c.Set(themedClassification("nb-1", "q2", 2))
	c.Set(themedClassification("nb-2", "q1", 2))

	if removed := c.ClearNotebook("nb-1"); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := c.GetByNotebook("nb-1"); ok {
		t.Error("nb-1 entries should be gone")
	}
	if _, ok := c.GetByNotebook("nb-2"); !ok {
		t.Error("nb-2 entries should survive")
	}
}

func TestCleanupExpired(t *testing.T) {
	c, clock := newTestCache(30*time.Minute, 50)
	c.Set(themedClassification("nb-1", "stale1", 2))
	c.Set(themedClassification("nb-1", "stale2", 2))

	clock.advance(20 * time.Minute)
	c.Set(themedClassification("nb-1", "fresh", 2))

	clock.advance(15 * time.Minute)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	stats := c.Stats()
	if stats.TotalEntries != 1 || stats.ValidEntries != 1 || stats.ExpiredEntries != 0 {
		t.Errorf("stats after cleanup = %+v", stats)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short answer."); got != "short answer." {
		t.Errorf("short answers pass through, got %q", got)
	}

	long := strings.Repeat("All work and no play. ", 40)
	got := Preview(long)
	if len(got) > 500 {
		t.Errorf("preview length = %d, want <= 500", len(got))
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("preview should end at a sentence boundary, got %q", got[len(got)-20:])
	}

	noSentences := strings.Repeat("word ", 200)
	got = Preview(noSentences)
	if len(got) > 500 || strings.HasSuffix(got, " ") {
		t.Errorf("preview = %q", got)
	}
}

func TestSetBoundsStoredPreview(t *testing.T) {
	c, _ := newTestCache(30*time.Minute, 50)
	stored := themedClassification("nb-1", "q", 2)
	stored.AnswerPreview = "  " + strings.Repeat("All work and no play. ", 40)
	c.Set(stored)

	// The fingerprint is computed after normalization, so both the raw
	// answer and the stored preview resolve to the same entry.
	got, ok := c.Get("nb-1", "q", stored.AnswerPreview)
	if !ok {
		t.Fatal("raw answer should hit")
	}
	if len(got.AnswerPreview) > 500 {
		t.Errorf("stored preview length = %d, want <= 500", len(got.AnswerPreview))
	}
	if _, ok := c.Get("nb-1", "q", got.AnswerPreview); !ok {
		t.Error("stored preview should hit the same entry on a round-trip")
	}
}

func TestStats(t *testing.T) {
	c, clock := newTestCache(30*time.Minute, 50)
	c.Set(themedClassification("nb-1", "stale", 2))
	clock.advance(20 * time.Minute)
	c.Set(themedClassification("nb-1", "fresh", 2))
	clock.advance(15 * time.Minute)

	stats := c.Stats()
	if stats.TotalEntries != 2 || stats.ValidEntries != 1 || stats.ExpiredEntries != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.MaxEntries != 50 || stats.TTLSeconds != 1800 {
		t.Errorf("stats = %+v", stats)
	}
}
