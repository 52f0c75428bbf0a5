package visualcache

import (
	"container/list"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const (
	previewKeyLength = 200
	// previewMaxLength bounds the stored answer preview.
	previewMaxLength = 500
)

// Preview normalizes an answer into the stored preview form: at most 500
// characters, cut at the last sentence end when one falls in range,
// otherwise at the last word boundary.
func Preview(answer string) string {
	answer = strings.TrimSpace(answer)
	if len(answer) <= previewMaxLength {
		return answer
	}
	cut := answer[:previewMaxLength]
	if i := strings.LastIndexAny(cut, ".!?"); i > previewMaxLength/2 {
		return cut[:i+1]
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		return cut[:i]
	}
	return cut
}

// Classification is a cached visual-classification result for one
// question/answer pair in a notebook.
type Classification struct {
	NotebookID            string    `json:"notebook_id"`
	Query                 string    `json:"query"`
	AnswerPreview         string    `json:"answer_preview"`
	VisualType            string    `json:"visual_type"`
	SuggestedTemplate     string    `json:"suggested_template,omitempty"`
	Title                 string    `json:"title,omitempty"`
	KeyItems              []string  `json:"key_items,omitempty"`
	SecondaryTypes        []string  `json:"secondary_types,omitempty"`
	HasMultipleStructures bool      `json:"has_multiple_structures,omitempty"`
	Structure             Structure `json:"structure"`
	CreatedAt             time.Time `json:"created_at"`
}

// Readiness reports whether a notebook has a classification fresh and rich
// enough to drive visual generation.
type Readiness struct {
	Ready      bool   `json:"ready"`
	Reason     string `json:"reason,omitempty"`
	ThemeCount int    `json:"theme_count,omitempty"`
	AgeSeconds int    `json:"age_seconds,omitempty"`
}

// Readiness reasons returned when Ready is false.
const (
	ReasonNotFound = "not_found"
	ReasonExpired  = "expired"
	ReasonNoThemes = "no_themes"
)

// minReadyThemes is the smallest structure that produces a useful visual.
const minReadyThemes = 2

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	TotalEntries   int `json:"total_entries"`
	ValidEntries   int `json:"valid_entries"`
	ExpiredEntries int `json:"expired_entries"`
	MaxEntries     int `json:"max_entries"`
	TTLSeconds     int `json:"ttl_seconds"`
}

type cacheEntry struct {
	key            string
	classification Classification
}

// Cache holds visual classifications with a TTL and LRU eviction so
// repeated visual requests for the same answer skip the classifier LLM
// call. Safe for concurrent use.
type Cache struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]*list.Element
	// order tracks recency: front is least recently used, back is most.
	order *list.List
	now   func() time.Time
}

// New creates a Cache with the given entry lifetime and capacity.
func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// cacheKey fingerprints a notebook/question/answer triple. Only the first
// 200 characters of the answer participate so trailing differences in long
// answers don't defeat the cache.
func cacheKey(notebookID, query, answerPreview string) string {
	if len(answerPreview) > previewKeyLength {
		answerPreview = answerPreview[:previewKeyLength]
	}
	sum := md5.Sum([]byte(notebookID + ":" + query + ":" + answerPreview))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached classification for the triple, if present and not
// expired. A hit refreshes the entry's LRU position; an expired entry is
// removed.
func (c *Cache) Get(notebookID, query, answerPreview string) (Classification, bool) {
	key := cacheKey(notebookID, query, Preview(answerPreview))

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return Classification{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.expired(entry) {
		c.remove(elem)
		return Classification{}, false
	}
	c.order.MoveToBack(elem)
	return entry.classification, true
}

// Set stores a classification, evicting least recently used entries when
// the cache is at capacity. Storing an existing key refreshes it. The
// preview is normalized before fingerprinting so lookups with either the
// raw answer or the stored preview resolve to the same entry.
func (c *Cache) Set(classification Classification) {
	classification.AnswerPreview = Preview(classification.AnswerPreview)
	key := cacheKey(classification.NotebookID, classification.Query, classification.AnswerPreview)
	if classification.CreatedAt.IsZero() {
		classification.CreatedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).classification = classification
		c.order.MoveToBack(elem)
		return
	}

	for len(c.entries) >= c.maxEntries {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.remove(oldest)
	}

	elem := c.order.PushBack(&cacheEntry{
		key:            key,
		classification: classification,
	})
	c.entries[key] = elem
}

// GetByNotebook returns the most recently stored unexpired classification
// for a notebook, regardless of which question produced it. Expired entries
// encountered during the scan are removed.
func (c *Cache) GetByNotebook(notebookID string) (Classification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*cacheEntry)
		if entry.classification.NotebookID == notebookID {
			if c.expired(entry) {
				c.remove(elem)
			} else {
				return entry.classification, true
			}
		}
		elem = prev
	}
	return Classification{}, false
}

// IsReady reports whether the notebook's freshest classification has enough
// structure to generate a visual without another classifier call.
func (c *Cache) IsReady(notebookID string) Readiness {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.order.Back(); elem != nil; elem = elem.Prev() {
		entry := elem.Value.(*cacheEntry)
		if entry.classification.NotebookID != notebookID {
			continue
		}
		if c.expired(entry) {
			return Readiness{Reason: ReasonExpired}
		}
		themes := entry.classification.Structure.ThemeCount()
		if themes < minReadyThemes {
			return Readiness{Reason: ReasonNoThemes, ThemeCount: themes}
		}
		age := int(c.now().Sub(entry.classification.CreatedAt).Seconds())
		return Readiness{Ready: true, ThemeCount: themes, AgeSeconds: age}
	}
	return Readiness{Reason: ReasonNotFound}
}

// ClearNotebook removes every entry for the notebook and returns how many
// were removed.
func (c *Cache) ClearNotebook(notebookID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*cacheEntry).classification.NotebookID == notebookID {
			c.remove(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// CleanupExpired drops all expired entries and returns how many were
// removed. Intended for a periodic background sweep.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if c.expired(elem.Value.(*cacheEntry)) {
			c.remove(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Stats returns current occupancy without modifying the cache.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		TotalEntries: len(c.entries),
		MaxEntries:   c.maxEntries,
		TTLSeconds:   int(c.ttl.Seconds()),
	}
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if c.expired(elem.Value.(*cacheEntry)) {
			stats.ExpiredEntries++
		} else {
			stats.ValidEntries++
		}
	}
	return stats
}

// expired judges validity from the classification's CreatedAt so entries
// stored with an old timestamp are never served past their window.
func (c *Cache) expired(entry *cacheEntry) bool {
	return c.now().Sub(entry.classification.CreatedAt) > c.ttl
}

// remove must be called with the lock held.
func (c *Cache) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*cacheEntry).key)
}
