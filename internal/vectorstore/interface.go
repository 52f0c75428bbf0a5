package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks notebook-ai/internal/vectorstore VectorStore

import "context"

// SearchHit is one chunk returned by similarity search. Payload fields are
// written at ingestion time by the indexing pipeline (an external
// collaborator of this service).
type SearchHit struct {
	ChunkID    string
	SourceID   string
	NotebookID string
	ChunkIndex int
	Page       int
	Text       string
	Score      float32
}

// VectorStore defines the interface for the vector index collaborator.
type VectorStore interface {
	// Search performs a similarity search scoped to a notebook, optionally
	// restricted to a set of source IDs. Results are ordered by descending
	// similarity score.
	Search(ctx context.Context, collection string, query []float32, k int, notebookID string, sourceIDs []string) ([]SearchHit, error)

	// CountChunks returns the number of indexed chunks for a notebook.
	// Used for the empty-corpus early return.
	CountChunks(ctx context.Context, collection, notebookID string) (uint64, error)

	// EnsureCollection creates the collection if missing and validates the
	// vector size if present.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)
}
