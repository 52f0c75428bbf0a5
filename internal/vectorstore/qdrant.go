package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"notebook-ai/internal/contextutil"
)

// QdrantStore implements VectorStore using Qdrant.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant vector store client. urlStr is the
// HTTP URL ("http://localhost:6333"); the gRPC port is derived from it.
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	// gRPC port is conventionally the HTTP port + 1.
	port := 6334
	if parsedURL.Port() != "" {
		if httpPort, err := strconv.Atoi(parsedURL.Port()); err == nil {
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// buildFilter builds the payload filter for a notebook-scoped search.
func buildFilter(notebookID string, sourceIDs []string) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatch("notebook_id", notebookID),
	}
	if len(sourceIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords("source_id", sourceIDs...))
	}
	return &qdrant.Filter{Must: must}
}

// Search performs a similarity search scoped to a notebook.
func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, k int, notebookID string, sourceIDs []string) ([]SearchHit, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if notebookID == "" {
		return nil, fmt.Errorf("notebookID must not be empty")
	}

	limit := uint64(k)
	scoredPoints, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		Filter:         buildFilter(notebookID, sourceIDs),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "notebook_id", notebookID, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	hits := make([]SearchHit, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		hit := SearchHit{Score: point.Score}
		if point.Id != nil {
			hit.ChunkID = point.Id.GetUuid()
		}
		if point.Payload != nil {
			hit.SourceID = point.Payload["source_id"].GetStringValue()
			hit.NotebookID = point.Payload["notebook_id"].GetStringValue()
			hit.Text = point.Payload["text"].GetStringValue()
			hit.ChunkIndex = int(point.Payload["chunk_index"].GetIntegerValue())
			hit.Page = int(point.Payload["page"].GetIntegerValue())
		}
		hits = append(hits, hit)
	}

	logger.DebugContext(ctx, "search completed", "collection", collection, "notebook_id", notebookID, "k", k, "results", len(hits))
	return hits, nil
}

// CountChunks returns the number of indexed chunks for a notebook.
func (s *QdrantStore) CountChunks(ctx context.Context, collection, notebookID string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         buildFilter(notebookID, nil),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// CollectionExists checks if a collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// EnsureCollection ensures a collection exists with the specified vector
// size, creating it with cosine distance when missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", collection, "vector_size", vectorSize)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params != nil && params.Size != uint64(vectorSize) {
		return fmt.Errorf("collection %q has vector size %d, expected %d (recreate the collection after changing embedding models)",
			collection, params.Size, vectorSize)
	}

	return nil
}
