package rag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/service"
	"notebook-ai/internal/vectorstore"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_retriever.go -package=mocks notebook-ai/internal/rag Retriever

// Retriever produces an ordered, trimmed candidate list for a query, from
// the consumer's (answer pipeline / context builder) perspective.
type Retriever interface {
	// Retrieve returns at most topK candidates for the query. The returned
	// degradations report recoverable fallbacks such as a reranker failure;
	// an error is only returned when the vector index itself is unreachable.
	Retrieve(ctx context.Context, notebookID string, queryVector []float32, queryText string, sourceIDs []string, topK int) ([]RetrievalCandidate, []service.DegradationReason, error)
	// CountChunks reports how many chunks a notebook has in the index.
	CountChunks(ctx context.Context, notebookID string) (uint64, error)
}

// Coordinator implements two-stage retrieval: overcollect by vector
// similarity, rerank, truncate to top-k.
type Coordinator struct {
	store         vectorstore.VectorStore
	collection    string
	reranker      Reranker // nil disables the rerank stage
	rerankTimeout time.Duration
	overcollect   int
}

// NewCoordinator creates a retrieval coordinator. A nil reranker disables
// the second stage entirely and results keep the vector-similarity order.
func NewCoordinator(store vectorstore.VectorStore, collection string, reranker Reranker, rerankTimeout time.Duration, overcollect int) *Coordinator {
	return &Coordinator{
		store:         store,
		collection:    collection,
		reranker:      reranker,
		rerankTimeout: rerankTimeout,
		overcollect:   overcollect,
	}
}

// Retrieve implements Retriever. Reranking narrows, never expands: the
// overcollect count is raised to topK if configured lower. A reranker error
// or timeout falls back to vector order and is reported as a degradation,
// never as an error.
func (c *Coordinator) Retrieve(ctx context.Context, notebookID string, queryVector []float32, queryText string, sourceIDs []string, topK int) ([]RetrievalCandidate, []service.DegradationReason, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if topK <= 0 {
		return nil, nil, &service.ValidationError{Field: "top_k", Message: "must be greater than 0"}
	}
	overcollect := c.overcollect
	if overcollect < topK {
		overcollect = topK
	}

	hits, err := c.store.Search(ctx, c.collection, queryVector, overcollect, notebookID, sourceIDs)
	if err != nil {
		return nil, nil, service.WrapError(service.ErrRetrievalUnavailable, fmt.Sprintf("vector search failed: %v", err))
	}

	candidates := make([]RetrievalCandidate, len(hits))
	for i, hit := range hits {
		candidates[i] = RetrievalCandidate{Chunk: hit, VectorRank: i}
	}

	var degradations []service.DegradationReason
	if c.reranker != nil && len(candidates) > 0 {
		rerankCtx, cancel := context.WithTimeout(ctx, c.rerankTimeout)
		texts := make([]string, len(candidates))
		for i, cand := range candidates {
			texts[i] = cand.Chunk.Text
		}

		scores, err := c.reranker.Score(rerankCtx, queryText, texts)
		cancel()
		if err != nil || len(scores) != len(candidates) {
			logger.WarnContext(ctx, "reranker unavailable, keeping vector order",
				"error", err, "candidates", len(candidates))
			degradations = append(degradations, service.RerankDegraded)
		} else {
			for i := range candidates {
				candidates[i].RerankScore = scores[i]
				candidates[i].Reranked = true
			}
			sortCandidates(candidates)
		}
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	logger.DebugContext(ctx, "retrieval completed",
		"notebook_id", notebookID,
		"overcollected", len(hits),
		"returned", len(candidates),
		"reranked", len(degradations) == 0 && c.reranker != nil,
	)
	return candidates, degradations, nil
}

// CountChunks implements Retriever.
func (c *Coordinator) CountChunks(ctx context.Context, notebookID string) (uint64, error) {
	return c.store.CountChunks(ctx, c.collection, notebookID)
}

// sortCandidates orders by rerank score descending, then original vector
// rank ascending, then chunk ID, so equal scores rank deterministically.
func sortCandidates(candidates []RetrievalCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.RerankScore != b.RerankScore {
			return a.RerankScore > b.RerankScore
		}
		if a.VectorRank != b.VectorRank {
			return a.VectorRank < b.VectorRank
		}
		return a.Chunk.ChunkID < b.Chunk.ChunkID
	})
}
