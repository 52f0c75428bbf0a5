package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrRetrievalUnavailable is returned when the vector index cannot be
	// reached. This is the only retrieval failure that surfaces to the
	// HTTP boundary as an error.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")
)

// DegradationReason identifies a degraded-but-successful outcome. These are
// carried in result structs, never raised as errors, so callers see degraded
// paths statically instead of via swallowed exceptions.
type DegradationReason string

const (
	// RerankDegraded means the reranker errored or timed out and results
	// fell back to pure vector-similarity order.
	RerankDegraded DegradationReason = "rerank_degraded"
	// EmbeddingFallback means source ranking fell back to recency + size
	// because embeddings were unavailable.
	EmbeddingFallback DegradationReason = "embedding_fallback"
	// SourceDropped means one or more sources were excluded from the
	// context (budget exceeded or summarization failed).
	SourceDropped DegradationReason = "source_dropped"
	// GenerationTimeout means answer generation timed out and the answer
	// text is an explicit error string rather than a model response.
	GenerationTimeout DegradationReason = "generation_timeout"
	// WebSearchIgnored means the caller requested web search, which this
	// system does not perform.
	WebSearchIgnored DegradationReason = "web_search_ignored"
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
