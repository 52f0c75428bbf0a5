package rag

import "notebook-ai/internal/vectorstore"

// QueryType labels a question for prompt and model selection.
type QueryType string

const (
	// QueryFactual covers lookups of a specific value, count, date, or name.
	QueryFactual QueryType = "factual"
	// QueryComplex covers comparisons, analysis, and multi-step reasoning.
	QueryComplex QueryType = "complex"
	// QuerySynthesis covers summaries, explanations, and general questions.
	QuerySynthesis QueryType = "synthesis"
)

// RetrievalCandidate is a chunk hit carrying both ranking signals. Transient,
// created per query, never persisted.
type RetrievalCandidate struct {
	Chunk       vectorstore.SearchHit
	VectorRank  int     // Position in the original vector-similarity order
	RerankScore float64 // Only meaningful when Reranked is true
	Reranked    bool
}

// Citation points a numbered inline reference back to its chunk.
type Citation struct {
	Number          int     `json:"number"`
	SourceID        string  `json:"source_id"`
	Filename        string  `json:"filename,omitempty"`
	ChunkIndex      int     `json:"chunk_index"`
	Text            string  `json:"-"`
	Snippet         string  `json:"snippet"`
	Page            int     `json:"page,omitempty"`
	Confidence      float64 `json:"confidence"`
	ConfidenceLevel string  `json:"confidence_level"`
}

// AnswerRequest is a question against a notebook's sources.
type AnswerRequest struct {
	NotebookID string
	Question   string
	// SourceIDs optionally restricts retrieval to the given sources.
	SourceIDs []string
	// TopK is the number of chunks to keep after reranking. Zero means the
	// configured default.
	TopK int
	// EnableWebSearch is accepted for API compatibility and ignored; the
	// degradation list reports it.
	EnableWebSearch bool
}

// AnswerResult is the final payload for an answered question.
type AnswerResult struct {
	Answer          string     `json:"answer"`
	Citations       []Citation `json:"citations"`
	ConfidenceLevel string     `json:"confidence_level"`
	LowConfidence   bool       `json:"low_confidence"`
	QueryType       QueryType  `json:"query_type"`
	ConversationID  string     `json:"conversation_id"`
	// Degradations lists recoverable fallbacks taken while answering, such
	// as a reranker timeout. Empty on a fully healthy path.
	Degradations []string `json:"degradations,omitempty"`
}

// StreamEvent is one event in an answer stream. Type is "token" while the
// answer is being generated and "final" exactly once at the end, carrying
// the sanitized full result.
type StreamEvent struct {
	Type    string        `json:"type"`
	Content string        `json:"content,omitempty"`
	Result  *AnswerResult `json:"result,omitempty"`
}
