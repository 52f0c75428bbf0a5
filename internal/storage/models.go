package storage

import "time"

// Source represents an ingested document in a notebook. Content, summaries
// and summary embeddings are written at ingestion time by the indexing
// pipeline (an external collaborator); this service only reads them.
type Source struct {
	ID               string // UUID (matches Qdrant payload source_id)
	NotebookID       string
	Filename         string
	Content          string
	Summary          string
	SummaryEmbedding []float32 // Same dimension as chunk embeddings; may be nil
	ContentChars     int
	CreatedAt        time.Time
}

// SourceMeta is a Source without its raw content, as returned by List.
// SummaryEmbedding is included because source ranking needs it.
type SourceMeta struct {
	ID               string
	NotebookID       string
	Filename         string
	Summary          string
	SummaryEmbedding []float32
	ContentChars     int
	CreatedAt        time.Time
}
