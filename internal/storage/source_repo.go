package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_source_store.go -package=mocks notebook-ai/internal/storage SourceStore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// SourceStore defines the interface for source storage operations, from the
// consumer's (context builder / answer pipeline) perspective.
type SourceStore interface {
	// Insert inserts a source. The source.ID must be set (UUID).
	Insert(ctx context.Context, source *Source) error
	// Get returns a source including its content. Returns ErrSourceNotFound
	// if the ID is unknown.
	Get(ctx context.Context, id string) (*Source, error)
	// List returns metadata for all sources in a notebook, newest first.
	List(ctx context.Context, notebookID string) ([]SourceMeta, error)
	// GetContent returns the source's content as plain text. Markdown
	// sources are flattened before return.
	GetContent(ctx context.Context, id string) (string, error)
	// GetSummary returns the ingestion-time summary, which may be empty.
	GetSummary(ctx context.Context, id string) (string, error)
	// SetSummary stores a summary and its embedding for a source.
	SetSummary(ctx context.Context, id, summary string, embedding []float32) error
	// Delete removes a source.
	Delete(ctx context.Context, id string) error
}

// ErrSourceNotFound is returned when a source ID does not exist.
var ErrSourceNotFound = fmt.Errorf("source not found")

// SourceRepo provides methods for source operations backed by SQLite.
// It implements the SourceStore interface.
type SourceRepo struct {
	db *sql.DB
}

// NewSourceRepo creates a new SourceRepo.
func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

// Insert inserts a source. The source.ID must be set (UUID).
func (r *SourceRepo) Insert(ctx context.Context, source *Source) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (id, notebook_id, filename, content, summary, summary_embedding, content_chars)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		source.ID, source.NotebookID, source.Filename, source.Content, source.Summary,
		encodeEmbedding(source.SummaryEmbedding), len(source.Content),
	)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	return nil
}

// Get returns a source including its content.
func (r *SourceRepo) Get(ctx context.Context, id string) (*Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, notebook_id, filename, content, summary, summary_embedding, content_chars, created_at
		 FROM sources WHERE id = ?`, id)

	var s Source
	var blob []byte
	if err := row.Scan(&s.ID, &s.NotebookID, &s.Filename, &s.Content, &s.Summary, &blob, &s.ContentChars, &s.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	s.SummaryEmbedding = decodeEmbedding(blob)
	return &s, nil
}

// List returns metadata for all sources in a notebook, newest first.
func (r *SourceRepo) List(ctx context.Context, notebookID string) ([]SourceMeta, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, notebook_id, filename, summary, summary_embedding, content_chars, created_at
		 FROM sources WHERE notebook_id = ? ORDER BY created_at DESC, id`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sources []SourceMeta
	for rows.Next() {
		var m SourceMeta
		var blob []byte
		if err := rows.Scan(&m.ID, &m.NotebookID, &m.Filename, &m.Summary, &blob, &m.ContentChars, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		m.SummaryEmbedding = decodeEmbedding(blob)
		sources = append(sources, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

// GetContent returns the source's content as plain text, flattening
// markdown files so character budgets measure prose, not markup.
func (r *SourceRepo) GetContent(ctx context.Context, id string) (string, error) {
	row := r.db.QueryRowContext(ctx, `SELECT filename, content FROM sources WHERE id = ?`, id)

	var filename, content string
	if err := row.Scan(&filename, &content); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrSourceNotFound
		}
		return "", fmt.Errorf("failed to get source content: %w", err)
	}

	if strings.HasSuffix(strings.ToLower(filename), ".md") {
		return PlainText(content), nil
	}
	return content, nil
}

// GetSummary returns the ingestion-time summary, which may be empty.
func (r *SourceRepo) GetSummary(ctx context.Context, id string) (string, error) {
	row := r.db.QueryRowContext(ctx, `SELECT summary FROM sources WHERE id = ?`, id)

	var summary string
	if err := row.Scan(&summary); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrSourceNotFound
		}
		return "", fmt.Errorf("failed to get source summary: %w", err)
	}
	return summary, nil
}

// SetSummary stores a summary and its embedding for a source.
func (r *SourceRepo) SetSummary(ctx context.Context, id, summary string, embedding []float32) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sources SET summary = ?, summary_embedding = ? WHERE id = ?`,
		summary, encodeEmbedding(embedding), id)
	if err != nil {
		return fmt.Errorf("failed to set source summary: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check summary update: %w", err)
	}
	if affected == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// Delete removes a source.
func (r *SourceRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}

// encodeEmbedding packs a float32 vector into a little-endian blob.
// Returns nil for an empty vector so the column stays NULL.
func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks a little-endian blob into a float32 vector.
func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
