package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_reranker.go -package=mocks notebook-ai/internal/rag Reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"
)

// Reranker scores candidate texts against the raw query text. Scores are
// returned in the same order as the input and follow the cross-encoder
// convention of roughly [-5, 5], higher is more relevant.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

const lexicalDensityCap = 0.4

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// LexicalReranker is the built-in second-pass scorer: query-token coverage
// plus match density, no model call. It never fails, so the vector-order
// fallback path only triggers with the HTTP reranker.
type LexicalReranker struct{}

// Score implements Reranker.
func (r *LexicalReranker) Score(_ context.Context, query string, texts []string) ([]float64, error) {
	queryTokens := filterStopwords(tokenize(query))

	scores := make([]float64, len(texts))
	for i, text := range texts {
		scores[i] = lexicalScore(queryTokens, text)
	}
	return scores, nil
}

// lexicalScore blends two signals: how many distinct query tokens the chunk
// covers and how dense the matches are relative to chunk length. The result
// is rescaled from [0, 1] to the [-5, 5] cross-encoder range.
func lexicalScore(queryTokens []string, chunkText string) float64 {
	if len(queryTokens) == 0 {
		return -5
	}
	chunkTokens := tokenize(chunkText)
	if len(chunkTokens) == 0 {
		return -5
	}

	chunkFreq := make(map[string]int, len(chunkTokens))
	for _, token := range chunkTokens {
		chunkFreq[token]++
	}

	var covered, rawMatches int
	for _, token := range queryTokens {
		if n := chunkFreq[token]; n > 0 {
			covered++
			rawMatches += n
		}
	}

	coverage := float64(covered) / float64(len(queryTokens))
	density := float64(rawMatches) / (1 + float64(len(chunkTokens))) * 10
	if density > lexicalDensityCap {
		density = lexicalDensityCap
	}

	normalized := clamp01(0.6*coverage + density)
	return normalized*10 - 5
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// HTTPReranker calls an external cross-encoder service. The request body is
// {"query": ..., "texts": [...]} and the response {"scores": [...]}, scores
// in input order.
type HTTPReranker struct {
	URL    string
	client *http.Client
}

// NewHTTPReranker creates a reranker backed by a cross-encoder endpoint.
// Timeouts are enforced by the caller's context, not the HTTP client.
func NewHTTPReranker(url string) *HTTPReranker {
	return &HTTPReranker{URL: url, client: &http.Client{}}
}

// Score implements Reranker.
func (r *HTTPReranker) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	payload := struct {
		Query string   `json:"query"`
		Texts []string `json:"texts"`
	}{Query: query, Texts: texts}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank bad status %d: %s", resp.StatusCode, string(raw))
	}

	var rerankResp struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	if len(rerankResp.Scores) != len(texts) {
		return nil, fmt.Errorf("rerank returned %d scores for %d texts", len(rerankResp.Scores), len(texts))
	}
	return rerankResp.Scores, nil
}
