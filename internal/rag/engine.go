package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks notebook-ai/internal/rag Generator,Embedder,Engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/llm"
	"notebook-ai/internal/service"
	"notebook-ai/internal/storage"
)

// Generator abstracts the LLM chat completion client.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, params llm.GenerateParams) (string, error)
	StreamGenerate(ctx context.Context, systemPrompt, userPrompt string, params llm.GenerateParams, callback func(chunk string) error) error
}

// Embedder abstracts the embeddings client.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Engine answers questions against a notebook's sources with inline
// citations and confidence scoring.
type Engine interface {
	// Answer runs the full pipeline: classify, retrieve, generate, sanitize,
	// score. Recoverable problems degrade the result instead of failing it.
	Answer(ctx context.Context, req AnswerRequest) (AnswerResult, error)
	// AnswerStream runs the same pipeline but emits token events as the
	// answer is generated, terminated by exactly one final event carrying
	// the sanitized result with citations. Not restartable once started.
	AnswerStream(ctx context.Context, req AnswerRequest, emit func(StreamEvent) error) error
}

// NoSourcesAnswer is returned when the notebook has no indexed chunks.
const NoSourcesAnswer = "I couldn't find any relevant information in your documents to answer this question."

// GenerationTimeoutAnswer replaces the answer text when generation exceeds
// its deadline. It is returned as a degraded payload, not an error.
const GenerationTimeoutAnswer = "The model took too long to answer. Try again, or ask a narrower question."

const snippetLength = 200

type answerEngine struct {
	embedder          Embedder
	retriever         Retriever
	sources           storage.SourceStore
	generator         Generator
	scorer            *Scorer
	defaultTopK       int
	maxTopK           int
	generationTimeout time.Duration
}

// NewEngine creates an answer engine. All collaborators are injected; the
// engine holds no mutable state and is safe for concurrent use.
func NewEngine(
	embedder Embedder,
	retriever Retriever,
	sources storage.SourceStore,
	generator Generator,
	scorer *Scorer,
	defaultTopK, maxTopK int,
	generationTimeout time.Duration,
) Engine {
	return &answerEngine{
		embedder:          embedder,
		retriever:         retriever,
		sources:           sources,
		generator:         generator,
		scorer:            scorer,
		defaultTopK:       defaultTopK,
		maxTopK:           maxTopK,
		generationTimeout: generationTimeout,
	}
}

// Answer implements Engine.
func (e *answerEngine) Answer(ctx context.Context, req AnswerRequest) (AnswerResult, error) {
	prep, early, err := e.prepare(ctx, req)
	if err != nil {
		return AnswerResult{}, err
	}
	if early != nil {
		return *early, nil
	}
	logger := contextutil.LoggerFromContext(ctx)

	genCtx, cancel := context.WithTimeout(ctx, e.generationTimeout)
	defer cancel()

	raw, err := e.generator.Generate(genCtx, prep.systemPrompt, prep.userPrompt, llm.GenerateParams{Temperature: 0.3})
	if err != nil {
		if timedOut(genCtx, err) {
			logger.WarnContext(ctx, "generation timed out", "timeout", e.generationTimeout)
			return e.timeoutResult(prep), nil
		}
		return AnswerResult{}, service.WrapError(service.ErrExternalService, fmt.Sprintf("generation failed: %v", err))
	}

	return e.finish(ctx, prep, raw), nil
}

// AnswerStream implements Engine.
func (e *answerEngine) AnswerStream(ctx context.Context, req AnswerRequest, emit func(StreamEvent) error) error {
	prep, early, err := e.prepare(ctx, req)
	if err != nil {
		return err
	}
	if early != nil {
		return emit(StreamEvent{Type: "final", Result: early})
	}
	logger := contextutil.LoggerFromContext(ctx)

	genCtx, cancel := context.WithTimeout(ctx, e.generationTimeout)
	defer cancel()

	var full strings.Builder
	err = e.generator.StreamGenerate(genCtx, prep.systemPrompt, prep.userPrompt, llm.GenerateParams{Temperature: 0.3}, func(chunk string) error {
		full.WriteString(chunk)
		return emit(StreamEvent{Type: "token", Content: chunk})
	})
	if err != nil {
		// The caller going away must not produce a final event.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if timedOut(genCtx, err) {
			logger.WarnContext(ctx, "streaming generation timed out", "timeout", e.generationTimeout)
			result := e.timeoutResult(prep)
			return emit(StreamEvent{Type: "final", Result: &result})
		}
		return service.WrapError(service.ErrExternalService, fmt.Sprintf("streaming generation failed: %v", err))
	}

	result := e.finish(ctx, prep, full.String())
	return emit(StreamEvent{Type: "final", Result: &result})
}

// preparedAnswer carries the pipeline state between preparation and the
// generation call.
type preparedAnswer struct {
	queryType    QueryType
	citations    []Citation
	systemPrompt string
	userPrompt   string
	degradations []string
}

// prepare runs everything before generation: validation, classification,
// retrieval, citation building and prompt selection. A non-nil early result
// short-circuits generation (empty corpus, no relevant sources).
func (e *answerEngine) prepare(ctx context.Context, req AnswerRequest) (*preparedAnswer, *AnswerResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, nil, &service.ValidationError{Field: "question", Message: "question is required"}
	}
	if req.NotebookID == "" {
		return nil, nil, &service.ValidationError{Field: "notebook_id", Message: "notebook_id is required"}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.defaultTopK
	}
	if topK > e.maxTopK {
		topK = e.maxTopK
	}

	var degradations []string
	if req.EnableWebSearch {
		degradations = append(degradations, string(service.WebSearchIgnored))
	}

	queryType := ClassifyQuery(question)
	logger.InfoContext(ctx, "answering question",
		"notebook_id", req.NotebookID,
		"query_type", queryType,
		"top_k", topK,
		"question_length", len(question),
	)

	count, err := e.retriever.CountChunks(ctx, req.NotebookID)
	if err != nil {
		logger.WarnContext(ctx, "chunk count unavailable", "error", err)
	} else if count == 0 {
		result := e.emptyResult(queryType, NoSourcesAnswer, degradations)
		return nil, &result, nil
	}

	vectors, err := e.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, nil, service.WrapError(service.ErrExternalService, fmt.Sprintf("failed to embed question: %v", err))
	}

	candidates, retrievalDegradations, err := e.retriever.Retrieve(ctx, req.NotebookID, vectors[0], question, req.SourceIDs, topK)
	if err != nil {
		return nil, nil, err
	}
	for _, d := range retrievalDegradations {
		degradations = append(degradations, string(d))
	}

	if len(candidates) == 0 {
		result := e.emptyResult(queryType, NoSourcesAnswer, degradations)
		return nil, &result, nil
	}

	filenames := make(map[string]string)
	if metas, err := e.sources.List(ctx, req.NotebookID); err != nil {
		logger.WarnContext(ctx, "source metadata unavailable, citations keep IDs only", "error", err)
	} else {
		for _, m := range metas {
			filenames[m.ID] = m.Filename
		}
	}

	citations := e.buildCitations(candidates, filenames)
	kept, refused := e.scorer.FilterCitations(citations)
	if refused {
		logger.InfoContext(ctx, "all retrieved chunks below relevance floor, refusing")
		result := e.emptyResult(queryType, RefusalAnswer, degradations)
		return nil, &result, nil
	}
	kept = renumber(kept)

	var avg float64
	for _, c := range kept {
		avg += c.Confidence
	}
	avg /= float64(len(kept))

	return &preparedAnswer{
		queryType:    queryType,
		citations:    kept,
		systemPrompt: SelectSystemPrompt(queryType, avg),
		userPrompt:   BuildUserPrompt(question, formatContext(kept)),
		degradations: degradations,
	}, nil, nil
}

// finish sanitizes the raw model output, prunes citations to the ones the
// answer actually uses, and scores the result.
func (e *answerEngine) finish(ctx context.Context, prep *preparedAnswer, raw string) AnswerResult {
	logger := contextutil.LoggerFromContext(ctx)

	answer := CleanOutput(raw)
	if answer == "" {
		answer = RefusalAnswer
	}

	answer, citations := pruneToCited(answer, prep.citations)
	level, low := e.scorer.ScoreAnswer(citations)

	logger.InfoContext(ctx, "answer completed",
		"answer_length", len(answer),
		"citations", len(citations),
		"confidence_level", level,
	)

	return AnswerResult{
		Answer:          answer,
		Citations:       citations,
		ConfidenceLevel: level,
		LowConfidence:   low,
		QueryType:       prep.queryType,
		ConversationID:  uuid.NewString(),
		Degradations:    prep.degradations,
	}
}

func (e *answerEngine) timeoutResult(prep *preparedAnswer) AnswerResult {
	return AnswerResult{
		Answer:          GenerationTimeoutAnswer,
		Citations:       []Citation{},
		ConfidenceLevel: "low",
		LowConfidence:   true,
		QueryType:       prep.queryType,
		ConversationID:  uuid.NewString(),
		Degradations:    append(prep.degradations, string(service.GenerationTimeout)),
	}
}

func (e *answerEngine) emptyResult(queryType QueryType, answer string, degradations []string) AnswerResult {
	return AnswerResult{
		Answer:          answer,
		Citations:       []Citation{},
		ConfidenceLevel: "low",
		LowConfidence:   true,
		QueryType:       queryType,
		ConversationID:  uuid.NewString(),
		Degradations:    degradations,
	}
}

// buildCitations converts retrieval candidates into numbered citations in
// candidate order.
func (e *answerEngine) buildCitations(candidates []RetrievalCandidate, filenames map[string]string) []Citation {
	citations := make([]Citation, len(candidates))
	for i, cand := range candidates {
		confidence := e.scorer.CandidateConfidence(cand)
		snippet := cand.Chunk.Text
		if len(snippet) > snippetLength {
			snippet = snippet[:snippetLength] + "..."
		}
		citations[i] = Citation{
			Number:          i + 1,
			SourceID:        cand.Chunk.SourceID,
			Filename:        filenames[cand.Chunk.SourceID],
			ChunkIndex:      cand.Chunk.ChunkIndex,
			Text:            cand.Chunk.Text,
			Snippet:         snippet,
			Page:            cand.Chunk.Page,
			Confidence:      confidence,
			ConfidenceLevel: e.scorer.Tier(confidence),
		}
	}
	return citations
}

// formatContext lays out citation texts as numbered source blocks matching
// the [n] markers the prompt asks for.
func formatContext(citations []Citation) string {
	var b strings.Builder
	for i, c := range citations {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if c.Filename != "" {
			fmt.Fprintf(&b, "[%d] Source: %s\n%s", c.Number, c.Filename, c.Text)
		} else {
			fmt.Fprintf(&b, "[%d] %s", c.Number, c.Text)
		}
	}
	return b.String()
}

var citationMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

// pruneToCited keeps only the citations whose [n] markers appear in the
// answer, renumbered contiguously in order of first mention, and rewrites
// the markers to match. An answer citing nothing keeps the full list so the
// caller can still show what informed it.
func pruneToCited(answer string, citations []Citation) (string, []Citation) {
	matches := citationMarkerRe.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return answer, renumber(citations)
	}

	byNumber := make(map[int]Citation, len(citations))
	for _, c := range citations {
		byNumber[c.Number] = c
	}

	remap := make(map[int]int)
	var kept []Citation
	for _, m := range matches {
		old, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, seen := remap[old]; seen {
			continue
		}
		c, ok := byNumber[old]
		if !ok {
			// Hallucinated marker with no matching source; leave the text
			// alone but don't invent a citation for it.
			continue
		}
		c.Number = len(kept) + 1
		remap[old] = c.Number
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return answer, renumber(citations)
	}

	rewritten := citationMarkerRe.ReplaceAllStringFunc(answer, func(marker string) string {
		old, err := strconv.Atoi(strings.Trim(marker, "[]"))
		if err != nil {
			return marker
		}
		if fresh, ok := remap[old]; ok {
			return "[" + strconv.Itoa(fresh) + "]"
		}
		return marker
	})
	return rewritten, kept
}

// renumber reassigns contiguous 1-based numbers preserving order.
func renumber(citations []Citation) []Citation {
	for i := range citations {
		citations[i].Number = i + 1
	}
	return citations
}

// timedOut reports whether a generation error was caused by the per-call
// deadline rather than a transport failure.
func timedOut(genCtx context.Context, err error) bool {
	return errors.Is(genCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
