package contextbuilder

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/llm"
	"notebook-ai/internal/rag"
	"notebook-ai/internal/service"
	"notebook-ai/internal/storage"
)

// Rationale values reported for source ranking.
const (
	RationaleEmbedding           = "embedding"
	RationaleRecency             = "recency"
	RationaleRecencySizeFallback = "recency_size_fallback"
)

// How much of the total budget the map-phase source overview may take.
const overviewBudgetFraction = 4

// Cap on raw content handed to the summarizer per source.
const summarizeInputChars = 6000

// BuildRequest asks for an assembled context for one output type.
type BuildRequest struct {
	NotebookID string
	OutputType string
	// Topic focuses source ranking and chunk retrieval. Empty means rank
	// by recency.
	Topic string
	// SourceIDs restricts the build to the given sources.
	SourceIDs []string
	// DurationMinutes scales the budget for audio output types.
	DurationMinutes int
}

// IncludedSource describes one source's contribution to the context.
type IncludedSource struct {
	SourceID  string `json:"source_id"`
	Filename  string `json:"filename"`
	CharCount int    `json:"char_count"`
}

// BuiltContext is the assembled context plus how it was built.
type BuiltContext struct {
	Context         string             `json:"context"`
	Sources         []IncludedSource   `json:"sources"`
	TotalChars      int                `json:"total_chars"`
	Strategy        Strategy           `json:"strategy"`
	Profile         string             `json:"profile"`
	Rationale       string             `json:"rationale"`
	RelevanceScores map[string]float64 `json:"relevance_scores,omitempty"`
	Degraded        bool               `json:"degraded"`
	DroppedSources  int                `json:"dropped_sources"`
	Degradations    []string           `json:"degradations,omitempty"`
	BuildTime       time.Duration      `json:"-"`
}

// Builder assembles bounded, output-type-aware context from a notebook's
// sources. It holds no mutable state and is safe for concurrent use.
type Builder struct {
	sources            storage.SourceStore
	retriever          rag.Retriever
	embedder           rag.Embedder
	generator          rag.Generator
	fastModel          string
	mapReduceThreshold int
	summaryConcurrency int
}

// NewBuilder creates a context builder. The fast model is used for
// map-phase summarization; an empty string uses the generator's default.
func NewBuilder(
	sources storage.SourceStore,
	retriever rag.Retriever,
	embedder rag.Embedder,
	generator rag.Generator,
	fastModel string,
	mapReduceThreshold, summaryConcurrency int,
) *Builder {
	return &Builder{
		sources:            sources,
		retriever:          retriever,
		embedder:           embedder,
		generator:          generator,
		fastModel:          fastModel,
		mapReduceThreshold: mapReduceThreshold,
		summaryConcurrency: summaryConcurrency,
	}
}

type rankedSource struct {
	meta      storage.SourceMeta
	relevance float64
}

// BuildContext assembles context for the requested output type. The result's
// TotalChars never exceeds the profile's budget. Failures to read or
// summarize individual sources drop those sources and mark the result
// degraded instead of failing the build.
func (b *Builder) BuildContext(ctx context.Context, req BuildRequest) (BuiltContext, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	if req.NotebookID == "" {
		return BuiltContext{}, &service.ValidationError{Field: "notebook_id", Message: "notebook_id is required"}
	}

	profile := profileFor(req.OutputType, req.DurationMinutes)
	profileName := req.OutputType
	if profileName == "" {
		profileName = "default"
	}

	logger.InfoContext(ctx, "building context",
		"notebook_id", req.NotebookID,
		"output_type", profileName,
		"strategy", profile.Strategy,
		"budget_chars", profile.TotalContextChars,
	)

	all, err := b.sources.List(ctx, req.NotebookID)
	if err != nil {
		return BuiltContext{}, service.WrapError(err, "failed to list sources")
	}
	if len(req.SourceIDs) > 0 {
		requested := make(map[string]struct{}, len(req.SourceIDs))
		for _, id := range req.SourceIDs {
			requested[id] = struct{}{}
		}
		filtered := all[:0]
		for _, m := range all {
			if _, ok := requested[m.ID]; ok {
				filtered = append(filtered, m)
			}
		}
		all = filtered
	}
	if len(all) == 0 {
		return BuiltContext{
			Profile:   profileName,
			Strategy:  profile.Strategy,
			Rationale: RationaleRecency,
			BuildTime: time.Since(start),
		}, nil
	}

	ranked, topicVector, rationale, degradations := b.rankSources(ctx, all, req.Topic)

	selected := ranked
	if len(selected) > profile.MaxSources {
		selected = selected[:profile.MaxSources]
	}

	var parts []contextPart
	var dropped int
	switch {
	case profile.UseChunks && req.Topic != "" && topicVector != nil:
		parts, dropped = b.buildChunkParts(ctx, req.NotebookID, req.Topic, topicVector, selected, profile)
	case profile.UseMapReduce && b.corpusOversized(all, profile):
		var mapDegradations []string
		parts, dropped, mapDegradations = b.buildMapReduceParts(ctx, req, all, selected, profile)
		degradations = append(degradations, mapDegradations...)
	default:
		parts, dropped = b.buildDirectParts(ctx, selected, profile)
	}
	if dropped > 0 {
		degradations = append(degradations, string(service.SourceDropped))
	}

	assembled := joinParts(parts)
	if len(assembled) > profile.TotalContextChars {
		assembled = assembled[:profile.TotalContextChars]
	}

	scores := make(map[string]float64, len(ranked))
	for _, r := range ranked {
		scores[r.meta.ID] = r.relevance
	}

	result := BuiltContext{
		Context:         assembled,
		Sources:         includedSources(parts),
		TotalChars:      len(assembled),
		Strategy:        profile.Strategy,
		Profile:         profileName,
		Rationale:       rationale,
		RelevanceScores: scores,
		Degraded:        dropped > 0 || len(degradations) > 0,
		DroppedSources:  dropped,
		Degradations:    degradations,
		BuildTime:       time.Since(start),
	}

	logger.InfoContext(ctx, "context built",
		"total_chars", result.TotalChars,
		"sources_used", len(result.Sources),
		"dropped", dropped,
		"rationale", rationale,
		"build_time_ms", result.BuildTime.Milliseconds(),
	)
	return result, nil
}

// corpusOversized reports whether the corpus needs the map-reduce path:
// more sources than the profile can include directly, or more total
// characters than the usable window.
func (b *Builder) corpusOversized(all []storage.SourceMeta, profile Profile) bool {
	if len(all) > profile.MaxSources {
		return true
	}
	var total int
	for _, m := range all {
		total += m.ContentChars
	}
	return total > b.mapReduceThreshold
}

// rankSources orders sources by relevance to the topic using summary
// embeddings. Without a topic the recency order from List is kept. If
// embeddings cannot be produced the ranking falls back to recency + size
// and reports the fallback.
func (b *Builder) rankSources(ctx context.Context, all []storage.SourceMeta, topic string) ([]rankedSource, []float32, string, []string) {
	logger := contextutil.LoggerFromContext(ctx)

	neutral := func() []rankedSource {
		ranked := make([]rankedSource, len(all))
		for i, m := range all {
			ranked[i] = rankedSource{meta: m, relevance: 1}
		}
		return ranked
	}

	if topic == "" {
		return neutral(), nil, RationaleRecency, nil
	}

	// One batch: the topic plus texts for sources that lack a precomputed
	// summary embedding.
	texts := []string{topic}
	missing := make([]int, 0, len(all))
	for i, m := range all {
		if len(m.SummaryEmbedding) == 0 {
			text := m.Summary
			if text == "" {
				text = m.Filename
			}
			if text == "" {
				text = "untitled"
			}
			texts = append(texts, text)
			missing = append(missing, i)
		}
	}

	vectors, err := b.embedder.EmbedTexts(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		logger.WarnContext(ctx, "embedding ranking unavailable, falling back to recency and size", "error", err)
		ranked := neutral()
		sort.SliceStable(ranked, func(i, j int) bool {
			a, b := ranked[i].meta, ranked[j].meta
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ContentChars > b.ContentChars
		})
		return ranked, nil, RationaleRecencySizeFallback, []string{string(service.EmbeddingFallback)}
	}

	topicVector := vectors[0]
	embeddings := make([][]float32, len(all))
	for i, m := range all {
		embeddings[i] = m.SummaryEmbedding
	}
	for j, idx := range missing {
		embeddings[idx] = vectors[j+1]
	}

	ranked := make([]rankedSource, len(all))
	for i, m := range all {
		ranked[i] = rankedSource{meta: m, relevance: math.Max(0, cosine(topicVector, embeddings[i]))}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].relevance > ranked[j].relevance
	})
	return ranked, topicVector, RationaleEmbedding, nil
}

// contextPart is one source's block in the assembled context.
type contextPart struct {
	sourceID string
	filename string
	text     string
}

// buildDirectParts reads source content directly with adaptive per-source
// budgets: the top three ranked sources get the full per-source budget,
// the rest scale down with relevance but never below 40%.
func (b *Builder) buildDirectParts(ctx context.Context, selected []rankedSource, profile Profile) ([]contextPart, int) {
	logger := contextutil.LoggerFromContext(ctx)

	var parts []contextPart
	var dropped, totalChars int
	for i, src := range selected {
		if totalChars >= profile.TotalContextChars {
			break
		}

		content, err := b.sources.GetContent(ctx, src.meta.ID)
		if err != nil {
			logger.WarnContext(ctx, "source content unavailable, dropping",
				"source_id", src.meta.ID, "error", err)
			dropped++
			continue
		}
		if content == "" {
			continue
		}

		budget := profile.CharsPerSource
		if i >= 3 {
			budget = int(float64(profile.CharsPerSource) * math.Max(0.4, src.relevance))
		}
		if remaining := profile.TotalContextChars - totalChars; budget > remaining {
			budget = remaining
		}
		if len(content) > budget {
			content = content[:budget]
		}

		part := contextPart{
			sourceID: src.meta.ID,
			filename: src.meta.Filename,
			text:     fmt.Sprintf("## Source: %s\n%s", src.meta.Filename, content),
		}
		parts = append(parts, part)
		totalChars += len(part.text)
	}
	return parts, dropped
}

// buildChunkParts retrieves topic-relevant chunks across the selected
// sources and groups them per source. An empty or failed retrieval falls
// back to direct content.
func (b *Builder) buildChunkParts(ctx context.Context, notebookID, topic string, topicVector []float32, selected []rankedSource, profile Profile) ([]contextPart, int) {
	logger := contextutil.LoggerFromContext(ctx)

	sourceIDs := make([]string, len(selected))
	filenames := make(map[string]string, len(selected))
	for i, src := range selected {
		sourceIDs[i] = src.meta.ID
		filenames[src.meta.ID] = src.meta.Filename
	}

	candidates, _, err := b.retriever.Retrieve(ctx, notebookID, topicVector, topic, sourceIDs, profile.ChunkTopK)
	if err != nil || len(candidates) == 0 {
		logger.WarnContext(ctx, "chunk retrieval unavailable, falling back to direct content", "error", err)
		return b.buildDirectParts(ctx, selected, profile)
	}

	// Group chunk texts by source, keeping candidate order within and
	// across groups.
	order := make([]string, 0, len(selected))
	grouped := make(map[string][]string)
	for _, cand := range candidates {
		id := cand.Chunk.SourceID
		if _, seen := grouped[id]; !seen {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], cand.Chunk.Text)
	}

	var parts []contextPart
	var totalChars int
	for _, id := range order {
		if totalChars >= profile.TotalContextChars {
			break
		}
		combined := strings.Join(grouped[id], "\n\n")
		budget := profile.CharsPerSource
		if remaining := profile.TotalContextChars - totalChars; budget > remaining {
			budget = remaining
		}
		if len(combined) > budget {
			combined = combined[:budget]
		}

		part := contextPart{
			sourceID: id,
			filename: filenames[id],
			text:     fmt.Sprintf("## Source: %s\n%s", filenames[id], combined),
		}
		parts = append(parts, part)
		totalChars += len(part.text)
	}
	return parts, 0
}

// buildMapReduceParts handles oversized corpora in two phases: a summary
// overview of every source within a quarter of the budget, then detailed
// content from the top-ranked sources in the remainder.
func (b *Builder) buildMapReduceParts(ctx context.Context, req BuildRequest, all []storage.SourceMeta, selected []rankedSource, profile Profile) ([]contextPart, int, []string) {
	logger := contextutil.LoggerFromContext(ctx)

	summaries, dropped := b.collectSummaries(ctx, all)

	var parts []contextPart
	var degradations []string
	usedChars := 0

	if len(summaries) > 0 {
		var lines []string
		for _, s := range summaries {
			lines = append(lines, fmt.Sprintf("- %s: %s", s.filename, s.summary))
		}
		overview := "## Source Overview (all notebook sources)\n" + strings.Join(lines, "\n")
		overviewBudget := profile.TotalContextChars / overviewBudgetFraction
		if len(overview) > overviewBudget {
			overview = overview[:overviewBudget]
		}
		parts = append(parts, contextPart{filename: "overview", text: overview})
		usedChars = len(overview)
		logger.InfoContext(ctx, "map phase complete",
			"summaries", len(summaries), "overview_chars", len(overview), "dropped", dropped)
	}

	detailProfile := profile
	detailProfile.TotalContextChars = profile.TotalContextChars - usedChars
	detailProfile.UseMapReduce = false

	var detailParts []contextPart
	var detailDropped int
	if req.Topic != "" && profile.UseChunks {
		topicVectors, err := b.embedder.EmbedTexts(ctx, []string{req.Topic})
		if err != nil {
			logger.WarnContext(ctx, "topic embedding unavailable for detail phase", "error", err)
			degradations = append(degradations, string(service.EmbeddingFallback))
			detailParts, detailDropped = b.buildDirectParts(ctx, selected, detailProfile)
		} else {
			detailParts, detailDropped = b.buildChunkParts(ctx, req.NotebookID, req.Topic, topicVectors[0], selected, detailProfile)
		}
	} else {
		detailParts, detailDropped = b.buildDirectParts(ctx, selected, detailProfile)
	}

	return append(parts, detailParts...), dropped + detailDropped, degradations
}

type sourceSummary struct {
	filename string
	summary  string
}

// collectSummaries returns a summary line for every source, generating one
// with the fast model when ingestion didn't store one. Sources that cannot
// be summarized are dropped and counted.
func (b *Builder) collectSummaries(ctx context.Context, all []storage.SourceMeta) ([]sourceSummary, int) {
	logger := contextutil.LoggerFromContext(ctx)

	summaries := make([]sourceSummary, len(all))
	var mu sync.Mutex
	var dropped int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.summaryConcurrency)
	for i, meta := range all {
		if meta.Summary != "" {
			summaries[i] = sourceSummary{filename: meta.Filename, summary: meta.Summary}
			continue
		}
		g.Go(func() error {
			summary, err := b.summarizeSource(gctx, meta)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.WarnContext(ctx, "failed to summarize source, dropping from overview",
					"source_id", meta.ID, "error", err)
				dropped++
				return nil
			}
			summaries[i] = sourceSummary{filename: meta.Filename, summary: summary}
			return nil
		})
	}
	_ = g.Wait()

	out := summaries[:0]
	for _, s := range summaries {
		if s.summary != "" {
			out = append(out, s)
		}
	}
	return out, dropped
}

func (b *Builder) summarizeSource(ctx context.Context, meta storage.SourceMeta) (string, error) {
	content, err := b.sources.GetContent(ctx, meta.ID)
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", fmt.Errorf("source %s has no content", meta.ID)
	}
	if len(content) > summarizeInputChars {
		content = content[:summarizeInputChars]
	}

	systemPrompt := "Summarize the following document in 2-3 sentences. State only what the document says."
	summary, err := b.generator.Generate(ctx, systemPrompt, content, llm.GenerateParams{
		Model:       b.fastModel,
		MaxTokens:   160,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("empty summary for source %s", meta.ID)
	}
	return summary, nil
}

func joinParts(parts []contextPart) string {
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.text
	}
	return strings.Join(texts, "\n\n---\n\n")
}

// includedSources reports the per-source character contribution, skipping
// the synthetic overview block.
func includedSources(parts []contextPart) []IncludedSource {
	var out []IncludedSource
	for _, p := range parts {
		if p.sourceID == "" {
			continue
		}
		out = append(out, IncludedSource{
			SourceID:  p.sourceID,
			Filename:  p.filename,
			CharCount: len(p.text),
		})
	}
	return out
}

// cosine computes cosine similarity between two vectors. Mismatched or
// empty vectors score zero.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + 1e-8)
}
