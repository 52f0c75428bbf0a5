package rag

const (
	// Citations below this confidence are excluded from the answer context.
	citationQualityFloor = 0.20
	// If no citation reaches this confidence the sources are considered
	// irrelevant and none are used at all.
	citationRefuseCeiling = 0.10
	// When every citation fails the quality floor but the sources are not
	// outright irrelevant, keep the top few anyway.
	lowConfidenceFallbackN = 3

	// Fewer distinct citations than this marks the answer low-confidence.
	minConfidentCitations = 3
)

// Scorer converts retrieval signals into citation and answer confidence.
// The tier cutoffs are policy, injected from configuration.
type Scorer struct {
	HighCutoff   float64
	MediumCutoff float64
}

// NewScorer creates a Scorer with the given tier cutoffs. Callers are
// expected to pass validated values with 0 < medium < high <= 1.
func NewScorer(highCutoff, mediumCutoff float64) *Scorer {
	return &Scorer{HighCutoff: highCutoff, MediumCutoff: mediumCutoff}
}

// CandidateConfidence maps a retrieval candidate's ranking signal to [0, 1].
// Cross-encoder rerank scores are roughly logits in [-5, 5] and are rescaled
// linearly; plain cosine scores are already in range and only clamped.
func (s *Scorer) CandidateConfidence(c RetrievalCandidate) float64 {
	if c.Reranked {
		return clamp01((c.RerankScore + 5) / 10)
	}
	return clamp01(float64(c.Chunk.Score))
}

// Tier maps a confidence value to its level. Total: every value lands in
// exactly one of high, medium, low.
func (s *Scorer) Tier(confidence float64) string {
	switch {
	case confidence >= s.HighCutoff:
		return "high"
	case confidence >= s.MediumCutoff:
		return "medium"
	default:
		return "low"
	}
}

// FilterCitations drops citations below the quality floor. If every citation
// is below the floor but at least one is above the refuse ceiling, the top
// few are kept as a fallback. Refused is true when all citations are so weak
// that using any of them would invent relevance.
func (s *Scorer) FilterCitations(citations []Citation) (kept []Citation, refused bool) {
	if len(citations) == 0 {
		return nil, false
	}

	var maxConfidence float64
	for _, c := range citations {
		if c.Confidence > maxConfidence {
			maxConfidence = c.Confidence
		}
	}
	if maxConfidence < citationRefuseCeiling {
		return nil, true
	}

	for _, c := range citations {
		if c.Confidence >= citationQualityFloor {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		n := lowConfidenceFallbackN
		if n > len(citations) {
			n = len(citations)
		}
		kept = append(kept, citations[:n]...)
	}
	return kept, false
}

// ScoreAnswer derives the answer-level confidence from citation count:
// high for three or more citations, medium for one or two, low for none.
// LowConfidence is true whenever the count is under three.
func (s *Scorer) ScoreAnswer(citations []Citation) (level string, lowConfidence bool) {
	switch n := len(citations); {
	case n >= minConfidentCitations:
		return "high", false
	case n >= 1:
		return "medium", true
	default:
		return "low", true
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
