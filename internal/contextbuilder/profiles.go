package contextbuilder

// Strategy describes how a profile spreads its budget across sources.
type Strategy string

const (
	// StrategyBreadth includes many sources with fewer characters each.
	StrategyBreadth Strategy = "breadth"
	// StrategyDepth includes fewer sources with more characters each.
	StrategyDepth Strategy = "depth"
	// StrategyExhaustive tries to cover everything, map-reducing when needed.
	StrategyExhaustive Strategy = "exhaustive"
)

// Profile defines how much and what kind of context an output type needs.
type Profile struct {
	MaxSources        int
	CharsPerSource    int
	TotalContextChars int
	Strategy          Strategy
	// UseChunks switches from raw source content to chunk-level retrieval
	// when a topic is available.
	UseChunks bool
	ChunkTopK int
	// UseMapReduce enables the summaries-then-detail two-phase build for
	// oversized corpora.
	UseMapReduce bool
}

// profiles maps output types to their context budgets. Unknown types fall
// back to "default".
var profiles = map[string]Profile{
	// Short, breadth-first outputs.
	"summary": {MaxSources: 10, CharsPerSource: 3000, TotalContextChars: 16000,
		Strategy: StrategyBreadth},
	"explain": {MaxSources: 8, CharsPerSource: 4000, TotalContextChars: 16000,
		Strategy: StrategyDepth},

	// Medium outputs needing good coverage.
	"briefing": {MaxSources: 15, CharsPerSource: 4000, TotalContextChars: 24000,
		Strategy: StrategyBreadth, UseChunks: true, ChunkTopK: 20},
	"faq": {MaxSources: 15, CharsPerSource: 4000, TotalContextChars: 24000,
		Strategy: StrategyBreadth, UseChunks: true, ChunkTopK: 20},
	"debate": {MaxSources: 15, CharsPerSource: 5000, TotalContextChars: 28000,
		Strategy: StrategyBreadth, UseChunks: true, ChunkTopK: 25},

	// Large outputs needing comprehensive coverage.
	"study_guide": {MaxSources: 20, CharsPerSource: 5000, TotalContextChars: 32000,
		Strategy: StrategyDepth, UseChunks: true, ChunkTopK: 30, UseMapReduce: true},
	"deep_dive": {MaxSources: 50, CharsPerSource: 6000, TotalContextChars: 40000,
		Strategy: StrategyExhaustive, UseChunks: true, ChunkTopK: 40, UseMapReduce: true},
	"feynman_curriculum": {MaxSources: 50, CharsPerSource: 6000, TotalContextChars: 40000,
		Strategy: StrategyExhaustive, UseChunks: true, ChunkTopK: 40, UseMapReduce: true},

	// Audio scripts scale with duration, see profileFor.
	"podcast_script": {MaxSources: 15, CharsPerSource: 4000, TotalContextChars: 24000,
		Strategy: StrategyBreadth},

	// Writing assistant, focused.
	"writing": {MaxSources: 8, CharsPerSource: 3000, TotalContextChars: 12000,
		Strategy: StrategyDepth},

	// Visuals need little but relevant context.
	"visual": {MaxSources: 5, CharsPerSource: 2000, TotalContextChars: 8000,
		Strategy: StrategyDepth, UseChunks: true, ChunkTopK: 10},

	"default": {MaxSources: 10, CharsPerSource: 4000, TotalContextChars: 20000,
		Strategy: StrategyBreadth},
}

// profileFor resolves the profile for an output type. Audio output scales
// its budget with the requested duration instead of using the static table.
func profileFor(outputType string, durationMinutes int) Profile {
	if durationMinutes > 0 && (outputType == "podcast_script" || outputType == "audio") {
		switch {
		case durationMinutes <= 5:
			return Profile{MaxSources: 3, CharsPerSource: 2000, TotalContextChars: 6000,
				Strategy: StrategyDepth}
		case durationMinutes <= 15:
			return Profile{MaxSources: 8, CharsPerSource: 4000, TotalContextChars: 16000,
				Strategy: StrategyBreadth}
		default:
			return Profile{MaxSources: 15, CharsPerSource: 6000, TotalContextChars: 32000,
				Strategy: StrategyExhaustive}
		}
	}

	if p, ok := profiles[outputType]; ok {
		return p
	}
	return profiles["default"]
}
