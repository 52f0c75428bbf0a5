package rag

import "strings"

// Phrases that mark a question as asking for a specific value, count, or date.
var factualPhrases = []string{
	"how many", "how much", "what is the", "what was the",
	"when did", "when was", "who is", "who was", "who did",
	"what date", "what time", "what number", "what percentage",
	"list the", "name the", "count of", "total of",
}

// Phrases that mark a question as requiring multi-step reasoning.
var complexPhrases = []string{
	"compare", "contrast", "analyze", "explain why", "explain how",
	"what are the differences", "what are the similarities",
	"synthesize", "evaluate", "assess",
	"pros and cons", "advantages and disadvantages",
	"step by step", "walk me through", "break down",
	"relationship between", "implications", "consequences",
	"argue", "debate", "critique", "review",
}

// ClassifyQuery labels a question as factual, complex, or synthesis.
// Classification is purely lexical so identical input always yields the
// same label. Long questions and multi-question inputs count as complex;
// anything unmatched defaults to synthesis.
func ClassifyQuery(question string) QueryType {
	q := strings.ToLower(question)

	for _, phrase := range factualPhrases {
		if strings.Contains(q, phrase) {
			return QueryFactual
		}
	}

	for _, phrase := range complexPhrases {
		if strings.Contains(q, phrase) {
			return QueryComplex
		}
	}

	if len(question) > 100 || strings.Count(question, "?") > 1 {
		return QueryComplex
	}

	return QuerySynthesis
}
