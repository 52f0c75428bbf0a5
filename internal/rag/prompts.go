package rag

import "fmt"

// RefusalAnswer is the exact string the model is instructed to emit when the
// context does not contain the needed fact. Downstream consumers match on it.
const RefusalAnswer = "I couldn't find this in the documents."

// basePromptRules applies to every query type: answer only, inline numbered
// citations, and the refusal string when the context has no answer.
const basePromptRules = `You are a helpful assistant. Answer the question using ONLY information from the provided sources.

OUTPUT RULES:
1. Write ONLY your answer - nothing else
2. Put [1], [2], etc. after facts to cite sources
3. Do NOT add sections like "References:", "Sources:", "User context:", or explanations
4. Do NOT explain your reasoning or cite formatting choices
5. If you can't find the answer, just say "` + RefusalAnswer + `"

`

// SelectSystemPrompt returns the system prompt for a query type. The average
// citation confidence tunes how much hedging the model is told to apply.
func SelectSystemPrompt(queryType QueryType, avgConfidence float64) string {
	var prompt string
	switch queryType {
	case QueryFactual:
		prompt = basePromptRules + `Give a direct 1-2 sentence answer quoting the specific fact or number exactly as it appears in the sources. Do not round or hedge values.`
	case QueryComplex:
		prompt = basePromptRules + `Work through the evidence step by step, then give a clear conclusion in 2-3 paragraphs.`
	default: // synthesis
		prompt = basePromptRules + `Provide a clear, direct answer in 1-2 paragraphs. Where sources agree or conflict, say so explicitly.`
	}

	if avgConfidence > 0 && avgConfidence < 0.4 {
		prompt += "\n\nThe retrieved sources are only weakly related to the question. Only state what the sources directly support."
	}
	return prompt
}

// BuildUserPrompt assembles the user message from the question and the
// numbered source context.
func BuildUserPrompt(question, context string) string {
	if context == "" {
		return question
	}
	return fmt.Sprintf("%s\n\n--- Sources ---\n\n%s\n\n--- End Sources ---", question, context)
}
