package rag

import (
	"regexp"
	"strings"
)

// Artifact patterns cleaned out of raw model output. Local models sometimes
// wrap answers in LaTeX macros or append a hallucinated references section
// despite the prompt rules.
var (
	latexWrapRe = regexp.MustCompile(`\\(?:boxed|textbf|textit|text)\{([^{}]*)\}`)
	latexBareRe = regexp.MustCompile(`\\(?:boxed|textbf|textit|text)\b`)

	// Trailing sections are matched from their header line through the end of
	// the text. The header must start a line so prose mentioning "sources"
	// mid-sentence is untouched.
	trailingSectionRe = regexp.MustCompile(`(?is)(?:^|\n)\s*\[?(?:references|sources?|user context)\]?\s*:.*$`)
	metaCitationRe    = regexp.MustCompile(`(?is)\n\s*citation[^\n]*should not be included.*$`)

	// A citation bracket opened at the very end of a truncated generation,
	// e.g. "as shown in [" or "grew 12% [1".
	danglingBracketRe = regexp.MustCompile(`\[[0-9,\s]*$`)

	excessNewlinesRe = regexp.MustCompile(`\n{3,}`)
)

// CleanOutput removes generation artifacts from model output. It is pure and
// idempotent: cleaning already-clean text returns it unchanged. Well-formed
// inline citations like [2] are preserved.
func CleanOutput(text string) string {
	// Unwrap LaTeX macros to a fixpoint so nested wrappers fully unwrap.
	for {
		unwrapped := latexWrapRe.ReplaceAllString(text, "$1")
		if unwrapped == text {
			break
		}
		text = unwrapped
	}
	text = latexBareRe.ReplaceAllString(text, "")

	text = trailingSectionRe.ReplaceAllString(text, "")
	text = metaCitationRe.ReplaceAllString(text, "")

	text = danglingBracketRe.ReplaceAllString(text, "")

	text = excessNewlinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
