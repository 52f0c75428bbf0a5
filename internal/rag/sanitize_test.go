package rag

import "testing"

func TestCleanOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"trailing references section",
			"Answer text [1].\n\nReferences:\n1. Foo",
			"Answer text [1].",
		},
		{
			"trailing sources section",
			"Revenue grew 12% [2].\nSources: report.txt",
			"Revenue grew 12% [2].",
		},
		{
			"trailing user context",
			"Done [1].\n\nUser context: the user asked about revenue",
			"Done [1].",
		},
		{
			"bracketed references header",
			"Answer [1].\n[References]: stuff",
			"Answer [1].",
		},
		{
			"boxed latex",
			`The total is \boxed{42} units.`,
			"The total is 42 units.",
		},
		{
			"nested latex wrappers",
			`\text{The lead was \textbf{Dana}} [1].`,
			"The lead was Dana [1].",
		},
		{
			"bare latex macro",
			`Result: \boxed 7`,
			"Result:  7",
		},
		{
			"dangling citation bracket",
			"The project shipped in March [1",
			"The project shipped in March",
		},
		{
			"dangling empty bracket",
			"As documented [",
			"As documented",
		},
		{
			"excess newlines",
			"First.\n\n\n\nSecond.",
			"First.\n\nSecond.",
		},
		{
			"whitespace trim",
			"  answer  \n",
			"answer",
		},
		{
			"inline citations preserved",
			"Alpha [1] and beta [2] agree [3].",
			"Alpha [1] and beta [2] agree [3].",
		},
		{
			"mid-sentence sources mention untouched",
			"The sources disagree on the date [1].",
			"The sources disagree on the date [1].",
		},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanOutput(tt.in)
			if got != tt.want {
				t.Errorf("CleanOutput(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanOutputIdempotent(t *testing.T) {
	inputs := []string{
		"Answer text [1].\n\nReferences:\n1. Foo",
		`\boxed{\text{nested}} and a tail [2`,
		"plain text with no artifacts",
		"multi\n\n\n\nline\n\n\ntext",
		"Sources: everything is a sources section",
		"",
		"trailing [3,",
	}

	for _, in := range inputs {
		once := CleanOutput(in)
		twice := CleanOutput(once)
		if once != twice {
			t.Errorf("CleanOutput not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
