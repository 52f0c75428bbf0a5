package rag

import "testing"

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     QueryType
	}{
		{"count lookup", "How many demos were run in Q1?", QueryFactual},
		{"date lookup", "When did the migration finish?", QueryFactual},
		{"name lookup", "Who was the project lead?", QueryFactual},
		{"list request", "List the open action items", QueryFactual},
		{"comparison", "Compare the two proposals", QueryComplex},
		{"explain why", "Explain why revenue dropped", QueryComplex},
		{"pros and cons", "What are the pros and cons of the rewrite?", QueryComplex},
		{"relationship", "Describe the relationship between churn and pricing", QueryComplex},
		{"general question", "Tell me about the Q3 roadmap", QuerySynthesis},
		{"summary request", "Summarize the customer feedback", QuerySynthesis},
		{
			"long question",
			"Could you look through everything we have collected so far and tell me whether the team is on track for the launch?",
			QueryComplex,
		},
		{"multiple questions", "Is it done? Did it ship?", QueryComplex},
		{"empty", "", QuerySynthesis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyQuery(tt.question); got != tt.want {
				t.Errorf("ClassifyQuery(%q) = %q, want %q", tt.question, got, tt.want)
			}
		})
	}
}

func TestClassifyQueryDeterministic(t *testing.T) {
	q := "What changed between the drafts and why does it matter?"
	first := ClassifyQuery(q)
	for i := 0; i < 10; i++ {
		if got := ClassifyQuery(q); got != first {
			t.Fatalf("classification changed between calls: %q then %q", first, got)
		}
	}
}
