package llm

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateParams controls a single generation call.
type GenerateParams struct {
	// Model overrides the client default when non-empty. The fast model is
	// passed here for map-phase summarization.
	Model string
	// MaxTokens limits the completion length. Zero means no limit.
	MaxTokens int
	// Temperature for sampling. Zero value is sent as 0.0 (deterministic),
	// which is what the retrieval pipeline wants for classification-free
	// factual answers; callers wanting variety set it explicitly.
	Temperature float64
}
