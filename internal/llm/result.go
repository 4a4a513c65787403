package llm

// Status is the outcome of a model stage that did not fail.
type Status string

const (
	// StatusOK means the stage produced usable output.
	StatusOK Status = "ok"
	// StatusEmpty means the model answered validly with nothing to
	// recommend. The run continues and the warning is reported.
	StatusEmpty Status = "empty"
)

// Usage is per-call accounting kept for run metrics.
type Usage struct {
	EstimatedPromptTokens int    `json:"estimated_prompt_tokens"`
	TokensUsed            int    `json:"tokens_used,omitempty"`
	Model                 string `json:"model,omitempty"`
	DurationMs            int64  `json:"duration_ms"`
}
