package ai

import "errors"

// Config holds connection settings for an OpenAI-compatible backend.
type Config struct {
	// BaseURL of the OpenAI-compatible API. Empty means unconfigured.
	BaseURL string

	// Token for authentication. Local services that skip auth may leave
	// this empty; "none" is substituted.
	Token string

	// EmbeddingModel is the model used for EmbedText/EmbedTexts.
	EmbeddingModel string

	// CompletionModel is the model used for Complete.
	CompletionModel string
}

// Configuration validation errors.
var (
	ErrMissingBaseURL        = errors.New("ai: base URL is required")
	ErrMissingEmbeddingModel = errors.New("ai: embedding model is required")
)

// Configured reports whether a backend is set at all. An unconfigured
// backend is not an error; callers substitute deterministic fallbacks.
func (c *Config) Configured() bool {
	return c != nil && c.BaseURL != ""
}

// Validate checks that a configured backend names its models.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.EmbeddingModel == "" {
		return ErrMissingEmbeddingModel
	}
	return nil
}
