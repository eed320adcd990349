// Package ai defines the narrow contracts the search engine consumes
// for embeddings and generative text, plus their configuration.
package ai

import "context"

// NotConfiguredMessage is the sentinel a Completer returns when no
// generative backend is configured. Callers must check for it before
// parsing structured output.
const NotConfiguredMessage = "AI is not configured on this environment. Showing best-effort results from lexical/semantic fallback."

// Embedder generates vector embeddings from text for semantic
// similarity search. Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates an embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in a batch,
	// returned in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer generates free text from a prompt. Implementations never
// return an error for a missing backend; they return
// NotConfiguredMessage instead so degradation stays local to callers.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// unconfiguredCompleter always answers with the sentinel.
type unconfiguredCompleter struct{}

func (unconfiguredCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return NotConfiguredMessage, nil
}

// Unconfigured returns a Completer that always reports the sentinel
// message. Used when no generative backend is configured.
func Unconfigured() Completer {
	return unconfiguredCompleter{}
}

// IsNotConfigured reports whether a completion is the sentinel.
func IsNotConfigured(completion string) bool {
	return completion == NotConfiguredMessage
}
