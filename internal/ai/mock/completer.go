package mock

import (
	"context"
	"sync/atomic"

	"github.com/odfp/odfp/internal/ai"
)

// Completer is a test double for ai.Completer. When CompleteFunc is
// unset it answers with the not-configured sentinel, matching a
// deployment without a generative backend.
type Completer struct {
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	callCount atomic.Int64
}

// NewCompleter creates a mock completer.
func NewCompleter() *Completer {
	return &Completer{}
}

// Complete returns the configured response or the sentinel.
func (m *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	m.callCount.Add(1)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return ai.NotConfiguredMessage, nil
}

// CallCount returns the number of times Complete was called. Safe to
// read concurrently with in-flight completions.
func (m *Completer) CallCount() int {
	return int(m.callCount.Load())
}
