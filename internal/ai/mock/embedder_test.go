package mock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedderDeterministic(t *testing.T) {
	e := NewEmbedder()

	a, err := e.EmbedText(context.Background(), "sea surface temperature")
	require.NoError(t, err)
	b, err := e.EmbedText(context.Background(), "sea surface temperature")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
	assert.Equal(t, 2, e.CallCount())
}

func TestEmbedderConcurrentCallCount(t *testing.T) {
	// The engine embeds from a retrieval goroutine while tests read the
	// counter, so counting must hold up under concurrent callers.
	e := NewEmbedder()

	const callers = 16
	const perCaller = 50
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				if _, err := e.EmbedText(context.Background(), "salinity"); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, callers*perCaller, e.CallCount())
}

func TestCompleterConcurrentCallCount(t *testing.T) {
	c := NewCompleter()

	const callers = 16
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Complete(context.Background(), "expand this query"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, callers, c.CallCount())
}
