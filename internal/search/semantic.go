package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/odfp/odfp/internal/ai"
	"github.com/odfp/odfp/internal/catalog"
	"github.com/odfp/odfp/internal/ranking"
)

// SemanticRetriever embeds query text and runs nearest-neighbor search
// over precomputed record embeddings. When the embedding backend or the
// vector index fails, it degrades to a lexical pseudo-ranking so fusion
// always receives a second channel.
type SemanticRetriever struct {
	embedder     ai.Embedder
	store        catalog.SearchStore
	lexical      *LexicalRetriever
	logger       *slog.Logger
	metrics      *Metrics
	embedTimeout time.Duration
}

// NewSemanticRetriever builds a semantic retriever. The embedder may be
// nil, in which case every retrieval takes the lexical fallback path.
func NewSemanticRetriever(embedder ai.Embedder, store catalog.SearchStore, lexical *LexicalRetriever, logger *slog.Logger, metrics *Metrics, embedTimeout time.Duration) *SemanticRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	if embedTimeout <= 0 {
		embedTimeout = 5 * time.Second
	}
	return &SemanticRetriever{
		embedder:     embedder,
		store:        store,
		lexical:      lexical,
		logger:       logger.With("component", "semantic-retriever"),
		metrics:      metrics,
		embedTimeout: embedTimeout,
	}
}

// Retrieve returns up to k candidates scored by cosine similarity, or
// by the decaying lexical pseudo-score when the vector path is down.
// Records without embeddings never appear in the vector results; they
// can still surface through lexical retrieval.
func (s *SemanticRetriever) Retrieve(ctx context.Context, text string, k int) []catalog.ScoredID {
	if text == "" || k <= 0 {
		return nil
	}

	if s.embedder != nil {
		scored, err := s.vectorSearch(ctx, text, k)
		if err == nil {
			return scored
		}
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("vector retrieval failed, falling back to lexical pseudo-ranking", "error", err)
	}
	s.metrics.IncSemanticFallback()
	return s.lexicalFallback(ctx, text, k)
}

func (s *SemanticRetriever) vectorSearch(ctx context.Context, text string, k int) ([]catalog.ScoredID, error) {
	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	vec, err := s.embedder.EmbedText(embedCtx, text)
	if err != nil {
		return nil, err
	}
	return s.store.NearestNeighbors(ctx, vec, k)
}

// lexicalFallback synthesizes a ranked list from the lexical retriever:
// rank i maps onto a linear pseudo-score so the fusion stage sees the
// same shape it would from the vector index.
func (s *SemanticRetriever) lexicalFallback(ctx context.Context, text string, k int) []catalog.ScoredID {
	res := s.lexical.Retrieve(ctx, catalog.Query{Q: text}, nil, k)
	scored := make([]catalog.ScoredID, 0, len(res.IDs))
	for i, id := range res.IDs {
		scored = append(scored, catalog.ScoredID{
			ID:    id,
			Score: ranking.LexicalPseudoScore(i, k),
		})
	}
	return scored
}
