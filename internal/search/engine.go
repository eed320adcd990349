package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odfp/odfp/internal/ai"
	"github.com/odfp/odfp/internal/catalog"
	"github.com/odfp/odfp/internal/expand"
	"github.com/odfp/odfp/internal/ranking"
)

// Candidate pool bounds. Over-fetching past the requested page gives
// fusion and re-ranking enough material to reorder meaningfully.
const (
	DefaultOverfetchMultiplier = 5
	minCandidatePool           = 100
	maxCandidatePool           = 500

	// expansionTermLimit caps how many expanded terms augment the
	// semantic query text.
	expansionTermLimit = 8
)

// ErrNoStore is returned when an Engine is constructed without a
// storage backend. It is the only fatal condition in the engine; every
// runtime failure degrades to a valid, possibly empty envelope.
var ErrNoStore = errors.New("search: no storage backend configured")

// Options tunes engine behavior. The zero value selects sane defaults.
type Options struct {
	OverfetchMultiplier int
	TierTimeout         time.Duration
	EmbedTimeout        time.Duration
	Weights             *ranking.Weights
}

// Engine executes the full hybrid pipeline: term expansion, concurrent
// lexical and semantic retrieval, reciprocal rank fusion, quality
// re-ranking, and hydration into the result envelope.
type Engine struct {
	store     catalog.SearchStore
	expander  *expand.Expander
	lexical   *LexicalRetriever
	semantic  *SemanticRetriever
	reranker  *Reranker
	logger    *slog.Logger
	metrics   *Metrics
	overfetch int
}

// NewEngine wires the pipeline. The embedder and expander may be nil;
// retrieval then runs lexicon- and lexical-only. The store must not be
// nil.
func NewEngine(store catalog.SearchStore, embedder ai.Embedder, expander *expand.Expander, logger *slog.Logger, metrics *Metrics, opts Options) (*Engine, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.OverfetchMultiplier <= 0 {
		opts.OverfetchMultiplier = DefaultOverfetchMultiplier
	}

	lexical := NewLexicalRetriever(store, logger, metrics, opts.TierTimeout)
	semantic := NewSemanticRetriever(embedder, store, lexical, logger, metrics, opts.EmbedTimeout)

	return &Engine{
		store:     store,
		expander:  expander,
		lexical:   lexical,
		semantic:  semantic,
		reranker:  NewReranker(opts.Weights),
		logger:    logger.With("component", "search-engine"),
		metrics:   metrics,
		overfetch: opts.OverfetchMultiplier,
	}, nil
}

// Search runs one query end to end and always returns a valid envelope.
// Infrastructure failures shrink the result set; they never surface as
// errors. Only context cancellation aborts the call.
func (e *Engine) Search(ctx context.Context, q catalog.Query) (*catalog.Result, error) {
	start := time.Now()
	q.Normalize()
	e.metrics.IncSearchRequests(string(q.Sort))
	defer func() {
		e.metrics.ObserveSearchDuration(time.Since(start).Seconds())
	}()

	tokens := VariableTokens(q.Variables)
	semanticText := strings.TrimSpace(q.Q)

	// Expansion gates both retrievers; its generative path carries its
	// own timeout and never fails the query.
	if e.expander != nil && q.Q != "" {
		exp := e.expander.Expand(ctx, q.Q)
		semanticText = expandedText(q.Q, exp)
	}

	pool := q.Size * e.overfetch
	if pool < minCandidatePool {
		pool = minCandidatePool
	}
	if pool > maxCandidatePool {
		pool = maxCandidatePool
	}
	// The pool must cover the requested page even deep into the list.
	if need := q.Page * q.Size; pool < need {
		pool = need
	}

	var (
		wg  sync.WaitGroup
		lex LexicalResult
		sem []catalog.ScoredID
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		lex = e.lexical.Retrieve(ctx, q, tokens, pool)
	}()
	if semanticText != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem = e.semantic.Retrieve(ctx, semanticText, pool)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fused := Fuse(lex.IDs, sem, pool)

	records := e.hydrate(ctx, fused, lex.Records)

	// The semantic channel ranks by vector distance alone, so fusion can
	// re-admit records the structured filters exclude. Re-check every
	// hydrated candidate so a bbox, time, format, or platform filter
	// never leaks a non-matching record into the envelope.
	filtered := 0
	if q.HasSpatial() || q.TimeStart != nil || q.TimeEnd != nil || q.Publisher != "" ||
		q.License != "" || q.Format != "" || q.Service != "" || q.Platform != "" {
		kept := records[:0]
		for _, r := range records {
			if q.Matches(r) {
				kept = append(kept, r)
			} else {
				filtered++
			}
		}
		records = kept
	}

	if q.Sort == catalog.SortRecency {
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		})
	} else {
		records = e.reranker.Rerank(records, q.Q, tokens)
	}

	// Total counts fused candidates minus the ones the structured
	// filters rejected. A candidate deleted between retrieval and
	// hydration still counts; the small overstatement is accepted
	// rather than re-queried.
	return paginate(records, len(fused)-filtered, q.Page, q.Size), nil
}

// expandedText augments the raw query with the strongest expansion
// terms for embedding. The raw query always leads so short queries are
// not drowned out.
func expandedText(raw string, exp expand.Expansion) string {
	parts := []string{raw}
	count := 0
	rawLower := strings.ToLower(raw)
	for _, t := range exp.ExpandedTerms {
		if count >= expansionTermLimit {
			break
		}
		if t == rawLower {
			continue
		}
		parts = append(parts, t)
		count++
	}
	return strings.Join(parts, " ")
}

// hydrate resolves fused IDs to records, reusing what lexical retrieval
// already materialized and batch-fetching the rest. IDs that cannot be
// resolved are dropped; total may overstate the hydrated count, which
// is accepted and documented rather than re-queried.
func (e *Engine) hydrate(ctx context.Context, ids []string, known map[string]*catalog.Record) []*catalog.Record {
	var missing []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		fetched, err := e.store.FetchByIDs(ctx, missing)
		if err != nil {
			e.logger.Warn("hydration batch fetch failed, dropping unresolved candidates",
				"missing", len(missing), "error", err)
		}
		for _, r := range fetched {
			known[r.ID] = r
		}
	}

	out := make([]*catalog.Record, 0, len(ids))
	gaps := 0
	for _, id := range ids {
		if r, ok := known[id]; ok {
			out = append(out, r)
		} else {
			gaps++
		}
	}
	if gaps > 0 {
		e.metrics.IncHydrationGaps(gaps)
		e.logger.Debug("dropped unresolvable candidates", "count", gaps)
	}
	return out
}

// paginate slices the ordered records into the requested page and
// builds the envelope.
func paginate(records []*catalog.Record, total, page, size int) *catalog.Result {
	start := (page - 1) * size
	if start > len(records) {
		start = len(records)
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}

	items := make([]catalog.ResultItem, 0, end-start)
	for _, r := range records[start:end] {
		items = append(items, catalog.ItemFromRecord(r))
	}
	return &catalog.Result{
		Total:   total,
		Page:    page,
		Size:    size,
		Results: items,
	}
}

// Facets exposes catalog aggregate counts for the boundary layer.
func (e *Engine) Facets(ctx context.Context) (*catalog.Facets, error) {
	return e.store.FacetStats(ctx)
}
