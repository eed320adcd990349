// Package search implements the hybrid retrieval pipeline: tiered
// lexical retrieval, semantic vector retrieval, reciprocal rank fusion,
// and quality-signal re-ranking over the dataset catalog.
package search

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/odfp/odfp/internal/catalog"
)

// Lexical retrieval tier names used in logs and metrics.
const (
	tierFullText = "fulltext"
	tierFuzzy    = "fuzzy"
	tierFiltered = "filtered"
)

// stopTokens are variable-name words too generic to carry relevance.
var stopTokens = map[string]bool{"data": true, "time": true, "level": true}

var tokenSeparators = regexp.MustCompile(`[\s_/,-]+`)

// VariableTokens expands requested variable names into match tokens
// that preserve phrase context: the leaf segment of hierarchical names,
// the full phrase, its bigrams and trigrams, and meaningful individual
// words. Tokens are lowercased and deduplicated in first-seen order.
func VariableTokens(variables []string) []string {
	var tokens []string
	seen := map[string]bool{}
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		tokens = append(tokens, t)
	}

	for _, raw := range variables {
		leaf := raw
		if idx := strings.LastIndex(raw, ">"); idx >= 0 {
			leaf = raw[idx+1:]
		}
		leaf = strings.TrimSpace(leaf)
		if leaf == "" {
			continue
		}
		add(leaf)

		words := tokenSeparators.Split(leaf, -1)
		filtered := words[:0]
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				filtered = append(filtered, w)
			}
		}
		words = filtered

		// Bi-grams and tri-grams keep phrase relationships that single
		// words lose ("sea surface" vs "sea" + "surface").
		for i := 0; i+1 < len(words); i++ {
			add(words[i] + " " + words[i+1])
			if i+2 < len(words) {
				add(words[i] + " " + words[i+1] + " " + words[i+2])
			}
		}

		for _, w := range words {
			if len(w) >= 4 && !stopTokens[strings.ToLower(w)] {
				add(w)
			}
		}
	}
	return tokens
}

// semanticClusters reward variable fields that belong to the same
// measurement family as a query token even without a substring match.
var semanticClusters = []struct {
	patterns []string
	fields   []string
	bonus    int
}{
	{patterns: []string{"wind", "eastward", "northward"}, fields: []string{"wind", "u_component", "v_component", "eastward", "northward"}, bonus: 6},
	{patterns: []string{"temperature", "temp", "sst"}, fields: []string{"temperature", "temp", "sst", "thermal"}, bonus: 6},
	{patterns: []string{"current", "velocity"}, fields: []string{"current", "velocity", "flow", "stream"}, bonus: 6},
	{patterns: []string{"salinity", "salt"}, fields: []string{"salinity", "salt", "saline"}, bonus: 6},
	{patterns: []string{"surface", "sea_surface"}, fields: []string{"surface", "sea_surface", "skin"}, bonus: 4},
}

var tokenPunct = regexp.MustCompile(`[\s_-]+`)

// VariableRelevanceScore rates how well a record's variables match the
// requested tokens. Exact name matches dominate, multi-word phrase
// containment scales with phrase length, bare substring hits score by
// token length, and cluster bonuses catch family matches. The score is
// a sort key only; zero never excludes a record.
func VariableRelevanceScore(variables []catalog.Variable, tokens []string) int {
	if len(variables) == 0 || len(tokens) == 0 {
		return 0
	}
	score := 0
	for _, v := range variables {
		fields := []string{
			strings.ToLower(v.Name),
			strings.ToLower(v.LongName),
			strings.ToLower(v.StandardName),
		}
		for _, t := range tokens {
			for _, field := range fields {
				if field == "" || !strings.Contains(field, t) {
					continue
				}
				switch {
				case field == t || tokenPunct.ReplaceAllString(field, " ") == tokenPunct.ReplaceAllString(t, " "):
					score += 20
				case strings.Contains(t, " "):
					score += len(strings.Fields(t)) * 8
				case len(t) > 3:
					score += 5
				default:
					score += 2
				}
				score += clusterBonus(t, field)
			}
		}
	}
	return score
}

func clusterBonus(token, field string) int {
	if field == "" {
		return 0
	}
	total := 0
	for _, c := range semanticClusters {
		tokenHit := false
		for _, p := range c.patterns {
			if strings.Contains(token, p) {
				tokenHit = true
				break
			}
		}
		if !tokenHit {
			continue
		}
		for _, f := range c.fields {
			if strings.Contains(field, f) {
				total += c.bonus
				break
			}
		}
	}
	return total
}

// LexicalResult is the lexical retriever's output: ordered IDs, the
// total structured-filter match count, and the records it already
// materialized so hydration can reuse them.
type LexicalResult struct {
	IDs     []string
	Total   int
	Records map[string]*catalog.Record
}

// LexicalRetriever resolves a query into ranked candidate IDs using a
// tiered fallback chain. A tier error advances the chain; zero rows is
// a valid success and stops it. Total failure of every tier yields an
// empty result, never an error.
type LexicalRetriever struct {
	store       catalog.SearchStore
	logger      *slog.Logger
	metrics     *Metrics
	tierTimeout time.Duration
}

// NewLexicalRetriever builds a lexical retriever over the store.
func NewLexicalRetriever(store catalog.SearchStore, logger *slog.Logger, metrics *Metrics, tierTimeout time.Duration) *LexicalRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	if tierTimeout <= 0 {
		tierTimeout = 5 * time.Second
	}
	return &LexicalRetriever{
		store:       store,
		logger:      logger.With("component", "lexical-retriever"),
		metrics:     metrics,
		tierTimeout: tierTimeout,
	}
}

var phraseClean = regexp.MustCompile(`[^\w\s]`)

// buildTierQuery resolves the caller query plus expanded tokens into
// the shared tier input.
func buildTierQuery(q catalog.Query, tokens []string, limit int) catalog.TierQuery {
	text := strings.TrimSpace(q.Q + " " + strings.Join(tokens, " "))
	tq := catalog.TierQuery{
		BBox:      q.BBox,
		Polygon:   q.Polygon,
		Publisher: q.Publisher,
		License:   q.License,
		Format:    q.Format,
		Service:   q.Service,
		Text:      text,
		Phrase:    strings.TrimSpace(phraseClean.ReplaceAllString(text, " ")),
		Limit:     limit,
	}
	if q.TimeStart != nil {
		ts := q.TimeStart.Unix()
		tq.TimeStart = &ts
	}
	if q.TimeEnd != nil {
		te := q.TimeEnd.Unix()
		tq.TimeEnd = &te
	}
	return tq
}

// Retrieve runs the tier chain and applies the variable-relevance soft
// sort and the platform hard post-filter to the winning tier's output.
func (l *LexicalRetriever) Retrieve(ctx context.Context, q catalog.Query, tokens []string, limit int) LexicalResult {
	tq := buildTierQuery(q, tokens, limit)

	ids, total, ok := l.runTiers(ctx, tq)
	if !ok || len(ids) == 0 {
		return LexicalResult{Records: map[string]*catalog.Record{}}
	}

	records, err := l.store.FetchByIDs(ctx, ids)
	if err != nil {
		// Candidates survive unhydrated; the engine's own hydration
		// pass retries them.
		l.logger.Warn("lexical hydration failed", "error", err, "ids", len(ids))
		return LexicalResult{IDs: ids, Total: total, Records: map[string]*catalog.Record{}}
	}

	byID := make(map[string]*catalog.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	ordered := make([]*catalog.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}

	if len(tokens) > 0 {
		scores := make(map[string]int, len(ordered))
		for _, r := range ordered {
			scores[r.ID] = VariableRelevanceScore(r.Variables, tokens)
		}
		// Stable resort preserves tier order among equally relevant
		// records instead of dropping non-matching ones.
		sort.SliceStable(ordered, func(i, j int) bool {
			return scores[ordered[i].ID] > scores[ordered[j].ID]
		})
	}

	if q.Platform != "" {
		kept := ordered[:0]
		for _, r := range ordered {
			if r.HasPlatform(q.Platform) {
				kept = append(kept, r)
			}
		}
		ordered = kept
		total = len(ordered)
	}

	out := LexicalResult{
		IDs:     make([]string, len(ordered)),
		Total:   total,
		Records: byID,
	}
	for i, r := range ordered {
		out.IDs[i] = r.ID
	}
	return out
}

// runTiers attempts each tier in order. Only an error advances the
// chain; an empty success is final.
func (l *LexicalRetriever) runTiers(ctx context.Context, tq catalog.TierQuery) ([]string, int, bool) {
	tiers := []struct {
		name string
		run  func(ctx context.Context, q catalog.TierQuery) ([]string, int, error)
	}{
		{tierFullText, l.store.SearchFullText},
		{tierFuzzy, l.store.SearchFuzzy},
		{tierFiltered, l.store.SearchFiltered},
	}

	for _, tier := range tiers {
		tierCtx, cancel := context.WithTimeout(ctx, l.tierTimeout)
		ids, total, err := tier.run(tierCtx, tq)
		cancel()
		if err == nil {
			return ids, total, true
		}
		if ctx.Err() != nil {
			// Caller cancelled; stop trying tiers.
			return nil, 0, false
		}
		l.metrics.IncTierFallback(tier.name)
		l.logger.Warn("lexical tier failed, advancing chain", "tier", tier.name, "error", err)
	}
	l.logger.Error("all lexical tiers failed, returning empty candidate set")
	return nil, 0, false
}
