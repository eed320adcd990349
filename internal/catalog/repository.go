package catalog

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// TierQuery carries the resolved inputs one lexical tier executes against:
// the structured filters plus the combined text/phrase queries and the
// window to fetch. Zero rows is a valid tier success; only an error
// advances the fallback chain.
type TierQuery struct {
	// Structured filters. Nil/empty means unconstrained.
	BBox      *BoundingBox
	Polygon   [][2]float64
	TimeStart *int64 // unix seconds; nil = open
	TimeEnd   *int64
	Publisher string
	License   string
	Format    string
	Service   string

	// Text is the free-text query joined with expanded variable tokens.
	// Phrase is Text with punctuation collapsed for phrase ranking.
	Text   string
	Phrase string

	Limit  int
	Offset int
}

// SearchStore is the storage-engine contract the retrieval engine
// consumes. Implementations provide layered lexical capabilities plus
// vector nearest-neighbor search and batch hydration. Each method honors
// context cancellation.
type SearchStore interface {
	// SearchFullText runs the combined spatial + ranked full-text tier
	// over the precomputed record+variable+distribution text view.
	// Returns ordered IDs and the total match count.
	SearchFullText(ctx context.Context, q TierQuery) ([]string, int, error)

	// SearchFuzzy runs the base-table full-text tier augmented with
	// trigram similarity for queries too sparse for phrase match.
	SearchFuzzy(ctx context.Context, q TierQuery) ([]string, int, error)

	// SearchFiltered runs plain relational filtering ordered by recency.
	SearchFiltered(ctx context.Context, q TierQuery) ([]string, int, error)

	// NearestNeighbors returns the k records with embeddings closest to
	// vec, ordered by increasing distance, scored as 1 - distance.
	NearestNeighbors(ctx context.Context, vec []float32, k int) ([]ScoredID, error)

	// FetchByIDs materializes full records (variables and distributions
	// included) for the given IDs. Unknown IDs are omitted, not errors.
	FetchByIDs(ctx context.Context, ids []string) ([]*Record, error)

	// FacetStats aggregates publisher/format/service counts.
	FacetStats(ctx context.Context) (*Facets, error)
}

// MemoryStore is an in-memory SearchStore used in tests and local
// development. Matching approximates the Postgres tiers closely enough
// for engine-level behavior: full-text requires term overlap on the
// record's combined text, fuzzy adds title/abstract trigram similarity,
// filtered applies structured predicates only.
//
// The *Fn fields, when set, override the corresponding method; tests use
// them to inject tier failures.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string

	SearchFullTextFn   func(ctx context.Context, q TierQuery) ([]string, int, error)
	SearchFuzzyFn      func(ctx context.Context, q TierQuery) ([]string, int, error)
	SearchFilteredFn   func(ctx context.Context, q TierQuery) ([]string, int, error)
	NearestNeighborsFn func(ctx context.Context, vec []float32, k int) ([]ScoredID, error)
	FetchByIDsFn       func(ctx context.Context, ids []string) ([]*Record, error)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Put inserts or replaces a record.
func (s *MemoryStore) Put(r *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	s.records[r.ID] = r
}

// Delete removes a record. Used by tests to create hydration gaps.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// searchText is the flattened text blob full-text matching runs over,
// mirroring the dataset_fts view contents.
func searchText(r *Record) string {
	parts := []string{r.Title, r.Abstract, r.Publisher, r.DOI, r.License, r.SourceSystem}
	for _, v := range r.Variables {
		parts = append(parts, v.Name, v.StandardName, v.LongName)
	}
	for _, d := range r.Distributions {
		parts = append(parts, d.Format, string(d.Service))
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// matchesFilters applies the structured predicate shared by all tiers.
// Records without a bounding box are excluded by a spatial filter, the
// same choice the relational schema makes by requiring geom IS NOT NULL.
func matchesFilters(r *Record, q TierQuery) bool {
	if q.Publisher != "" && r.Publisher != q.Publisher {
		return false
	}
	if q.License != "" && r.License != q.License {
		return false
	}
	if box := effectiveTierBBox(q); box != nil {
		if r.BBox == nil || !r.BBox.Intersects(*box) {
			return false
		}
	}
	if q.TimeStart != nil {
		// Record must end at or after the window start; a nil end is open.
		if r.TimeEnd != nil && r.TimeEnd.Unix() < *q.TimeStart {
			return false
		}
	}
	if q.TimeEnd != nil {
		if r.TimeStart != nil && r.TimeStart.Unix() > *q.TimeEnd {
			return false
		}
	}
	if q.Format != "" && !r.HasFormat(q.Format) {
		return false
	}
	if q.Service != "" && !r.HasService(q.Service) {
		return false
	}
	return true
}

func effectiveTierBBox(q TierQuery) *BoundingBox {
	if q.BBox != nil {
		return q.BBox
	}
	if len(q.Polygon) >= 4 {
		query := Query{Polygon: q.Polygon}
		return query.EffectiveBBox()
	}
	return nil
}

type memMatch struct {
	id          string
	phrase      bool
	termHits    int
	similarity  float64
	updatedUnix int64
}

// textTerms splits a tier text query into lowercase terms.
func textTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == '\t'
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (s *MemoryStore) collect(q TierQuery, requireText bool, fuzzy bool) []memMatch {
	terms := textTerms(q.Text)
	phrase := strings.ToLower(strings.TrimSpace(q.Phrase))
	var matches []memMatch
	for _, id := range s.order {
		r := s.records[id]
		if r == nil || !matchesFilters(r, q) {
			continue
		}
		blob := searchText(r)
		m := memMatch{id: id, updatedUnix: r.UpdatedAt.Unix()}
		if phrase != "" && strings.Contains(blob, phrase) {
			m.phrase = true
		}
		for _, t := range terms {
			if strings.Contains(blob, t) {
				m.termHits++
			}
		}
		if fuzzy {
			title := strings.ToLower(r.Title)
			m.similarity = trigramSimilarity(title, strings.ToLower(q.Text))
		}
		textMatched := m.phrase || m.termHits > 0 || (fuzzy && m.similarity > 0.2)
		if requireText && len(terms) > 0 && !textMatched {
			continue
		}
		matches = append(matches, m)
	}
	return matches
}

func window(ids []string, limit, offset int) []string {
	if offset >= len(ids) {
		return nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

// SearchFullText implements the tier-1 contract.
func (s *MemoryStore) SearchFullText(ctx context.Context, q TierQuery) ([]string, int, error) {
	if s.SearchFullTextFn != nil {
		return s.SearchFullTextFn(ctx, q)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := s.collect(q, true, false)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].phrase != matches[j].phrase {
			return matches[i].phrase
		}
		return matches[i].termHits > matches[j].termHits
	})
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}
	return window(ids, q.Limit, q.Offset), len(ids), nil
}

// SearchFuzzy implements the tier-2 contract.
func (s *MemoryStore) SearchFuzzy(ctx context.Context, q TierQuery) ([]string, int, error) {
	if s.SearchFuzzyFn != nil {
		return s.SearchFuzzyFn(ctx, q)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := s.collect(q, true, true)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].phrase != matches[j].phrase {
			return matches[i].phrase
		}
		if matches[i].termHits != matches[j].termHits {
			return matches[i].termHits > matches[j].termHits
		}
		if matches[i].similarity != matches[j].similarity {
			return matches[i].similarity > matches[j].similarity
		}
		return matches[i].updatedUnix > matches[j].updatedUnix
	})
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}
	return window(ids, q.Limit, q.Offset), len(ids), nil
}

// SearchFiltered implements the tier-3 contract: structured predicates
// plus plain substring text matching, ordered by recency.
func (s *MemoryStore) SearchFiltered(ctx context.Context, q TierQuery) ([]string, int, error) {
	if s.SearchFilteredFn != nil {
		return s.SearchFilteredFn(ctx, q)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := s.collect(q, true, false)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].updatedUnix > matches[j].updatedUnix
	})
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}
	return window(ids, q.Limit, q.Offset), len(ids), nil
}

// NearestNeighbors ranks records with embeddings by cosine distance.
func (s *MemoryStore) NearestNeighbors(ctx context.Context, vec []float32, k int) ([]ScoredID, error) {
	if s.NearestNeighborsFn != nil {
		return s.NearestNeighborsFn(ctx, vec, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var scored []ScoredID
	for _, id := range s.order {
		r := s.records[id]
		if r == nil || r.Embedding == nil {
			continue
		}
		scored = append(scored, ScoredID{ID: id, Score: cosineSimilarity(vec, r.Embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// FetchByIDs materializes records preserving input order; unknown IDs
// are skipped.
func (s *MemoryStore) FetchByIDs(ctx context.Context, ids []string) ([]*Record, error) {
	if s.FetchByIDsFn != nil {
		return s.FetchByIDsFn(ctx, ids)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// FacetStats aggregates counts over the whole store.
func (s *MemoryStore) FacetStats(ctx context.Context) (*Facets, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := &Facets{
		Publishers: make(map[string]int),
		Formats:    make(map[string]int),
		Services:   make(map[string]int),
	}
	for _, r := range s.records {
		if r.Publisher != "" {
			f.Publishers[r.Publisher]++
		}
		for _, d := range r.Distributions {
			if d.Format != "" {
				f.Formats[d.Format]++
			}
			f.Services[string(d.Service)]++
		}
	}
	return f, nil
}

// cosineSimilarity assumes unnormalized vectors and returns a value in
// [-1, 1]; zero-length inputs score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// trigramSimilarity approximates pg_trgm similarity: shared trigram
// count over the union of trigrams.
func trigramSimilarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if tb[t] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func trigrams(s string) map[string]bool {
	s = "  " + s + " "
	out := make(map[string]bool)
	for i := 0; i+3 <= len(s); i++ {
		out[s[i:i+3]] = true
	}
	return out
}
