package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odfp/odfp/internal/catalog"
)

func TestVariableTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		contains []string
		excludes []string
	}{
		{
			name:     "hierarchical name keeps leaf",
			input:    []string{"Oceans > Ocean Temperature > Sea Surface Temperature"},
			contains: []string{"sea surface temperature", "sea surface", "surface temperature", "temperature"},
			excludes: []string{"oceans > ocean temperature > sea surface temperature"},
		},
		{
			name:     "bigrams and trigrams preserved",
			input:    []string{"eastward wind speed"},
			contains: []string{"eastward wind speed", "eastward wind", "wind speed", "eastward", "speed"},
		},
		{
			name:     "stop words and short words dropped",
			input:    []string{"sea level data"},
			contains: []string{"sea level data", "sea level", "level data"},
			excludes: []string{"sea", "data", "level"},
		},
		{
			name:     "underscores split like spaces",
			input:    []string{"sea_surface_salinity"},
			contains: []string{"sea surface", "surface salinity", "salinity"},
		},
		{
			name:  "empty input",
			input: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := VariableTokens(tt.input)
			for _, want := range tt.contains {
				assert.Contains(t, tokens, want)
			}
			for _, not := range tt.excludes {
				assert.NotContains(t, tokens, not)
			}
		})
	}
}

func TestVariableTokensDeduplicated(t *testing.T) {
	tokens := VariableTokens([]string{"wind speed", "wind speed"})
	seen := map[string]int{}
	for _, tok := range tokens {
		seen[tok]++
	}
	for tok, n := range seen {
		assert.Equal(t, 1, n, "token %q duplicated", tok)
	}
}

func TestVariableRelevanceScore(t *testing.T) {
	vars := []catalog.Variable{
		{Name: "sea_surface_temperature", StandardName: "sea_surface_temperature", LongName: "Sea Surface Temperature"},
	}
	unrelated := []catalog.Variable{
		{Name: "nitrate_concentration"},
	}

	exact := VariableRelevanceScore(vars, []string{"sea_surface_temperature"})
	phrase := VariableRelevanceScore(vars, []string{"surface temperature"})
	partial := VariableRelevanceScore(vars, []string{"temperature"})
	none := VariableRelevanceScore(unrelated, []string{"temperature"})

	assert.Greater(t, exact, phrase)
	assert.Greater(t, partial, none)
	assert.Zero(t, none)
}

func TestVariableRelevanceScoreClusterBonus(t *testing.T) {
	windVars := []catalog.Variable{{Name: "eastward_wind"}}

	withCluster := VariableRelevanceScore(windVars, []string{"wind"})
	// The token matches as a substring (5) plus the wind cluster (6).
	assert.Equal(t, 11, withCluster)
}

func TestVariableRelevanceScoreZeroInputs(t *testing.T) {
	assert.Zero(t, VariableRelevanceScore(nil, []string{"wind"}))
	assert.Zero(t, VariableRelevanceScore([]catalog.Variable{{Name: "wind"}}, nil))
}

func testRecord(id, title string, vars ...catalog.Variable) *catalog.Record {
	return &catalog.Record{
		ID:        id,
		Title:     title,
		Variables: vars,
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLexicalRetrieveTierFallback(t *testing.T) {
	store := catalog.NewMemoryStore()
	store.Put(testRecord("rec-1", "Sea Surface Temperature near California"))
	store.Put(testRecord("rec-2", "Nitrate profiles"))

	tier2Called := false
	store.SearchFullTextFn = func(ctx context.Context, q catalog.TierQuery) ([]string, int, error) {
		return nil, 0, errors.New("materialized view missing")
	}
	store.SearchFuzzyFn = func(ctx context.Context, q catalog.TierQuery) ([]string, int, error) {
		tier2Called = true
		return []string{"rec-1"}, 1, nil
	}

	metrics := NewMetrics()
	l := NewLexicalRetriever(store, nil, metrics, time.Second)
	res := l.Retrieve(context.Background(), catalog.Query{Q: "temperature"}, nil, 20)

	assert.True(t, tier2Called)
	// The winning tier's output is used exactly, with no mixing from
	// the failed tier.
	assert.Equal(t, []string{"rec-1"}, res.IDs)
	assert.Equal(t, 1, res.Total)
}

func TestLexicalRetrieveAllTiersFail(t *testing.T) {
	store := catalog.NewMemoryStore()
	fail := func(ctx context.Context, q catalog.TierQuery) ([]string, int, error) {
		return nil, 0, errors.New("db down")
	}
	store.SearchFullTextFn = fail
	store.SearchFuzzyFn = fail
	store.SearchFilteredFn = fail

	l := NewLexicalRetriever(store, nil, nil, time.Second)
	res := l.Retrieve(context.Background(), catalog.Query{Q: "temperature"}, nil, 20)

	assert.Empty(t, res.IDs)
	assert.Zero(t, res.Total)
}

func TestLexicalRetrieveZeroRowsStopsChain(t *testing.T) {
	store := catalog.NewMemoryStore()
	store.Put(testRecord("rec-1", "Sea Surface Temperature"))

	fuzzyCalled := false
	store.SearchFullTextFn = func(ctx context.Context, q catalog.TierQuery) ([]string, int, error) {
		return nil, 0, nil // valid empty success
	}
	store.SearchFuzzyFn = func(ctx context.Context, q catalog.TierQuery) ([]string, int, error) {
		fuzzyCalled = true
		return []string{"rec-1"}, 1, nil
	}

	l := NewLexicalRetriever(store, nil, nil, time.Second)
	res := l.Retrieve(context.Background(), catalog.Query{Q: "zebra"}, nil, 20)

	assert.False(t, fuzzyCalled, "zero rows is a success, not a fallback trigger")
	assert.Empty(t, res.IDs)
}

func TestLexicalRetrieveSoftVariableSort(t *testing.T) {
	store := catalog.NewMemoryStore()
	store.Put(testRecord("no-match", "Pacific observations", catalog.Variable{Name: "nitrate"}))
	store.Put(testRecord("match", "Pacific observations", catalog.Variable{Name: "sea_surface_temperature"}))

	tokens := VariableTokens([]string{"sea surface temperature"})
	l := NewLexicalRetriever(store, nil, nil, time.Second)
	res := l.Retrieve(context.Background(), catalog.Query{Q: "pacific"}, tokens, 20)

	// The non-matching record is resorted below, never dropped.
	require.Len(t, res.IDs, 2)
	assert.Equal(t, "match", res.IDs[0])
	assert.Equal(t, "no-match", res.IDs[1])
}

func TestLexicalRetrievePlatformHardFilter(t *testing.T) {
	store := catalog.NewMemoryStore()
	withPlatform := testRecord("argo", "Temperature profiles")
	withPlatform.Platforms = []string{"Argo"}
	store.Put(withPlatform)
	store.Put(testRecord("other", "Temperature profiles"))

	l := NewLexicalRetriever(store, nil, nil, time.Second)
	res := l.Retrieve(context.Background(), catalog.Query{Q: "temperature", Platform: "argo"}, nil, 20)

	require.Len(t, res.IDs, 1)
	assert.Equal(t, "argo", res.IDs[0])
}

func TestBuildTierQueryPhraseStripsPunctuation(t *testing.T) {
	q := catalog.Query{Q: "temperature, salinity (surface)"}
	tq := buildTierQuery(q, nil, 20)

	assert.Equal(t, "temperature, salinity (surface)", tq.Text)
	assert.NotContains(t, tq.Phrase, ",")
	assert.NotContains(t, tq.Phrase, "(")
}
