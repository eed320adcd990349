package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aimock "github.com/odfp/odfp/internal/ai/mock"
	"github.com/odfp/odfp/internal/catalog"
	"github.com/odfp/odfp/internal/expand"
)

func newTestEngine(t *testing.T, store catalog.SearchStore, embedder *aimock.Embedder) *Engine {
	t.Helper()
	var e *Engine
	var err error
	if embedder != nil {
		e, err = NewEngine(store, embedder, nil, nil, nil, Options{})
	} else {
		e, err = NewEngine(store, nil, nil, nil, nil, Options{})
	}
	require.NoError(t, err)
	return e
}

func putRecord(store *catalog.MemoryStore, id, title string, mutate func(*catalog.Record)) {
	r := &catalog.Record{
		ID:        id,
		Title:     title,
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(r)
	}
	store.Put(r)
}

func TestEngineRequiresStore(t *testing.T) {
	_, err := NewEngine(nil, nil, nil, nil, nil, Options{})
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestSearchFindsTitleMatch(t *testing.T) {
	store := catalog.NewMemoryStore()
	putRecord(store, "sst-ca", "Sea Surface Temperature near California", nil)
	putRecord(store, "other", "Arctic ice thickness", nil)

	e := newTestEngine(t, store, nil)
	res, err := e.Search(context.Background(), catalog.Query{Q: "sea surface temperature"})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Total, 1)
	found := false
	for _, item := range res.Results {
		if item.ID == "sst-ca" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSearchBBoxFilter(t *testing.T) {
	store := catalog.NewMemoryStore()
	putRecord(store, "inside", "California current", func(r *catalog.Record) {
		r.BBox = &catalog.BoundingBox{MinX: -125, MinY: 32, MaxX: -117, MaxY: 42}
	})
	putRecord(store, "outside", "Baltic salinity", func(r *catalog.Record) {
		r.BBox = &catalog.BoundingBox{MinX: 10, MinY: 54, MaxX: 30, MaxY: 66}
	})
	putRecord(store, "no-bbox", "Global compilation", nil)

	e := newTestEngine(t, store, nil)
	res, err := e.Search(context.Background(), catalog.Query{
		BBox: &catalog.BoundingBox{MinX: -130, MinY: 30, MaxX: -115, MaxY: 45},
	})

	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	// Records without a bounding box are excluded by a spatial filter.
	assert.Equal(t, "inside", res.Results[0].ID)
	require.NotNil(t, res.Results[0].Spatial.BBox)
}

func TestSearchDegradesWhenEmbedderFails(t *testing.T) {
	store := catalog.NewMemoryStore()
	putRecord(store, "sst", "Sea surface temperature", nil)

	embedder := aimock.NewEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding backend down")
	}

	e := newTestEngine(t, store, embedder)
	res, err := e.Search(context.Background(), catalog.Query{Q: "temperature"})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Total, 1)
	assert.NotEmpty(t, res.Results)
}

func TestSearchSkipsRecordsWithoutEmbedding(t *testing.T) {
	store := catalog.NewMemoryStore()
	putRecord(store, "embedded", "Temperature with embedding", func(r *catalog.Record) {
		r.Embedding = aimock.DeterministicVector("Temperature with embedding", 16)
	})
	putRecord(store, "bare", "Temperature without embedding", nil)

	e := newTestEngine(t, store, aimock.NewEmbedder())
	res, err := e.Search(context.Background(), catalog.Query{Q: "temperature"})

	require.NoError(t, err)
	// The record without an embedding still surfaces via the lexical
	// channel.
	ids := make([]string, 0, len(res.Results))
	for _, item := range res.Results {
		ids = append(ids, item.ID)
	}
	assert.Contains(t, ids, "embedded")
	assert.Contains(t, ids, "bare")
}

func TestSearchPaginationConsistency(t *testing.T) {
	store := catalog.NewMemoryStore()
	for i := 0; i < 25; i++ {
		id := "rec-" + string(rune('a'+i))
		putRecord(store, id, "Pacific temperature series", nil)
	}

	e := newTestEngine(t, store, nil)

	for _, tc := range []struct{ page, size int }{
		{1, 10}, {2, 10}, {3, 10}, {4, 10}, {1, 100},
	} {
		res, err := e.Search(context.Background(), catalog.Query{
			Q: "temperature", Page: tc.page, Size: tc.size,
		})
		require.NoError(t, err)

		expected := res.Total - (tc.page-1)*tc.size
		if expected < 0 {
			expected = 0
		}
		if expected > tc.size {
			expected = tc.size
		}
		assert.Len(t, res.Results, expected, "page %d size %d", tc.page, tc.size)
	}
}

func TestSearchHydrationGapDropped(t *testing.T) {
	store := catalog.NewMemoryStore()
	putRecord(store, "kept", "Temperature kept", nil)
	putRecord(store, "ghost", "Temperature ghost", nil)

	// The candidate list includes a record that vanishes before
	// hydration.
	store.FetchByIDsFn = func(ctx context.Context, ids []string) ([]*catalog.Record, error) {
		store.FetchByIDsFn = nil
		store.Delete("ghost")
		return store.FetchByIDs(ctx, ids)
	}

	e := newTestEngine(t, store, nil)
	res, err := e.Search(context.Background(), catalog.Query{Q: "temperature"})

	require.NoError(t, err)
	for _, item := range res.Results {
		assert.NotEqual(t, "ghost", item.ID)
	}
	// Total counts fused candidates, so it may exceed the hydrated page.
	assert.GreaterOrEqual(t, res.Total, len(res.Results))
}

func TestSearchEmptyEnvelopeOnTotalFailure(t *testing.T) {
	store := catalog.NewMemoryStore()
	fail := func(ctx context.Context, q catalog.TierQuery) ([]string, int, error) {
		return nil, 0, errors.New("db down")
	}
	store.SearchFullTextFn = fail
	store.SearchFuzzyFn = fail
	store.SearchFilteredFn = fail
	store.NearestNeighborsFn = func(ctx context.Context, vec []float32, k int) ([]catalog.ScoredID, error) {
		return nil, errors.New("index down")
	}

	e := newTestEngine(t, store, aimock.NewEmbedder())
	res, err := e.Search(context.Background(), catalog.Query{Q: "temperature", Page: 2, Size: 10})

	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Results)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 10, res.Size)
}

func TestSearchRecencySort(t *testing.T) {
	store := catalog.NewMemoryStore()
	putRecord(store, "old", "Temperature archive", func(r *catalog.Record) {
		r.UpdatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	})
	putRecord(store, "new", "Temperature nowcast", func(r *catalog.Record) {
		r.UpdatedAt = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	})

	e := newTestEngine(t, store, nil)
	res, err := e.Search(context.Background(), catalog.Query{Q: "temperature", Sort: catalog.SortRecency})

	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "new", res.Results[0].ID)
}

func TestSearchCancelledContext(t *testing.T) {
	store := catalog.NewMemoryStore()
	putRecord(store, "rec", "Temperature", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(t, store, nil)
	_, err := e.Search(ctx, catalog.Query{Q: "temperature"})

	assert.Error(t, err)
}

func TestSearchWithExpanderUsesLexicon(t *testing.T) {
	store := catalog.NewMemoryStore()
	putRecord(store, "sst", "SST analysis", func(r *catalog.Record) {
		r.Embedding = aimock.DeterministicVector("SST analysis", 16)
	})

	expander := expand.NewExpander(expand.DefaultLexicon(), nil, nil)
	e, err := NewEngine(store, aimock.NewEmbedder(), expander, nil, nil, Options{})
	require.NoError(t, err)

	res, err := e.Search(context.Background(), catalog.Query{Q: "sea surface temperature"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Results)
}

func TestSearchNormalizesPagination(t *testing.T) {
	store := catalog.NewMemoryStore()
	putRecord(store, "rec", "Temperature", nil)

	e := newTestEngine(t, store, nil)
	res, err := e.Search(context.Background(), catalog.Query{Q: "temperature", Page: -3, Size: 9000})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, catalog.MaxPageSize, res.Size)
}

func TestSearchSemanticChannelHonorsBBoxFilter(t *testing.T) {
	store := catalog.NewMemoryStore()
	// Identical embeddings make both records equally attractive to the
	// vector channel; only the structured filter can tell them apart.
	shared := aimock.DeterministicVector("sea surface temperature", 16)
	putRecord(store, "pacific", "Pacific Sea Surface Temperature Analysis", func(r *catalog.Record) {
		r.BBox = &catalog.BoundingBox{MinX: -125, MinY: 32, MaxX: -117, MaxY: 42}
		r.Embedding = shared
	})
	putRecord(store, "atlantic", "Atlantic Sea Surface Temperature Analysis", func(r *catalog.Record) {
		r.BBox = &catalog.BoundingBox{MinX: -60, MinY: 0, MaxX: -20, MaxY: 40}
		r.Embedding = shared
	})

	e := newTestEngine(t, store, aimock.NewEmbedder())
	res, err := e.Search(context.Background(), catalog.Query{
		Q:    "sea surface temperature",
		BBox: &catalog.BoundingBox{MinX: -130, MinY: 30, MaxX: -115, MaxY: 45},
	})

	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "pacific", res.Results[0].ID)
	assert.Equal(t, 1, res.Total)
}

func TestSearchSemanticChannelHonorsPlatformFilter(t *testing.T) {
	store := catalog.NewMemoryStore()
	shared := aimock.DeterministicVector("ocean temperature profiles", 16)
	putRecord(store, "argo", "Argo float temperature profiles", func(r *catalog.Record) {
		r.Platforms = []string{"Argo"}
		r.Embedding = shared
	})
	putRecord(store, "mooring", "Moored buoy temperature profiles", func(r *catalog.Record) {
		r.Platforms = []string{"mooring"}
		r.Embedding = shared
	})

	e := newTestEngine(t, store, aimock.NewEmbedder())
	res, err := e.Search(context.Background(), catalog.Query{
		Q:        "temperature profiles",
		Platform: "argo",
	})

	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "argo", res.Results[0].ID)
	assert.Equal(t, 1, res.Total)
}

func TestSearchSemanticChannelHonorsTimeFilter(t *testing.T) {
	store := catalog.NewMemoryStore()
	shared := aimock.DeterministicVector("chlorophyll concentration", 16)
	old := time.Date(1995, 1, 1, 0, 0, 0, 0, time.UTC)
	putRecord(store, "recent", "Chlorophyll concentration fields", func(r *catalog.Record) {
		r.Embedding = shared
	})
	putRecord(store, "archived", "Historical chlorophyll concentration fields", func(r *catalog.Record) {
		start := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
		r.TimeStart = &start
		r.TimeEnd = &old
		r.Embedding = shared
	})

	after := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	e := newTestEngine(t, store, aimock.NewEmbedder())
	res, err := e.Search(context.Background(), catalog.Query{
		Q:         "chlorophyll concentration",
		TimeStart: &after,
	})

	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "recent", res.Results[0].ID)
}
