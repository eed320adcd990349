package backfill

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aimock "github.com/odfp/odfp/internal/ai/mock"
	"github.com/odfp/odfp/internal/catalog"
	"github.com/odfp/odfp/internal/jobs"
)

// fakeStore implements Store over an ordered record list, recording
// every embedding write.
type fakeStore struct {
	mu       sync.Mutex
	order    []string
	records  map[string]*catalog.Record
	written  map[string][]float32
	writeErr map[string]error

	missingErr error
	fetchErr   error
}

func newFakeStore(records ...*catalog.Record) *fakeStore {
	s := &fakeStore{
		records:  make(map[string]*catalog.Record),
		written:  make(map[string][]float32),
		writeErr: make(map[string]error),
	}
	for _, r := range records {
		s.order = append(s.order, r.ID)
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) MissingEmbeddingIDs(ctx context.Context, limit int) ([]string, error) {
	if s.missingErr != nil {
		return nil, s.missingErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, id := range s.order {
		if s.records[id].Embedding == nil && s.written[id] == nil {
			ids = append(ids, id)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (s *fakeStore) FetchByIDs(ctx context.Context, ids []string) ([]*catalog.Record, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*catalog.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateEmbedding(ctx context.Context, id string, vec []float32) error {
	if err := s.writeErr[id]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written[id] = vec
	return nil
}

// fakeReporter counts reported observations.
type fakeReporter struct {
	totals    map[string]int
	durations int
	errors    map[string]int
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{totals: make(map[string]int), errors: make(map[string]int)}
}

func (f *fakeReporter) IncJobsTotal(jobType, status string)               { f.totals[status]++ }
func (f *fakeReporter) ObserveJobDuration(jobType string, seconds float64) { f.durations++ }
func (f *fakeReporter) IncJobErrors(jobType, errorType string)            { f.errors[errorType]++ }

func record(id, title string) *catalog.Record {
	return &catalog.Record{ID: id, Title: title, Abstract: "abstract for " + id}
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil, aimock.NewEmbedder(), nil, Options{})
	assert.Error(t, err)

	_, err = NewRunner(newFakeStore(), nil, nil, Options{})
	assert.Error(t, err)

	r, err := NewRunner(newFakeStore(), aimock.NewEmbedder(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, r.batchSize)
}

func TestRunner_Run_EmbedsAllMissing(t *testing.T) {
	store := newFakeStore(
		record("a", "Sea Surface Temperature"),
		record("b", "Salinity Profiles"),
		record("c", "Chlorophyll Concentration"),
	)
	embedder := aimock.NewEmbedder()
	reporter := newFakeReporter()

	r, err := NewRunner(store, embedder, nil, Options{BatchSize: 2, Metrics: reporter})
	require.NoError(t, err)

	st, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), st.Embedded())
	assert.Equal(t, int64(0), st.Skipped())
	assert.Equal(t, int64(0), st.Failed())
	assert.Len(t, store.written, 3)
	for id, vec := range store.written {
		assert.NotEmpty(t, vec, "record %s got an empty vector", id)
	}
	assert.Equal(t, 1, reporter.totals[jobs.StatusSuccess])
	assert.Equal(t, 1, reporter.durations)
}

func TestRunner_Run_AlreadyEmbeddedAreLeftAlone(t *testing.T) {
	done := record("done", "Already Embedded")
	done.Embedding = []float32{1, 2, 3}
	store := newFakeStore(done, record("todo", "Needs Embedding"))

	r, err := NewRunner(store, aimock.NewEmbedder(), nil, Options{})
	require.NoError(t, err)

	st, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), st.Embedded())
	assert.Contains(t, store.written, "todo")
	assert.NotContains(t, store.written, "done")
}

func TestRunner_Run_SkipsRecordsWithoutText(t *testing.T) {
	empty := &catalog.Record{ID: "empty"}
	store := newFakeStore(empty, record("full", "Ocean Winds"))

	r, err := NewRunner(store, aimock.NewEmbedder(), nil, Options{BatchSize: 1})
	require.NoError(t, err)

	st, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), st.Embedded())
	assert.Equal(t, int64(1), st.Skipped())
	assert.NotContains(t, store.written, "empty")
}

func TestRunner_Run_StoreWriteFailureContinues(t *testing.T) {
	store := newFakeStore(record("bad", "Bad Record"), record("good", "Good Record"))
	store.writeErr["bad"] = errors.New("row gone")
	reporter := newFakeReporter()

	r, err := NewRunner(store, aimock.NewEmbedder(), nil, Options{Metrics: reporter})
	require.NoError(t, err)

	st, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), st.Embedded())
	assert.Equal(t, int64(1), st.Failed())
	assert.Equal(t, 1, reporter.errors["store_error"])
	assert.Equal(t, 1, reporter.totals[jobs.StatusSuccess])
}

func TestRunner_Run_EmbedderFailureAborts(t *testing.T) {
	store := newFakeStore(record("a", "First"), record("b", "Second"))
	embedder := aimock.NewEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("backend unavailable")
	}
	reporter := newFakeReporter()

	r, err := NewRunner(store, embedder, nil, Options{Metrics: reporter})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, reporter.errors["embed_error"])
	assert.Equal(t, 1, reporter.totals[jobs.StatusFailure])
	assert.Empty(t, store.written)
}

func TestRunner_Run_VectorCountMismatchAborts(t *testing.T) {
	store := newFakeStore(record("a", "First"), record("b", "Second"))
	embedder := aimock.NewEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}

	r, err := NewRunner(store, embedder, nil, Options{})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vectors")
}

func TestRunner_Run_ContextCancellation(t *testing.T) {
	store := newFakeStore(record("a", "First"))
	r, err := NewRunner(store, aimock.NewEmbedder(), nil, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_Run_SelectFailure(t *testing.T) {
	store := newFakeStore(record("a", "First"))
	store.missingErr = errors.New("connection refused")

	r, err := NewRunner(store, aimock.NewEmbedder(), nil, Options{})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
}

func TestEmbeddingText(t *testing.T) {
	r := &catalog.Record{
		Title:     "Sea Surface Temperature",
		Abstract:  "Daily analysis",
		Publisher: "NOAA",
		Variables: []catalog.Variable{
			{Name: "sst", StandardName: "sea_surface_temperature"},
		},
	}

	got := EmbeddingText(r)
	assert.Equal(t, "Sea Surface Temperature Daily analysis sst sea_surface_temperature NOAA", got)

	assert.Equal(t, "", EmbeddingText(&catalog.Record{}))
	assert.Equal(t, "Only Title", EmbeddingText(&catalog.Record{Title: "  Only Title  "}))
}
