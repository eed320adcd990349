// Package backfill computes and stores embeddings for catalog records
// that do not have one yet. It is run as a batch job, not from the
// query path.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odfp/odfp/internal/ai"
	"github.com/odfp/odfp/internal/catalog"
	"github.com/odfp/odfp/internal/jobs"
	"github.com/odfp/odfp/internal/stats"
)

// DefaultBatchSize is the number of records embedded per round trip to
// the embedding backend.
const DefaultBatchSize = 64

// Store is the storage surface a backfill run needs.
type Store interface {
	MissingEmbeddingIDs(ctx context.Context, limit int) ([]string, error)
	FetchByIDs(ctx context.Context, ids []string) ([]*catalog.Record, error)
	UpdateEmbedding(ctx context.Context, id string, vec []float32) error
}

// Options tunes a Runner. The zero value is usable.
type Options struct {
	// BatchSize caps how many records are embedded per batch.
	// Defaults to DefaultBatchSize when <= 0.
	BatchSize int

	// Metrics receives job-level observations. Nil disables reporting.
	Metrics jobs.Reporter
}

// Runner drives the embedding backfill: select records missing an
// embedding, compose their text, embed in batches, and write the
// vectors back.
type Runner struct {
	store     Store
	embedder  ai.Embedder
	logger    *slog.Logger
	metrics   jobs.Reporter
	batchSize int
}

// NewRunner wires a backfill runner. Store and embedder are required.
func NewRunner(store Store, embedder ai.Embedder, logger *slog.Logger, opts Options) (*Runner, error) {
	if store == nil {
		return nil, errors.New("backfill: store is required")
	}
	if embedder == nil {
		return nil, errors.New("backfill: embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Runner{
		store:     store,
		embedder:  embedder,
		logger:    logger,
		metrics:   opts.Metrics,
		batchSize: batch,
	}, nil
}

// Run processes records until none remain or ctx is cancelled. Records
// with no embeddable text are skipped and not revisited within the run.
// A failing embedding backend aborts the run; per-record store failures
// are counted and skipped so one bad record cannot wedge the job.
func (r *Runner) Run(ctx context.Context) (*stats.BackfillStats, error) {
	start := time.Now()
	st := stats.NewBackfillStats()

	err := r.run(ctx, st)

	if r.metrics != nil {
		r.metrics.ObserveJobDuration(jobs.JobTypeEmbeddingBackfill, time.Since(start).Seconds())
		status := jobs.StatusSuccess
		if err != nil {
			status = jobs.StatusFailure
		}
		r.metrics.IncJobsTotal(jobs.JobTypeEmbeddingBackfill, status)
	}
	st.LogSummary(r.logger)
	return st, err
}

func (r *Runner) run(ctx context.Context, st *stats.BackfillStats) error {
	// Skipped records keep a NULL embedding and would be selected again
	// on the next pass, so remember them to guarantee progress.
	seen := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Over-select by the number of already-seen IDs so skipped rows
		// at the head of the ordering cannot starve the rest.
		ids, err := r.store.MissingEmbeddingIDs(ctx, r.batchSize+len(seen))
		if err != nil {
			r.reportError("store_error")
			return fmt.Errorf("select missing embeddings: %w", err)
		}

		fresh := make([]string, 0, r.batchSize)
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			fresh = append(fresh, id)
			if len(fresh) == r.batchSize {
				break
			}
		}
		if len(fresh) == 0 {
			return nil
		}

		records, err := r.store.FetchByIDs(ctx, fresh)
		if err != nil {
			r.reportError("store_error")
			return fmt.Errorf("fetch records: %w", err)
		}

		if err := r.embedBatch(ctx, records, st); err != nil {
			return err
		}
	}
}

func (r *Runner) embedBatch(ctx context.Context, records []*catalog.Record, st *stats.BackfillStats) error {
	embeddable := make([]*catalog.Record, 0, len(records))
	texts := make([]string, 0, len(records))
	for _, rec := range records {
		text := EmbeddingText(rec)
		if text == "" {
			r.logger.Warn("record has no embeddable text, skipping", "id", rec.ID)
			st.RecordSkipped()
			continue
		}
		embeddable = append(embeddable, rec)
		texts = append(texts, text)
	}
	if len(embeddable) == 0 {
		return nil
	}

	vectors, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		r.reportError("embed_error")
		return fmt.Errorf("embed batch of %d: %w", len(texts), err)
	}
	if len(vectors) != len(embeddable) {
		r.reportError("embed_error")
		return fmt.Errorf("embed batch: got %d vectors for %d texts", len(vectors), len(texts))
	}

	for i, rec := range embeddable {
		if err := r.store.UpdateEmbedding(ctx, rec.ID, vectors[i]); err != nil {
			r.logger.Error("failed to store embedding", "id", rec.ID, "error", err)
			r.reportError("store_error")
			st.RecordFailed()
			continue
		}
		st.RecordEmbedded()
	}
	return nil
}

func (r *Runner) reportError(errorType string) {
	if r.metrics != nil {
		r.metrics.IncJobErrors(jobs.JobTypeEmbeddingBackfill, errorType)
	}
}

// EmbeddingText composes the text a record is embedded from: title,
// abstract, variable vocabulary, and publisher, whitespace-joined.
func EmbeddingText(r *catalog.Record) string {
	parts := make([]string, 0, 4+len(r.Variables)*3)
	parts = append(parts, r.Title, r.Abstract)
	for _, v := range r.Variables {
		parts = append(parts, v.Name, v.StandardName, v.LongName)
	}
	parts = append(parts, r.Publisher)

	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
