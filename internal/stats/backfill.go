// Package stats provides utilities for tracking backfill run statistics.
package stats

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// BackfillStats tracks cumulative statistics for an embedding backfill
// run. All operations are thread-safe using atomic counters.
type BackfillStats struct {
	embedded int64 // Records that received a fresh embedding
	skipped  int64 // Records skipped (no text to embed)
	failed   int64 // Records whose embedding update failed
}

// NewBackfillStats creates a new BackfillStats instance.
func NewBackfillStats() *BackfillStats {
	return &BackfillStats{}
}

// RecordEmbedded increments the embedded counter.
func (s *BackfillStats) RecordEmbedded() {
	atomic.AddInt64(&s.embedded, 1)
}

// RecordSkipped increments the skipped counter.
func (s *BackfillStats) RecordSkipped() {
	atomic.AddInt64(&s.skipped, 1)
}

// RecordFailed increments the failed counter.
func (s *BackfillStats) RecordFailed() {
	atomic.AddInt64(&s.failed, 1)
}

// Embedded returns the total number of embedded records.
func (s *BackfillStats) Embedded() int64 {
	return atomic.LoadInt64(&s.embedded)
}

// Skipped returns the total number of skipped records.
func (s *BackfillStats) Skipped() int64 {
	return atomic.LoadInt64(&s.skipped)
}

// Failed returns the total number of failed records.
func (s *BackfillStats) Failed() int64 {
	return atomic.LoadInt64(&s.failed)
}

// Total returns the total number of records the run touched.
func (s *BackfillStats) Total() int64 {
	return s.Embedded() + s.Skipped() + s.Failed()
}

// Reset resets all counters to zero.
func (s *BackfillStats) Reset() {
	atomic.StoreInt64(&s.embedded, 0)
	atomic.StoreInt64(&s.skipped, 0)
	atomic.StoreInt64(&s.failed, 0)
}

// String returns a human-readable summary of the statistics.
func (s *BackfillStats) String() string {
	return fmt.Sprintf("embedded=%d skipped=%d failed=%d total=%d",
		s.Embedded(), s.Skipped(), s.Failed(), s.Total())
}

// LogSummary logs a summary of backfill statistics at INFO level.
// Useful for periodic reporting during long runs.
func (s *BackfillStats) LogSummary(logger *slog.Logger) {
	logger.Info("backfill statistics",
		"embedded", s.Embedded(),
		"skipped", s.Skipped(),
		"failed", s.Failed(),
		"total", s.Total(),
	)
}
