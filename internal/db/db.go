// Package db provides database connection handling for the catalog API.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// Extensions the search tiers depend on. Missing extensions are logged,
// not fatal: the lexical chain degrades tier by tier without them.
const (
	PostGISVersionQuery  = "SELECT PostGIS_Version()"
	TrigramVersionQuery  = "SELECT extversion FROM pg_extension WHERE extname = 'pg_trgm'"
	PgvectorVersionQuery = "SELECT extversion FROM pg_extension WHERE extname = 'vector'"
)

// Open connects to PostgreSQL, verifies the connection, and probes the
// optional extensions so their absence is visible at startup instead of
// at first query.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	probeExtensions(ctx, db, logger)
	return db, nil
}

func probeExtensions(ctx context.Context, db *sql.DB, logger *slog.Logger) {
	probes := []struct {
		name  string
		query string
	}{
		{"postgis", PostGISVersionQuery},
		{"pg_trgm", TrigramVersionQuery},
		{"pgvector", PgvectorVersionQuery},
	}

	for _, p := range probes {
		var version string
		if err := db.QueryRowContext(ctx, p.query).Scan(&version); err != nil {
			logger.WarnContext(ctx, "database extension unavailable",
				"extension", p.name, "error", err)
			continue
		}
		logger.InfoContext(ctx, "database extension available",
			"extension", p.name, "version", version)
	}
}
