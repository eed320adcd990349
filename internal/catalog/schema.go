package catalog

import (
	"context"
	"database/sql"
	"log/slog"
)

// searchSchemaStatements prepares everything the lexical and semantic
// tiers rely on: the base tables, PostGIS geometry derived from the
// stored bbox, trigram indexes for fuzzy matching, the dataset_fts
// materialized view joining record, variable, and distribution text,
// and the pgvector extension for embeddings. Statements are idempotent;
// each failure is logged and skipped so a database without an optional
// extension still serves the tiers it can support.
//
// to_tsvector with an explicit config is only STABLE, which a generated
// column cannot use, hence the IMMUTABLE wrapper.
var searchSchemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE OR REPLACE FUNCTION to_tsvector_immutable(text) RETURNS tsvector
	 AS $$ SELECT to_tsvector('english', $1) $$ LANGUAGE sql IMMUTABLE`,

	`CREATE TABLE IF NOT EXISTS dataset (
	   id text PRIMARY KEY,
	   title text NOT NULL,
	   abstract text,
	   publisher text,
	   license text,
	   doi text,
	   source_system text,
	   time_start timestamptz,
	   time_end timestamptz,
	   bbox_min_x double precision,
	   bbox_min_y double precision,
	   bbox_max_x double precision,
	   bbox_max_y double precision,
	   platforms text[],
	   search_tsvector tsvector GENERATED ALWAYS AS (
	     to_tsvector_immutable(coalesce(title, '') || ' ' || coalesce(abstract, ''))
	   ) STORED,
	   updated_at timestamptz NOT NULL DEFAULT now()
	 )`,
	`CREATE TABLE IF NOT EXISTS variable (
	   id bigserial PRIMARY KEY,
	   dataset_id text NOT NULL REFERENCES dataset(id) ON DELETE CASCADE,
	   name text NOT NULL,
	   standard_name text,
	   units text,
	   long_name text
	 )`,
	`CREATE TABLE IF NOT EXISTS distribution (
	   id bigserial PRIMARY KEY,
	   dataset_id text NOT NULL REFERENCES dataset(id) ON DELETE CASCADE,
	   url text NOT NULL,
	   format text NOT NULL,
	   access_service text NOT NULL
	 )`,
	`CREATE INDEX IF NOT EXISTS variable_dataset_idx ON variable (dataset_id)`,
	`CREATE INDEX IF NOT EXISTS distribution_dataset_idx ON distribution (dataset_id)`,
	`CREATE INDEX IF NOT EXISTS dataset_tsv_gin ON dataset USING gin (search_tsvector)`,

	`ALTER TABLE dataset ADD COLUMN IF NOT EXISTS embedding vector(1536)`,
	`ALTER TABLE dataset ADD COLUMN IF NOT EXISTS geom geometry(Polygon, 4326)`,
	`UPDATE dataset SET geom = ST_MakeEnvelope(bbox_min_x, bbox_min_y, bbox_max_x, bbox_max_y, 4326)
	 WHERE geom IS NULL AND bbox_min_x IS NOT NULL AND bbox_min_y IS NOT NULL
	   AND bbox_max_x IS NOT NULL AND bbox_max_y IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS dataset_geom_gist ON dataset USING gist (geom)`,

	`CREATE INDEX IF NOT EXISTS dataset_title_trgm ON dataset USING gin (title gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS dataset_abstract_trgm ON dataset USING gin (abstract gin_trgm_ops)`,

	`CREATE MATERIALIZED VIEW IF NOT EXISTS dataset_fts AS
	   SELECT d.id,
	     to_tsvector('english',
	       coalesce(d.title, '') || ' ' || coalesce(d.abstract, '') || ' ' || coalesce(d.publisher, '') || ' ' ||
	       coalesce(d.doi, '') || ' ' || coalesce(d.license, '') || ' ' || coalesce(d.source_system, '') || ' ' ||
	       coalesce(string_agg(DISTINCT v.name || ' ' || coalesce(v.standard_name, '') || ' ' || coalesce(v.long_name, ''), ' '), '') || ' ' ||
	       coalesce(string_agg(DISTINCT (dist.format || ' ' || dist.access_service), ' '), '')
	     ) AS tsv
	   FROM dataset d
	   LEFT JOIN variable v ON v.dataset_id = d.id
	   LEFT JOIN distribution dist ON dist.dataset_id = d.id
	   GROUP BY d.id, d.title, d.abstract, d.publisher, d.doi, d.license, d.source_system`,
	`CREATE INDEX IF NOT EXISTS dataset_fts_gin ON dataset_fts USING gin (tsv)`,
}

// EnsureSearchSchema applies the base table and search index DDL. Individual statement
// failures are logged and skipped; the function only errors when the
// database itself is unreachable.
func EnsureSearchSchema(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	for _, stmt := range searchSchemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Warn("search schema statement skipped", "error", err)
		}
	}
	if _, err := db.ExecContext(ctx, `REFRESH MATERIALIZED VIEW dataset_fts`); err != nil {
		logger.Warn("dataset_fts refresh skipped", "error", err)
	}
	return nil
}
