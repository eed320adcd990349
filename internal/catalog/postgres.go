package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/odfp/odfp/internal/tracing"
)

// PostgresStore implements SearchStore on PostgreSQL. The three lexical
// tiers map onto distinct index capabilities: the dataset_fts
// materialized view (tier 1), the base table tsvector plus pg_trgm
// similarity (tier 2), and plain relational predicates (tier 3). Spatial
// filtering uses PostGIS over the geom column derived from the bbox, and
// nearest-neighbor search uses the pgvector distance operator over the
// embedding column.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore. A nil logger falls back to
// slog.Default.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// tierClauses builds the WHERE clauses shared by the lexical tiers.
// alias is the table alias carrying the dataset columns.
func tierClauses(q TierQuery, alias string, args *[]interface{}) []string {
	var clauses []string
	add := func(v interface{}) string {
		*args = append(*args, v)
		return "$" + strconv.Itoa(len(*args))
	}

	if q.BBox != nil {
		b := *q.BBox
		clauses = append(clauses, fmt.Sprintf(
			"%s.geom IS NOT NULL AND ST_Intersects(%s.geom, ST_MakeEnvelope(%s, %s, %s, %s, 4326))",
			alias, alias, add(b.MinX), add(b.MinY), add(b.MaxX), add(b.MaxY)))
	} else if len(q.Polygon) >= 4 {
		points := make([]string, 0, len(q.Polygon))
		for _, p := range q.Polygon {
			points = append(points, fmt.Sprintf("%g %g", p[0], p[1]))
		}
		wkt := "POLYGON((" + strings.Join(points, ", ") + "))"
		clauses = append(clauses, fmt.Sprintf(
			"%s.geom IS NOT NULL AND ST_Intersects(%s.geom, ST_GeomFromText(%s, 4326))",
			alias, alias, add(wkt)))
	}

	if q.Publisher != "" {
		clauses = append(clauses, fmt.Sprintf("%s.publisher = %s", alias, add(q.Publisher)))
	}
	if q.License != "" {
		clauses = append(clauses, fmt.Sprintf("%s.license = %s", alias, add(q.License)))
	}
	if q.TimeStart != nil {
		clauses = append(clauses, fmt.Sprintf("(%s.time_end IS NULL OR %s.time_end >= to_timestamp(%s))",
			alias, alias, add(*q.TimeStart)))
	}
	if q.TimeEnd != nil {
		clauses = append(clauses, fmt.Sprintf("(%s.time_start IS NULL OR %s.time_start <= to_timestamp(%s))",
			alias, alias, add(*q.TimeEnd)))
	}
	if q.Format != "" {
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM distribution dist WHERE dist.dataset_id = %s.id AND dist.format = %s)",
			alias, add(q.Format)))
	}
	if q.Service != "" {
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM distribution dist WHERE dist.dataset_id = %s.id AND dist.access_service = %s)",
			alias, add(q.Service)))
	}
	return clauses
}

func (s *PostgresStore) queryIDs(ctx context.Context, table, query string, args []interface{}) (ids []string, total int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id, &total); err != nil {
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	return ids, total, rows.Err()
}

// SearchFullText runs tier 1 against the dataset_fts materialized view,
// ranked phrase match first, then plain term rank.
func (s *PostgresStore) SearchFullText(ctx context.Context, q TierQuery) ([]string, int, error) {
	var args []interface{}
	clauses := tierClauses(q, "d", &args)

	textParam, phraseParam := "''", "''"
	if q.Text != "" {
		args = append(args, q.Text)
		textParam = "$" + strconv.Itoa(len(args))
		args = append(args, q.Phrase)
		phraseParam = "$" + strconv.Itoa(len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(df.tsv @@ phraseto_tsquery('english', %s) OR df.tsv @@ plainto_tsquery('english', %s))",
			phraseParam, textParam))
	}

	query := "SELECT df.id, count(*) OVER() AS total FROM dataset_fts df JOIN dataset d ON d.id = df.id"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY
		CASE WHEN df.tsv @@ phraseto_tsquery('english', %s)
		     THEN ts_rank_cd(df.tsv, phraseto_tsquery('english', %s)) ELSE 0 END DESC,
		ts_rank_cd(df.tsv, plainto_tsquery('english', %s)) DESC, df.id`,
		phraseParam, phraseParam, textParam)

	args = append(args, q.Limit)
	query += " LIMIT $" + strconv.Itoa(len(args))
	args = append(args, q.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	return s.queryIDs(ctx, "dataset_fts", query, args)
}

// SearchFuzzy runs tier 2 against the base table tsvector plus pg_trgm
// similarity thresholds on title and abstract.
func (s *PostgresStore) SearchFuzzy(ctx context.Context, q TierQuery) ([]string, int, error) {
	var args []interface{}
	clauses := tierClauses(q, "d", &args)

	textParam, phraseParam := "''", "''"
	if q.Text != "" {
		args = append(args, q.Text)
		textParam = "$" + strconv.Itoa(len(args))
		args = append(args, q.Phrase)
		phraseParam = "$" + strconv.Itoa(len(args))
		clauses = append(clauses, fmt.Sprintf(`(
			d.search_tsvector @@ phraseto_tsquery('english', %s) OR
			d.search_tsvector @@ plainto_tsquery('english', %s) OR
			similarity(d.title, %s) > 0.2 OR
			similarity(coalesce(d.abstract, ''), %s) > 0.15
		)`, phraseParam, textParam, textParam, textParam))
	}

	query := "SELECT d.id, count(*) OVER() AS total FROM dataset d"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY
		CASE WHEN d.search_tsvector @@ phraseto_tsquery('english', %s)
		     THEN ts_rank_cd(d.search_tsvector, phraseto_tsquery('english', %s)) ELSE 0 END DESC,
		ts_rank_cd(d.search_tsvector, plainto_tsquery('english', %s)) DESC,
		similarity(d.title, %s) DESC,
		d.updated_at DESC`,
		phraseParam, phraseParam, textParam, textParam)

	args = append(args, q.Limit)
	query += " LIMIT $" + strconv.Itoa(len(args))
	args = append(args, q.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	return s.queryIDs(ctx, "dataset", query, args)
}

// SearchFiltered runs tier 3: structured predicates plus substring text
// matching across the record and its nested variables/distributions,
// ordered by last update.
func (s *PostgresStore) SearchFiltered(ctx context.Context, q TierQuery) ([]string, int, error) {
	var args []interface{}
	clauses := tierClauses(q, "d", &args)

	if q.Text != "" {
		args = append(args, "%"+q.Text+"%")
		like := "$" + strconv.Itoa(len(args))
		clauses = append(clauses, fmt.Sprintf(`(
			d.title ILIKE %[1]s OR coalesce(d.abstract, '') ILIKE %[1]s OR
			coalesce(d.publisher, '') ILIKE %[1]s OR coalesce(d.doi, '') ILIKE %[1]s OR
			coalesce(d.license, '') ILIKE %[1]s OR coalesce(d.source_system, '') ILIKE %[1]s OR
			EXISTS (SELECT 1 FROM variable v WHERE v.dataset_id = d.id AND
				(v.name ILIKE %[1]s OR coalesce(v.long_name, '') ILIKE %[1]s OR coalesce(v.standard_name, '') ILIKE %[1]s)) OR
			EXISTS (SELECT 1 FROM distribution dist WHERE dist.dataset_id = d.id AND
				(dist.format ILIKE %[1]s OR dist.access_service ILIKE %[1]s))
		)`, like))
	}

	query := "SELECT d.id, count(*) OVER() AS total FROM dataset d"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY d.updated_at DESC, d.id"

	args = append(args, q.Limit)
	query += " LIMIT $" + strconv.Itoa(len(args))
	args = append(args, q.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	return s.queryIDs(ctx, "dataset", query, args)
}

// vectorLiteral renders a pgvector literal like [0.1,0.2,...].
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// NearestNeighbors orders records with embeddings by cosine distance,
// scored as 1 - distance.
func (s *PostgresStore) NearestNeighbors(ctx context.Context, vec []float32, k int) (out []ScoredID, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "dataset", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	if k < 1 {
		k = 1
	}
	if k > 1000 {
		k = 1000
	}
	query := `SELECT id, (1 - (embedding <=> $1::vector)) AS score
		FROM dataset
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector ASC
		LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, vectorLiteral(vec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sc ScoredID
		if err := rows.Scan(&sc.ID, &sc.Score); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// FetchByIDs loads records plus nested variables and distributions in
// three batched queries, preserving the input order.
func (s *PostgresStore) FetchByIDs(ctx context.Context, ids []string) (records []*Record, err error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "dataset", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, coalesce(abstract, ''), coalesce(publisher, ''),
		       coalesce(license, ''), coalesce(doi, ''), coalesce(source_system, ''),
		       time_start, time_end,
		       bbox_min_x, bbox_min_y, bbox_max_x, bbox_max_y,
		       coalesce(platforms, '{}'), updated_at,
		       (embedding IS NOT NULL) AS has_embedding
		FROM dataset WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*Record, len(ids))
	for rows.Next() {
		var (
			r            Record
			start, end   sql.NullTime
			minX, minY   sql.NullFloat64
			maxX, maxY   sql.NullFloat64
			platforms    pq.StringArray
			hasEmbedding bool
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Abstract, &r.Publisher, &r.License,
			&r.DOI, &r.SourceSystem, &start, &end,
			&minX, &minY, &maxX, &maxY, &platforms, &r.UpdatedAt, &hasEmbedding); err != nil {
			return nil, err
		}
		if start.Valid {
			t := start.Time
			r.TimeStart = &t
		}
		if end.Valid {
			t := end.Time
			r.TimeEnd = &t
		}
		if minX.Valid && minY.Valid && maxX.Valid && maxY.Valid {
			r.BBox = &BoundingBox{MinX: minX.Float64, MinY: minY.Float64, MaxX: maxX.Float64, MaxY: maxY.Float64}
		}
		r.Platforms = []string(platforms)
		if hasEmbedding {
			// Marker only; the vector itself is never needed engine-side.
			r.Embedding = []float32{}
		}
		byID[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachVariables(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := s.attachDistributions(ctx, ids, byID); err != nil {
		return nil, err
	}

	records = make([]*Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			records = append(records, r)
		}
	}
	return records, nil
}

func (s *PostgresStore) attachVariables(ctx context.Context, ids []string, byID map[string]*Record) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dataset_id, name, coalesce(standard_name, ''), coalesce(units, ''), coalesce(long_name, '')
		FROM variable WHERE dataset_id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			datasetID string
			v         Variable
		)
		if err := rows.Scan(&datasetID, &v.Name, &v.StandardName, &v.Units, &v.LongName); err != nil {
			return err
		}
		if r, ok := byID[datasetID]; ok {
			r.Variables = append(r.Variables, v)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) attachDistributions(ctx context.Context, ids []string, byID map[string]*Record) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dataset_id, url, format, access_service
		FROM distribution WHERE dataset_id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			datasetID string
			d         Distribution
			service   string
		)
		if err := rows.Scan(&datasetID, &d.URL, &d.Format, &service); err != nil {
			return err
		}
		d.Service = ParseService(service)
		if r, ok := byID[datasetID]; ok {
			r.Distributions = append(r.Distributions, d)
		}
	}
	return rows.Err()
}

// FacetStats aggregates publisher, format, and service counts.
func (s *PostgresStore) FacetStats(ctx context.Context) (*Facets, error) {
	f := &Facets{
		Publishers: make(map[string]int),
		Formats:    make(map[string]int),
		Services:   make(map[string]int),
	}

	if err := s.countInto(ctx,
		`SELECT publisher, count(*) FROM dataset WHERE publisher IS NOT NULL AND publisher <> '' GROUP BY publisher`,
		f.Publishers); err != nil {
		return nil, err
	}
	if err := s.countInto(ctx,
		`SELECT format, count(*) FROM distribution WHERE format <> '' GROUP BY format`,
		f.Formats); err != nil {
		return nil, err
	}
	if err := s.countInto(ctx,
		`SELECT access_service, count(*) FROM distribution GROUP BY access_service`,
		f.Services); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *PostgresStore) countInto(ctx context.Context, query string, dest map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dest[key] = n
	}
	return rows.Err()
}

// UpdateEmbedding stores a freshly computed embedding for one record.
// Used by backfill tooling, not by the query path.
func (s *PostgresStore) UpdateEmbedding(ctx context.Context, id string, vec []float32) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dataset SET embedding = $1::vector, updated_at = $2 WHERE id = $3`,
		vectorLiteral(vec), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update embedding for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update embedding for %s: record not found", id)
	}
	return nil
}

// MissingEmbeddingIDs returns up to limit record IDs with no stored
// embedding, oldest first, so repeated backfill passes make progress.
func (s *PostgresStore) MissingEmbeddingIDs(ctx context.Context, limit int) (ids []string, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "dataset", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM dataset WHERE embedding IS NULL ORDER BY updated_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query missing embeddings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan missing embedding id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
