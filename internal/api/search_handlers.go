package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/odfp/odfp/internal/catalog"
	"github.com/odfp/odfp/internal/middleware"
	"github.com/odfp/odfp/internal/search"
	"github.com/odfp/odfp/internal/validate"
)

// Searcher is the engine contract the handlers depend on.
type Searcher interface {
	Search(ctx context.Context, q catalog.Query) (*catalog.Result, error)
	Facets(ctx context.Context) (*catalog.Facets, error)
}

// SearchHandlers holds dependencies for search HTTP handlers.
type SearchHandlers struct {
	engine Searcher
	logger *slog.Logger
}

// NewSearchHandlers creates a new SearchHandlers instance.
func NewSearchHandlers(engine Searcher, logger *slog.Logger) *SearchHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandlers{engine: engine, logger: logger}
}

// timeLayouts are the accepted formats for time_start/time_end.
var timeLayouts = []string{time.RFC3339, "2006-01-02"}

// Search handles GET /v1/search - the hybrid dataset search endpoint.
// Output is JSON by default; `output=csv` (or Accept: text/csv) renders
// the same result set as CSV.
func (h *SearchHandlers) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	qText, err := validate.SearchQuery(params.Get("q"))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation,
			fmt.Sprintf("q must be at most %d characters", validate.MaxQueryLength))
		return
	}

	q := catalog.Query{
		Q:         qText,
		Variables: parseArrayParam(params.Get("variables")),
		Sort:      catalog.SortMode(params.Get("sort")),
	}
	for param, dest := range map[string]*string{
		"format":    &q.Format,
		"publisher": &q.Publisher,
		"platform":  &q.Platform,
		"license":   &q.License,
	} {
		v, err := validate.FilterValue(params.Get(param))
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation,
				fmt.Sprintf("%s must be at most %d characters", param, validate.MaxFilterLength))
			return
		}
		*dest = v
	}
	if svc := strings.TrimSpace(params.Get("service")); svc != "" {
		q.Service = string(catalog.ParseService(svc))
	}

	bbox, err := parseBbox(params.Get("bbox"))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidBBox)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidBBox, err.Error())
		return
	}
	q.BBox = bbox

	polygon, err := parsePolygon(params.Get("polygon"))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidPolygon)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidPolygon, err.Error())
		return
	}
	q.Polygon = polygon

	if ts := params.Get("time_start"); ts != "" {
		parsed, err := parseTime(ts)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTimeRange)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTimeRange, "time_start must be an RFC 3339 timestamp or YYYY-MM-DD date")
			return
		}
		q.TimeStart = &parsed
	}
	if te := params.Get("time_end"); te != "" {
		parsed, err := parseTime(te)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTimeRange)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTimeRange, "time_end must be an RFC 3339 timestamp or YYYY-MM-DD date")
			return
		}
		q.TimeEnd = &parsed
	}

	if page := params.Get("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "page must be a positive integer")
			return
		}
		q.Page = n
	}
	if size := params.Get("size"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "size must be a positive integer")
			return
		}
		q.Size = n
	}

	result, err := h.engine.Search(r.Context(), q)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nothing useful to write.
			return
		}
		h.logger.ErrorContext(r.Context(), "search failed", "error", err, "q", q.Q)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to execute search")
		return
	}

	if wantsCSV(r) {
		h.writeCSV(w, r, result)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode search response", "error", err)
	}
}

// Facets handles GET /v1/facets - catalog-wide aggregate counts.
func (h *SearchHandlers) Facets(w http.ResponseWriter, r *http.Request) {
	facets, err := h.engine.Facets(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "facet aggregation failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to aggregate facets")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(facets); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode facets response", "error", err)
	}
}

func wantsCSV(r *http.Request) bool {
	out := strings.ToLower(r.URL.Query().Get("output"))
	if out == "" {
		out = strings.ToLower(r.URL.Query().Get("out"))
	}
	if out == "csv" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

// csvHeader is the column set of the CSV rendering.
var csvHeader = []string{"id", "title", "publisher", "start", "end", "variables", "formats", "services", "doi", "bbox"}

// writeCSV renders the result page as CSV. It is an alternate
// serialization of the same ranked set, not a separate retrieval path.
func (h *SearchHandlers) writeCSV(w http.ResponseWriter, r *http.Request, result *catalog.Result) {
	filename := fmt.Sprintf("odfp-search-%s.csv", time.Now().UTC().Format("2006-01-02-15-04"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for _, item := range result.Results {
		formats := make([]string, 0, len(item.Distributions))
		services := make([]string, 0, len(item.Distributions))
		for _, d := range item.Distributions {
			if d.Format != "" {
				formats = append(formats, d.Format)
			}
			services = append(services, string(d.Service))
		}
		var start, end string
		if item.Time.Start != nil {
			start = item.Time.Start.UTC().Format(time.RFC3339)
		}
		if item.Time.End != nil {
			end = item.Time.End.UTC().Format(time.RFC3339)
		}
		var bbox string
		if item.Spatial.BBox != nil {
			b := *item.Spatial.BBox
			bbox = fmt.Sprintf("%g,%g,%g,%g", b[0], b[1], b[2], b[3])
		}
		_ = cw.Write([]string{
			item.ID,
			item.Title,
			item.Publisher,
			start,
			end,
			strings.Join(item.Variables, "; "),
			strings.Join(formats, "; "),
			strings.Join(services, "; "),
			item.DOI,
			bbox,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write csv response", "error", err)
	}
}

// parseArrayParam accepts either a JSON array or a comma-separated
// list.
func parseArrayParam(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			return parsed
		}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseBbox parses "minLon,minLat,maxLon,maxLat" with coordinate range
// and ordering validation.
func parseBbox(value string) (*catalog.BoundingBox, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be in format: minLon,minLat,maxLon,maxLat")
	}
	nums := make([]float64, 4)
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox coordinate %d is not a number", i+1)
		}
		nums[i] = n
	}
	box := catalog.BoundingBox{MinX: nums[0], MinY: nums[1], MaxX: nums[2], MaxY: nums[3]}
	if box.MinX < -180 || box.MinX > 180 || box.MaxX < -180 || box.MaxX > 180 {
		return nil, fmt.Errorf("longitude must be between -180 and 180")
	}
	if box.MinY < -90 || box.MinY > 90 || box.MaxY < -90 || box.MaxY > 90 {
		return nil, fmt.Errorf("latitude must be between -90 and 90")
	}
	if !box.Valid() {
		return nil, fmt.Errorf("bbox min coordinates must not exceed max coordinates")
	}
	return &box, nil
}

// parsePolygon accepts either a JSON array of [lon, lat] pairs or a
// "lon lat; lon lat; ..." list. At least four vertices are required.
func parsePolygon(value string) ([][2]float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if strings.HasPrefix(value, "[") {
		var parsed [][2]float64
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			return nil, fmt.Errorf("polygon must be a JSON array of [lon, lat] pairs")
		}
		if len(parsed) < 4 {
			return nil, fmt.Errorf("polygon requires at least 4 vertices")
		}
		return parsed, nil
	}

	pairs := strings.Split(value, ";")
	coords := make([][2]float64, 0, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		fields := strings.Fields(pair)
		if len(fields) != 2 {
			return nil, fmt.Errorf("polygon vertices must be 'lon lat' pairs separated by semicolons")
		}
		lon, err1 := strconv.ParseFloat(fields[0], 64)
		lat, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("polygon coordinates must be numbers")
		}
		coords = append(coords, [2]float64{lon, lat})
	}
	if len(coords) < 4 {
		return nil, fmt.Errorf("polygon requires at least 4 vertices")
	}
	return coords, nil
}

func parseTime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ensure the concrete engine satisfies the handler contract.
var _ Searcher = (*search.Engine)(nil)
