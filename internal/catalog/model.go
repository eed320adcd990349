// Package catalog defines the dataset catalog model and the storage
// contracts the search engine retrieves against.
package catalog

import (
	"strings"
	"time"
)

// AccessService identifies how a distribution is served.
type AccessService string

// Supported access services. Unknown values are coerced to ServiceHTTP.
const (
	ServiceHTTP    AccessService = "HTTP"
	ServiceOPeNDAP AccessService = "OPeNDAP"
	ServiceTHREDDS AccessService = "THREDDS"
	ServiceERDDAP  AccessService = "ERDDAP"
	ServiceFTP     AccessService = "FTP"
	ServiceS3      AccessService = "S3"
)

// validServices lists every recognized access service.
var validServices = map[AccessService]bool{
	ServiceHTTP:    true,
	ServiceOPeNDAP: true,
	ServiceTHREDDS: true,
	ServiceERDDAP:  true,
	ServiceFTP:     true,
	ServiceS3:      true,
}

// ParseService maps a raw service string to a known AccessService.
// Unrecognized values fall back to ServiceHTTP so downstream consumers
// always see a member of the enumeration.
func ParseService(s string) AccessService {
	svc := AccessService(s)
	if validServices[svc] {
		return svc
	}
	return ServiceHTTP
}

// Variable describes one measured quantity within a dataset. A variable
// has no identity of its own; it is replaced wholesale whenever its
// owning record is reingested.
type Variable struct {
	Name         string `json:"name"`
	StandardName string `json:"standard_name,omitempty"`
	Units        string `json:"units,omitempty"`
	LongName     string `json:"long_name,omitempty"`
}

// Distribution describes one access endpoint for a dataset.
type Distribution struct {
	URL     string        `json:"url"`
	Format  string        `json:"format"`
	Service AccessService `json:"service"`
}

// BoundingBox is an axis-aligned spatial extent in lon/lat degrees.
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Valid reports whether the box is well-formed. Boxes crossing the
// antimeridian are not representable and report invalid.
func (b BoundingBox) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Intersects reports whether two boxes overlap (edges touching counts).
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return !(b.MaxX < o.MinX || o.MaxX < b.MinX || b.MaxY < o.MinY || o.MaxY < b.MinY)
}

// Array returns the box as [minX, minY, maxX, maxY].
func (b BoundingBox) Array() [4]float64 {
	return [4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}

// Record is one catalog entry describing a dataset. All fields except ID
// and Title are optional. The bbox fields are jointly present or jointly
// absent, which BBox being a pointer encodes directly. A nil Embedding
// means semantic retrieval skips the record.
type Record struct {
	ID            string
	Title         string
	Abstract      string
	Publisher     string
	License       string
	DOI           string
	SourceSystem  string
	TimeStart     *time.Time
	TimeEnd       *time.Time
	BBox          *BoundingBox
	Platforms     []string
	Variables     []Variable
	Distributions []Distribution
	Embedding     []float32
	UpdatedAt     time.Time
}

// HasPlatform reports whether the record carries the given platform tag
// (case-insensitive).
func (r *Record) HasPlatform(platform string) bool {
	for _, p := range r.Platforms {
		if strings.EqualFold(p, platform) {
			return true
		}
	}
	return false
}

// HasFormat reports whether any distribution serves the given format
// (case-insensitive).
func (r *Record) HasFormat(format string) bool {
	for _, d := range r.Distributions {
		if strings.EqualFold(d.Format, format) {
			return true
		}
	}
	return false
}

// HasService reports whether any distribution uses the given access
// service.
func (r *Record) HasService(service string) bool {
	for _, d := range r.Distributions {
		if string(d.Service) == service {
			return true
		}
	}
	return false
}

// SortMode selects the final ordering of search results.
type SortMode string

const (
	SortRelevance SortMode = "relevance"
	SortRecency   SortMode = "recency"
)

// Pagination bounds enforced on every query.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Query is the caller-supplied search request. It is constructed per
// request and never persisted.
type Query struct {
	Q         string
	BBox      *BoundingBox
	Polygon   [][2]float64
	TimeStart *time.Time
	TimeEnd   *time.Time
	Variables []string
	Format    string
	Publisher string
	Platform  string
	Service   string
	License   string
	Page      int
	Size      int
	Sort      SortMode
}

// Normalize clamps pagination to valid bounds and defaults the sort mode.
func (q *Query) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Size < 1 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	if q.Sort != SortRecency {
		q.Sort = SortRelevance
	}
}

// EffectiveBBox returns the spatial filter to apply: the explicit bbox if
// set, otherwise the bounding box of the polygon. Reducing a polygon to
// its bbox over-selects near polygon corners; the simplification is kept
// deliberately so all three lexical tiers share one spatial predicate.
func (q *Query) EffectiveBBox() *BoundingBox {
	if q.BBox != nil {
		return q.BBox
	}
	if len(q.Polygon) >= 4 {
		box := BoundingBox{
			MinX: q.Polygon[0][0], MaxX: q.Polygon[0][0],
			MinY: q.Polygon[0][1], MaxY: q.Polygon[0][1],
		}
		for _, p := range q.Polygon[1:] {
			if p[0] < box.MinX {
				box.MinX = p[0]
			}
			if p[0] > box.MaxX {
				box.MaxX = p[0]
			}
			if p[1] < box.MinY {
				box.MinY = p[1]
			}
			if p[1] > box.MaxY {
				box.MaxY = p[1]
			}
		}
		return &box
	}
	return nil
}

// HasSpatial reports whether the query carries any spatial constraint.
func (q *Query) HasSpatial() bool {
	return q.BBox != nil || len(q.Polygon) >= 4
}

// Matches reports whether the record satisfies every hard structured
// filter on the query: spatial intersection, temporal overlap,
// publisher, license, format, service, and platform. Free-text
// relevance is not considered. Retrieval channels that rank without
// the structured predicate re-check their candidates against this
// before admitting them to results.
func (q *Query) Matches(r *Record) bool {
	if r == nil {
		return false
	}
	if box := q.EffectiveBBox(); box != nil {
		// Records without a bounding box fail a spatial filter.
		if r.BBox == nil || !r.BBox.Intersects(*box) {
			return false
		}
	}
	if q.TimeStart != nil {
		// Record must end at or after the window start; a nil end is open.
		if r.TimeEnd != nil && r.TimeEnd.Before(*q.TimeStart) {
			return false
		}
	}
	if q.TimeEnd != nil {
		if r.TimeStart != nil && r.TimeStart.After(*q.TimeEnd) {
			return false
		}
	}
	if q.Publisher != "" && r.Publisher != q.Publisher {
		return false
	}
	if q.License != "" && r.License != q.License {
		return false
	}
	if q.Format != "" && !r.HasFormat(q.Format) {
		return false
	}
	if q.Service != "" && !r.HasService(q.Service) {
		return false
	}
	if q.Platform != "" && !r.HasPlatform(q.Platform) {
		return false
	}
	return true
}

// ScoredID pairs a record identifier with a retrieval score.
type ScoredID struct {
	ID    string
	Score float64
}
