package catalog

import "time"

// TemporalExtent is the start/end coverage exposed on results. Either
// bound may be absent.
type TemporalExtent struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// SpatialExtent wraps the optional bounding box exposed on results.
type SpatialExtent struct {
	BBox *[4]float64 `json:"bbox,omitempty"`
}

// ResultItem is the externally visible shape of one ranked record.
type ResultItem struct {
	ID            string         `json:"id"`
	DOI           string         `json:"doi,omitempty"`
	License       string         `json:"license,omitempty"`
	SourceSystem  string         `json:"sourceSystem,omitempty"`
	Title         string         `json:"title"`
	Publisher     string         `json:"publisher,omitempty"`
	Abstract      string         `json:"abstract,omitempty"`
	Time          TemporalExtent `json:"time"`
	Spatial       SpatialExtent  `json:"spatial"`
	Variables     []string       `json:"variables"`
	Distributions []Distribution `json:"distributions"`
}

// Result is the search response envelope. Total counts fused candidates
// before pagination; a hydration gap may make it slightly overstate the
// number of materializable records, which is accepted.
type Result struct {
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	Size    int          `json:"size"`
	Results []ResultItem `json:"results"`
}

// ItemFromRecord projects a full record onto the result shape.
func ItemFromRecord(r *Record) ResultItem {
	item := ResultItem{
		ID:           r.ID,
		DOI:          r.DOI,
		License:      r.License,
		SourceSystem: r.SourceSystem,
		Title:        r.Title,
		Publisher:    r.Publisher,
		Abstract:     r.Abstract,
		Time:         TemporalExtent{Start: r.TimeStart, End: r.TimeEnd},
		Variables:    make([]string, 0, len(r.Variables)),
	}
	if r.BBox != nil {
		box := r.BBox.Array()
		item.Spatial.BBox = &box
	}
	for _, v := range r.Variables {
		item.Variables = append(item.Variables, v.Name)
	}
	item.Distributions = make([]Distribution, len(r.Distributions))
	copy(item.Distributions, r.Distributions)
	return item
}

// Facets aggregates catalog-wide counts for the stats endpoint.
type Facets struct {
	Publishers map[string]int `json:"publishers"`
	Formats    map[string]int `json:"formats"`
	Services   map[string]int `json:"services"`
}
