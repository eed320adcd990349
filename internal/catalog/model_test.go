package catalog

import (
	"testing"
	"time"
)

func TestParseService(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  AccessService
	}{
		{"http", "HTTP", ServiceHTTP},
		{"opendap", "OPeNDAP", ServiceOPeNDAP},
		{"thredds", "THREDDS", ServiceTHREDDS},
		{"erddap", "ERDDAP", ServiceERDDAP},
		{"ftp", "FTP", ServiceFTP},
		{"s3", "S3", ServiceS3},
		{"unknown coerces to HTTP", "gopher", ServiceHTTP},
		{"empty coerces to HTTP", "", ServiceHTTP},
		{"wrong case coerces to HTTP", "erddap", ServiceHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseService(tt.input); got != tt.want {
				t.Errorf("ParseService(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBoundingBox_Valid(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"normal box", BoundingBox{MinX: -125, MinY: 32, MaxX: -117, MaxY: 42}, true},
		{"degenerate point", BoundingBox{MinX: 0, MinY: 0, MaxX: 0, MaxY: 0}, true},
		{"min x above max x", BoundingBox{MinX: 10, MinY: 0, MaxX: -10, MaxY: 5}, false},
		{"min y above max y", BoundingBox{MinX: 0, MinY: 20, MaxX: 10, MaxY: 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundingBox_Intersects(t *testing.T) {
	base := BoundingBox{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10}

	tests := []struct {
		name  string
		other BoundingBox
		want  bool
	}{
		{"fully inside", BoundingBox{MinX: -5, MinY: -5, MaxX: 5, MaxY: 5}, true},
		{"fully containing", BoundingBox{MinX: -20, MinY: -20, MaxX: 20, MaxY: 20}, true},
		{"partial overlap", BoundingBox{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}, true},
		{"edges touching counts", BoundingBox{MinX: 10, MinY: -10, MaxX: 20, MaxY: 10}, true},
		{"disjoint east", BoundingBox{MinX: 11, MinY: -10, MaxX: 20, MaxY: 10}, false},
		{"disjoint north", BoundingBox{MinX: -10, MinY: 11, MaxX: 10, MaxY: 20}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Intersects(tt.other); got != tt.want {
				t.Errorf("Intersects() = %v, want %v", got, tt.want)
			}
			// Intersection is symmetric.
			if got := tt.other.Intersects(base); got != tt.want {
				t.Errorf("reverse Intersects() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundingBox_Array(t *testing.T) {
	box := BoundingBox{MinX: -125, MinY: 32, MaxX: -117, MaxY: 42}
	want := [4]float64{-125, 32, -117, 42}
	if got := box.Array(); got != want {
		t.Errorf("Array() = %v, want %v", got, want)
	}
}

func TestRecord_HasPlatform(t *testing.T) {
	r := &Record{Platforms: []string{"Argo", "satellite"}}

	if !r.HasPlatform("Argo") {
		t.Error("expected exact platform match")
	}
	if !r.HasPlatform("SATELLITE") {
		t.Error("expected case-insensitive platform match")
	}
	if r.HasPlatform("glider") {
		t.Error("unexpected match for absent platform")
	}
	if (&Record{}).HasPlatform("Argo") {
		t.Error("record without platforms should never match")
	}
}

func TestQuery_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		wantPage int
		wantSize int
		wantSort SortMode
	}{
		{"zero value gets defaults", Query{}, 1, DefaultPageSize, SortRelevance},
		{"negative page clamps to 1", Query{Page: -3, Size: 10}, 1, 10, SortRelevance},
		{"oversized page size clamps", Query{Page: 2, Size: 500}, 2, MaxPageSize, SortRelevance},
		{"recency preserved", Query{Page: 1, Size: 20, Sort: SortRecency}, 1, 20, SortRecency},
		{"unknown sort falls back to relevance", Query{Page: 1, Size: 20, Sort: SortMode("popularity")}, 1, 20, SortRelevance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			q.Normalize()
			if q.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", q.Page, tt.wantPage)
			}
			if q.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", q.Size, tt.wantSize)
			}
			if q.Sort != tt.wantSort {
				t.Errorf("Sort = %q, want %q", q.Sort, tt.wantSort)
			}
		})
	}
}

func TestQuery_EffectiveBBox(t *testing.T) {
	explicit := &BoundingBox{MinX: -5, MinY: -5, MaxX: 5, MaxY: 5}

	t.Run("explicit bbox wins", func(t *testing.T) {
		q := Query{BBox: explicit, Polygon: [][2]float64{{-130, 30}, {-115, 30}, {-115, 45}, {-130, 30}}}
		if got := q.EffectiveBBox(); got != explicit {
			t.Errorf("EffectiveBBox() = %v, want explicit box", got)
		}
	})

	t.Run("polygon reduces to its bounding box", func(t *testing.T) {
		q := Query{Polygon: [][2]float64{{-130, 30}, {-115, 30}, {-115, 45}, {-130, 45}, {-130, 30}}}
		got := q.EffectiveBBox()
		if got == nil {
			t.Fatal("EffectiveBBox() = nil, want polygon envelope")
		}
		want := BoundingBox{MinX: -130, MinY: 30, MaxX: -115, MaxY: 45}
		if *got != want {
			t.Errorf("EffectiveBBox() = %+v, want %+v", *got, want)
		}
	})

	t.Run("short polygon is ignored", func(t *testing.T) {
		q := Query{Polygon: [][2]float64{{0, 0}, {1, 1}, {0, 0}}}
		if got := q.EffectiveBBox(); got != nil {
			t.Errorf("EffectiveBBox() = %v, want nil for a degenerate polygon", got)
		}
	})

	t.Run("no spatial input", func(t *testing.T) {
		q := Query{}
		if got := q.EffectiveBBox(); got != nil {
			t.Errorf("EffectiveBBox() = %v, want nil", got)
		}
		if q.HasSpatial() {
			t.Error("HasSpatial() = true, want false")
		}
	})
}

func TestItemFromRecord(t *testing.T) {
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &Record{
		ID:        "noaa-sst-1",
		Title:     "Sea Surface Temperature",
		Publisher: "NOAA",
		DOI:       "10.1000/example",
		TimeStart: &start,
		BBox:      &BoundingBox{MinX: -125, MinY: 32, MaxX: -117, MaxY: 42},
		Variables: []Variable{
			{Name: "sst", StandardName: "sea_surface_temperature"},
			{Name: "anom"},
		},
		Distributions: []Distribution{
			{URL: "https://example.org/erddap", Format: "NetCDF", Service: ServiceERDDAP},
		},
	}

	item := ItemFromRecord(r)

	if item.ID != "noaa-sst-1" || item.Title != "Sea Surface Temperature" {
		t.Errorf("unexpected identity fields: %+v", item)
	}
	if item.Time.Start == nil || !item.Time.Start.Equal(start) {
		t.Errorf("Time.Start = %v, want %v", item.Time.Start, start)
	}
	if item.Time.End != nil {
		t.Errorf("Time.End = %v, want nil", item.Time.End)
	}
	if item.Spatial.BBox == nil || *item.Spatial.BBox != [4]float64{-125, 32, -117, 42} {
		t.Errorf("Spatial.BBox = %v, want [-125 32 -117 42]", item.Spatial.BBox)
	}
	if len(item.Variables) != 2 || item.Variables[0] != "sst" || item.Variables[1] != "anom" {
		t.Errorf("Variables = %v, want variable names only", item.Variables)
	}
	if len(item.Distributions) != 1 || item.Distributions[0].Service != ServiceERDDAP {
		t.Errorf("Distributions = %v", item.Distributions)
	}

	// A record without a bbox produces an absent spatial extent.
	bare := ItemFromRecord(&Record{ID: "x", Title: "No Extent"})
	if bare.Spatial.BBox != nil {
		t.Errorf("Spatial.BBox = %v, want nil", bare.Spatial.BBox)
	}
	if bare.Variables == nil {
		t.Error("Variables should be an empty slice, not nil")
	}
}

func TestQuery_Matches(t *testing.T) {
	start := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	record := &Record{
		ID:        "sst",
		Title:     "Pacific SST",
		Publisher: "NOAA",
		License:   "CC-BY-4.0",
		TimeStart: &start,
		TimeEnd:   &end,
		BBox:      &BoundingBox{MinX: -140, MinY: 20, MaxX: -110, MaxY: 50},
		Platforms: []string{"Argo"},
		Distributions: []Distribution{
			{URL: "https://example.org/sst", Format: "NetCDF", Service: ServiceERDDAP},
		},
	}
	bare := &Record{ID: "bare", Title: "No metadata"}

	windowBefore := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	windowAfter := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		query  Query
		record *Record
		want   bool
	}{
		{"no filters", Query{}, record, true},
		{"bbox intersects", Query{BBox: &BoundingBox{MinX: -130, MinY: 30, MaxX: -115, MaxY: 45}}, record, true},
		{"bbox disjoint", Query{BBox: &BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}}, record, false},
		{"spatial filter excludes record without bbox", Query{BBox: &BoundingBox{MinX: -130, MinY: 30, MaxX: -115, MaxY: 45}}, bare, false},
		{"polygon envelope intersects", Query{Polygon: [][2]float64{{-130, 30}, {-115, 30}, {-115, 45}, {-130, 45}}}, record, true},
		{"time window overlaps", Query{TimeStart: &windowBefore}, record, true},
		{"record ends before window", Query{TimeStart: &windowAfter}, record, false},
		{"record starts after window", Query{TimeEnd: &windowBefore}, record, false},
		{"open-ended record passes time filter", Query{TimeStart: &windowAfter}, bare, true},
		{"publisher match", Query{Publisher: "NOAA"}, record, true},
		{"publisher mismatch", Query{Publisher: "Ifremer"}, record, false},
		{"license match", Query{License: "CC-BY-4.0"}, record, true},
		{"license mismatch", Query{License: "CC0"}, record, false},
		{"format is case-insensitive", Query{Format: "netcdf"}, record, true},
		{"format mismatch", Query{Format: "CSV"}, record, false},
		{"service match", Query{Service: "ERDDAP"}, record, true},
		{"service mismatch", Query{Service: "FTP"}, record, false},
		{"platform is case-insensitive", Query{Platform: "argo"}, record, true},
		{"platform mismatch", Query{Platform: "glider"}, record, false},
		{"nil record", Query{}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(tt.record); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
