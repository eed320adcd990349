package ranking

import (
	"math"
	"testing"
	"time"
)

// TestRRFScore tests the reciprocal rank fusion contribution.
func TestRRFScore(t *testing.T) {
	tests := []struct {
		name     string
		rank     int
		expected float64
	}{
		{
			name:     "top rank",
			rank:     0,
			expected: 1.0 / 61.0,
		},
		{
			name:     "second rank",
			rank:     1,
			expected: 1.0 / 62.0,
		},
		{
			name:     "deep rank",
			rank:     99,
			expected: 1.0 / 160.0,
		},
		{
			name:     "negative rank clamped (edge case)",
			rank:     -5,
			expected: 1.0 / 61.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RRFScore(tt.rank)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestRRFScoreMonotonic verifies that better ranks always contribute more.
func TestRRFScoreMonotonic(t *testing.T) {
	prev := RRFScore(0)
	for rank := 1; rank < 500; rank++ {
		cur := RRFScore(rank)
		if cur >= prev {
			t.Fatalf("RRF score not strictly decreasing at rank %d: %f >= %f", rank, cur, prev)
		}
		prev = cur
	}
}

// TestBaseScore tests the harmonic position prior.
func TestBaseScore(t *testing.T) {
	tests := []struct {
		name     string
		position int
		expected float64
	}{
		{name: "first position", position: 0, expected: 1.0},
		{name: "second position", position: 1, expected: 0.5},
		{name: "tenth position", position: 9, expected: 0.1},
		{name: "negative position clamped", position: -1, expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := BaseScore(tt.position)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestLexicalPseudoScore tests the lexical stand-in for cosine similarity.
func TestLexicalPseudoScore(t *testing.T) {
	tests := []struct {
		name     string
		rank     int
		k        int
		expected float64
	}{
		{name: "top of list", rank: 0, k: 10, expected: 1.0},
		{name: "middle of list", rank: 5, k: 10, expected: 0.5},
		{name: "end of list", rank: 10, k: 10, expected: 0.0},
		{name: "beyond list clamped", rank: 15, k: 10, expected: 0.0},
		{name: "zero k", rank: 0, k: 0, expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LexicalPseudoScore(tt.rank, tt.k)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestRecencyScore tests the temporal coverage recency decay.
func TestRecencyScore(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	ptr := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name     string
		timeEnd  *time.Time
		expected float64
	}{
		{
			name:     "coverage ends now",
			timeEnd:  ptr(now),
			expected: 1.0,
		},
		{
			name:     "coverage ends in the future",
			timeEnd:  ptr(now.Add(30 * 24 * time.Hour)),
			expected: 1.0,
		},
		{
			name:     "coverage ended four years ago",
			timeEnd:  ptr(now.Add(-4 * 365 * 24 * time.Hour)),
			expected: 0.5,
		},
		{
			name:     "coverage ended past the horizon",
			timeEnd:  ptr(now.Add(-10 * 365 * 24 * time.Hour)),
			expected: 0.0,
		},
		{
			name:     "no coverage end",
			timeEnd:  nil,
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RecencyScore(tt.timeEnd, now)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestPublisherTrustScore tests the four-tier publisher reputation scale.
func TestPublisherTrustScore(t *testing.T) {
	tests := []struct {
		name      string
		publisher string
		expected  float64
	}{
		{name: "operational agency", publisher: "NOAA National Centers for Environmental Information", expected: 1.0},
		{name: "operational agency lowercase", publisher: "copernicus marine service", expected: 1.0},
		{name: "research institution", publisher: "Woods Hole Oceanographic Institution", expected: 0.75},
		{name: "university", publisher: "University of Washington", expected: 0.5},
		{name: "unknown publisher", publisher: "Oceanus Data LLC", expected: 0.25},
		{name: "empty publisher", publisher: "", expected: 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PublisherTrustScore(tt.publisher)
			if result != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestPermissiveLicense tests the openness license check.
func TestPermissiveLicense(t *testing.T) {
	tests := []struct {
		name     string
		license  string
		expected bool
	}{
		{name: "creative commons attribution", license: "CC-BY-4.0", expected: true},
		{name: "public domain", license: "Public Domain", expected: true},
		{name: "cc zero", license: "CC0-1.0", expected: true},
		{name: "restrictive", license: "All rights reserved", expected: false},
		{name: "empty", license: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PermissiveLicense(tt.license)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}
