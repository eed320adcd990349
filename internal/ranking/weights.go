package ranking

import (
	"strings"
	"time"
)

// RRFConstant dampens the contribution of lower-ranked candidates in
// reciprocal rank fusion. 60 is the standard choice from the RRF
// literature.
const RRFConstant = 60

// recencyHorizon is how far back temporal coverage may end before the
// recency score bottoms out.
const recencyHorizon = 8 * 365 * 24 * time.Hour

// RRFScore converts a zero-based rank from one retrieval channel into
// its reciprocal rank fusion contribution.
func RRFScore(rank int) float64 {
	if rank < 0 {
		rank = 0
	}
	return 1.0 / float64(RRFConstant+rank+1)
}

// BaseScore is the position prior a candidate carries into re-ranking:
// 1.0 for the fused top hit, decaying harmonically below it.
func BaseScore(position int) float64 {
	if position < 0 {
		position = 0
	}
	return 1.0 / float64(1+position)
}

// LexicalPseudoScore maps a zero-based lexical rank onto a linear
// [0, 1] relevance scale. It stands in for cosine similarity when the
// embedding backend is unavailable so fusion still has two channels to
// combine.
func LexicalPseudoScore(rank, k int) float64 {
	if k <= 0 {
		return 0
	}
	score := 1.0 - float64(rank)/float64(k)
	if score < 0 {
		return 0
	}
	return score
}

// RecencyScore rates how current a dataset's temporal coverage is.
// Coverage ending now scores 1.0, decaying linearly to 0.0 at the
// recency horizon. Datasets without a coverage end get 0.
func RecencyScore(timeEnd *time.Time, now time.Time) float64 {
	if timeEnd == nil {
		return 0
	}
	age := now.Sub(*timeEnd)
	if age <= 0 {
		return 1.0
	}
	if age >= recencyHorizon {
		return 0
	}
	return 1.0 - float64(age)/float64(recencyHorizon)
}

// Publisher trust tiers. Operational agencies that run validated
// pipelines rank above research institutions, which rank above
// everything else with a recognizable affiliation.
var (
	tierOnePublishers = []string{
		"noaa", "nasa", "copernicus", "cmems", "esa", "ncei", "usgs", "eumetsat",
	}
	tierTwoPublishers = []string{
		"ifremer", "jamstec", "awi", "woods hole", "whoi", "scripps", "bodc",
		"emodnet", "pmel", "csiro", "nioz",
	}
)

// PublisherTrustScore rates a publisher on a four-tier [0, 1] scale.
func PublisherTrustScore(publisher string) float64 {
	p := strings.ToLower(publisher)
	if p == "" {
		return 0.25
	}
	for _, known := range tierOnePublishers {
		if strings.Contains(p, known) {
			return 1.0
		}
	}
	for _, known := range tierTwoPublishers {
		if strings.Contains(p, known) {
			return 0.75
		}
	}
	if strings.Contains(p, "university") || strings.Contains(p, "institute") ||
		strings.Contains(p, "laboratory") || strings.Contains(p, "observatory") {
		return 0.5
	}
	return 0.25
}

// permissiveLicenses are the identifiers treated as open for the
// openness bonus.
var permissiveLicenses = []string{
	"cc-by", "cc0", "cc-by-4.0", "cc0-1.0", "public domain", "public-domain",
	"mit", "odbl", "odc-by",
}

// PermissiveLicense reports whether the license string names an open
// reuse license.
func PermissiveLicense(license string) bool {
	l := strings.ToLower(strings.TrimSpace(license))
	if l == "" {
		return false
	}
	for _, known := range permissiveLicenses {
		if strings.Contains(l, known) {
			return true
		}
	}
	return false
}
