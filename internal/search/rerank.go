package search

import (
	"sort"
	"strings"
	"time"

	"github.com/odfp/odfp/internal/catalog"
	"github.com/odfp/odfp/internal/ranking"
)

// Per-component bonus scales. Each component contributes a bounded
// additive adjustment on top of the harmonic fusion prior, scaled by
// the calibrated multiplier for that component. The scales are chosen
// so no single component can move a record past two fusion positions
// near the top of the list.
const (
	serviceGriddedBonus = 0.10
	serviceCatalogBonus = 0.07
	serviceBulkBonus    = 0.05
	serviceHTTPBonus    = 0.02

	variableExactBonus   = 0.12
	variableClusterBonus = 0.08
	variablePartialBonus = 0.04
	variableBonusCap     = 0.15

	recencyBonusScale = 0.10
	trustBonusScale   = 0.08

	doiBonus     = 0.04
	licenseBonus = 0.04

	phraseMatchBonus = 0.10
	wordOverlapScale = 0.05
	completenessEach = 0.02
)

// Reranker re-scores fused candidates with auditable quality signals.
type Reranker struct {
	weights *ranking.Weights
	now     func() time.Time
}

// NewReranker builds a re-ranker with the given calibration. Nil
// weights mean the neutral defaults.
func NewReranker(weights *ranking.Weights) *Reranker {
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	return &Reranker{weights: weights, now: time.Now}
}

// Rerank orders hydrated candidates by their total score: the harmonic
// position prior from fusion order plus the additive quality bonuses.
// The sort is stable, so exact ties keep fusion order.
func (rr *Reranker) Rerank(records []*catalog.Record, rawQuery string, tokens []string) []*catalog.Record {
	if len(records) < 2 {
		return records
	}
	now := rr.now()
	queryLower := strings.ToLower(strings.TrimSpace(rawQuery))

	scores := make(map[string]float64, len(records))
	for i, r := range records {
		scores[r.ID] = rr.score(r, i, queryLower, tokens, now)
	}

	out := make([]*catalog.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i].ID] > scores[out[j].ID]
	})
	return out
}

// score applies the adjustment components in their fixed order.
func (rr *Reranker) score(r *catalog.Record, position int, queryLower string, tokens []string, now time.Time) float64 {
	w := rr.weights
	score := ranking.BaseScore(position)

	score += w.ServiceQuality * serviceQualityBonus(r.Distributions)
	score += w.VariableRelevance * variableBonus(r.Variables, tokens)
	score += w.Recency * recencyBonusScale * ranking.RecencyScore(r.TimeEnd, now)
	score += w.PublisherTrust * trustBonusScale * ranking.PublisherTrustScore(r.Publisher)
	score += w.Openness * opennessBonus(r)
	score += w.TextMatch * textMatchBonus(r, queryLower)
	score += w.Completeness * completenessBonus(r)

	return score
}

// serviceQualityBonus rewards richer access protocols: gridded and
// remote-access services beat catalog services, which beat bulk file
// and object transfer, which beat plain HTTP. The best distribution
// counts.
func serviceQualityBonus(distributions []catalog.Distribution) float64 {
	best := 0.0
	for _, d := range distributions {
		var b float64
		switch d.Service {
		case catalog.ServiceERDDAP, catalog.ServiceOPeNDAP:
			b = serviceGriddedBonus
		case catalog.ServiceTHREDDS:
			b = serviceCatalogBonus
		case catalog.ServiceS3, catalog.ServiceFTP:
			b = serviceBulkBonus
		default:
			b = serviceHTTPBonus
		}
		if b > best {
			best = b
		}
	}
	return best
}

// variableBonus grades token matches: exact beats semantic-cluster
// beats partial, with the total capped so dense variable lists cannot
// dominate the prior.
func variableBonus(variables []catalog.Variable, tokens []string) float64 {
	if len(variables) == 0 || len(tokens) == 0 {
		return 0
	}
	total := 0.0
	for _, t := range tokens {
		best := 0.0
		for _, v := range variables {
			fields := []string{
				strings.ToLower(v.Name),
				strings.ToLower(v.StandardName),
				strings.ToLower(v.LongName),
			}
			for _, field := range fields {
				var b float64
				switch {
				case field == t:
					b = variableExactBonus
				case field != "" && clusterBonus(t, field) > 0:
					b = variableClusterBonus
				case field != "" && strings.Contains(field, t):
					b = variablePartialBonus
				}
				if b > best {
					best = b
				}
			}
		}
		total += best
	}
	if total > variableBonusCap {
		total = variableBonusCap
	}
	return total
}

// opennessBonus rewards citability and permissive reuse.
func opennessBonus(r *catalog.Record) float64 {
	b := 0.0
	if r.DOI != "" {
		b += doiBonus
	}
	if ranking.PermissiveLicense(r.License) {
		b += licenseBonus
	}
	return b
}

// textMatchBonus rewards direct query presence in title or abstract.
// A phrase match outranks any word-overlap ratio.
func textMatchBonus(r *catalog.Record, queryLower string) float64 {
	if queryLower == "" {
		return 0
	}
	title := strings.ToLower(r.Title)
	abstract := strings.ToLower(r.Abstract)

	if strings.Contains(title, queryLower) || strings.Contains(abstract, queryLower) {
		return phraseMatchBonus
	}

	words := strings.Fields(queryLower)
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if strings.Contains(title, w) || strings.Contains(abstract, w) {
			hits++
		}
	}
	return wordOverlapScale * float64(hits) / float64(len(words))
}

// completenessBonus rewards well-described records: spatial extent,
// temporal extent, a substantial variable list, and redundant access.
func completenessBonus(r *catalog.Record) float64 {
	b := 0.0
	if r.BBox != nil {
		b += completenessEach
	}
	if r.TimeStart != nil || r.TimeEnd != nil {
		b += completenessEach
	}
	if len(r.Variables) > 5 {
		b += completenessEach
	}
	if len(r.Distributions) > 1 {
		b += completenessEach
	}
	return b
}
