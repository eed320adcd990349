package search

import (
	"sort"

	"github.com/odfp/odfp/internal/catalog"
	"github.com/odfp/odfp/internal/ranking"
)

// Fuse merges the lexical and semantic ranked lists with reciprocal
// rank fusion and returns the top-k record IDs. Fusion is rank-based on
// purpose: text ranks and cosine similarities live on different scales
// and never need calibrating against each other. Ties keep
// first-appearance order (lexical list first), making the result
// deterministic.
func Fuse(lexical []string, semantic []catalog.ScoredID, k int) []string {
	if k <= 0 {
		return nil
	}

	scores := make(map[string]float64, len(lexical)+len(semantic))
	order := make([]string, 0, len(lexical)+len(semantic))

	accrue := func(id string, rank int) {
		if _, seen := scores[id]; !seen {
			order = append(order, id)
		}
		scores[id] += ranking.RRFScore(rank)
	}

	for rank, id := range lexical {
		accrue(id, rank)
	}
	for rank, s := range semantic {
		accrue(s.ID, rank)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	if k < len(order) {
		order = order[:k]
	}
	return order
}
