package recs

// Item is one scored feed candidate. Tokens is the canonical entity+tag
// set used for diversity similarity.
type Item struct {
	VideoID string
	Score   float64
	Lane    string
	Tokens  map[string]bool
	Source  map[string]any
}

// Rerank applies maximal marginal relevance: greedy selection maximizing
// lambda*score - (1-lambda)*maxSim(selected). Similarity is Jaccard over
// the token sets. Ties go to the lower original index, so the output is
// deterministic for a given input order.
func Rerank(items []Item, lambda float64, limit int) []Item {
	if limit <= 0 || len(items) == 0 {
		return nil
	}
	if limit > len(items) {
		limit = len(items)
	}

	selected := make([]Item, 0, limit)
	picked := make([]bool, len(items))
	// Highest similarity to anything already selected, maintained
	// incrementally as picks happen.
	maxSim := make([]float64, len(items))

	for len(selected) < limit {
		best := -1
		bestVal := 0.0
		for i, it := range items {
			if picked[i] {
				continue
			}
			val := lambda*it.Score - (1-lambda)*maxSim[i]
			if best == -1 || val > bestVal {
				best = i
				bestVal = val
			}
		}
		if best == -1 {
			break
		}
		picked[best] = true
		selected = append(selected, items[best])

		for i := range items {
			if picked[i] {
				continue
			}
			if sim := Jaccard(items[i].Tokens, items[best].Tokens); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}
	return selected
}

// Jaccard over two token sets; empty sets are maximally dissimilar.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for tok := range small {
		if large[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
