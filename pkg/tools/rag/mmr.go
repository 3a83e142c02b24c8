package rag

import (
	"math"
	"sort"
)

// cosine returns the cosine similarity of a and b, 0 for mismatched or
// zero vectors.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK returns the indices of the k candidates most similar to query,
// most similar first. Ties keep candidate order.
func topK(query []float32, candidates [][]float32, k int) []int {
	idx := make([]int, len(candidates))
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		idx[i] = i
		scores[i] = cosine(query, c)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

// mmr picks k of candidates by maximal marginal relevance: each step takes
// the candidate maximising lambda*sim(query) - (1-lambda)*max sim(selected).
// The first pick is always the most similar candidate. Returned indices
// refer to candidates, in pick order.
func mmr(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = cosine(query, c)
	}

	selected := make([]int, 0, k)
	picked := make([]bool, len(candidates))
	// redundancy[i] is the highest similarity of i to any selected candidate
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}

	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for i := range candidates {
			if picked[i] {
				continue
			}
			score := relevance[i]
			if len(selected) > 0 {
				score = lambda*relevance[i] - (1-lambda)*redundancy[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		selected = append(selected, best)
		picked[best] = true
		for i := range candidates {
			if !picked[i] {
				if s := cosine(candidates[best], candidates[i]); s > redundancy[i] {
					redundancy[i] = s
				}
			}
		}
	}
	return selected
}
