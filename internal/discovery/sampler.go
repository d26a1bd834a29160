// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package discovery

import (
	"sort"
)

// SelectTopItems picks count items from the scored pool using weighted
// random sampling without replacement.
//
// The pool is first sorted by score descending and truncated to
// count*poolMultiplier, bounding sampling cost and keeping only the
// most relevant oversample. Within that shortlist each draw picks an
// item with probability proportional to its remaining weight, so high
// scorers dominate without the result collapsing to a fixed top-K.
//
// The returned sequence has length min(count, len(scored)). Empty
// input or count <= 0 yields an empty result, never an error.
func SelectTopItems(scored []ScoredItem, count, poolMultiplier int, rng RandSource) []ContentItem {
	if len(scored) == 0 || count <= 0 {
		return []ContentItem{}
	}

	pool := make([]ScoredItem, len(scored))
	copy(pool, scored)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Score > pool[j].Score
	})

	poolSize := count * poolMultiplier
	if poolSize > len(pool) || poolSize < 0 { // < 0 guards count*multiplier overflow
		poolSize = len(pool)
	}
	remaining := pool[:poolSize]

	selected := make([]ContentItem, 0, min(count, len(remaining)))
	for len(selected) < count && len(remaining) > 0 {
		idx := drawWeighted(remaining, rng)
		selected = append(selected, remaining[idx].Item)

		// Remove without preserving order; draw order is what matters.
		remaining[idx] = remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]
	}

	return selected
}

// drawWeighted returns the index of one weighted draw over the pool.
// The walk subtracts each score from a uniform draw over the total
// weight; if rounding leaves the draw positive after the last element,
// the last element wins. That tie-break is arbitrary but consistent.
func drawWeighted(pool []ScoredItem, rng RandSource) int {
	total := 0.0
	for i := range pool {
		total += pool[i].Score
	}

	r := rng.Float64() * total
	for i := range pool {
		r -= pool[i].Score
		if r <= 0 {
			return i
		}
	}
	return len(pool) - 1
}
