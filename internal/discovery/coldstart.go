// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package discovery

import (
	"sort"
)

// BuildColdStartPool selects a diversified shortlist for users with no
// personalization signal. Aggregates are sorted by popularity then
// recency, the top 2*limit are shuffled uniformly, and the first limit
// survive. The shuffle trades a little relevance for diversity so every
// cold-start user does not see the identical top item first.
func BuildColdStartPool(aggregates []ItemAggregate, limit int, rng RandSource) []string {
	if len(aggregates) == 0 || limit <= 0 {
		return []string{}
	}

	pool := make([]ItemAggregate, len(aggregates))
	copy(pool, aggregates)
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].MediaCount != pool[j].MediaCount {
			return pool[i].MediaCount > pool[j].MediaCount
		}
		return pool[i].LatestMediaAt.After(pool[j].LatestMediaAt)
	})

	if shortlist := limit * 2; shortlist < len(pool) {
		pool = pool[:shortlist]
	}

	// Fisher-Yates over the shortlist.
	for i := len(pool) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}

	if limit > len(pool) {
		limit = len(pool)
	}

	ids := make([]string, limit)
	for i := 0; i < limit; i++ {
		ids[i] = pool[i].ItemID
	}
	return ids
}
