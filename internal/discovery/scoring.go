// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package discovery

import (
	"strings"
	"time"
)

// Scorer computes relative selection weights for candidates. It is
// stateless aside from the injected clock and random source, and safe
// for concurrent use as long as the RandSource is.
type Scorer struct {
	weights Weights
	decay   DecayConfig
	limits  LimitsConfig
	clock   Clock
}

// NewScorer builds a scorer over an immutable weight regime.
func NewScorer(cfg *Config, clock Clock) *Scorer {
	return &Scorer{
		weights: cfg.Weights,
		decay:   cfg.Decay,
		limits:  cfg.Limits,
		clock:   clock,
	}
}

// DecayMultiplier returns the seen-content penalty for an item last
// seen at lastSeen. The penalty is a step function of elapsed time,
// strongest immediately after viewing and gone after the medium-term
// window. ok is false when the item was never seen.
func (s *Scorer) DecayMultiplier(lastSeen time.Time, ok bool) float64 {
	if !ok {
		return 1.0
	}

	elapsed := s.clock.Now().Sub(lastSeen)
	switch {
	case elapsed < s.decay.RecentlySeen:
		return s.weights.RecentlySeen
	case elapsed < s.decay.ShortTerm:
		return s.weights.ShortTermSeen
	case elapsed < s.decay.MediumTerm:
		return s.weights.MediumTermSeen
	default:
		return 1.0
	}
}

// FreshnessBoost returns the boost for content updated inside the
// freshness window. ok is false when no reference timestamp exists.
func (s *Scorer) FreshnessBoost(ref time.Time, ok bool) float64 {
	if !ok {
		return 1.0
	}
	if s.clock.Now().Sub(ref) < s.decay.FreshContent {
		return s.weights.FreshContent
	}
	return 1.0
}

// TagRelevance returns the boost for overlap between an item's tags and
// the user's preferred tags. The boost scales with the fraction of the
// item's own tags that match, so values lie in (1.0, TagMatch] for any
// non-zero overlap and 1.0 otherwise.
//
// Dividing by the item's tag count (not the user's) means tightly
// tagged items get a larger boost per match. That matches the shipped
// ranking behavior and is preserved deliberately.
func (s *Scorer) TagRelevance(itemTags, preferredTags []string) float64 {
	if len(itemTags) == 0 || len(preferredTags) == 0 {
		return 1.0
	}

	preferred := make(map[string]struct{}, len(preferredTags))
	for _, t := range preferredTags {
		preferred[strings.ToLower(t)] = struct{}{}
	}

	matches := 0
	for _, t := range itemTags {
		if _, ok := preferred[strings.ToLower(t)]; ok {
			matches++
		}
	}

	if matches == 0 {
		return 1.0
	}
	return 1.0 + float64(matches)*(s.weights.TagMatch-1.0)/float64(len(itemTags))
}

// Score computes the selection weight for one candidate against the
// user's signals. The result is strictly positive: every factor is
// positive and the jitter bounds are validated at construction.
func (s *Scorer) Score(item *ContentItem, signals *UserSignals, rng RandSource) float64 {
	score := 1.0

	lastSeen, seen := time.Time{}, false
	if signals != nil {
		lastSeen, seen = signals.SeenContent[item.ID]
	}
	score *= s.DecayMultiplier(lastSeen, seen)

	ref, hasRef := item.LatestMediaAt, !item.LatestMediaAt.IsZero()
	if !hasRef {
		ref, hasRef = item.CreatedAt, !item.CreatedAt.IsZero()
	}
	score *= s.FreshnessBoost(ref, hasRef)

	if signals != nil {
		score *= s.TagRelevance(item.Tags, signals.PreferredTags)
	}

	if item.MediaCount > s.limits.PopularityThreshold {
		score *= s.weights.Popular
	}
	if item.HasNewMedia {
		score *= s.weights.NewMedia
	}

	// Jitter breaks ties and keeps repeated requests from returning
	// identical orderings.
	score *= s.weights.JitterLow + rng.Float64()*(s.weights.JitterHigh-s.weights.JitterLow)

	return score
}

// ScoreAll scores every candidate. Scoring one candidate never inspects
// another, so callers may shard this across goroutines; the engine does
// exactly that for large pools.
func (s *Scorer) ScoreAll(items []ContentItem, signals *UserSignals, rng RandSource) []ScoredItem {
	scored := make([]ScoredItem, len(items))
	for i := range items {
		scored[i] = ScoredItem{Item: items[i], Score: s.Score(&items[i], signals, rng)}
	}
	return scored
}
