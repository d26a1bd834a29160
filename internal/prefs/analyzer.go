// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package prefs

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kyarahub/discovery/internal/discovery"
)

// Analyzer derives a single user's Profile from their full engagement
// history. It is stateless and safe for concurrent use.
type Analyzer struct {
	source SignalSource
	clock  discovery.Clock
}

// NewAnalyzer creates a profile analyzer over the given signal source.
func NewAnalyzer(source SignalSource) *Analyzer {
	return &Analyzer{source: source, clock: discovery.SystemClock()}
}

// SetClock replaces the time source. Intended for tests.
func (a *Analyzer) SetClock(clock discovery.Clock) {
	a.clock = clock
}

// accumulator carries the running totals while signals stream in.
type accumulator struct {
	genders     map[string]float64
	tags        map[string]float64
	nsfwWeight  float64
	totalWeight float64
}

func (acc *accumulator) add(e Engagement, weight float64) {
	acc.genders[NormalizeGender(e.Gender)] += weight
	acc.totalWeight += weight
	if e.NSFW {
		acc.nsfwWeight += weight
	}
	for _, tag := range e.Tags {
		acc.tags[strings.ToLower(tag)] += weight
	}
}

// chatWeight maps a thread's message count onto the capped log curve.
// A thread with no recorded count still weighs as one message.
func chatWeight(messageCount int) float64 {
	if messageCount < 1 {
		messageCount = 1
	}
	return math.Min(math.Log2(float64(messageCount)+1), MaxChatWeight)
}

// AnalyzeUser computes the user's profile from likes, message threads,
// and favorites. A user with no signal returns (nil, nil): not an
// error, just nothing worth caching.
func (a *Analyzer) AnalyzeUser(ctx context.Context, userID string) (*Profile, error) {
	acc := &accumulator{
		genders: map[string]float64{
			GenderFemale:    0,
			GenderMale:      0,
			GenderNonbinary: 0,
			GenderUnknown:   0,
		},
		tags: make(map[string]float64),
	}

	likes, err := a.source.Likes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch likes for %s: %w", userID, err)
	}
	for _, e := range likes {
		acc.add(e, LikeWeight)
	}

	threads, err := a.source.MessageThreads(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch message threads for %s: %w", userID, err)
	}
	for _, e := range threads {
		acc.add(e, chatWeight(e.MessageCount))
	}

	favorites, err := a.source.Favorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch favorites for %s: %w", userID, err)
	}
	for _, e := range favorites {
		acc.add(e, FavoriteWeight)
	}

	if acc.totalWeight <= 0 {
		return nil, nil
	}

	return a.finalize(userID, acc), nil
}

func (a *Analyzer) finalize(userID string, acc *accumulator) *Profile {
	dist := make(map[string]float64, len(acc.genders))
	var genderTotal float64
	for _, w := range acc.genders {
		genderTotal += w
	}
	for g, w := range acc.genders {
		if genderTotal > 0 {
			dist[g] = w / genderTotal
		} else {
			dist[g] = 0
		}
	}

	type tagWeight struct {
		tag    string
		weight float64
	}
	ranked := make([]tagWeight, 0, len(acc.tags))
	for tag, w := range acc.tags {
		ranked = append(ranked, tagWeight{tag, w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].tag < ranked[j].tag
	})
	if len(ranked) > MaxProfileTags {
		ranked = ranked[:MaxProfileTags]
	}
	tags := make([]string, len(ranked))
	for i, tw := range ranked {
		tags[i] = tw.tag
	}

	ratio := acc.nsfwWeight / acc.totalWeight
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	return &Profile{
		UserID:             userID,
		GenderDistribution: dist,
		PreferredTags:      tags,
		NSFWAffinity:       ratio,
		TotalWeight:        acc.totalWeight,
		ComputedAt:         a.clock.Now(),
	}
}
