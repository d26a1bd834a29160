// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package discovery

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

// fixedClock pins Now for deterministic decay and freshness tests.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// fixedRand always returns the same draw, removing jitter from tests
// that assert exact scores.
type fixedRand struct {
	f float64
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) Intn(n int) int   { return 0 }

func seededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test randomness
}

func testScorer(t *testing.T, now time.Time) *Scorer {
	t.Helper()
	return NewScorer(DefaultConfig(), fixedClock{now: now})
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDecayMultiplier(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := testScorer(t, now)

	tests := []struct {
		name     string
		lastSeen time.Time
		seen     bool
		want     float64
	}{
		{"never seen", time.Time{}, false, 1.0},
		{"seen one hour ago", now.Add(-time.Hour), true, 0.1},
		{"seen just under a day ago", now.Add(-24*time.Hour + time.Second), true, 0.1},
		{"seen exactly a day ago", now.Add(-24 * time.Hour), true, 0.5},
		{"seen three days ago", now.Add(-3 * 24 * time.Hour), true, 0.5},
		{"seen two weeks ago", now.Add(-14 * 24 * time.Hour), true, 0.8},
		{"seen thirty days ago", now.Add(-30 * 24 * time.Hour), true, 1.0},
		{"seen a year ago", now.Add(-365 * 24 * time.Hour), true, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := s.DecayMultiplier(tt.lastSeen, tt.seen)
			if !almostEqual(got, tt.want) {
				t.Errorf("DecayMultiplier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFreshnessBoost(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := testScorer(t, now)

	tests := []struct {
		name string
		ref  time.Time
		ok   bool
		want float64
	}{
		{"no reference", time.Time{}, false, 1.0},
		{"updated yesterday", now.Add(-24 * time.Hour), true, 1.5},
		{"updated six days ago", now.Add(-6 * 24 * time.Hour), true, 1.5},
		{"updated exactly a week ago", now.Add(-7 * 24 * time.Hour), true, 1.0},
		{"updated a month ago", now.Add(-30 * 24 * time.Hour), true, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := s.FreshnessBoost(tt.ref, tt.ok)
			if !almostEqual(got, tt.want) {
				t.Errorf("FreshnessBoost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTagRelevance(t *testing.T) {
	t.Parallel()

	s := testScorer(t, time.Now())

	tests := []struct {
		name      string
		itemTags  []string
		preferred []string
		want      float64
	}{
		{"no item tags", nil, []string{"fantasy"}, 1.0},
		{"no preferred tags", []string{"fantasy"}, nil, 1.0},
		{"no overlap", []string{"fantasy"}, []string{"scifi"}, 1.0},
		{"full single-tag match", []string{"fantasy"}, []string{"fantasy"}, 2.0},
		{"half of item tags match", []string{"fantasy", "romance"}, []string{"fantasy"}, 1.5},
		{"all of two tags match", []string{"fantasy", "romance"}, []string{"fantasy", "romance"}, 2.0},
		{"one of four tags match", []string{"a", "b", "c", "d"}, []string{"a"}, 1.25},
		{"case insensitive", []string{"Fantasy"}, []string{"fantasy"}, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := s.TagRelevance(tt.itemTags, tt.preferred)
			if !almostEqual(got, tt.want) {
				t.Errorf("TagRelevance(%v, %v) = %v, want %v", tt.itemTags, tt.preferred, got, tt.want)
			}
		})
	}
}

func TestScoreComposesFactors(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := testScorer(t, now)
	// Midpoint jitter draw: 0.9 + 0.5*(1.1-0.9) = 1.0, neutral.
	rng := fixedRand{f: 0.5}

	item := &ContentItem{
		ID:            "c1",
		Tags:          []string{"fantasy"},
		CreatedAt:     now.Add(-60 * 24 * time.Hour),
		LatestMediaAt: now.Add(-time.Hour),
		MediaCount:    12,
		HasNewMedia:   true,
	}
	signals := &UserSignals{
		SeenContent:   map[string]time.Time{"c1": now.Add(-2 * time.Hour)},
		PreferredTags: []string{"fantasy"},
	}

	// decay 0.1 * fresh 1.5 * tag 2.0 * popular 1.2 * new media 1.3
	want := 0.1 * 1.5 * 2.0 * 1.2 * 1.3
	got := s.Score(item, signals, rng)
	if !almostEqual(got, want) {
		t.Errorf("Score() = %v, want %v", got, want)
	}
}

func TestScoreFreshnessFallsBackToCreatedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := testScorer(t, now)
	rng := fixedRand{f: 0.5}

	item := &ContentItem{ID: "c1", CreatedAt: now.Add(-time.Hour)}
	got := s.Score(item, &UserSignals{}, rng)
	if !almostEqual(got, 1.5) {
		t.Errorf("Score() = %v, want freshness boost from CreatedAt (1.5)", got)
	}
}

func TestScoreNilSignals(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := testScorer(t, now)
	rng := fixedRand{f: 0.5}

	item := &ContentItem{ID: "c1", CreatedAt: now.Add(-60 * 24 * time.Hour)}
	got := s.Score(item, nil, rng)
	if !almostEqual(got, 1.0) {
		t.Errorf("Score() with nil signals = %v, want 1.0", got)
	}
}

func TestScoreAlwaysPositive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := testScorer(t, now)
	rng := seededRand(42)

	signals := &UserSignals{
		SeenContent:   map[string]time.Time{"c1": now.Add(-time.Minute)},
		PreferredTags: []string{"x"},
	}
	for i := 0; i < 1000; i++ {
		item := &ContentItem{ID: "c1", Tags: []string{"y"}, CreatedAt: now.Add(-100 * 24 * time.Hour)}
		if got := s.Score(item, signals, rng); got <= 0 {
			t.Fatalf("Score() = %v, want strictly positive", got)
		}
	}
}

func TestScoreJitterBounds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := testScorer(t, now)
	rng := seededRand(7)

	// A neutral item scores exactly the jitter factor.
	item := &ContentItem{ID: "c1", CreatedAt: now.Add(-60 * 24 * time.Hour)}
	for i := 0; i < 1000; i++ {
		got := s.Score(item, &UserSignals{}, rng)
		if got < 0.9 || got >= 1.1 {
			t.Fatalf("Score() = %v, want within jitter bounds [0.9, 1.1)", got)
		}
	}
}
