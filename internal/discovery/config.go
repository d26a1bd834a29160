// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package discovery

import (
	"fmt"
	"time"
)

// Config contains all tunables for the discovery engine. It is treated
// as an immutable value once the engine is constructed; tests can run
// several weight regimes side by side by building separate engines.
type Config struct {
	// Weights defines the score multipliers applied by the scorer.
	Weights Weights `json:"weights" koanf:"weights"`

	// Decay defines the elapsed-time buckets for seen-content decay.
	Decay DecayConfig `json:"decay" koanf:"decay"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits" koanf:"limits"`

	// Seed is the random seed for deterministic behavior in tests.
	// If zero, the engine seeds from the wall clock.
	Seed int64 `json:"seed" koanf:"seed"`
}

// Weights defines the score multipliers applied by the scorer.
// All multipliers compose multiplicatively, so 1.0 is neutral.
type Weights struct {
	// TagMatch is the maximum boost for a full tag match. The boost for
	// a partial match scales with the fraction of the item's own tags
	// that match, so effective values lie in (1.0, TagMatch].
	TagMatch float64 `json:"tag_match" koanf:"tag_match"`

	// FreshContent is the boost for items updated inside the freshness
	// window.
	FreshContent float64 `json:"fresh_content" koanf:"fresh_content"`

	// Popular is the boost for items whose gallery exceeds
	// Limits.PopularityThreshold.
	Popular float64 `json:"popular" koanf:"popular"`

	// NewMedia is the boost for items flagged as having new media.
	NewMedia float64 `json:"new_media" koanf:"new_media"`

	// RecentlySeen is the penalty for items seen within the last day.
	RecentlySeen float64 `json:"recently_seen" koanf:"recently_seen"`

	// ShortTermSeen is the penalty for items seen within the last week.
	ShortTermSeen float64 `json:"short_term_seen" koanf:"short_term_seen"`

	// MediumTermSeen is the penalty for items seen within the last month.
	MediumTermSeen float64 `json:"medium_term_seen" koanf:"medium_term_seen"`

	// JitterLow and JitterHigh bound the uniform random factor applied
	// to every score so rankings never become fully deterministic.
	JitterLow  float64 `json:"jitter_low" koanf:"jitter_low"`
	JitterHigh float64 `json:"jitter_high" koanf:"jitter_high"`
}

// DecayConfig defines the elapsed-time buckets for decay and freshness.
type DecayConfig struct {
	// RecentlySeen is the window for the heaviest seen penalty.
	RecentlySeen time.Duration `json:"recently_seen" koanf:"recently_seen"`

	// ShortTerm is the window for the medium seen penalty.
	ShortTerm time.Duration `json:"short_term" koanf:"short_term"`

	// MediumTerm is the window for the light seen penalty; beyond it a
	// previously seen item scores as if never seen.
	MediumTerm time.Duration `json:"medium_term" koanf:"medium_term"`

	// FreshContent is the window inside which content counts as fresh.
	FreshContent time.Duration `json:"fresh_content" koanf:"fresh_content"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultLimit is the result count when the request leaves it zero.
	DefaultLimit int `json:"default_limit" koanf:"default_limit"`

	// MaxLimit caps the result count a single request may ask for.
	MaxLimit int `json:"max_limit" koanf:"max_limit"`

	// PoolMultiplier sizes the sampling pool as limit * PoolMultiplier.
	// Oversampling the top scorers keeps selection relevant while the
	// weighted draw keeps it varied.
	PoolMultiplier int `json:"pool_multiplier" koanf:"pool_multiplier"`

	// PopularityThreshold is the gallery size above which the Popular
	// boost applies.
	PopularityThreshold int `json:"popularity_threshold" koanf:"popularity_threshold"`

	// StateTimeout bounds the interaction-state read on the request
	// path; on expiry the request degrades to cold start.
	StateTimeout time.Duration `json:"state_timeout" koanf:"state_timeout"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Weights: Weights{
			TagMatch:       2.0,
			FreshContent:   1.5,
			Popular:        1.2,
			NewMedia:       1.3,
			RecentlySeen:   0.1,
			ShortTermSeen:  0.5,
			MediumTermSeen: 0.8,
			JitterLow:      0.9,
			JitterHigh:     1.1,
		},
		Decay: DecayConfig{
			RecentlySeen: 24 * time.Hour,
			ShortTerm:    7 * 24 * time.Hour,
			MediumTerm:   30 * 24 * time.Hour,
			FreshContent: 7 * 24 * time.Hour,
		},
		Limits: LimitsConfig{
			DefaultLimit:        20,
			MaxLimit:            100,
			PoolMultiplier:      3,
			PopularityThreshold: 10,
			StateTimeout:        250 * time.Millisecond,
		},
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Weights.RecentlySeen <= 0 || c.Weights.ShortTermSeen <= 0 || c.Weights.MediumTermSeen <= 0 {
		return fmt.Errorf("seen penalties must be strictly positive, got %.2f/%.2f/%.2f",
			c.Weights.RecentlySeen, c.Weights.ShortTermSeen, c.Weights.MediumTermSeen)
	}
	if c.Weights.TagMatch < 1.0 {
		return fmt.Errorf("tag_match must be >= 1.0, got %.2f", c.Weights.TagMatch)
	}
	if c.Weights.JitterLow <= 0 || c.Weights.JitterHigh < c.Weights.JitterLow {
		return fmt.Errorf("jitter bounds invalid: [%.2f, %.2f]", c.Weights.JitterLow, c.Weights.JitterHigh)
	}
	if c.Decay.RecentlySeen <= 0 || c.Decay.ShortTerm <= c.Decay.RecentlySeen || c.Decay.MediumTerm <= c.Decay.ShortTerm {
		return fmt.Errorf("decay windows must be strictly increasing")
	}
	if c.Decay.FreshContent <= 0 {
		return fmt.Errorf("fresh_content window must be positive")
	}
	if c.Limits.DefaultLimit <= 0 {
		return fmt.Errorf("default_limit must be positive, got %d", c.Limits.DefaultLimit)
	}
	if c.Limits.MaxLimit < c.Limits.DefaultLimit {
		return fmt.Errorf("max_limit %d below default_limit %d", c.Limits.MaxLimit, c.Limits.DefaultLimit)
	}
	if c.Limits.PoolMultiplier < 1 {
		return fmt.Errorf("pool_multiplier must be >= 1, got %d", c.Limits.PoolMultiplier)
	}
	if c.Limits.StateTimeout <= 0 {
		return fmt.Errorf("state_timeout must be positive")
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
