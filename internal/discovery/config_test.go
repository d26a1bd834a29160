// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package discovery

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero recently-seen penalty", func(c *Config) { c.Weights.RecentlySeen = 0 }},
		{"negative short-term penalty", func(c *Config) { c.Weights.ShortTermSeen = -0.5 }},
		{"tag match below one", func(c *Config) { c.Weights.TagMatch = 0.5 }},
		{"inverted jitter bounds", func(c *Config) { c.Weights.JitterLow, c.Weights.JitterHigh = 1.1, 0.9 }},
		{"zero jitter low", func(c *Config) { c.Weights.JitterLow = 0 }},
		{"non-increasing decay windows", func(c *Config) { c.Decay.ShortTerm = c.Decay.RecentlySeen }},
		{"zero freshness window", func(c *Config) { c.Decay.FreshContent = 0 }},
		{"zero default limit", func(c *Config) { c.Limits.DefaultLimit = 0 }},
		{"max below default", func(c *Config) { c.Limits.MaxLimit = 5 }},
		{"zero pool multiplier", func(c *Config) { c.Limits.PoolMultiplier = 0 }},
		{"zero state timeout", func(c *Config) { c.Limits.StateTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestConfigCloneIsIndependent(t *testing.T) {
	t.Parallel()

	orig := DefaultConfig()
	clone := orig.Clone()
	clone.Weights.TagMatch = 9
	clone.Limits.StateTimeout = time.Second

	if orig.Weights.TagMatch == 9 || orig.Limits.StateTimeout == time.Second {
		t.Error("mutating clone affected original")
	}
}
