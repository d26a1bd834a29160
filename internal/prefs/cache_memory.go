// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package prefs

import (
	"context"
	"sync"
	"time"

	"github.com/kyarahub/discovery/internal/discovery"
)

// MemoryCache implements CacheStore in process memory. Suitable for
// tests and single-node development.
type MemoryCache struct {
	mu       sync.RWMutex
	clock    discovery.Clock
	profiles map[string]*Profile
	lastRun  *RunStats
}

// NewMemoryCache creates an in-memory profile cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		clock:    discovery.SystemClock(),
		profiles: make(map[string]*Profile),
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *MemoryCache) SetClock(clock discovery.Clock) {
	c.clock = clock
}

// Get returns the cached profile or (nil, nil) on a miss.
func (c *MemoryCache) Get(ctx context.Context, userID string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// Put upserts the profile.
func (c *MemoryCache) Put(ctx context.Context, profile *Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *profile
	c.profiles[profile.UserID] = &cp
	return nil
}

// DeleteStale removes profiles not recomputed within the retention
// window.
func (c *MemoryCache) DeleteStale(ctx context.Context, retention time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	threshold := c.clock.Now().Add(-retention)
	count := 0
	for userID, p := range c.profiles {
		if p.ComputedAt.Before(threshold) {
			delete(c.profiles, userID)
			count++
		}
	}
	return count, nil
}

// PutRunStats retains the latest run metadata.
func (c *MemoryCache) PutRunStats(ctx context.Context, stats *RunStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *stats
	c.lastRun = &cp
	return nil
}

// LastRunStats returns the retained run metadata or (nil, nil) when no
// run has completed yet.
func (c *MemoryCache) LastRunStats(ctx context.Context) (*RunStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastRun == nil {
		return nil, nil
	}
	cp := *c.lastRun
	return &cp, nil
}

// All returns every cached profile.
func (c *MemoryCache) All(ctx context.Context) ([]*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}
