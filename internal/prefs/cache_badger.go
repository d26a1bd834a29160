// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package prefs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kyarahub/discovery/internal/discovery"
)

// Key prefix for BadgerDB storage, with a separate key for run
// metadata so profile scans never pick it up.
const (
	profileKeyPrefix = "prefs:"
	runStatsKey      = "prefs_meta:last_run"
)

// BadgerCache implements CacheStore on BadgerDB. Each Put replaces the
// whole profile in one transaction, so a cancelled aggregation run can
// never leave a half-written record.
type BadgerCache struct {
	db     *badger.DB
	logger zerolog.Logger
	clock  discovery.Clock
}

// NewBadgerCache creates a BadgerDB-backed profile cache.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBadgerCache(db *badger.DB, logger zerolog.Logger) *BadgerCache {
	return &BadgerCache{
		db:     db,
		logger: logger.With().Str("component", "prefs-cache").Logger(),
		clock:  discovery.SystemClock(),
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *BadgerCache) SetClock(clock discovery.Clock) {
	c.clock = clock
}

// Get returns the cached profile or (nil, nil) on a miss. An
// undecodable record is treated as a miss.
func (c *BadgerCache) Get(ctx context.Context, userID string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var profile *Profile
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(profileKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return item.Value(func(val []byte) error {
			var p Profile
			if uerr := json.Unmarshal(val, &p); uerr != nil {
				c.logger.Warn().Err(uerr).Str("user_id", userID).Msg("discarding undecodable profile")
				return nil
			}
			profile = &p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Put upserts the profile atomically.
func (c *BadgerCache) Put(ctx context.Context, profile *Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(profileKeyPrefix+profile.UserID), data)
	})
	if err != nil {
		return fmt.Errorf("persist profile for %s: %w", profile.UserID, err)
	}
	return nil
}

// DeleteStale removes profiles not recomputed within the retention
// window.
func (c *BadgerCache) DeleteStale(ctx context.Context, retention time.Duration) (int, error) {
	threshold := c.clock.Now().Add(-retention)

	var stale []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(profileKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key())

			var p Profile
			verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if verr != nil || p.ComputedAt.Before(threshold) {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan profiles: %w", err)
	}

	count := 0
	for _, key := range stale {
		err := c.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(key))
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("stale profile delete failed")
			continue
		}
		count++
	}
	return count, nil
}

// PutRunStats persists the latest run metadata.
func (c *BadgerCache) PutRunStats(ctx context.Context, stats *RunStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal run stats: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runStatsKey), data)
	})
	if err != nil {
		return fmt.Errorf("persist run stats: %w", err)
	}
	return nil
}

// LastRunStats returns the persisted run metadata or (nil, nil) when
// no run has completed yet.
func (c *BadgerCache) LastRunStats(ctx context.Context) (*RunStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var stats *RunStats
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runStatsKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get run stats: %w", err)
		}
		return item.Value(func(val []byte) error {
			var rs RunStats
			if uerr := json.Unmarshal(val, &rs); uerr != nil {
				return nil
			}
			stats = &rs
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// All returns every cached profile.
func (c *BadgerCache) All(ctx context.Context) ([]*Profile, error) {
	var profiles []*Profile
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(profileKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var p Profile
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if err != nil {
				continue
			}
			profiles = append(profiles, &p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan profiles: %w", err)
	}
	return profiles, nil
}
