// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package prefs

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kyarahub/discovery/internal/discovery"
	"github.com/kyarahub/discovery/internal/metrics"
)

// BatchSize bounds how many users are in flight at once so memory
// stays flat regardless of total user count.
const BatchSize = 50

// RunStats summarizes one aggregation run.
type RunStats struct {
	TotalUsers int           `json:"total_users"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Purged     int           `json:"purged"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
}

// RunRecorder persists run metadata so the last run survives a
// restart. Cache stores may implement it; the aggregator detects it.
type RunRecorder interface {
	PutRunStats(ctx context.Context, stats *RunStats) error
	LastRunStats(ctx context.Context) (*RunStats, error)
}

// Aggregator runs the nightly profile recomputation: list active
// users, analyze each in bounded parallel batches, upsert the cache,
// sweep stale rows.
type Aggregator struct {
	analyzer *Analyzer
	source   SignalSource
	cache    CacheStore
	logger   zerolog.Logger
	clock    discovery.Clock

	// limiter spreads signal-source reads out so the nightly run does
	// not starve the request path.
	limiter *rate.Limiter

	lastRun atomic.Pointer[RunStats]
}

// NewAggregator creates the nightly aggregator. usersPerSecond bounds
// the analysis rate; zero or negative means unlimited.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAggregator(source SignalSource, cache CacheStore, usersPerSecond float64, logger zerolog.Logger) *Aggregator {
	limit := rate.Inf
	if usersPerSecond > 0 {
		limit = rate.Limit(usersPerSecond)
	}
	return &Aggregator{
		analyzer: NewAnalyzer(source),
		source:   source,
		cache:    cache,
		logger:   logger.With().Str("component", "prefs-aggregator").Logger(),
		clock:    discovery.SystemClock(),
		limiter:  rate.NewLimiter(limit, BatchSize),
	}
}

// SetClock replaces the time source. Intended for tests.
func (a *Aggregator) SetClock(clock discovery.Clock) {
	a.clock = clock
	a.analyzer.SetClock(clock)
}

// LastRun returns stats for the most recent completed run, or nil if
// none has completed since startup.
func (a *Aggregator) LastRun() *RunStats {
	return a.lastRun.Load()
}

// Run executes one full aggregation pass. A single user's failure is
// counted and logged but never stops the run; only cancellation or a
// failure to even list the users aborts it. Each user's upsert is
// atomic, so a cancelled run just means fewer users refreshed.
func (a *Aggregator) Run(ctx context.Context) (RunStats, error) {
	start := a.clock.Now()
	stats := RunStats{StartedAt: start}

	users, err := a.source.ActiveUsers(ctx, start.Add(-ActivityWindow))
	if err != nil {
		metrics.AggregatorRunsTotal.WithLabelValues("error").Inc()
		return stats, fmt.Errorf("list active users: %w", err)
	}
	stats.TotalUsers = len(users)
	a.logger.Info().Int("users", len(users)).Msg("preference aggregation starting")

	var processed, skipped, failed atomic.Int64

	for lo := 0; lo < len(users); lo += BatchSize {
		if err := ctx.Err(); err != nil {
			a.finish(&stats, &processed, &skipped, &failed, start, "cancelled")
			return stats, err
		}

		hi := lo + BatchSize
		if hi > len(users) {
			hi = len(users)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(BatchSize)
		for _, userID := range users[lo:hi] {
			g.Go(func() error {
				if err := a.limiter.Wait(gctx); err != nil {
					return err
				}
				outcome := a.processUser(gctx, userID)
				switch outcome {
				case "processed":
					processed.Add(1)
				case "skipped":
					skipped.Add(1)
				default:
					failed.Add(1)
				}
				metrics.AggregatorUsersTotal.WithLabelValues(outcome).Inc()
				return nil
			})
		}
		// Only cancellation propagates; per-user failures are absorbed
		// inside processUser.
		if err := g.Wait(); err != nil {
			a.finish(&stats, &processed, &skipped, &failed, start, "cancelled")
			return stats, err
		}

		if hi%100 == 0 || hi == len(users) {
			a.logger.Debug().Int("done", hi).Int("total", len(users)).Msg("aggregation progress")
		}
	}

	purged, err := a.cache.DeleteStale(ctx, CacheRetention)
	if err != nil {
		a.logger.Warn().Err(err).Msg("stale profile sweep failed")
	}
	stats.Purged = purged

	a.finish(&stats, &processed, &skipped, &failed, start, "ok")

	if rec, ok := a.cache.(RunRecorder); ok {
		if perr := rec.PutRunStats(ctx, &stats); perr != nil {
			a.logger.Warn().Err(perr).Msg("run metadata persist failed")
		}
	}

	a.logger.Info().
		Int("total", stats.TotalUsers).
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Int("purged", stats.Purged).
		Dur("duration", stats.Duration).
		Msg("preference aggregation complete")

	return stats, nil
}

func (a *Aggregator) finish(stats *RunStats, processed, skipped, failed *atomic.Int64, start time.Time, result string) {
	stats.Processed = int(processed.Load())
	stats.Skipped = int(skipped.Load())
	stats.Failed = int(failed.Load())
	stats.Duration = a.clock.Now().Sub(start)

	metrics.AggregatorRunsTotal.WithLabelValues(result).Inc()
	metrics.AggregatorRunDuration.Observe(stats.Duration.Seconds())

	snapshot := *stats
	a.lastRun.Store(&snapshot)
}

// processUser analyzes and upserts one user, absorbing any failure.
func (a *Aggregator) processUser(ctx context.Context, userID string) string {
	profile, err := a.analyzer.AnalyzeUser(ctx, userID)
	if err != nil {
		a.logger.Error().Err(err).Str("user_id", userID).Msg("user analysis failed")
		return "failed"
	}
	if profile == nil || profile.TotalWeight <= 0 {
		return "skipped"
	}
	if profile.NSFWAffinity < 0 || profile.NSFWAffinity > 1 {
		a.logger.Warn().Str("user_id", userID).Float64("nsfw", profile.NSFWAffinity).Msg("profile out of range, skipping")
		return "skipped"
	}

	if err := a.cache.Put(ctx, profile); err != nil {
		a.logger.Error().Err(err).Str("user_id", userID).Msg("profile upsert failed")
		return "failed"
	}
	return "processed"
}

// PlatformStats summarizes cached profiles across the whole platform.
type PlatformStats struct {
	TotalUsers    int                `json:"total_users"`
	AvgGender     map[string]float64 `json:"avg_gender_distribution"`
	AvgNSFW       float64            `json:"avg_nsfw_affinity"`
	AvgWeight     float64            `json:"avg_interaction_weight"`
	TopTags       []string           `json:"top_tags"`
	TopTagsByUser map[string]int     `json:"-"`
}

// ComputePlatformStats aggregates all cached profiles. Returns
// (nil, nil) when the cache is empty.
func ComputePlatformStats(ctx context.Context, cache CacheStore) (*PlatformStats, error) {
	profiles, err := cache.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}

	stats := &PlatformStats{
		TotalUsers:    len(profiles),
		AvgGender:     make(map[string]float64),
		TopTagsByUser: make(map[string]int),
	}
	for _, p := range profiles {
		for g, frac := range p.GenderDistribution {
			stats.AvgGender[g] += frac
		}
		stats.AvgNSFW += p.NSFWAffinity
		stats.AvgWeight += p.TotalWeight
		for _, tag := range p.PreferredTags {
			stats.TopTagsByUser[tag]++
		}
	}

	n := float64(len(profiles))
	for g := range stats.AvgGender {
		stats.AvgGender[g] /= n
	}
	stats.AvgNSFW /= n
	stats.AvgWeight /= n

	type tagCount struct {
		tag   string
		count int
	}
	ranked := make([]tagCount, 0, len(stats.TopTagsByUser))
	for tag, count := range stats.TopTagsByUser {
		ranked = append(ranked, tagCount{tag, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].tag < ranked[j].tag
	})
	if len(ranked) > 20 {
		ranked = ranked[:20]
	}
	stats.TopTags = make([]string, len(ranked))
	for i, tc := range ranked {
		stats.TopTags[i] = tc.tag
	}

	return stats, nil
}
