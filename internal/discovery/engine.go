// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package discovery

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/kyarahub/discovery/internal/metrics"
)

// parallelScoreThreshold is the candidate pool size above which scoring
// is sharded across goroutines.
const parallelScoreThreshold = 256

// SignalProvider supplies a registered user's live interaction signals.
// Implementations must honor ctx cancellation; the engine wraps calls
// in a short timeout and degrades to cold start when they fail.
type SignalProvider interface {
	Signals(ctx context.Context, userID string) (*UserSignals, error)
}

// ProfileProvider supplies the nightly aggregate preference profile.
// A missing profile is (nil, nil), not an error.
type ProfileProvider interface {
	PreferredTags(ctx context.Context, userID string) ([]string, error)
}

// Engine sequences a candidate pool into a personalized, partially
// randomized feed. It is safe for concurrent use.
type Engine struct {
	config *Config
	logger zerolog.Logger
	scorer *Scorer
	clock  Clock

	signals  SignalProvider
	profiles ProfileProvider
	breaker  *gobreaker.CircuitBreaker[*UserSignals]

	rng *lockedRand
}

// NewEngine creates a discovery engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, signals SignalProvider, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	breaker := gobreaker.NewCircuitBreaker[*UserSignals](gobreaker.Settings{
		Name:    "interaction-state",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	clock := SystemClock()
	return &Engine{
		config:  cfg,
		logger:  logger.With().Str("component", "discovery").Logger(),
		scorer:  NewScorer(cfg, clock),
		clock:   clock,
		signals: signals,
		breaker: breaker,
		rng:     newLockedRand(seed),
	}, nil
}

// SetClock replaces the time source. Intended for tests.
func (e *Engine) SetClock(clock Clock) {
	e.clock = clock
	e.scorer = NewScorer(e.config, clock)
}

// SetProfileProvider wires the nightly preference cache as auxiliary
// personalization input. Optional; the engine works without it.
func (e *Engine) SetProfileProvider(p ProfileProvider) {
	e.profiles = p
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// Now exposes the engine's time source so collaborators stamping
// client-side state stay consistent with scoring decisions.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// Sequence produces the ordered feed for one request. It never fails
// once a non-empty candidate pool is supplied: internal errors degrade
// the ordering toward cold start rather than erroring the response.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Sequence(ctx context.Context, req Request) (*Response, error) {
	start := e.clock.Now()
	metrics.FeedRequestsTotal.Inc()

	req = e.prepareRequest(req)
	logger := e.logger.With().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Logger()

	if len(req.Candidates) == 0 {
		logger.Debug().Msg("empty candidate pool")
		return e.buildResponse(req, []ContentItem{}, false, false, start), nil
	}

	signals, degraded := e.resolveSignals(ctx, req, logger)

	if signals == nil || signals.IsEmpty() {
		items := e.coldStartSequence(req.Candidates, req.Limit)
		logger.Debug().
			Int("candidates", len(req.Candidates)).
			Int("returned", len(items)).
			Bool("degraded", degraded).
			Msg("cold start sequence")
		if degraded {
			metrics.FeedDegradedTotal.Inc()
		}
		return e.buildResponse(req, items, true, degraded, start), nil
	}

	e.augmentFromProfile(ctx, req.UserID, signals, logger)

	candidates := req.Candidates
	if req.ExcludeRecent {
		candidates = e.excludeRecentlySeen(candidates, signals, req.Limit)
	}

	scored := e.scoreCandidates(candidates, signals)
	metrics.SamplerPoolSize.Observe(float64(len(scored)))

	selected := SelectTopItems(scored, req.Limit, e.config.Limits.PoolMultiplier, e.rng)
	for i := range selected {
		RotateMedia(&selected[i], signals.SeenMedia[selected[i].ID])
	}

	resp := e.buildResponse(req, selected, false, degraded, start)
	logger.Debug().
		Int("candidates", len(req.Candidates)).
		Int("returned", len(selected)).
		Int64("latency_ms", resp.Metadata.LatencyMS).
		Msg("sequence complete")

	return resp, nil
}

// prepareRequest applies defaults and generates a request ID if needed.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request) Request {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Limit <= 0 {
		req.Limit = e.config.Limits.DefaultLimit
	}
	if req.Limit > e.config.Limits.MaxLimit {
		req.Limit = e.config.Limits.MaxLimit
	}
	return req
}

// resolveSignals fetches personalization signals for the request. For
// registered users the read goes through the circuit breaker under a
// short timeout; any failure degrades to nil signals (cold start) so
// the response can still be served.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) resolveSignals(ctx context.Context, req Request, logger zerolog.Logger) (signals *UserSignals, degraded bool) {
	if req.UserID == "" {
		return req.Signals, false
	}
	if e.signals == nil {
		return nil, false
	}

	result, err := e.breaker.Execute(func() (*UserSignals, error) {
		readCtx, cancel := context.WithTimeout(ctx, e.config.Limits.StateTimeout)
		defer cancel()
		return e.signals.Signals(readCtx, req.UserID)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("interaction state unavailable, serving cold start")
		return nil, true
	}
	return result, false
}

// augmentFromProfile fills in preferred tags from the nightly profile
// cache when the live state has none. A cache miss or error is treated
// as no additional signal.
func (e *Engine) augmentFromProfile(ctx context.Context, userID string, signals *UserSignals, logger zerolog.Logger) {
	if e.profiles == nil || userID == "" || len(signals.PreferredTags) > 0 {
		return
	}

	tags, err := e.profiles.PreferredTags(ctx, userID)
	if err != nil {
		logger.Debug().Err(err).Msg("preference profile lookup failed")
		return
	}
	signals.PreferredTags = tags
}

// excludeRecentlySeen drops candidates seen within the recently-seen
// window. If filtering would leave fewer items than the requested
// limit, the full pool is restored; the decay penalty already buries
// recently seen items in that case.
func (e *Engine) excludeRecentlySeen(candidates []ContentItem, signals *UserSignals, limit int) []ContentItem {
	threshold := e.clock.Now().Add(-e.config.Decay.RecentlySeen)

	filtered := make([]ContentItem, 0, len(candidates))
	for _, c := range candidates {
		if lastSeen, ok := signals.SeenContent[c.ID]; ok && lastSeen.After(threshold) {
			continue
		}
		filtered = append(filtered, c)
	}

	if len(filtered) < limit && len(filtered) < len(candidates) {
		return candidates
	}
	return filtered
}

// scoreCandidates scores the pool, sharding across goroutines for
// large pools. Score computation order is irrelevant; ordering is
// imposed by the sampler.
func (e *Engine) scoreCandidates(candidates []ContentItem, signals *UserSignals) []ScoredItem {
	if len(candidates) < parallelScoreThreshold {
		return e.scorer.ScoreAll(candidates, signals, e.rng)
	}

	scored := make([]ScoredItem, len(candidates))
	workers := 4
	chunk := (len(candidates) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= len(candidates) {
			break
		}
		hi := lo + chunk
		if hi > len(candidates) {
			hi = len(candidates)
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				scored[i] = ScoredItem{
					Item:  candidates[i],
					Score: e.scorer.Score(&candidates[i], signals, e.rng),
				}
			}
		}(lo, hi)
	}
	wg.Wait()

	return scored
}

// coldStartSequence orders candidates for a user with no signal:
// popularity/recency shortlist, uniform shuffle, truncate.
func (e *Engine) coldStartSequence(candidates []ContentItem, limit int) []ContentItem {
	aggregates := make([]ItemAggregate, len(candidates))
	byID := make(map[string]int, len(candidates))
	for i, c := range candidates {
		aggregates[i] = ItemAggregate{
			ItemID:        c.ID,
			MediaCount:    c.MediaCount,
			LatestMediaAt: c.LatestMediaAt,
		}
		byID[c.ID] = i
	}

	ids := BuildColdStartPool(aggregates, limit, e.rng)
	items := make([]ContentItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, candidates[byID[id]])
	}
	return items
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) buildResponse(req Request, items []ContentItem, coldStart, degraded bool, start time.Time) *Response {
	metrics.FeedLatency.Observe(e.clock.Now().Sub(start).Seconds())
	return &Response{
		Items:           items,
		TotalCandidates: len(req.Candidates),
		ColdStart:       coldStart,
		Metadata: ResponseMetadata{
			RequestID: req.RequestID,
			UserID:    req.UserID,
			LatencyMS: e.clock.Now().Sub(start).Milliseconds(),
			Degraded:  degraded,
			Timestamp: e.clock.Now(),
		},
	}
}

// lockedRand is a mutex-guarded math/rand source implementing
// RandSource for concurrent scoring.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))} //nolint:gosec // math/rand is fine for feed shuffling
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
