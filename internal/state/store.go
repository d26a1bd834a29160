// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package state

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/kyarahub/discovery/internal/discovery"
	"github.com/kyarahub/discovery/internal/metrics"
)

// Key prefix for BadgerDB storage.
const stateKeyPrefix = "ustate:"

// lockStripes is the number of per-user mutex stripes. Writes to the
// same user serialize; writes to different users almost never contend.
const lockStripes = 64

// Store is the interaction state persistence interface. Get returns a
// fresh empty state for unknown users; absence is not an error.
type Store interface {
	Get(ctx context.Context, userID string) (*UserState, error)
	RecordView(ctx context.Context, userID, contentID string, mediaIDs, tags []string) (*UserState, error)
	RecordTagInteraction(ctx context.Context, userID string, tags []string, strength float64) (*UserState, error)
	PurgeStale(ctx context.Context, retention time.Duration) (int, error)
}

// SignalSource adapts a Store to the discovery engine's SignalProvider.
type SignalSource struct {
	Store Store
}

// Signals implements discovery.SignalProvider.
func (s SignalSource) Signals(ctx context.Context, userID string) (*discovery.UserSignals, error) {
	st, err := s.Store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return st.Signals(), nil
}

// BadgerStore implements Store on BadgerDB. All mutations are
// read-modify-write under a per-user stripe lock so concurrent events
// for the same user never lose updates.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
	clock  discovery.Clock

	locks [lockStripes]sync.Mutex
}

// NewBadgerStore creates a BadgerDB-backed interaction state store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBadgerStore(db *badger.DB, logger zerolog.Logger) *BadgerStore {
	return &BadgerStore{
		db:     db,
		logger: logger.With().Str("component", "state").Logger(),
		clock:  discovery.SystemClock(),
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *BadgerStore) SetClock(clock discovery.Clock) {
	s.clock = clock
}

func (s *BadgerStore) stripe(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID)) //nolint:errcheck // fnv never errors
	return &s.locks[h.Sum32()%lockStripes]
}

// Get retrieves a user's state, returning a fresh empty state when no
// record exists. A stored blob that fails to decode is also treated as
// absent; a corrupt record must never fail a read.
func (s *BadgerStore) Get(ctx context.Context, userID string) (*UserState, error) {
	if err := ctx.Err(); err != nil {
		metrics.StateOpsTotal.WithLabelValues("get", "error").Inc()
		return nil, err
	}

	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		metrics.StateOpsTotal.WithLabelValues("get", "error").Inc()
		return nil, err
	}

	metrics.StateOpsTotal.WithLabelValues("get", "ok").Inc()
	if blob == nil {
		return NewUserState(userID), nil
	}

	st, err := DecodeBlob(blob)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("discarding undecodable state record")
		return NewUserState(userID), nil
	}
	return st, nil
}

// RecordView applies a view event and persists the result.
func (s *BadgerStore) RecordView(ctx context.Context, userID, contentID string, mediaIDs, tags []string) (*UserState, error) {
	st, err := s.mutate(ctx, userID, "record_view", func(st *UserState) {
		st.RecordView(contentID, mediaIDs, tags, s.clock.Now())
	})
	return st, err
}

// RecordTagInteraction applies an explicit tag interaction and persists
// the result.
func (s *BadgerStore) RecordTagInteraction(ctx context.Context, userID string, tags []string, strength float64) (*UserState, error) {
	st, err := s.mutate(ctx, userID, "record_tags", func(st *UserState) {
		st.RecordTagInteraction(tags, strength, s.clock.Now())
	})
	return st, err
}

// mutate runs a read-modify-write cycle for one user under its stripe
// lock.
func (s *BadgerStore) mutate(ctx context.Context, userID, op string, apply func(*UserState)) (*UserState, error) {
	mu := s.stripe(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		metrics.StateOpsTotal.WithLabelValues(op, "error").Inc()
		return nil, err
	}

	st, err := s.Get(ctx, userID)
	if err != nil {
		metrics.StateOpsTotal.WithLabelValues(op, "error").Inc()
		return nil, err
	}

	apply(st)

	data, err := EncodeBlob(st)
	if err != nil {
		metrics.StateOpsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("encode state for %s: %w", userID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stateKeyPrefix+userID), data)
	})
	if err != nil {
		metrics.StateOpsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("persist state for %s: %w", userID, err)
	}

	metrics.StateOpsTotal.WithLabelValues(op, "ok").Inc()
	return st, nil
}

// PurgeStale deletes whole user records not updated within the
// retention window. Undecodable records are purged as well.
func (s *BadgerStore) PurgeStale(ctx context.Context, retention time.Duration) (int, error) {
	threshold := s.clock.Now().Add(-retention)

	var stale []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(stateKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key())

			var st UserState
			verr := item.Value(func(val []byte) error {
				decoded, err := DecodeBlob(val)
				if err != nil {
					return err
				}
				st = *decoded
				return nil
			})
			if verr != nil || st.LastUpdated.Before(threshold) {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil {
		metrics.StateOpsTotal.WithLabelValues("purge", "error").Inc()
		return 0, fmt.Errorf("scan state records: %w", err)
	}

	count := 0
	for _, key := range stale {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(key))
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("purge delete failed")
			continue
		}
		count++
	}

	if count > 0 {
		s.logger.Info().Int("purged", count).Msg("stale interaction state purged")
	}
	metrics.StateOpsTotal.WithLabelValues("purge", "ok").Inc()
	metrics.StatePurgedRecords.Add(float64(count))
	return count, nil
}

// MemoryStore implements Store in process memory. Suitable for tests
// and single-node development.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*UserState
	clock  discovery.Clock
}

// NewMemoryStore creates an in-memory interaction state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*UserState),
		clock:  discovery.SystemClock(),
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *MemoryStore) SetClock(clock discovery.Clock) {
	s.clock = clock
}

// Get returns a deep-enough copy of the user's state so callers cannot
// mutate the stored maps.
func (s *MemoryStore) Get(ctx context.Context, userID string) (*UserState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[userID]
	if !ok {
		return NewUserState(userID), nil
	}
	return cloneState(st), nil
}

// RecordView applies a view event.
func (s *MemoryStore) RecordView(ctx context.Context, userID, contentID string, mediaIDs, tags []string) (*UserState, error) {
	return s.mutate(ctx, userID, func(st *UserState) {
		st.RecordView(contentID, mediaIDs, tags, s.clock.Now())
	})
}

// RecordTagInteraction applies an explicit tag interaction.
func (s *MemoryStore) RecordTagInteraction(ctx context.Context, userID string, tags []string, strength float64) (*UserState, error) {
	return s.mutate(ctx, userID, func(st *UserState) {
		st.RecordTagInteraction(tags, strength, s.clock.Now())
	})
}

func (s *MemoryStore) mutate(ctx context.Context, userID string, apply func(*UserState)) (*UserState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		st = NewUserState(userID)
		s.states[userID] = st
	}
	apply(st)
	return cloneState(st), nil
}

// PurgeStale deletes records not updated within the retention window.
func (s *MemoryStore) PurgeStale(ctx context.Context, retention time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := s.clock.Now().Add(-retention)
	count := 0
	for userID, st := range s.states {
		if st.LastUpdated.Before(threshold) {
			delete(s.states, userID)
			count++
		}
	}
	return count, nil
}

func cloneState(st *UserState) *UserState {
	out := &UserState{
		UserID:        st.UserID,
		SeenContent:   make(map[string]time.Time, len(st.SeenContent)),
		SeenMedia:     make(map[string][]string, len(st.SeenMedia)),
		TagAffinity:   make(map[string]float64, len(st.TagAffinity)),
		PreferredTags: append([]string(nil), st.PreferredTags...),
		LastUpdated:   st.LastUpdated,
	}
	for k, v := range st.SeenContent {
		out.SeenContent[k] = v
	}
	for k, v := range st.SeenMedia {
		out.SeenMedia[k] = append([]string(nil), v...)
	}
	for k, v := range st.TagAffinity {
		out.TagAffinity[k] = v
	}
	return out
}
