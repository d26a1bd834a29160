// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package prefs

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/kyarahub/discovery/internal/discovery"
)

// Engagement kinds accepted by the log.
const (
	KindLike     = "like"
	KindMessage  = "message"
	KindFavorite = "favorite"
)

// Key layout: eng:<kind>:<userID>:<eventID> for events, with a
// parallel eng_seen:<userID> marker carrying last-activity time.
const (
	engKeyPrefix  = "eng:"
	seenKeyPrefix = "eng_seen:"
)

// EngagementRecord is one logged engagement event.
type EngagementRecord struct {
	Kind         string    `json:"kind"`
	Gender       string    `json:"gender,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	NSFW         bool      `json:"nsfw,omitempty"`
	MessageCount int       `json:"message_count,omitempty"`
	At           time.Time `json:"at"`
}

// EngagementLog is a BadgerDB-backed SignalSource fed by the event
// ingestion endpoints. Platforms with their own event stores implement
// SignalSource directly and skip this.
type EngagementLog struct {
	db    *badger.DB
	clock discovery.Clock
}

// NewEngagementLog creates a BadgerDB-backed engagement log.
func NewEngagementLog(db *badger.DB) *EngagementLog {
	return &EngagementLog{db: db, clock: discovery.SystemClock()}
}

// SetClock replaces the time source. Intended for tests.
func (l *EngagementLog) SetClock(clock discovery.Clock) {
	l.clock = clock
}

// Append logs one engagement event for the user.
func (l *EngagementLog) Append(ctx context.Context, userID string, rec EngagementRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch rec.Kind {
	case KindLike, KindMessage, KindFavorite:
	default:
		return fmt.Errorf("unknown engagement kind %q", rec.Kind)
	}
	if rec.At.IsZero() {
		rec.At = l.clock.Now()
	}

	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal engagement: %w", err)
	}

	key := engKeyPrefix + rec.Kind + ":" + userID + ":" + uuid.NewString()
	seenVal, err := rec.At.MarshalText()
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}
		return txn.Set([]byte(seenKeyPrefix+userID), seenVal)
	})
	if err != nil {
		return fmt.Errorf("persist engagement for %s: %w", userID, err)
	}
	return nil
}

// ActiveUsers lists users whose last logged engagement is at or after
// the given time.
func (l *EngagementLog) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	var users []string
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(seenKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			userID := string(item.Key()[len(seenKeyPrefix):])

			var lastSeen time.Time
			err := item.Value(func(val []byte) error {
				return lastSeen.UnmarshalText(val)
			})
			if err != nil {
				continue
			}
			if !lastSeen.Before(since) {
				users = append(users, userID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan active users: %w", err)
	}
	return users, nil
}

// Likes returns the user's like events.
func (l *EngagementLog) Likes(ctx context.Context, userID string) ([]Engagement, error) {
	return l.byKind(ctx, KindLike, userID)
}

// MessageThreads returns the user's message-thread events.
func (l *EngagementLog) MessageThreads(ctx context.Context, userID string) ([]Engagement, error) {
	return l.byKind(ctx, KindMessage, userID)
}

// Favorites returns the user's favorite events.
func (l *EngagementLog) Favorites(ctx context.Context, userID string) ([]Engagement, error) {
	return l.byKind(ctx, KindFavorite, userID)
}

func (l *EngagementLog) byKind(ctx context.Context, kind, userID string) ([]Engagement, error) {
	var out []Engagement
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(engKeyPrefix + kind + ":" + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec EngagementRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				continue
			}
			out = append(out, Engagement{
				Gender:       rec.Gender,
				Tags:         rec.Tags,
				NSFW:         rec.NSFW,
				MessageCount: rec.MessageCount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s events for %s: %w", kind, userID, err)
	}
	return out, nil
}
