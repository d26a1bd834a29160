// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

// Package prefs derives longer-horizon preference profiles from
// historical engagement and caches them for the request-time scorer.
// Profiles are recomputed wholesale by the nightly aggregator; nothing
// in this package mutates an existing cached profile in place.
package prefs

import (
	"context"
	"strings"
	"time"
)

// Signal weights. Messages are weighted by volume on a log curve so a
// thousand-message thread does not drown out everything else.
const (
	LikeWeight     = 2.0
	FavoriteWeight = 3.0
	MaxChatWeight  = 5.0
)

// MaxProfileTags is the length of a profile's preferred-tag list.
const MaxProfileTags = 15

// CacheRetention is how long a cached profile survives without being
// recomputed before the nightly cleanup deletes it.
const CacheRetention = 90 * 24 * time.Hour

// ActivityWindow selects which users the nightly run analyzes.
const ActivityWindow = 30 * 24 * time.Hour

// Canonical gender buckets.
const (
	GenderFemale    = "female"
	GenderMale      = "male"
	GenderNonbinary = "nonbinary"
	GenderUnknown   = "unknown"
)

// Profile is one user's aggregated preference signal.
type Profile struct {
	UserID string `json:"user_id"`

	// GenderDistribution holds fractions per canonical gender bucket,
	// summing to 1.0 when TotalWeight > 0.
	GenderDistribution map[string]float64 `json:"gender_distribution"`

	// PreferredTags is the top-15 tags by accumulated weight,
	// strongest first.
	PreferredTags []string `json:"preferred_tags"`

	// NSFWAffinity is the weighted fraction of engagement that touched
	// NSFW media, in [0,1].
	NSFWAffinity float64 `json:"nsfw_affinity"`

	// TotalWeight is the accumulated interaction weight the profile is
	// derived from. Zero means no signal; such profiles are never
	// cached.
	TotalWeight float64 `json:"total_weight"`

	ComputedAt time.Time `json:"computed_at"`
}

// Engagement is one weighted engagement target: a content item the
// user liked, favorited, or messaged with, carrying the item metadata
// the analyzer accumulates.
type Engagement struct {
	Gender string
	Tags   []string
	NSFW   bool

	// MessageCount is set for message-thread engagements only and
	// drives the log-curve weight.
	MessageCount int
}

// SignalSource supplies the engagement history the analyzer consumes.
// Implementations sit over the platform's event stores; the analyzer
// does not care where the events live.
type SignalSource interface {
	// ActiveUsers lists users with any activity since the given time.
	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)

	// Likes returns the user's explicit likes.
	Likes(ctx context.Context, userID string) ([]Engagement, error)

	// MessageThreads returns the user's message-thread engagements with
	// per-thread message counts.
	MessageThreads(ctx context.Context, userID string) ([]Engagement, error)

	// Favorites returns the user's favorites.
	Favorites(ctx context.Context, userID string) ([]Engagement, error)
}

// CacheStore persists computed profiles. A cache miss is (nil, nil),
// not an error; the scorer treats it as no additional signal.
type CacheStore interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Put(ctx context.Context, profile *Profile) error
	DeleteStale(ctx context.Context, retention time.Duration) (int, error)

	// All streams every cached profile; used by platform-wide stats.
	All(ctx context.Context) ([]*Profile, error)
}

// TagSource adapts a CacheStore to the discovery engine's
// ProfileProvider.
type TagSource struct {
	Cache CacheStore
}

// PreferredTags implements discovery.ProfileProvider.
func (t TagSource) PreferredTags(ctx context.Context, userID string) ([]string, error) {
	p, err := t.Cache.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return p.PreferredTags, nil
}

// NormalizeGender folds free-form gender strings into the canonical
// buckets.
func NormalizeGender(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "female", "f", "woman":
		return GenderFemale
	case "male", "m", "man":
		return GenderMale
	case "nonbinary", "non-binary", "nb", "enby":
		return GenderNonbinary
	default:
		return GenderUnknown
	}
}
