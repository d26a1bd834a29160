// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package discovery

import (
	"time"
)

// MediaItem is a single piece of media belonging to a content item.
// Media items have no independent lifecycle; they live and die with
// their parent ContentItem.
type MediaItem struct {
	// ID uniquely identifies the media within the catalog.
	ID string `json:"id"`

	// URL is the public location of the media asset.
	URL string `json:"url"`

	// CreatedAt is when the media was added to the item's gallery.
	CreatedAt time.Time `json:"created_at"`

	// Sensitive marks NSFW media.
	Sensitive bool `json:"sensitive,omitempty"`
}

// ContentItem is a candidate for ranking in one feed request. Items are
// owned by the catalog and read-only to the engine; the only field the
// engine rewrites on output is the order of Media.
type ContentItem struct {
	// ID uniquely identifies the content item.
	ID string `json:"id"`

	// Tags are free-form descriptive labels, matched case-insensitively.
	Tags []string `json:"tags,omitempty"`

	// CreatedAt is when the item was first published.
	CreatedAt time.Time `json:"created_at"`

	// LatestMediaAt is when media was last added to the item.
	// Zero when the item has never had media.
	LatestMediaAt time.Time `json:"latest_media_at,omitempty"`

	// MediaCount is the item's total gallery size, used as a
	// popularity proxy.
	MediaCount int `json:"media_count"`

	// HasNewMedia marks items whose gallery grew recently.
	HasNewMedia bool `json:"has_new_media,omitempty"`

	// Media is the item's gallery, reordered per user before delivery.
	Media []MediaItem `json:"media,omitempty"`
}

// ScoredItem pairs a candidate with its computed selection weight.
// The score is a relative weight, not a probability; it is consumed
// only by the weighted sampler.
type ScoredItem struct {
	Item  ContentItem `json:"item"`
	Score float64     `json:"score"`
}

// UserSignals is the per-user personalization input consumed by the
// scorer. It is a read-only projection of the interaction state; the
// engine never mutates it.
type UserSignals struct {
	// SeenContent maps content item ID to the last time the user saw it.
	SeenContent map[string]time.Time

	// SeenMedia maps content item ID to the media IDs the user has seen.
	SeenMedia map[string][]string

	// PreferredTags is the user's top tags by affinity, strongest first.
	PreferredTags []string
}

// IsEmpty reports whether the signals carry no personalization data,
// which routes the request down the cold-start path.
func (s UserSignals) IsEmpty() bool {
	return len(s.SeenContent) == 0 && len(s.SeenMedia) == 0 && len(s.PreferredTags) == 0
}

// Request is a single feed-sequencing request.
type Request struct {
	// UserID identifies a registered user. Empty for anonymous users,
	// whose signals arrive in Signals instead.
	UserID string `json:"user_id,omitempty"`

	// Limit is the number of items to return. Defaults to
	// Config.Limits.DefaultLimit when zero.
	Limit int `json:"limit,omitempty"`

	// Candidates is the eligibility-filtered candidate pool supplied by
	// the catalog. The engine performs no visibility filtering of its own.
	Candidates []ContentItem `json:"-"`

	// Signals carries caller-supplied personalization state for
	// anonymous users. Ignored when UserID is set.
	Signals *UserSignals `json:"-"`

	// ExcludeRecent drops candidates seen within the last day before
	// sampling, backfilling from the full pool if that would starve
	// the requested limit.
	ExcludeRecent bool `json:"exclude_recent,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// Response is an ordered feed selection.
type Response struct {
	// Items is the final ordered sequence, media rotated per item.
	Items []ContentItem `json:"items"`

	// TotalCandidates is the size of the candidate pool considered.
	TotalCandidates int `json:"total_candidates"`

	// ColdStart reports that the unpersonalized path produced this
	// response, either because the user had no signals or because the
	// state store was unavailable.
	ColdStart bool `json:"cold_start"`

	// Metadata carries timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata carries timing and diagnostic information.
type ResponseMetadata struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Degraded  bool      `json:"degraded,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ItemAggregate is the collaborator-supplied popularity/recency signal
// used to build cold-start pools. The catalog computes these from its
// own aggregates; the engine only orders, shuffles, and truncates.
type ItemAggregate struct {
	// ItemID is the content item this aggregate describes.
	ItemID string `json:"item_id"`

	// MediaCount is the item's gallery size (popularity proxy).
	MediaCount int `json:"media_count"`

	// LatestMediaAt is the most recent media timestamp.
	LatestMediaAt time.Time `json:"latest_media_at"`
}

// Clock abstracts the time source so decay and freshness logic is
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// systemClock is the production Clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }

// RandSource abstracts random draws so scoring jitter and sampling are
// reproducible under a seeded generator in tests.
type RandSource interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64

	// Intn returns a non-negative pseudo-random number in [0, n).
	Intn(n int) int
}
