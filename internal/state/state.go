// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

// Package state owns the per-user interaction state lifecycle:
// seen-content timestamps, capped seen-media sets, decaying tag
// affinities, and the derived preferred-tag list. Invariants (the
// 50-media cap, the 0.1 affinity floor, the top-10 derivation) are
// enforced by UserState's methods, never by callers mutating maps.
package state

import (
	"sort"
	"strings"
	"time"

	"github.com/kyarahub/discovery/internal/discovery"
)

const (
	// ViewTagWeight is the affinity added per tag on a view; half the
	// weight of an explicit tag interaction.
	ViewTagWeight = 0.5

	// TagDecayFactor is applied to every affinity on each explicit tag
	// interaction.
	TagDecayFactor = 0.95

	// TagScoreFloor drops affinities that decay below it.
	TagScoreFloor = 0.1

	// MaxSeenMediaPerItem caps stored seen-media IDs per content item;
	// the oldest-inserted IDs are trimmed first.
	MaxSeenMediaPerItem = 50

	// MaxPreferredTags is the length of the derived preferred-tag list.
	MaxPreferredTags = 10

	// SeenRetention is how long seen-content entries survive before the
	// opportunistic cleanup removes them.
	SeenRetention = 30 * 24 * time.Hour

	// RecordRetention is how long whole user records survive without
	// updates before the periodic sweep deletes them.
	RecordRetention = 90 * 24 * time.Hour
)

// UserState is one user's interaction record.
type UserState struct {
	UserID string `json:"user_id,omitempty"`

	// SeenContent maps content item ID to last-seen time.
	SeenContent map[string]time.Time `json:"seen_content,omitempty"`

	// SeenMedia maps content item ID to seen media IDs in insertion
	// order. Membership, not order, determines "has been seen"; order
	// only decides which IDs the cap trims first.
	SeenMedia map[string][]string `json:"seen_media,omitempty"`

	// TagAffinity accumulates per-tag interaction weight, keyed by
	// lowercased tag.
	TagAffinity map[string]float64 `json:"tag_affinity,omitempty"`

	// PreferredTags is the derived top-10 of TagAffinity, strongest
	// first. Recomputed on every mutation; never edited directly.
	PreferredTags []string `json:"preferred_tags,omitempty"`

	LastUpdated time.Time `json:"last_updated"`
}

// NewUserState returns an empty, fully defaulted state. Absence of a
// prior record is a valid state, not an error.
func NewUserState(userID string) *UserState {
	return &UserState{
		UserID:      userID,
		SeenContent: make(map[string]time.Time),
		SeenMedia:   make(map[string][]string),
		TagAffinity: make(map[string]float64),
	}
}

// normalize backfills nil maps on states decoded from storage or
// client blobs so method receivers never nil-check.
func (s *UserState) normalize() {
	if s.SeenContent == nil {
		s.SeenContent = make(map[string]time.Time)
	}
	if s.SeenMedia == nil {
		s.SeenMedia = make(map[string][]string)
	}
	if s.TagAffinity == nil {
		s.TagAffinity = make(map[string]float64)
	}
}

// RecordView records that the user viewed a content item, optionally
// with specific media and the item's tags. Viewing adds tag weight at
// half the strength of an explicit tag interaction and does not run
// the decay pass.
func (s *UserState) RecordView(contentID string, mediaIDs, tags []string, now time.Time) {
	s.normalize()

	s.SeenContent[contentID] = now

	if len(mediaIDs) > 0 {
		seen := s.SeenMedia[contentID]
		member := make(map[string]struct{}, len(seen))
		for _, id := range seen {
			member[id] = struct{}{}
		}
		for _, id := range mediaIDs {
			if _, ok := member[id]; ok {
				continue
			}
			member[id] = struct{}{}
			seen = append(seen, id)
		}
		if len(seen) > MaxSeenMediaPerItem {
			seen = seen[len(seen)-MaxSeenMediaPerItem:]
		}
		s.SeenMedia[contentID] = seen
	}

	for _, tag := range tags {
		s.TagAffinity[strings.ToLower(tag)] += ViewTagWeight
	}

	s.recomputePreferred()
	s.Cleanup(now)
	s.LastUpdated = now
}

// RecordTagInteraction adds affinity for the given tags at the given
// strength, then decays every existing affinity by 5% and drops any
// that fall below the floor. Decay runs on every tag interaction, so
// unreinforced tags strictly decrease until removed.
func (s *UserState) RecordTagInteraction(tags []string, strength float64, now time.Time) {
	s.normalize()

	for _, tag := range tags {
		s.TagAffinity[strings.ToLower(tag)] += strength
	}

	s.recomputePreferred()

	for tag, score := range s.TagAffinity {
		score *= TagDecayFactor
		if score < TagScoreFloor {
			delete(s.TagAffinity, tag)
			continue
		}
		s.TagAffinity[tag] = score
	}

	s.Cleanup(now)
	s.LastUpdated = now
}

// Cleanup removes seen-content entries older than the medium-term
// retention window, along with their seen-media entries. Calling it
// twice with no intervening writes is a no-op the second time.
func (s *UserState) Cleanup(now time.Time) {
	s.normalize()

	threshold := now.Add(-SeenRetention)
	for id, seenAt := range s.SeenContent {
		if seenAt.Before(threshold) {
			delete(s.SeenContent, id)
			delete(s.SeenMedia, id)
		}
	}
}

// recomputePreferred derives the top-10 preferred tags from the
// affinity map, strongest first.
func (s *UserState) recomputePreferred() {
	type tagScore struct {
		tag   string
		score float64
	}

	ranked := make([]tagScore, 0, len(s.TagAffinity))
	for tag, score := range s.TagAffinity {
		ranked = append(ranked, tagScore{tag, score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].tag < ranked[j].tag
	})

	n := len(ranked)
	if n > MaxPreferredTags {
		n = MaxPreferredTags
	}

	s.PreferredTags = make([]string, n)
	for i := 0; i < n; i++ {
		s.PreferredTags[i] = ranked[i].tag
	}
}

// Signals projects the state into the read-only shape the discovery
// scorer consumes.
func (s *UserState) Signals() *discovery.UserSignals {
	return &discovery.UserSignals{
		SeenContent:   s.SeenContent,
		SeenMedia:     s.SeenMedia,
		PreferredTags: s.PreferredTags,
	}
}

// Stats summarizes a user's interaction history.
type Stats struct {
	ContentSeen int       `json:"content_seen"`
	MediaSeen   int       `json:"media_seen"`
	TopTags     []string  `json:"top_tags"`
	LastUpdated time.Time `json:"last_updated"`
}

// Stats returns an interaction summary for the user.
func (s *UserState) Stats() Stats {
	mediaSeen := 0
	for _, ids := range s.SeenMedia {
		mediaSeen += len(ids)
	}
	return Stats{
		ContentSeen: len(s.SeenContent),
		MediaSeen:   mediaSeen,
		TopTags:     s.PreferredTags,
		LastUpdated: s.LastUpdated,
	}
}
