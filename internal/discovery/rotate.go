// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package discovery

import (
	"sort"
)

// RotateMedia reorders an item's gallery so unseen media surfaces
// before previously seen media. Unseen media sorts newest first; seen
// media sorts oldest first, re-surfacing the longest-unshown media
// ahead of recently reshown ones to maximize eventual coverage.
//
// The item is modified in place; only the Media order changes.
func RotateMedia(item *ContentItem, seenIDs []string) {
	if len(item.Media) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(seenIDs))
	for _, id := range seenIDs {
		seen[id] = struct{}{}
	}

	unseen := make([]MediaItem, 0, len(item.Media))
	already := make([]MediaItem, 0)
	for _, m := range item.Media {
		if _, ok := seen[m.ID]; ok {
			already = append(already, m)
		} else {
			unseen = append(unseen, m)
		}
	}

	sort.SliceStable(unseen, func(i, j int) bool {
		return unseen[i].CreatedAt.After(unseen[j].CreatedAt)
	})
	sort.SliceStable(already, func(i, j int) bool {
		return already[i].CreatedAt.Before(already[j].CreatedAt)
	})

	item.Media = append(unseen, already...)
}
