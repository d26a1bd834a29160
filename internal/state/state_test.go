// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package state

import (
	"fmt"
	"testing"
	"time"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestRecordViewTracksSeenContent(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	st.RecordView("c1", []string{"m1", "m2"}, []string{"Fantasy"}, testNow)

	if _, ok := st.SeenContent["c1"]; !ok {
		t.Error("content not marked seen")
	}
	if got := st.SeenMedia["c1"]; len(got) != 2 {
		t.Errorf("seen media = %v, want 2 entries", got)
	}
	if got := st.TagAffinity["fantasy"]; got != ViewTagWeight {
		t.Errorf("tag affinity = %v, want %v (lowercased key)", got, ViewTagWeight)
	}
	if st.LastUpdated != testNow {
		t.Errorf("LastUpdated = %v, want %v", st.LastUpdated, testNow)
	}
}

func TestRecordViewDeduplicatesMedia(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	st.RecordView("c1", []string{"m1", "m2"}, nil, testNow)
	st.RecordView("c1", []string{"m2", "m3"}, nil, testNow.Add(time.Hour))

	if got := st.SeenMedia["c1"]; len(got) != 3 {
		t.Errorf("seen media = %v, want 3 unique entries", got)
	}
}

func TestRecordViewCapsSeenMedia(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	for i := 0; i < MaxSeenMediaPerItem+20; i++ {
		st.RecordView("c1", []string{fmt.Sprintf("m%03d", i)}, nil, testNow)
	}

	got := st.SeenMedia["c1"]
	if len(got) != MaxSeenMediaPerItem {
		t.Fatalf("seen media length = %d, want cap %d", len(got), MaxSeenMediaPerItem)
	}
	// Oldest entries trimmed first: m000..m019 gone, m020 survives.
	if got[0] != "m020" {
		t.Errorf("oldest surviving entry = %q, want m020", got[0])
	}
	if got[len(got)-1] != fmt.Sprintf("m%03d", MaxSeenMediaPerItem+19) {
		t.Errorf("newest entry = %q, want the last inserted", got[len(got)-1])
	}
}

func TestRecordTagInteractionAccumulatesAndDecays(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	st.RecordTagInteraction([]string{"fantasy"}, 2.0, testNow)

	// Added 2.0, then decayed once: 2.0 * 0.95.
	if got, want := st.TagAffinity["fantasy"], 2.0*TagDecayFactor; got != want {
		t.Errorf("affinity after one interaction = %v, want %v", got, want)
	}

	st.RecordTagInteraction([]string{"scifi"}, 1.0, testNow)
	// fantasy was not reinforced, so it decays again.
	if got, want := st.TagAffinity["fantasy"], 2.0*TagDecayFactor*TagDecayFactor; got != want {
		t.Errorf("unreinforced affinity = %v, want %v", got, want)
	}
}

func TestUnreinforcedTagDecaysMonotonically(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	st.RecordTagInteraction([]string{"fantasy"}, 3.0, testNow)

	prev := st.TagAffinity["fantasy"]
	for i := 0; i < 100; i++ {
		st.RecordTagInteraction([]string{"other"}, 0.5, testNow)
		cur, ok := st.TagAffinity["fantasy"]
		if !ok {
			return // dropped at the floor, as expected eventually
		}
		if cur >= prev {
			t.Fatalf("affinity did not strictly decrease: %v -> %v", prev, cur)
		}
		if cur < TagScoreFloor {
			t.Fatalf("affinity %v below floor but still present", cur)
		}
		prev = cur
	}
	t.Fatal("affinity never dropped below the floor after 100 decay passes")
}

func TestPreferredTagsTopTen(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	for i := 0; i < 15; i++ {
		tag := fmt.Sprintf("tag%02d", i)
		st.RecordView("c1", nil, nil, testNow)
		st.TagAffinity[tag] = float64(i + 1)
	}
	st.recomputePreferred()

	if len(st.PreferredTags) != MaxPreferredTags {
		t.Fatalf("preferred tags = %d, want %d", len(st.PreferredTags), MaxPreferredTags)
	}
	if st.PreferredTags[0] != "tag14" {
		t.Errorf("strongest tag = %q, want tag14", st.PreferredTags[0])
	}
	for _, tag := range st.PreferredTags {
		if st.TagAffinity[tag] < 6 {
			t.Errorf("weak tag %q (affinity %v) in top ten", tag, st.TagAffinity[tag])
		}
	}
}

func TestCleanupRemovesStaleSeenEntries(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	st.RecordView("old", []string{"m1"}, nil, testNow.Add(-31*24*time.Hour))
	st.RecordView("fresh", []string{"m2"}, nil, testNow.Add(-time.Hour))

	st.Cleanup(testNow)

	if _, ok := st.SeenContent["old"]; ok {
		t.Error("stale seen entry survived cleanup")
	}
	if _, ok := st.SeenMedia["old"]; ok {
		t.Error("stale seen media survived cleanup")
	}
	if _, ok := st.SeenContent["fresh"]; !ok {
		t.Error("fresh entry removed by cleanup")
	}
}

func TestCleanupIdempotent(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	st.RecordView("old", nil, nil, testNow.Add(-40*24*time.Hour))
	st.RecordView("fresh", nil, nil, testNow)

	st.Cleanup(testNow)
	before := len(st.SeenContent)
	st.Cleanup(testNow)
	if len(st.SeenContent) != before {
		t.Errorf("second cleanup changed state: %d -> %d", before, len(st.SeenContent))
	}
}

func TestRecordViewRunsCleanup(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	st.RecordView("old", nil, nil, testNow.Add(-40*24*time.Hour))
	st.RecordView("fresh", nil, nil, testNow)

	if _, ok := st.SeenContent["old"]; ok {
		t.Error("mutation did not run opportunistic cleanup")
	}
}

func TestSignalsProjection(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	st.RecordView("c1", []string{"m1"}, []string{"fantasy"}, testNow)

	sig := st.Signals()
	if _, ok := sig.SeenContent["c1"]; !ok {
		t.Error("seen content missing from signals")
	}
	if len(sig.SeenMedia["c1"]) != 1 {
		t.Error("seen media missing from signals")
	}
	if len(sig.PreferredTags) != 1 || sig.PreferredTags[0] != "fantasy" {
		t.Errorf("preferred tags = %v, want [fantasy]", sig.PreferredTags)
	}
}

func TestStatsSummary(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	st.RecordView("c1", []string{"m1", "m2"}, []string{"fantasy"}, testNow)
	st.RecordView("c2", []string{"m3"}, nil, testNow)

	stats := st.Stats()
	if stats.ContentSeen != 2 {
		t.Errorf("ContentSeen = %d, want 2", stats.ContentSeen)
	}
	if stats.MediaSeen != 3 {
		t.Errorf("MediaSeen = %d, want 3", stats.MediaSeen)
	}
}
