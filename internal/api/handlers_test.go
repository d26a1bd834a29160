// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kyarahub/discovery/internal/discovery"
	"github.com/kyarahub/discovery/internal/prefs"
	"github.com/kyarahub/discovery/internal/state"
)

func testHandler(t *testing.T, catalog CatalogProvider) (http.Handler, *state.MemoryStore, *prefs.MemoryCache) {
	t.Helper()

	store := state.NewMemoryStore()
	cache := prefs.NewMemoryCache()

	cfg := discovery.DefaultConfig()
	cfg.Seed = 7
	engine, err := discovery.NewEngine(cfg, state.SignalSource{Store: store}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}

	server := NewServer(engine, store, cache, catalog, zerolog.Nop())
	handler := NewRouter(server, RouterConfig{RequestTimeout: 5 * time.Second}, zerolog.Nop())
	return handler, store, cache
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func catalogItems(n int) []discovery.ContentItem {
	now := time.Now()
	items := make([]discovery.ContentItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, discovery.ContentItem{
			ID:            "c" + string(rune('a'+i)),
			Tags:          []string{"fantasy"},
			CreatedAt:     now.AddDate(0, 0, -60),
			LatestMediaAt: now.AddDate(0, 0, -10),
			MediaCount:    i,
		})
	}
	return items
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	handler, _, _ := testHandler(t, nil)
	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestFeedFromCatalog(t *testing.T) {
	t.Parallel()

	handler, _, _ := testHandler(t, StaticCatalog{Items: catalogItems(20)})
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/feed", feedRequest{Limit: 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp feedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 5 {
		t.Errorf("items = %d, want 5", len(resp.Items))
	}
	if !resp.ColdStart {
		t.Error("anonymous request without state should be cold start")
	}
	if resp.TotalCandidates != 20 {
		t.Errorf("total candidates = %d, want 20", resp.TotalCandidates)
	}
}

func TestFeedInlineCandidatesOverrideCatalog(t *testing.T) {
	t.Parallel()

	handler, _, _ := testHandler(t, StaticCatalog{Items: catalogItems(20)})
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/feed", feedRequest{
		Limit:      3,
		Candidates: catalogItems(3),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp feedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalCandidates != 3 {
		t.Errorf("total candidates = %d, want inline pool of 3", resp.TotalCandidates)
	}
}

func TestFeedAnonymousStateBlob(t *testing.T) {
	t.Parallel()

	// Build a blob with a strong fantasy affinity and one seen item.
	st := state.NewUserState("")
	st.RecordView("ca", nil, []string{"fantasy"}, time.Now())
	blob, err := state.EncodeBlob(st)
	if err != nil {
		t.Fatalf("EncodeBlob() error: %v", err)
	}

	handler, _, _ := testHandler(t, StaticCatalog{Items: catalogItems(20)})
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/feed", feedRequest{
		Limit: 5,
		State: blob,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp feedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ColdStart {
		t.Error("request with state blob should take the personalized path")
	}
}

func TestFeedMalformedBlobFallsBackToColdStart(t *testing.T) {
	t.Parallel()

	handler, _, _ := testHandler(t, StaticCatalog{Items: catalogItems(20)})
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/feed", map[string]any{
		"limit": 5,
		"state": map[string]any{"seen_content": "not-a-map"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite broken blob", rec.Code)
	}

	var resp feedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.ColdStart {
		t.Error("broken blob should degrade to cold start, not fail")
	}
}

func TestViewEventRegisteredUser(t *testing.T) {
	t.Parallel()

	handler, store, _ := testHandler(t, nil)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/events/view", viewEventRequest{
		UserID:    "u1",
		ContentID: "c1",
		MediaIDs:  []string{"m1"},
		Tags:      []string{"fantasy"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	st, err := store.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if _, ok := st.SeenContent["c1"]; !ok {
		t.Error("view not persisted for registered user")
	}
}

func TestViewEventAnonymousReturnsBlob(t *testing.T) {
	t.Parallel()

	handler, _, _ := testHandler(t, nil)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/events/view", viewEventRequest{
		ContentID: "c1",
		MediaIDs:  []string{"m1"},
		Tags:      []string{"fantasy"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp eventResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.State) == 0 {
		t.Fatal("anonymous event did not return updated state blob")
	}

	st, err := state.DecodeBlob(resp.State)
	if err != nil {
		t.Fatalf("returned blob undecodable: %v", err)
	}
	if _, ok := st.SeenContent["c1"]; !ok {
		t.Error("returned blob missing the recorded view")
	}
}

func TestViewEventRequiresContentID(t *testing.T) {
	t.Parallel()

	handler, _, _ := testHandler(t, nil)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/events/view", viewEventRequest{UserID: "u1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTagEventAccumulates(t *testing.T) {
	t.Parallel()

	handler, store, _ := testHandler(t, nil)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/events/tags", tagEventRequest{
		UserID:   "u1",
		Tags:     []string{"fantasy"},
		Strength: 2.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	st, err := store.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if st.TagAffinity["fantasy"] <= 0 {
		t.Error("tag interaction not persisted")
	}
}

func TestTagEventRequiresTags(t *testing.T) {
	t.Parallel()

	handler, _, _ := testHandler(t, nil)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/events/tags", tagEventRequest{UserID: "u1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProfileLookup(t *testing.T) {
	t.Parallel()

	handler, _, cache := testHandler(t, nil)

	if rec := doJSON(t, handler, http.MethodGet, "/api/v1/profile/u1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing profile status = %d, want 404", rec.Code)
	}

	err := cache.Put(context.Background(), &prefs.Profile{
		UserID:        "u1",
		PreferredTags: []string{"fantasy"},
		TotalWeight:   3,
		ComputedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/profile/u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var p prefs.Profile
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if len(p.PreferredTags) != 1 || p.PreferredTags[0] != "fantasy" {
		t.Errorf("profile tags = %v, want [fantasy]", p.PreferredTags)
	}
}

func TestUserStats(t *testing.T) {
	t.Parallel()

	handler, store, _ := testHandler(t, nil)
	if _, err := store.RecordView(context.Background(), "u1", "c1", []string{"m1"}, nil); err != nil {
		t.Fatalf("RecordView() error: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/profile/u1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats state.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ContentSeen != 1 || stats.MediaSeen != 1 {
		t.Errorf("stats = %+v, want one seen item and one media", stats)
	}
}

func TestPlatformStatsEmpty(t *testing.T) {
	t.Parallel()

	handler, _, _ := testHandler(t, nil)
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/stats/platform", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for empty cache", rec.Code)
	}
}

func TestAggregatorStats(t *testing.T) {
	t.Parallel()

	handler, _, cache := testHandler(t, nil)

	if rec := doJSON(t, handler, http.MethodGet, "/api/v1/stats/aggregator", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status before any run = %d, want 404", rec.Code)
	}

	err := cache.PutRunStats(context.Background(), &prefs.RunStats{Processed: 3})
	if err != nil {
		t.Fatalf("PutRunStats() error: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/stats/aggregator", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rs prefs.RunStats
	if err := json.Unmarshal(rec.Body.Bytes(), &rs); err != nil {
		t.Fatalf("decode run stats: %v", err)
	}
	if rs.Processed != 3 {
		t.Errorf("processed = %d, want 3", rs.Processed)
	}
}

func TestEngagementEventDisabled(t *testing.T) {
	t.Parallel()

	handler, _, _ := testHandler(t, nil)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/events/engagement", engagementRequest{
		UserID: "u1",
		Kind:   prefs.KindLike,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when ingestion not wired", rec.Code)
	}
}
