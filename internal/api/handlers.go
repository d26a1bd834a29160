// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kyarahub/discovery/internal/discovery"
	"github.com/kyarahub/discovery/internal/prefs"
	"github.com/kyarahub/discovery/internal/state"
)

// maxBodySize caps request bodies; the dominant payload is an
// anonymous state blob, which is itself capped at state.MaxBlobSize.
const maxBodySize = state.MaxBlobSize + 64*1024

// CatalogProvider supplies the candidate pool, already filtered for
// visibility and eligibility. The engine does no access control.
type CatalogProvider interface {
	Candidates(ctx context.Context) ([]discovery.ContentItem, error)
}

// EngagementRecorder ingests long-horizon engagement events for the
// nightly aggregation.
type EngagementRecorder interface {
	Append(ctx context.Context, userID string, rec prefs.EngagementRecord) error
}

// Server holds the handler dependencies.
type Server struct {
	engine      *discovery.Engine
	store       state.Store
	cache       prefs.CacheStore
	catalog     CatalogProvider
	engagements EngagementRecorder
	logger      zerolog.Logger
}

// NewServer creates the handler set.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewServer(engine *discovery.Engine, store state.Store, cache prefs.CacheStore, catalog CatalogProvider, logger zerolog.Logger) *Server {
	return &Server{
		engine:  engine,
		store:   store,
		cache:   cache,
		catalog: catalog,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// SetEngagementRecorder wires the engagement ingestion endpoint.
// Optional; platforms with their own event stores skip it.
func (s *Server) SetEngagementRecorder(rec EngagementRecorder) {
	s.engagements = rec
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// feedRequest is the POST /api/v1/feed body. Anonymous clients carry
// their own state blob; registered clients send a user ID instead.
// Candidates may be supplied inline; otherwise the catalog provider is
// consulted.
type feedRequest struct {
	UserID        string                  `json:"user_id,omitempty"`
	Limit         int                     `json:"limit,omitempty"`
	ExcludeRecent bool                    `json:"exclude_recent,omitempty"`
	State         json.RawMessage         `json:"state,omitempty"`
	Candidates    []discovery.ContentItem `json:"candidates,omitempty"`
}

type feedResponse struct {
	Items           []discovery.ContentItem    `json:"items"`
	TotalCandidates int                        `json:"total_candidates"`
	ColdStart       bool                       `json:"cold_start"`
	Metadata        discovery.ResponseMetadata `json:"metadata"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if !s.readBody(w, r, &req) {
		return
	}

	candidates := req.Candidates
	if candidates == nil && s.catalog != nil {
		var err error
		candidates, err = s.catalog.Candidates(r.Context())
		if err != nil {
			s.writeError(w, http.StatusBadGateway, "candidate pool unavailable")
			return
		}
	}

	engineReq := discovery.Request{
		UserID:        req.UserID,
		Limit:         req.Limit,
		Candidates:    candidates,
		ExcludeRecent: req.ExcludeRecent,
	}
	if req.UserID == "" && len(req.State) > 0 {
		engineReq.Signals = state.DecodeBlobOrNew(req.State, "").Signals()
	}

	resp, err := s.engine.Sequence(r.Context(), engineReq)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "sequencing failed")
		return
	}

	s.writeJSON(w, http.StatusOK, feedResponse{
		Items:           resp.Items,
		TotalCandidates: resp.TotalCandidates,
		ColdStart:       resp.ColdStart,
		Metadata:        resp.Metadata,
	})
}

// viewEventRequest is the POST /api/v1/events/view body.
type viewEventRequest struct {
	UserID    string          `json:"user_id,omitempty"`
	ContentID string          `json:"content_id"`
	MediaIDs  []string        `json:"media_ids,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
}

// eventResponse carries the updated state blob back to anonymous
// clients; registered users get only the ack.
type eventResponse struct {
	OK    bool            `json:"ok"`
	State json.RawMessage `json:"state,omitempty"`
}

func (s *Server) handleViewEvent(w http.ResponseWriter, r *http.Request) {
	var req viewEventRequest
	if !s.readBody(w, r, &req) {
		return
	}
	if req.ContentID == "" {
		s.writeError(w, http.StatusBadRequest, "content_id is required")
		return
	}

	if req.UserID != "" {
		if _, err := s.store.RecordView(r.Context(), req.UserID, req.ContentID, req.MediaIDs, req.Tags); err != nil {
			s.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("record view failed")
			s.writeError(w, http.StatusServiceUnavailable, "state store unavailable")
			return
		}
		s.writeJSON(w, http.StatusOK, eventResponse{OK: true})
		return
	}

	st := state.DecodeBlobOrNew(req.State, "")
	st.RecordView(req.ContentID, req.MediaIDs, req.Tags, s.engine.Now())
	s.writeAnonymousState(w, st)
}

// tagEventRequest is the POST /api/v1/events/tags body.
type tagEventRequest struct {
	UserID   string          `json:"user_id,omitempty"`
	Tags     []string        `json:"tags"`
	Strength float64         `json:"strength"`
	State    json.RawMessage `json:"state,omitempty"`
}

func (s *Server) handleTagEvent(w http.ResponseWriter, r *http.Request) {
	var req tagEventRequest
	if !s.readBody(w, r, &req) {
		return
	}
	if len(req.Tags) == 0 {
		s.writeError(w, http.StatusBadRequest, "tags are required")
		return
	}
	if req.Strength <= 0 {
		req.Strength = 1.0
	}

	if req.UserID != "" {
		if _, err := s.store.RecordTagInteraction(r.Context(), req.UserID, req.Tags, req.Strength); err != nil {
			s.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("record tag interaction failed")
			s.writeError(w, http.StatusServiceUnavailable, "state store unavailable")
			return
		}
		s.writeJSON(w, http.StatusOK, eventResponse{OK: true})
		return
	}

	st := state.DecodeBlobOrNew(req.State, "")
	st.RecordTagInteraction(req.Tags, req.Strength, s.engine.Now())
	s.writeAnonymousState(w, st)
}

func (s *Server) writeAnonymousState(w http.ResponseWriter, st *state.UserState) {
	blob, err := state.EncodeBlob(st)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "state blob too large")
		return
	}
	s.writeJSON(w, http.StatusOK, eventResponse{OK: true, State: blob})
}

// engagementRequest is the POST /api/v1/events/engagement body.
type engagementRequest struct {
	UserID       string   `json:"user_id"`
	Kind         string   `json:"kind"`
	Gender       string   `json:"gender,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	NSFW         bool     `json:"nsfw,omitempty"`
	MessageCount int      `json:"message_count,omitempty"`
}

func (s *Server) handleEngagementEvent(w http.ResponseWriter, r *http.Request) {
	if s.engagements == nil {
		s.writeError(w, http.StatusNotFound, "engagement ingestion not enabled")
		return
	}

	var req engagementRequest
	if !s.readBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.Kind == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and kind are required")
		return
	}

	err := s.engagements.Append(r.Context(), req.UserID, prefs.EngagementRecord{
		Kind:         req.Kind,
		Gender:       req.Gender,
		Tags:         req.Tags,
		NSFW:         req.NSFW,
		MessageCount: req.MessageCount,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, eventResponse{OK: true})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	profile, err := s.cache.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "profile cache unavailable")
		return
	}
	if profile == nil {
		s.writeError(w, http.StatusNotFound, "no profile")
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	st, err := s.store.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "state store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, st.Stats())
}

func (s *Server) handleAggregatorStats(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.cache.(prefs.RunRecorder)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run metadata not available")
		return
	}
	stats, err := rec.LastRunStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "profile cache unavailable")
		return
	}
	if stats == nil {
		s.writeError(w, http.StatusNotFound, "no completed runs")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePlatformStats(w http.ResponseWriter, r *http.Request) {
	stats, err := prefs.ComputePlatformStats(r.Context(), s.cache)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "profile cache unavailable")
		return
	}
	if stats == nil {
		s.writeError(w, http.StatusNotFound, "no cached profiles")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
