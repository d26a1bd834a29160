// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

// Package api exposes the discovery engine over HTTP: the feed
// endpoint, interaction event ingestion, profile lookups, and the
// operational endpoints (health, metrics).
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig holds the HTTP-facing knobs.
type RouterConfig struct {
	// RequestTimeout bounds each request end to end.
	RequestTimeout time.Duration

	// RateLimit is requests per minute per client IP; zero disables.
	RateLimit int
}

// NewRouter builds the chi router around the handler set.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(s *Server, cfg RouterConfig, logger zerolog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	r.Use(requestLogger(logger))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
		}

		r.Post("/feed", s.handleFeed)
		r.Post("/events/view", s.handleViewEvent)
		r.Post("/events/tags", s.handleTagEvent)
		r.Post("/events/engagement", s.handleEngagementEvent)

		r.Get("/profile/{userID}", s.handleProfile)
		r.Get("/profile/{userID}/stats", s.handleUserStats)
		r.Get("/stats/platform", s.handlePlatformStats)
		r.Get("/stats/aggregator", s.handleAggregatorStats)
	})

	return r
}

// requestLogger emits one debug line per request.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
