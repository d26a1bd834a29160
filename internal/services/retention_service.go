// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StaleRecordPurger is the slice of the state store the sweep drives.
type StaleRecordPurger interface {
	PurgeStale(ctx context.Context, retention time.Duration) (int, error)
}

// RetentionServiceConfig holds scheduling configuration for the
// retention sweep.
type RetentionServiceConfig struct {
	// SweepInterval between sweeps.
	SweepInterval time.Duration

	// Retention is how long untouched user records are kept.
	Retention time.Duration

	// SweepTimeout bounds a single sweep.
	SweepTimeout time.Duration
}

// RetentionService periodically deletes interaction state records left
// untouched past the retention window.
type RetentionService struct {
	store  StaleRecordPurger
	config RetentionServiceConfig
	logger zerolog.Logger
	name   string
}

// NewRetentionService creates the retention sweep service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRetentionService(store StaleRecordPurger, cfg RetentionServiceConfig, logger zerolog.Logger) *RetentionService {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 6 * time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 90 * 24 * time.Hour
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = 10 * time.Minute
	}
	return &RetentionService{
		store:  store,
		config: cfg,
		logger: logger.With().Str("service", "retention").Logger(),
		name:   "retention-service",
	}
}

// Serve implements the suture.Service interface.
func (s *RetentionService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("sweep_interval", s.config.SweepInterval).
		Dur("retention", s.config.Retention).
		Msg("retention service starting")

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("retention service shutting down")
			return ctx.Err()

		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
			purged, err := s.store.PurgeStale(sweepCtx, s.config.Retention)
			cancel()
			if err != nil {
				s.logger.Warn().Err(err).Msg("retention sweep failed")
				continue
			}
			s.logger.Debug().Int("purged", purged).Msg("retention sweep complete")
		}
	}
}

// String returns the service name for supervision logs.
func (s *RetentionService) String() string {
	return s.name
}
