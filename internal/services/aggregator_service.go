// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

// Package services provides Suture service wrappers for the background
// components: the nightly preference aggregation and the interaction
// state retention sweep.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kyarahub/discovery/internal/prefs"
)

// PreferenceAggregator is the slice of the aggregator the service
// drives.
type PreferenceAggregator interface {
	Run(ctx context.Context) (prefs.RunStats, error)
}

// AggregatorServiceConfig holds scheduling configuration for the
// aggregation service.
type AggregatorServiceConfig struct {
	// Interval between runs. The first run fires one full interval
	// after startup.
	Interval time.Duration

	// RunTimeout bounds a single run.
	RunTimeout time.Duration
}

// AggregatorService runs the preference aggregation on a schedule
// under Suture supervision.
type AggregatorService struct {
	aggregator PreferenceAggregator
	config     AggregatorServiceConfig
	logger     zerolog.Logger
	name       string
}

// NewAggregatorService creates the aggregation scheduler service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAggregatorService(aggregator PreferenceAggregator, cfg AggregatorServiceConfig, logger zerolog.Logger) *AggregatorService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Hour
	}
	return &AggregatorService{
		aggregator: aggregator,
		config:     cfg,
		logger:     logger.With().Str("service", "aggregator").Logger(),
		name:       "aggregator-service",
	}
}

// Serve implements the suture.Service interface.
func (s *AggregatorService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.config.Interval).
		Msg("aggregation service starting")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("aggregation service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.runOnce(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled aggregation failed")
			}
		}
	}
}

func (s *AggregatorService) runOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	stats, err := s.aggregator.Run(runCtx)
	if err != nil {
		return err
	}

	s.logger.Info().
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("scheduled aggregation complete")
	return nil
}

// String returns the service name for supervision logs.
func (s *AggregatorService) String() string {
	return s.name
}
