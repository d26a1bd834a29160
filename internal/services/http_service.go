// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPService runs an http.Server under Suture supervision, shutting
// it down gracefully when the supervisor cancels the context.
type HTTPService struct {
	server *http.Server
	logger zerolog.Logger
	name   string
}

// NewHTTPService wraps the handler in a supervised HTTP server.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPService(addr string, handler http.Handler, timeout time.Duration, logger zerolog.Logger) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
			IdleTimeout:       2 * timeout,
		},
		logger: logger.With().Str("service", "http").Logger(),
		name:   "http-service",
	}
}

// Serve implements the suture.Service interface.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("http shutdown incomplete")
		}
		return ctx.Err()

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// String returns the service name for supervision logs.
func (s *HTTPService) String() string {
	return s.name
}
