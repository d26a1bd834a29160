// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

// Command server runs the discovery service: the feed API, the
// interaction state store, and the supervised background jobs
// (nightly preference aggregation, state retention sweep).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/kyarahub/discovery/internal/api"
	"github.com/kyarahub/discovery/internal/config"
	"github.com/kyarahub/discovery/internal/discovery"
	"github.com/kyarahub/discovery/internal/logging"
	"github.com/kyarahub/discovery/internal/prefs"
	"github.com/kyarahub/discovery/internal/services"
	"github.com/kyarahub/discovery/internal/state"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("service failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logger.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Bool("aggregator", cfg.Aggregator.Enabled).
		Msg("discovery service starting")

	db, err := openBadger(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("store close failed")
		}
	}()

	stateStore := state.NewBadgerStore(db, logger)
	profileCache := prefs.NewBadgerCache(db, logger)
	engagementLog := prefs.NewEngagementLog(db)

	engine, err := discovery.NewEngine(&cfg.Discovery, state.SignalSource{Store: stateStore}, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	engine.SetProfileProvider(prefs.TagSource{Cache: profileCache})

	var catalog api.CatalogProvider
	if cfg.Catalog.Path != "" {
		fc, cerr := api.NewFileCatalog(cfg.Catalog.Path)
		if cerr != nil {
			return fmt.Errorf("load catalog: %w", cerr)
		}
		catalog = fc
	}

	server := api.NewServer(engine, stateStore, profileCache, catalog, logger)
	server.SetEngagementRecorder(engagementLog)
	handler := api.NewRouter(server, api.RouterConfig{
		RequestTimeout: cfg.Server.Timeout,
		RateLimit:      cfg.Server.RateLimit,
	}, logger)

	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()
	root := suture.New("discovery", suture.Spec{EventHook: hook})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	root.Add(services.NewHTTPService(addr, handler, cfg.Server.Timeout, logger))

	root.Add(services.NewRetentionService(stateStore, services.RetentionServiceConfig{
		SweepInterval: cfg.Retention.SweepInterval,
		Retention:     time.Duration(cfg.Retention.StateDays) * 24 * time.Hour,
	}, logger))

	if cfg.Aggregator.Enabled {
		aggregator := prefs.NewAggregator(engagementLog, profileCache, cfg.Aggregator.UsersPerSecond, logger)
		root.Add(services.NewAggregatorService(aggregator, services.AggregatorServiceConfig{
			Interval: cfg.Aggregator.Interval,
		}, logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = root.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logger.Info().Msg("discovery service stopped")
	return nil
}

func openBadger(cfg *config.Config) (*badger.DB, error) {
	var opts badger.Options
	if cfg.Store.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Store.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Store.Path)
	}
	opts = opts.WithLogger(nil)
	return badger.Open(opts)
}
