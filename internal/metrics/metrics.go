// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the discovery service:
// - Feed sequencing throughput and degradation
// - Interaction state store operations
// - Nightly preference aggregation runs

var (
	// Feed sequencing metrics
	FeedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_requests_total",
			Help: "Total number of feed sequencing requests",
		},
	)

	FeedDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_degraded_total",
			Help: "Feed requests served via cold start because the state store was unavailable",
		},
	)

	FeedLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_request_duration_seconds",
			Help:    "Feed sequencing latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	SamplerPoolSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_sampler_pool_size",
			Help:    "Scored candidate pool size entering the weighted sampler",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)

	// Interaction state store metrics
	StateOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_state_ops_total",
			Help: "Total interaction state store operations",
		},
		[]string{"op", "result"}, // op: get, record_view, record_tags, purge
	)

	StatePurgedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interaction_state_purged_records_total",
			Help: "Whole user records deleted by the retention sweep",
		},
	)

	// Nightly preference aggregation metrics
	AggregatorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_aggregator_runs_total",
			Help: "Total nightly preference aggregation runs",
		},
		[]string{"result"}, // result: ok, error, cancelled
	)

	AggregatorUsersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_aggregator_users_total",
			Help: "Users handled by the nightly preference aggregation",
		},
		[]string{"outcome"}, // outcome: processed, skipped, failed
	)

	AggregatorRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preference_aggregator_run_duration_seconds",
			Help:    "Duration of a full nightly aggregation run",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)
)
