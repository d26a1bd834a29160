// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

// Package discovery implements the feed sequencing engine: scoring
// candidates against per-user interaction signals, weighted random
// sampling without replacement, per-item media rotation, and the
// cold-start path for users with no signal.
//
// # Pipeline
//
//	candidates -> Scorer -> SelectTopItems -> RotateMedia -> Response
//
// Scoring composes multiplicative factors: seen-content decay,
// freshness, tag relevance, popularity, new-media, and a bounded
// random jitter. Scores are relative weights consumed only by the
// sampler, which oversamples the top scorers and draws without
// replacement so results favor relevance while staying varied.
//
// # Degradation
//
// The engine never fails a request that arrives with candidates. When
// the interaction-state read times out or the circuit breaker is open,
// the request is served through the cold-start path instead.
//
// The package has no dependencies on other internal packages except
// metrics; collaborators integrate through the SignalProvider and
// ProfileProvider interfaces.
package discovery
