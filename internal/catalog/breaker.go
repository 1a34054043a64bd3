// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/bingelog/bingelog/internal/logging"
	"github.com/bingelog/bingelog/internal/metrics"
	"github.com/bingelog/bingelog/internal/models"
)

// BreakerClient wraps a catalog Client with a circuit breaker so repeated
// catalog failures short-circuit to ErrUnavailable instead of blocking
// callers on doomed requests. The resolver then records an unresolved
// mention and the caller may retry later.
//
// The breaker uses real time for its interval and timeout; tests exercise
// the wrapped client directly.
type BreakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker[interface{}]
	name  string
}

// NewBreakerClient wraps inner with a circuit breaker. The circuit opens
// after a 60% failure rate over at least 10 requests, holds open for two
// minutes, then allows three half-open probes.
func NewBreakerClient(inner Client) *BreakerClient {
	const cbName = "catalog-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening catalog circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("catalog circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{inner: inner, cb: cb, name: cbName}
}

// Search delegates to the inner client under breaker protection.
func (b *BreakerClient) Search(ctx context.Context, query string, yearHint int, typeHint models.MediaType) ([]Candidate, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.Search(ctx, query, yearHint, typeHint)
	})
	if err != nil {
		return nil, err
	}
	candidates, ok := result.([]Candidate)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return candidates, nil
}

// Details delegates to the inner client under breaker protection.
func (b *BreakerClient) Details(ctx context.Context, id int, mediaType models.MediaType) (*Details, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.Details(ctx, id, mediaType)
	})
	if err != nil {
		return nil, err
	}
	details, ok := result.(*Details)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return details, nil
}

func (b *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CatalogRequests.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		metrics.CatalogRequests.WithLabelValues("failure").Inc()
		return nil, err
	}

	metrics.CatalogRequests.WithLabelValues("success").Inc()
	return result, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
