// Package persistence selects a progress store backend from configuration and
// wraps it with retries, a circuit breaker, logging and latency observation.
package persistence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/pkg/circuitbreaker"
	"github.com/MirasRuslanJR/PyShark/pkg/logger"
	"github.com/MirasRuslanJR/PyShark/pkg/retry"
)

const domainName = "store"

// Observer receives one call per store operation, after retries.
type Observer interface {
	ObserveStore(backend, op string, elapsed time.Duration, err error)
	BreakerStateChanged(backend string, state circuitbreaker.State)
}

type noopObserver struct{}

func (noopObserver) ObserveStore(string, string, time.Duration, error) {}
func (noopObserver) BreakerStateChanged(string, circuitbreaker.State)  {}

// GuardConfig tunes the resilience wrapper.
type GuardConfig struct {
	Backend          string
	RetryAttempts    int
	RetryDelay       time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	// BreakerSuccesses half-open successes close the circuit again.
	BreakerSuccesses int
}

// DefaultGuardConfig returns settings suited to a local store.
func DefaultGuardConfig(backend string) GuardConfig {
	return GuardConfig{
		Backend:          backend,
		RetryAttempts:    3,
		RetryDelay:       50 * time.Millisecond,
		BreakerThreshold: 3,
		BreakerCooldown:  10 * time.Second,
		BreakerSuccesses: 1,
	}
}

// GuardedStore decorates a progress.Store.
//
// Only StorageUnavailable errors are retried and counted by the breaker.
// NotFound and CorruptState pass through on the first attempt.
type GuardedStore struct {
	inner    progress.Store
	backend  string
	retrier  *retry.Retrier
	breaker  *circuitbreaker.CircuitBreaker
	log      *zap.Logger
	observer Observer
}

// NewGuardedStore wraps inner. A nil logger or observer disables that concern.
func NewGuardedStore(inner progress.Store, cfg GuardConfig, log *zap.Logger, observer Observer) *GuardedStore {
	if log == nil {
		log = logger.Nop()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	log = log.With(logger.Component("store"), logger.Backend(cfg.Backend))

	g := &GuardedStore{
		inner:    inner,
		backend:  cfg.Backend,
		log:      log,
		observer: observer,
	}

	g.breaker = circuitbreaker.New(cfg.Backend,
		circuitbreaker.WithFailureThreshold(cfg.BreakerThreshold),
		circuitbreaker.WithCooldown(cfg.BreakerCooldown),
		circuitbreaker.WithSuccessThreshold(cfg.BreakerSuccesses),
		circuitbreaker.WithIsFailure(shared.IsRetryable),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("store circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			observer.BreakerStateChanged(name, to)
		}),
	)

	g.retrier = retry.New(
		retry.WithMaxAttempts(cfg.RetryAttempts),
		retry.WithInitialDelay(cfg.RetryDelay),
		retry.WithRetryIf(func(err error) bool {
			return shared.IsRetryable(err) && !errors.Is(err, circuitbreaker.ErrCircuitOpen)
		}),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying store call",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}),
	)
	return g
}

// Backend returns the wrapped backend's name.
func (g *GuardedStore) Backend() string { return g.backend }

// BreakerState returns the current circuit state.
func (g *GuardedStore) BreakerState() circuitbreaker.State { return g.breaker.State() }

// Load implements progress.Store.
func (g *GuardedStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := g.call(ctx, "Load", func(ctx context.Context) error {
		var err error
		data, err = g.inner.Load(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save implements progress.Store.
func (g *GuardedStore) Save(ctx context.Context, key string, data []byte) error {
	return g.call(ctx, "Save", func(ctx context.Context) error {
		return g.inner.Save(ctx, key, data)
	})
}

// Ping checks the backend when it supports health checks; the breaker is bypassed.
func (g *GuardedStore) Ping(ctx context.Context) error {
	hc, ok := g.inner.(progress.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.Ping(ctx); err != nil {
		return shared.StorageUnavailable(domainName, "Ping", err)
	}
	return nil
}

// KeepsHistory reports whether the backend records XP history.
func (g *GuardedStore) KeepsHistory() bool {
	_, ok := g.inner.(progress.HistoryReader)
	return ok
}

// XPHistory implements progress.HistoryReader. Backends without history
// return an empty slice.
func (g *GuardedStore) XPHistory(ctx context.Context, key string, limit int) ([]progress.XPChange, error) {
	hr, ok := g.inner.(progress.HistoryReader)
	if !ok {
		return nil, nil
	}
	var out []progress.XPChange
	err := g.call(ctx, "XPHistory", func(ctx context.Context) error {
		var err error
		out, err = hr.XPHistory(ctx, key, limit)
		return err
	})
	return out, err
}

func (g *GuardedStore) call(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := g.retrier.Do(ctx, func(ctx context.Context) error {
		err := g.breaker.Execute(ctx, fn)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return shared.StorageUnavailable(domainName, op, err)
		}
		return err
	})
	elapsed := time.Since(start)
	g.observer.ObserveStore(g.backend, op, elapsed, err)

	switch {
	case err == nil:
		g.log.Debug("store call", logger.Operation(op), logger.Latency(elapsed))
	case shared.IsNotFound(err):
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		g.log.Debug("store call rejected by open circuit", logger.Operation(op))
	default:
		g.log.Warn("store call failed", logger.Operation(op), logger.Latency(elapsed), zap.Error(err))
	}
	return err
}
