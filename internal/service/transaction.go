package service

import (
	"context"

	"github.com/cassiomorais/realestate/internal/domain/stats"
	"github.com/cassiomorais/realestate/internal/providers"
	"github.com/rs/zerolog"
)

// TransactionManager defines the interface for transaction management.
// Services use this to wrap multiple repository operations in a single transaction.
type TransactionManager interface {
	// WithTransaction executes the given function within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// Otherwise, it is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Charger settles a payment with the external gateway.
type Charger interface {
	Charge(ctx context.Context, req providers.ChargeRequest) (*providers.Result, error)
}

// Locker takes a short-lived exclusive lock on key. The returned func releases it.
type Locker interface {
	TryLock(ctx context.Context, key string) (func(context.Context) error, error)
}

// StatsCache holds the last full statistics report.
type StatsCache interface {
	Get(ctx context.Context) (stats.Report, error)
	Set(ctx context.Context, report stats.Report) error
	Invalidate(ctx context.Context) error
}

// invalidateStats drops the cached report after a write that changes it. A
// failed invalidation is only logged, the entry still expires with its TTL.
func invalidateStats(ctx context.Context, cache StatsCache, logger zerolog.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		logger.Warn().Err(err).Msg("Failed to invalidate stats cache")
	}
}
