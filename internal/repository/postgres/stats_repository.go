package postgres

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsRepository implements stats.Repository. Every query is a single
// read-only aggregate, safe to run concurrently on separate pool connections.
type StatsRepository struct {
	pool *pgxpool.Pool
}

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

func (r *StatsRepository) CountUsers(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (r *StatsRepository) CountProperties(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM properties`)
}

func (r *StatsRepository) CountPayments(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM payments`)
}

func (r *StatsRepository) CountPaidPayments(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM payments WHERE status = 'paid'`)
}

func (r *StatsRepository) CountSoldProperties(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(DISTINCT property_id) FROM payments WHERE status = 'paid'`)
}

func (r *StatsRepository) CountOwners(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(DISTINCT owner_id) FROM properties`)
}

func (r *StatsRepository) SumPaidAmount(ctx context.Context) (int64, error) {
	return r.cents(ctx, `SELECT SUM(amount)::text FROM payments WHERE status = 'paid'`)
}

func (r *StatsRepository) MinPrice(ctx context.Context) (int64, error) {
	return r.cents(ctx, `SELECT MIN(price)::text FROM properties`)
}

func (r *StatsRepository) MaxPrice(ctx context.Context) (int64, error) {
	return r.cents(ctx, `SELECT MAX(price)::text FROM properties`)
}

func (r *StatsRepository) AveragePrice(ctx context.Context) (float64, error) {
	return r.averageCents(ctx, `SELECT AVG(price)::text FROM properties`)
}

func (r *StatsRepository) AveragePaidAmount(ctx context.Context) (float64, error) {
	return r.averageCents(ctx, `SELECT AVG(amount)::text FROM payments WHERE status = 'paid'`)
}

func (r *StatsRepository) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("stats query: %w", err)
	}
	return n, nil
}

// nullable scans an aggregate that is NULL over an empty set.
func (r *StatsRepository) nullable(ctx context.Context, query string) (*string, error) {
	var v *string
	if err := r.pool.QueryRow(ctx, query).Scan(&v); err != nil {
		return nil, fmt.Errorf("stats query: %w", err)
	}
	return v, nil
}

func (r *StatsRepository) cents(ctx context.Context, query string) (int64, error) {
	v, err := r.nullable(ctx, query)
	if err != nil || v == nil {
		return 0, err
	}
	return numericStringToCents(*v)
}

func (r *StatsRepository) averageCents(ctx context.Context, query string) (float64, error) {
	v, err := r.nullable(ctx, query)
	if err != nil || v == nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(*v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse average %q: %w", *v, err)
	}
	return math.Round(f*100*100) / 100, nil
}
