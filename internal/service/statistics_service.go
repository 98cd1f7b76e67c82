package service

import (
	"context"
	"fmt"
	"math"
	"maps"
	"time"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/stats"
	"github.com/cassiomorais/realestate/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type query func(ctx context.Context) (float64, error)

// StatisticsService computes the homepage aggregates, one concurrent query per metric.
type StatisticsService struct {
	queries map[string]query
	cache   StatsCache
	timeout time.Duration
	metrics *observability.Metrics
	logger  zerolog.Logger
}

type StatisticsOption func(*StatisticsService)

// WithStatsCache serves full reports from cache. A nil cache disables caching.
func WithStatsCache(cache StatsCache) StatisticsOption {
	return func(s *StatisticsService) { s.cache = cache }
}

// WithStatsTimeout bounds one Compute call.
func WithStatsTimeout(d time.Duration) StatisticsOption {
	return func(s *StatisticsService) { s.timeout = d }
}

func WithStatsMetrics(m *observability.Metrics) StatisticsOption {
	return func(s *StatisticsService) { s.metrics = m }
}

func WithStatsLogger(logger zerolog.Logger) StatisticsOption {
	return func(s *StatisticsService) { s.logger = logger }
}

func NewStatisticsService(repo stats.Repository, opts ...StatisticsOption) *StatisticsService {
	s := &StatisticsService{
		queries: map[string]query{
			stats.Users:          count(repo.CountUsers),
			stats.Properties:     count(repo.CountProperties),
			stats.Payments:       count(repo.CountPayments),
			stats.TotalPaid:      money(repo.SumPaidAmount),
			stats.AveragePrice:   average(repo.AveragePrice),
			stats.MinPrice:       money(repo.MinPrice),
			stats.MaxPrice:       money(repo.MaxPrice),
			stats.PaidPayments:   count(repo.CountPaidPayments),
			stats.SoldProperties: count(repo.CountSoldProperties),
			stats.AverageTicket:  average(repo.AveragePaidAmount),
			stats.DistinctOwners: count(repo.CountOwners),
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compute returns the requested metrics, or every metric when keys is empty.
// The report holds exactly the requested keys. The first failing query cancels
// the others and its error is returned with no partial report.
func (s *StatisticsService) Compute(ctx context.Context, keys ...string) (stats.Report, error) {
	full := len(keys) == 0
	if full {
		keys = stats.Keys
	}
	keys, err := s.validate(keys)
	if err != nil {
		return nil, err
	}

	if full {
		if report := s.cached(ctx); report != nil {
			return report, nil
		}
	}

	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	values := make([]float64, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		run := s.queries[key]
		g.Go(func() error {
			v, err := run(gctx)
			if err != nil {
				if s.metrics != nil {
					s.metrics.StatsQueryErrors.WithLabelValues(key).Inc()
				}
				return fmt.Errorf("compute %s: %w", key, err)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("Statistics aggregation failed")
		return nil, err
	}

	report := make(stats.Report, len(keys))
	for i, key := range keys {
		report[key] = values[i]
	}

	if s.metrics != nil {
		s.metrics.StatsDuration.Observe(time.Since(start).Seconds())
	}

	if full && s.cache != nil {
		if err := s.cache.Set(ctx, report); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to cache statistics")
		}
	}
	return report, nil
}

// validate rejects unknown keys and drops duplicates, keeping the first occurrence.
func (s *StatisticsService) validate(keys []string) ([]string, error) {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := s.queries[key]; !ok {
			return nil, domainErrors.NewDomainError("unknown_metric", fmt.Sprintf("unknown metric %q", key), domainErrors.ErrUnknownMetric)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out, nil
}

func (s *StatisticsService) cached(ctx context.Context) stats.Report {
	if s.cache == nil {
		return nil
	}
	report, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Statistics cache read failed")
	}
	hit := report != nil && len(report) == len(stats.Keys)
	if s.metrics != nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		s.metrics.StatsCacheHits.WithLabelValues(result).Inc()
	}
	if !hit {
		return nil
	}
	return maps.Clone(report)
}

func count(fn func(context.Context) (int64, error)) query {
	return func(ctx context.Context) (float64, error) {
		n, err := fn(ctx)
		return float64(n), err
	}
}

// money converts cents to currency units.
func money(fn func(context.Context) (int64, error)) query {
	return func(ctx context.Context) (float64, error) {
		cents, err := fn(ctx)
		return float64(cents) / 100, err
	}
}

// average converts an average in cents to currency units rounded to the cent.
func average(fn func(context.Context) (float64, error)) query {
	return func(ctx context.Context) (float64, error) {
		cents, err := fn(ctx)
		return math.Round(cents) / 100, err
	}
}
