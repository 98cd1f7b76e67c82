package providers

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// Timeout is how long the breaker stays open before letting a probe through.
	Timeout time.Duration
}

// Gateway charges through a provider guarded by a circuit breaker.
type Gateway struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker[*Result]
	metrics  *observability.Metrics
}

func NewGateway(p Provider, s BreakerSettings, m *observability.Metrics) *Gateway {
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = 10
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	g := &Gateway{provider: p, metrics: m}
	g.breaker = gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		IsSuccessful: func(err error) bool {
			// A rejected charge is a business answer, the provider itself is healthy.
			return err == nil || errors.Is(err, domainErrors.ErrProviderRejected)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return g
}

func (g *Gateway) Name() string { return g.provider.Name() }

// Charge runs the provider call through the breaker. An open breaker yields ErrProviderUnavailable.
func (g *Gateway) Charge(ctx context.Context, req ChargeRequest) (*Result, error) {
	res, err := g.breaker.Execute(func() (*Result, error) {
		return g.provider.Charge(ctx, req)
	})

	if g.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		g.metrics.CircuitBreakerRequests.WithLabelValues(g.provider.Name(), outcome).Inc()
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, domainErrors.ErrProviderUnavailable
	}
	return res, err
}

// State exposes the breaker state for health reporting.
func (g *Gateway) State() gobreaker.State {
	return g.breaker.State()
}
