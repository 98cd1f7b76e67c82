package providers

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/google/uuid"
)

// MockProvider approves every charge after a fixed latency, failing a configurable
// share of them.
type MockProvider struct {
	name        string
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	timeoutRate float64 // 0.0 to 1.0
}

type MockProviderOption func(*MockProvider)

func WithFailureRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.failureRate = rate }
}

func WithLatency(d time.Duration) MockProviderOption {
	return func(p *MockProvider) { p.latency = d }
}

func WithTimeoutRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.timeoutRate = rate }
}

func NewMockProvider(name string, opts ...MockProviderOption) *MockProvider {
	p := &MockProvider{
		name:    name,
		latency: 2 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) Charge(ctx context.Context, req ChargeRequest) (*Result, error) {
	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.timeoutRate > 0 && rand.Float64() < p.timeoutRate {
		return nil, domainErrors.ErrProviderTimeout
	}

	if p.failureRate > 0 && rand.Float64() < p.failureRate {
		return &Result{
			Status:       "failed",
			ErrorMessage: fmt.Sprintf("%s: simulated charge failure for payment %d", p.name, req.PaymentID),
		}, domainErrors.ErrProviderRejected
	}

	return &Result{
		TransactionID: fmt.Sprintf("%s_txn_%s", p.name, uuid.NewString()[:8]),
		Status:        "success",
	}, nil
}
