package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	err   error
	calls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Charge(context.Context, ChargeRequest) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Result{Status: "success", TransactionID: "t1"}, nil
}

func TestGateway_ChargeSuccess(t *testing.T) {
	m := observability.NewMetrics("gw", prometheus.NewRegistry())
	g := NewGateway(&stubProvider{}, BreakerSettings{}, m)

	res, err := g.Charge(context.Background(), ChargeRequest{PaymentID: 1})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.TransactionID)
	assert.Equal(t, "stub", g.Name())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CircuitBreakerRequests.WithLabelValues("stub", "success")))
}

func TestGateway_OpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubProvider{err: errors.New("connection reset")}
	g := NewGateway(stub, BreakerSettings{Threshold: 3, Timeout: time.Minute}, nil)

	for range 3 {
		_, err := g.Charge(context.Background(), ChargeRequest{})
		assert.EqualError(t, err, "connection reset")
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Charge(context.Background(), ChargeRequest{})
	assert.ErrorIs(t, err, domainErrors.ErrProviderUnavailable)
	assert.Equal(t, 3, stub.calls)
}

func TestGateway_RejectionsDoNotTrip(t *testing.T) {
	stub := &stubProvider{err: domainErrors.ErrProviderRejected}
	g := NewGateway(stub, BreakerSettings{Threshold: 2, Timeout: time.Minute}, nil)

	for range 5 {
		_, err := g.Charge(context.Background(), ChargeRequest{})
		assert.ErrorIs(t, err, domainErrors.ErrProviderRejected)
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
}
