package service

import (
	"context"
	"errors"
	"testing"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/infrastructure/redis"
	"github.com/cassiomorais/realestate/internal/jobs"
	"github.com/cassiomorais/realestate/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchase_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(25000000)

	res, err := env.purchases.Purchase(context.Background(), buyer.ID, prop.ID)
	require.NoError(t, err)
	require.NotEmpty(t, res.JobID)

	created := env.store.Payment(res.PaymentID)
	require.NotNil(t, created)
	assert.Equal(t, buyer.ID, created.UserID)
	assert.Equal(t, int64(25000000), created.Amount)
	assert.False(t, env.locker.Held(redis.CheckoutLockKey(prop.ID)))

	env.runner.Wait()

	view := env.jobs.GetJobStatus(context.Background(), res.JobID)
	assert.Equal(t, jobs.StatusCompleted, view.Status)
	assert.Equal(t, true, view.Result["success"])
	assert.Equal(t, payment.StatusPaid, env.store.Payment(res.PaymentID).Status)
	assert.True(t, env.store.Property(prop.ID).Sold)
}

func TestPurchase_PaymentStartsProcessing(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)

	// Keep the job from settling so the initial state is observable.
	release := make(chan struct{})
	env.gateway.ChargeFunc = func(context.Context, providers.ChargeRequest) (*providers.Result, error) {
		<-release
		return &providers.Result{Status: "success"}, nil
	}

	res, err := env.purchases.Purchase(context.Background(), buyer.ID, prop.ID)
	require.NoError(t, err)

	assert.Equal(t, payment.StatusProcessing, env.store.Payment(res.PaymentID).Status)
	assert.Equal(t, jobs.StatusRunning, env.jobs.GetJobStatus(context.Background(), res.JobID).Status)
	close(release)
}

func TestPurchase_NewPaymentInvalidatesStats(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)

	release := make(chan struct{})
	env.gateway.ChargeFunc = func(context.Context, providers.ChargeRequest) (*providers.Result, error) {
		<-release
		return &providers.Result{Status: "success"}, nil
	}

	_, err := env.purchases.Purchase(context.Background(), buyer.ID, prop.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.cache.Invalidations())

	close(release)
	env.runner.Wait()
	assert.Equal(t, 2, env.cache.Invalidations())
}

func TestPurchase_SoldProperty(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)
	sold := env.store.Property(prop.ID)
	sold.Sold = true
	env.store.AddProperty(sold)

	_, err := env.purchases.Purchase(context.Background(), buyer.ID, prop.ID)

	assert.ErrorIs(t, err, domainErrors.ErrPropertyAlreadySold)
	assert.False(t, env.locker.Held(redis.CheckoutLockKey(prop.ID)))
	payments, err := env.purchases.ListPayments(context.Background(), buyer.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestPurchase_UnknownProperty(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, _ := env.seedListing(10000)

	_, err := env.purchases.Purchase(context.Background(), buyer.ID, 9999)

	assert.ErrorIs(t, err, domainErrors.ErrPropertyNotFound)
	assert.False(t, env.locker.Held(redis.CheckoutLockKey(9999)))
}

func TestPurchase_CheckoutInProgress(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)

	release, err := env.locker.TryLock(context.Background(), redis.CheckoutLockKey(prop.ID))
	require.NoError(t, err)

	_, err = env.purchases.Purchase(context.Background(), buyer.ID, prop.ID)
	assert.ErrorIs(t, err, domainErrors.ErrPurchaseInProgress)

	require.NoError(t, release(context.Background()))
	_, err = env.purchases.Purchase(context.Background(), buyer.ID, prop.ID)
	assert.NoError(t, err)
}

func TestPurchase_SubmitFailureCompensates(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)
	require.NoError(t, env.runner.Shutdown(context.Background()))

	_, err := env.purchases.Purchase(context.Background(), buyer.ID, prop.ID)

	require.ErrorIs(t, err, jobs.ErrRunnerClosed)
	assert.False(t, env.locker.Held(redis.CheckoutLockKey(prop.ID)))

	payments, err := env.purchases.ListPayments(context.Background(), buyer.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, payment.StatusError, payments[0].Status)
	assert.False(t, env.store.Property(prop.ID).Sold)
}

func TestPurchase_LockBackendError(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)
	redisDown := errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	env.locker.TryLockFunc = func(context.Context, string) (func(context.Context) error, error) {
		return nil, redisDown
	}

	_, err := env.purchases.Purchase(context.Background(), buyer.ID, prop.ID)

	assert.ErrorIs(t, err, redisDown)
	payments, _ := env.purchases.ListPayments(context.Background(), buyer.ID, 10, 0)
	assert.Empty(t, payments)
}

func TestListPayments_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)
	first := env.seedPayment(buyer.ID, prop.ID, 100)
	second := env.seedPayment(buyer.ID, prop.ID, 200)

	payments, err := env.purchases.ListPayments(context.Background(), buyer.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.ElementsMatch(t, []int64{first.ID, second.ID}, []int64{payments[0].ID, payments[1].ID})
}
