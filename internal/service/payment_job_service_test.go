package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/jobs"
	"github.com/cassiomorais/realestate/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitPaymentJob_ReturnsBeforeProcessing(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)
	p := env.seedPayment(buyer.ID, prop.ID, prop.Price)

	release := make(chan struct{})
	env.gateway.ChargeFunc = func(context.Context, providers.ChargeRequest) (*providers.Result, error) {
		<-release
		return &providers.Result{Status: "success"}, nil
	}

	jobID, err := env.jobs.SubmitPaymentJob(context.Background(), p.ID)
	require.NoError(t, err)

	view := env.jobs.GetJobStatus(context.Background(), jobID)
	assert.Equal(t, jobs.StatusRunning, view.Status)
	assert.Nil(t, view.Result)
	assert.Equal(t, p.ID, view.Metadata["payment_id"])
	require.NotNil(t, view.PaymentStatus)
	assert.Equal(t, "processing", *view.PaymentStatus)

	close(release)
	env.runner.Wait()

	view = env.jobs.GetJobStatus(context.Background(), jobID)
	assert.Equal(t, jobs.StatusCompleted, view.Status)
	assert.Equal(t, true, view.Result["success"])
	assert.Equal(t, "paid", *view.PaymentStatus)
	require.NotNil(t, view.PropertyID)
	assert.Equal(t, prop.ID, *view.PropertyID)
	assert.NotNil(t, view.FinishedAt)
}

func TestSubmitPaymentJob_BusinessFailureCompletesJob(t *testing.T) {
	env := newTestEnv(t)

	jobID, err := env.jobs.SubmitPaymentJob(context.Background(), 31337)
	require.NoError(t, err)
	env.runner.Wait()

	view := env.jobs.GetJobStatus(context.Background(), jobID)
	assert.Equal(t, jobs.StatusCompleted, view.Status)
	assert.Equal(t, false, view.Result["success"])
	assert.Equal(t, "payment not found", view.Result["message"])
	assert.Empty(t, view.Error)
	assert.Nil(t, view.PaymentStatus)
}

func TestSubmitPaymentJob_PanicBecomesJobError(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)
	p := env.seedPayment(buyer.ID, prop.ID, prop.Price)

	env.gateway.ChargeFunc = func(context.Context, providers.ChargeRequest) (*providers.Result, error) {
		panic("gateway client bug")
	}

	jobID, err := env.jobs.SubmitPaymentJob(context.Background(), p.ID)
	require.NoError(t, err)
	env.runner.Wait()

	view := env.jobs.GetJobStatus(context.Background(), jobID)
	assert.Equal(t, jobs.StatusError, view.Status)
	assert.Contains(t, view.Error, "gateway client bug")
	assert.Nil(t, view.Result)
}

func TestSubmitPaymentJob_RequestContextDoesNotCancelJob(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)
	p := env.seedPayment(buyer.ID, prop.ID, prop.Price)

	ctx, cancel := context.WithCancel(context.Background())
	jobID, err := env.jobs.SubmitPaymentJob(ctx, p.ID)
	require.NoError(t, err)
	cancel()
	env.runner.Wait()

	view := env.jobs.GetJobStatus(context.Background(), jobID)
	assert.Equal(t, jobs.StatusCompleted, view.Status)
	assert.Equal(t, true, view.Result["success"])
}

func TestGetJobStatus_UnknownJob(t *testing.T) {
	env := newTestEnv(t)

	view := env.jobs.GetJobStatus(context.Background(), "no-such-job")

	assert.Equal(t, jobs.StatusNotFound, view.Status)
	assert.Nil(t, view.Result)
	assert.Nil(t, view.SubmittedAt)
}

// Two buyers race for the same listing. The slower worker must lose.
func TestPaymentJobs_ConcurrentPaymentsSameProperty(t *testing.T) {
	env := newTestEnv(t)
	seller, _, prop := env.seedListing(10000)

	const buyers = 8
	ids := make([]int64, 0, buyers)
	for range buyers {
		p := env.seedPayment(seller.ID, prop.ID, prop.Price)
		ids = append(ids, p.ID)
	}

	// Delay one charge so its worker reaches the row locks last.
	slow := ids[0]
	env.gateway.ChargeFunc = func(_ context.Context, req providers.ChargeRequest) (*providers.Result, error) {
		if req.PaymentID == slow {
			time.Sleep(30 * time.Millisecond)
		}
		return &providers.Result{Status: "success"}, nil
	}

	jobIDs := make([]string, 0, buyers)
	for _, id := range ids {
		jobID, err := env.jobs.SubmitPaymentJob(context.Background(), id)
		require.NoError(t, err)
		jobIDs = append(jobIDs, jobID)
	}
	env.runner.Wait()

	var winners, sold int
	for _, jobID := range jobIDs {
		view := env.jobs.GetJobStatus(context.Background(), jobID)
		require.Equal(t, jobs.StatusCompleted, view.Status)
		if view.Result["success"] == true {
			winners++
			continue
		}
		assert.Equal(t, MsgPropertySold, view.Result["message"])
		sold++
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, buyers-1, sold)
	assert.True(t, env.store.Property(prop.ID).Sold)

	var paid int
	for _, id := range ids {
		if env.store.Payment(id).Status == payment.StatusPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
	assert.NotEqual(t, payment.StatusPaid, env.store.Payment(slow).Status)
	assert.Len(t, env.store.OutboxEntries(), 1)
}

// Many jobs for one payment: only one can claim the row, at most one settles it.
func TestPaymentJobs_DuplicateSubmissionsSettleOnce(t *testing.T) {
	env := newTestEnv(t)
	_, buyer, prop := env.seedListing(10000)
	p := env.seedPayment(buyer.ID, prop.ID, prop.Price)

	const n = 10
	var wg sync.WaitGroup
	jobIDs := make([]string, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := env.jobs.SubmitPaymentJob(context.Background(), p.ID)
			assert.NoError(t, err)
			jobIDs[i] = id
		}()
	}
	wg.Wait()
	env.runner.Wait()

	var winners int
	for _, jobID := range jobIDs {
		view := env.jobs.GetJobStatus(context.Background(), jobID)
		require.Equal(t, jobs.StatusCompleted, view.Status)
		if view.Result["success"] == true {
			winners++
			continue
		}
		assert.Contains(t, []any{MsgPaymentNotFound, MsgPropertySold}, view.Result["message"])
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, payment.StatusPaid, env.store.Payment(p.ID).Status)
	assert.Len(t, env.store.OutboxEntries(), 1)
}
