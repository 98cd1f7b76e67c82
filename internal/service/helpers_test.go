package service

import (
	"context"
	"testing"

	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/cassiomorais/realestate/internal/domain/user"
	"github.com/cassiomorais/realestate/internal/jobs"
	"github.com/cassiomorais/realestate/internal/testutil"
	"github.com/rs/zerolog"
)

type testEnv struct {
	store     *testutil.Store
	gateway   *testutil.MockCharger
	cache     *testutil.MockStatsCache
	locker    *testutil.MockLocker
	runner    *jobs.Runner
	processor *PaymentProcessor
	jobs      *PaymentJobService
	purchases *PurchaseService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:   testutil.NewStore(),
		gateway: &testutil.MockCharger{},
		cache:   &testutil.MockStatsCache{},
		locker:  testutil.NewMockLocker(),
		runner:  jobs.NewRunner(jobs.NewRegistry()),
	}
	env.processor = NewPaymentProcessor(
		env.store.Payments(),
		env.store.Properties(),
		env.store.Outbox(),
		env.store,
		env.gateway,
		env.cache,
		nil,
		zerolog.Nop(),
	)
	env.jobs = NewPaymentJobService(env.runner, env.processor, env.store.Payments(), zerolog.Nop())
	env.purchases = NewPurchaseService(
		env.store.Properties(),
		env.store.Payments(),
		env.store,
		env.locker,
		env.jobs,
		zerolog.Nop(),
	).WithStatsCache(env.cache)
	t.Cleanup(env.runner.Wait)
	return env
}

// seedListing stores a seller, a buyer and an unsold listing.
func (e *testEnv) seedListing(priceCents int64) (seller, buyer *user.User, prop *property.Property) {
	seller = e.store.AddUser(testutil.NewTestUser("seller"))
	buyer = e.store.AddUser(testutil.NewTestUser("buyer"))
	prop = e.store.AddProperty(testutil.NewTestProperty(seller.ID, priceCents))
	return seller, buyer, prop
}

func (e *testEnv) seedPayment(buyerID, propertyID, amount int64) *payment.Payment {
	return e.store.AddPayment(testutil.NewTestPayment(buyerID, propertyID, amount, payment.StatusProcessing))
}

// holdPaymentRow keeps the payment row claimed by another transaction until release is closed.
func (e *testEnv) holdPaymentRow(t *testing.T, paymentID int64) (release chan struct{}, done chan struct{}) {
	t.Helper()
	held := make(chan struct{})
	release = make(chan struct{})
	done = make(chan struct{})

	go func() {
		defer close(done)
		_ = e.store.WithTransaction(context.Background(), func(ctx context.Context) error {
			if _, err := e.store.Payments().GetForProcessing(ctx, paymentID); err != nil {
				t.Errorf("claim payment row: %v", err)
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	return release, done
}
