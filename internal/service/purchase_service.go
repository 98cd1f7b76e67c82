package service

import (
	"context"
	"errors"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/cassiomorais/realestate/internal/infrastructure/redis"
	"github.com/cassiomorais/realestate/pkg/saga"
	"github.com/rs/zerolog"
)

type PurchaseResult struct {
	JobID     string
	PaymentID int64
}

// PurchaseService starts the checkout of a listing. Settlement happens in a payment job.
type PurchaseService struct {
	propertyRepo property.Repository
	paymentRepo  payment.Repository
	txManager    TransactionManager
	locker       Locker
	jobs         *PaymentJobService
	cache        StatsCache
	logger       zerolog.Logger
}

func NewPurchaseService(
	propertyRepo property.Repository,
	paymentRepo payment.Repository,
	txManager TransactionManager,
	locker Locker,
	jobs *PaymentJobService,
	logger zerolog.Logger,
) *PurchaseService {
	return &PurchaseService{
		propertyRepo: propertyRepo,
		paymentRepo:  paymentRepo,
		txManager:    txManager,
		locker:       locker,
		jobs:         jobs,
		logger:       logger,
	}
}

// WithStatsCache invalidates the cached statistics report when a payment is
// recorded.
func (s *PurchaseService) WithStatsCache(cache StatsCache) *PurchaseService {
	s.cache = cache
	return s
}

// Purchase creates a processing payment for the listing price and submits its job.
// Concurrent checkouts of the same listing fail fast with ErrPurchaseInProgress.
func (s *PurchaseService) Purchase(ctx context.Context, buyerID, propertyID int64) (*PurchaseResult, error) {
	var (
		release func(context.Context) error
		p       *payment.Payment
		result  PurchaseResult
	)

	checkout := saga.New("checkout").
		AddStep(saga.Step{
			Name: "lock_property",
			Execute: func(ctx context.Context) error {
				var err error
				release, err = s.locker.TryLock(ctx, redis.CheckoutLockKey(propertyID))
				if errors.Is(err, domainErrors.ErrLockAcquisitionFailed) {
					return domainErrors.ErrPurchaseInProgress
				}
				return err
			},
			Compensate: func(ctx context.Context) error {
				return release(ctx)
			},
		}).
		AddStep(saga.Step{
			Name: "create_payment",
			Execute: func(ctx context.Context) error {
				var err error
				p, err = s.createPayment(ctx, buyerID, propertyID)
				if err != nil {
					return err
				}
				invalidateStats(ctx, s.cache, s.logger)
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.cancelPayment(ctx, p.ID)
			},
		}).
		AddStep(saga.Step{
			Name: "submit_job",
			Execute: func(ctx context.Context) error {
				jobID, err := s.jobs.SubmitPaymentJob(ctx, p.ID)
				if err != nil {
					return err
				}
				result = PurchaseResult{JobID: jobID, PaymentID: p.ID}
				return nil
			},
		})

	if err := checkout.Run(ctx); err != nil {
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) && stepErr.CompensationErr != nil {
			s.logger.Error().Err(stepErr.CompensationErr).Int64("property_id", propertyID).Msg("Checkout compensation failed")
		}
		return nil, err
	}

	// The job re-checks the listing under row locks, the checkout lock only
	// keeps simultaneous requests from piling up payments.
	if err := release(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn().Err(err).Int64("property_id", propertyID).Msg("Failed to release checkout lock")
	}

	s.logger.Info().
		Int64("payment_id", result.PaymentID).
		Int64("property_id", propertyID).
		Int64("buyer_id", buyerID).
		Str("job_id", result.JobID).
		Msg("Purchase submitted")
	return &result, nil
}

func (s *PurchaseService) createPayment(ctx context.Context, buyerID, propertyID int64) (*payment.Payment, error) {
	var p *payment.Payment
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		prop, err := s.propertyRepo.GetByID(txCtx, propertyID)
		if err != nil {
			return err
		}
		if prop.Sold {
			return domainErrors.ErrPropertyAlreadySold
		}

		p, err = payment.NewPayment(buyerID, prop.ID, prop.Price)
		if err != nil {
			return err
		}
		if err := p.MarkProcessing(); err != nil {
			return err
		}
		return s.paymentRepo.Create(txCtx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PurchaseService) cancelPayment(ctx context.Context, paymentID int64) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		p, err := s.paymentRepo.GetByID(txCtx, paymentID)
		if err != nil {
			return err
		}
		if err := p.MarkError(); err != nil {
			return err
		}
		return s.paymentRepo.Update(txCtx, p)
	})
}

// ListPayments returns the buyer's payments, newest first.
func (s *PurchaseService) ListPayments(ctx context.Context, buyerID int64, limit, offset int) ([]*payment.Payment, error) {
	return s.paymentRepo.ListByUser(ctx, buyerID, limit, offset)
}
