package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/outbox"
	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/cassiomorais/realestate/internal/infrastructure/observability"
	"github.com/cassiomorais/realestate/internal/providers"
	"github.com/rs/zerolog"
)

// Messages reported in a payment job result.
const (
	MsgPaymentProcessed  = "payment processed successfully"
	MsgPaymentNotFound   = "payment not found"
	MsgPropertyMissing   = "associated property does not exist"
	MsgPropertySold      = "property already sold"
	MsgProviderRejected  = "payment rejected by provider"
	msgProcessingFailure = "error processing payment: "
)

// ProcessResult is the outcome of one payment job. Business failures are
// results, not errors: the job that produced them still completed.
type ProcessResult struct {
	Success      bool
	Message      string
	PaymentID    int64
	PropertyID   *int64
	Status       string
	PropertySold bool
}

// Map renders the result in the shape stored on the job record.
func (r ProcessResult) Map() map[string]any {
	m := map[string]any{
		"success":       r.Success,
		"message":       r.Message,
		"payment_id":    r.PaymentID,
		"property_sold": r.PropertySold,
	}
	if r.PropertyID != nil {
		m["property_id"] = *r.PropertyID
	}
	if r.Status != "" {
		m["status"] = r.Status
	}
	return m
}

// outcome labels for the payments_total metric
const (
	outcomePaid     = "paid"
	outcomeNotFound = "not_found"
	outcomeMissing  = "property_missing"
	outcomeSold     = "already_sold"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// errSettled rolls back a transaction whose outcome was already decided.
var errSettled = errors.New("payment outcome settled without commit")

// PaymentProcessor settles a processing payment: charge, re-check the listing,
// then flip the payment to paid and the property to sold in one transaction.
type PaymentProcessor struct {
	paymentRepo  payment.Repository
	propertyRepo property.Repository
	outboxRepo   outbox.Repository
	txManager    TransactionManager
	gateway      Charger
	cache        StatsCache
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

func NewPaymentProcessor(
	paymentRepo payment.Repository,
	propertyRepo property.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	gateway Charger,
	cache StatsCache,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *PaymentProcessor {
	return &PaymentProcessor{
		paymentRepo:  paymentRepo,
		propertyRepo: propertyRepo,
		outboxRepo:   outboxRepo,
		txManager:    txManager,
		gateway:      gateway,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
	}
}

// Process never returns an error: every failure is folded into the result.
func (s *PaymentProcessor) Process(ctx context.Context, paymentID int64) ProcessResult {
	start := time.Now()
	res, outcome := s.process(ctx, paymentID)

	if s.metrics != nil {
		s.metrics.PaymentsTotal.WithLabelValues(outcome).Inc()
		s.metrics.PaymentDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}

	log := s.logger.With().Int64("payment_id", paymentID).Str("outcome", outcome).Logger()
	switch outcome {
	case outcomePaid:
		log.Info().Int64("property_id", *res.PropertyID).Msg("Payment processed")
	case outcomeError:
		log.Error().Str("message", res.Message).Msg("Payment processing failed")
	default:
		log.Warn().Str("message", res.Message).Msg("Payment not settled")
	}
	return res
}

func (s *PaymentProcessor) process(ctx context.Context, paymentID int64) (ProcessResult, string) {
	// The charge needs the amount, so read the row once without locking it.
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrPaymentNotFound) {
			return notFound(paymentID), outcomeNotFound
		}
		return failure(paymentID, err), outcomeError
	}

	// A listing that is gone or already sold is never charged. The check is
	// repeated under the row locks below.
	listing, err := s.propertyRepo.GetByID(ctx, p.PropertyID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrPropertyNotFound) {
			return ProcessResult{Message: MsgPropertyMissing, PaymentID: paymentID}, outcomeMissing
		}
		return failure(paymentID, err), outcomeError
	}
	if listing.Sold {
		return alreadySold(paymentID, listing.ID), outcomeSold
	}

	if _, err := s.gateway.Charge(ctx, providers.ChargeRequest{
		PaymentID:   p.ID,
		PropertyID:  p.PropertyID,
		AmountCents: p.Amount,
	}); err != nil {
		s.markError(ctx, paymentID)
		if errors.Is(err, domainErrors.ErrProviderRejected) {
			return ProcessResult{Message: MsgProviderRejected, PaymentID: paymentID}, outcomeRejected
		}
		return failure(paymentID, err), outcomeError
	}

	var res ProcessResult
	var outcome string
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		p, err := s.paymentRepo.GetForProcessing(txCtx, paymentID)
		if err != nil {
			if errors.Is(err, domainErrors.ErrPaymentNotFound) {
				res, outcome = notFound(paymentID), outcomeNotFound
				return errSettled
			}
			return err
		}

		prop, err := s.propertyRepo.GetByID(txCtx, p.PropertyID)
		if err != nil {
			if errors.Is(err, domainErrors.ErrPropertyNotFound) {
				res, outcome = ProcessResult{Message: MsgPropertyMissing, PaymentID: paymentID}, outcomeMissing
				return errSettled
			}
			return err
		}

		if prop.Sold {
			res, outcome = alreadySold(paymentID, prop.ID), outcomeSold
			return errSettled
		}

		if err := p.MarkPaid(); err != nil {
			return err
		}

		flipped, err := s.propertyRepo.MarkSold(txCtx, prop.ID)
		if err != nil {
			return err
		}
		if !flipped {
			res, outcome = alreadySold(paymentID, prop.ID), outcomeSold
			return errSettled
		}

		if err := s.paymentRepo.Update(txCtx, p); err != nil {
			return err
		}

		entry := outbox.NewEntry(outbox.AggregateProperty, strconv.FormatInt(prop.ID, 10), outbox.EventPropertySold,
			map[string]any{
				"property_id":  prop.ID,
				"payment_id":   p.ID,
				"buyer_id":     p.UserID,
				"seller_id":    prop.OwnerID,
				"amount":       payment.FormatCents(p.Amount),
				"amount_cents": p.Amount,
			})
		if err := s.outboxRepo.Insert(txCtx, entry); err != nil {
			return err
		}

		propertyID := prop.ID
		res = ProcessResult{
			Success:      true,
			Message:      MsgPaymentProcessed,
			PaymentID:    p.ID,
			PropertyID:   &propertyID,
			Status:       string(payment.StatusPaid),
			PropertySold: true,
		}
		outcome = outcomePaid
		return nil
	})

	switch {
	case errors.Is(err, errSettled):
		return res, outcome
	case err != nil:
		return failure(paymentID, err), outcomeError
	}

	invalidateStats(ctx, s.cache, s.logger)
	return res, outcome
}

// markError moves a payment the gateway refused to the error state. Failures
// are only logged, the job result already reports the refusal.
func (s *PaymentProcessor) markError(ctx context.Context, paymentID int64) {
	err := s.txManager.WithTransaction(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		p, err := s.paymentRepo.GetForProcessing(txCtx, paymentID)
		if err != nil {
			return err
		}
		if err := p.MarkError(); err != nil {
			return err
		}
		return s.paymentRepo.Update(txCtx, p)
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("payment_id", paymentID).Msg("Could not mark payment as failed")
	}
}

func notFound(paymentID int64) ProcessResult {
	return ProcessResult{Message: MsgPaymentNotFound, PaymentID: paymentID}
}

func alreadySold(paymentID, propertyID int64) ProcessResult {
	return ProcessResult{
		Message:      MsgPropertySold,
		PaymentID:    paymentID,
		PropertyID:   &propertyID,
		PropertySold: true,
	}
}

func failure(paymentID int64, err error) ProcessResult {
	return ProcessResult{Message: msgProcessingFailure + err.Error(), PaymentID: paymentID}
}
