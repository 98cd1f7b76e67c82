package service

import (
	"context"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/jobs"
	"github.com/rs/zerolog"
)

// JobStatusView is a job record enriched with the state of the payment it settles.
type JobStatusView struct {
	JobID         string         `json:"job_id"`
	Status        jobs.Status    `json:"status"`
	Result        map[string]any `json:"result"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata"`
	PaymentStatus *string        `json:"payment_status,omitempty"`
	PropertyID    *int64         `json:"property_id,omitempty"`
	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}

// PaymentJobService runs payment processing in the background.
type PaymentJobService struct {
	runner      *jobs.Runner
	processor   *PaymentProcessor
	paymentRepo payment.Repository
	logger      zerolog.Logger
}

func NewPaymentJobService(runner *jobs.Runner, processor *PaymentProcessor, paymentRepo payment.Repository, logger zerolog.Logger) *PaymentJobService {
	return &PaymentJobService{
		runner:      runner,
		processor:   processor,
		paymentRepo: paymentRepo,
		logger:      logger,
	}
}

// SubmitPaymentJob returns as soon as the job is registered. The work runs on
// the runner's base context, so ctx only scopes the submission itself.
func (s *PaymentJobService) SubmitPaymentJob(ctx context.Context, paymentID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	work := func(jobCtx context.Context) (map[string]any, error) {
		return s.processor.Process(jobCtx, paymentID).Map(), nil
	}
	return s.runner.Submit(work, map[string]any{"payment_id": paymentID})
}

// GetJobStatus never fails. Unknown ids come back with status not_found.
func (s *PaymentJobService) GetJobStatus(ctx context.Context, jobID string) *JobStatusView {
	rec := s.runner.Status(jobID)
	view := &JobStatusView{
		JobID:      jobID,
		Status:     rec.Status,
		Result:     rec.Result,
		Error:      rec.Error,
		Metadata:   rec.Metadata,
		FinishedAt: rec.FinishedAt,
	}
	if rec.Status == jobs.StatusNotFound {
		return view
	}
	submitted := rec.SubmittedAt
	view.SubmittedAt = &submitted

	paymentID, ok := rec.Metadata["payment_id"].(int64)
	if !ok {
		return view
	}
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		s.logger.Debug().Err(err).Int64("payment_id", paymentID).Msg("Payment lookup for job status failed")
		return view
	}
	status := string(p.Status)
	view.PaymentStatus = &status
	view.PropertyID = &p.PropertyID
	return view
}
