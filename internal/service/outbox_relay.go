package service

import (
	"context"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/outbox"
	"github.com/cassiomorais/realestate/internal/infrastructure/observability"
	"github.com/cassiomorais/realestate/pkg/retry"
	"github.com/rs/zerolog"
)

// EventPublisher delivers outbox entries to the event stream.
type EventPublisher interface {
	Publish(ctx context.Context, entry *outbox.Entry) (string, error)
	PublishToDLQ(ctx context.Context, entry *outbox.Entry, reason string) error
}

// OutboxRelay moves committed sale events from the outbox table to the stream.
type OutboxRelay struct {
	outboxRepo outbox.Repository
	txManager  TransactionManager
	publisher  EventPublisher
	retry      retry.Config
	batchSize  int
	stream     string
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

func NewOutboxRelay(
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	publisher EventPublisher,
	retryCfg retry.Config,
	batchSize int,
	stream string,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &OutboxRelay{
		outboxRepo: outboxRepo,
		txManager:  txManager,
		publisher:  publisher,
		retry:      retryCfg,
		batchSize:  batchSize,
		stream:     stream,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("Outbox relay error")
		}
	}
}

// RelayOnce publishes one batch of pending entries and returns how many were
// published. The batch is claimed inside a transaction so concurrent relays
// skip each other's rows.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.outboxRepo.GetPending(txCtx, r.batchSize)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			start := time.Now()
			ok, err := r.relay(txCtx, entry)
			if err != nil {
				return err
			}
			if ok {
				published++
			}
			if r.metrics != nil {
				r.metrics.WorkerProcessingDuration.WithLabelValues(r.stream).Observe(time.Since(start).Seconds())
			}
		}
		return nil
	})
	return published, err
}

func (r *OutboxRelay) relay(ctx context.Context, entry *outbox.Entry) (bool, error) {
	log := r.logger.With().Str("outbox_id", entry.ID.String()).Str("event_type", entry.EventType).Logger()

	msgID, err := retry.DoWithResult(ctx, r.retry, func() (string, error) {
		return r.publisher.Publish(ctx, entry)
	})
	if err == nil {
		if err := r.outboxRepo.MarkPublished(ctx, entry.ID); err != nil {
			return false, err
		}
		r.count("published")
		log.Debug().Str("message_id", msgID).Msg("Outbox entry published")
		return true, nil
	}

	log.Error().Err(err).Int("retry_count", entry.RetryCount).Msg("Failed to publish outbox entry")
	if err := r.outboxRepo.MarkFailed(ctx, entry.ID); err != nil {
		return false, err
	}
	r.count("failed")

	if entry.RetryCount+1 >= entry.MaxRetries {
		if dlqErr := r.publisher.PublishToDLQ(ctx, entry, err.Error()); dlqErr != nil {
			log.Error().Err(dlqErr).Msg("Failed to park outbox entry in DLQ")
		} else {
			r.count("dead_lettered")
			log.Warn().Msg("Outbox entry moved to DLQ")
		}
	}
	return false, nil
}

func (r *OutboxRelay) count(status string) {
	if r.metrics != nil {
		r.metrics.WorkerMessagesProcessed.WithLabelValues(r.stream, status).Inc()
	}
}
