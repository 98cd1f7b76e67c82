package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cassiomorais/realestate/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// ErrRunnerClosed is returned by Submit after Shutdown.
var ErrRunnerClosed = errors.New("job runner is shut down")

// Work is a unit of background execution. The returned map becomes the job result.
type Work func(ctx context.Context) (map[string]any, error)

type Option func(*Runner)

// WithMaxConcurrency bounds how many jobs execute at once. Jobs over the limit
// stay running in the registry until a slot frees up. n <= 0 means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTimeout marks a job as failed once d elapses. The work keeps its
// concurrency slot until it returns and Wait still blocks on it, but its late
// result is discarded.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithBaseContext sets the context every job derives from. Request contexts
// must not be used here, they end when the response is written.
func WithBaseContext(ctx context.Context) Option {
	return func(r *Runner) { r.baseCtx = ctx }
}

// Runner starts each submitted Work on its own goroutine and records the outcome in a Registry.
type Runner struct {
	registry *Registry
	baseCtx  context.Context
	sem      *semaphore.Weighted
	timeout  time.Duration
	logger   zerolog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRunner(registry *Registry, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		baseCtx:  context.Background(),
		logger:   zerolog.Nop(),
		tracer:   observability.Tracer("realestate/jobs"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit registers a running job and starts work without waiting for it.
func (r *Runner) Submit(work Work, metadata map[string]any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return "", ErrRunnerClosed
	}

	id := uuid.NewString()
	r.registry.insert(id, metadata, r.now())
	r.wg.Add(1)

	if r.metrics != nil {
		r.metrics.JobsSubmitted.Inc()
		r.metrics.JobsRunning.Inc()
	}
	r.logger.Debug().Str("job_id", id).Interface("metadata", metadata).Msg("Job submitted")

	go r.execute(id, work)
	return id, nil
}

// Status returns a snapshot of the job, or a record with StatusNotFound.
func (r *Runner) Status(id string) Record {
	rec, _ := r.registry.Get(id)
	return rec
}

func (r *Runner) execute(id string, work Work) {
	defer r.wg.Done()
	start := r.now()

	ctx, span := r.tracer.Start(r.baseCtx, "job.execute",
		trace.WithAttributes(attribute.String("job.id", id)))
	defer span.End()

	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.complete(id, start, nil, err, span)
			return
		}
		defer r.sem.Release(1)
	}

	if r.timeout <= 0 {
		result, err := safeRun(ctx, work)
		r.complete(id, start, result, err, span)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		result map[string]any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := safeRun(ctx, work)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		r.complete(id, start, o.result, o.err, span)
	case <-ctx.Done():
		r.complete(id, start, nil, ctx.Err(), span)
		// The slot and the wait group stay held until the abandoned work returns.
		<-done
	}
}

func (r *Runner) complete(id string, start time.Time, result map[string]any, err error, span trace.Span) {
	status, errMsg := StatusCompleted, ""
	if err != nil {
		status, errMsg = StatusError, err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, errMsg)
	}

	if !r.registry.finish(id, status, result, errMsg, r.now()) {
		return
	}

	if r.metrics != nil {
		r.metrics.JobsRunning.Dec()
		r.metrics.JobsFinished.WithLabelValues(string(status)).Inc()
		r.metrics.JobDuration.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		r.logger.Error().Err(err).Str("job_id", id).Msg("Job failed")
		return
	}
	r.logger.Info().Str("job_id", id).Dur("duration", time.Since(start)).Msg("Job completed")
}

// safeRun converts a panic inside work into an error.
func safeRun(ctx context.Context, work Work) (result map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			result, err = nil, fmt.Errorf("job panicked: %v", p)
		}
	}()
	return work(ctx)
}

// Wait blocks until every submitted job has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown rejects new submissions and waits for in-flight jobs until ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// StartJanitor evicts finished records older than retention every interval until ctx ends.
func (r *Runner) StartJanitor(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := r.registry.Prune(r.now().Add(-retention))
				if n == 0 {
					continue
				}
				if r.metrics != nil {
					r.metrics.JobsPruned.Add(float64(n))
				}
				r.logger.Debug().Int("pruned", n).Msg("Evicted finished job records")
			}
		}
	}()
}
