package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-warranty/core"
)

// ConfirmationService drains queued confirmation emails. Satisfied by
// *core.ConfirmationDispatcher.
type ConfirmationService interface {
	DispatchPending(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

// ConfirmationDispatchJob consumes queued dispatch triggers and runs a
// single outbox drain per delivery. Failures are nacked with the
// configured retry policy so a flapping mail provider backs off instead
// of hot-looping the queue.
type ConfirmationDispatchJob struct {
	dispatcher ConfirmationService
	batchSize  int
	retryDelay time.Duration
	logger     core.Logger
}

type ConfirmationDispatchJobConfig struct {
	BatchSize  int
	RetryDelay time.Duration
	Logger     core.Logger
}

const (
	defaultDispatchBatchSize  = 50
	defaultDispatchRetryDelay = 30 * time.Second
)

func NewConfirmationDispatchJob(dispatcher ConfirmationService, cfg ConfirmationDispatchJobConfig) (*ConfirmationDispatchJob, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("gojob: confirmation dispatcher is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultDispatchBatchSize
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultDispatchRetryDelay
	}
	return &ConfirmationDispatchJob{
		dispatcher: dispatcher,
		batchSize:  cfg.BatchSize,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}, nil
}

// EnqueueTrigger queues a dispatch trigger. The idempotency key folds
// concurrent triggers into a single drain.
func (j *ConfirmationDispatchJob) EnqueueTrigger(ctx context.Context, enqueuer core.JobEnqueuer, idempotencyKey string) error {
	if j == nil {
		return fmt.Errorf("gojob: confirmation dispatch job is required")
	}
	if enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is required")
	}
	return enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          JobIDConfirmationDispatch,
		Parameters:     map[string]any{"batch_size": j.batchSize},
		IdempotencyKey: idempotencyKey,
		DedupPolicy:    "drop",
	})
}

// Handle settles a single delivery. Ack on success, nack with the retry
// delay when the drain fails.
func (j *ConfirmationDispatchJob) Handle(ctx context.Context, delivery core.JobDelivery) (core.DispatchStats, error) {
	if j == nil || j.dispatcher == nil {
		return core.DispatchStats{}, fmt.Errorf("gojob: confirmation dispatch job is not configured")
	}
	if delivery == nil {
		return core.DispatchStats{}, fmt.Errorf("gojob: delivery is required")
	}

	batchSize := j.batchSize
	if msg := delivery.Message(); msg != nil {
		if requested, ok := intParameter(msg.Parameters, "batch_size"); ok && requested > 0 {
			batchSize = requested
		}
	}

	stats, err := j.dispatcher.DispatchPending(ctx, batchSize)
	if err != nil {
		nackErr := delivery.Nack(ctx, core.JobNackOptions{
			Delay:   j.retryDelay,
			Requeue: true,
			Reason:  err.Error(),
		})
		if nackErr != nil {
			return stats, fmt.Errorf("gojob: dispatch failed and nack failed: %w", nackErr)
		}
		return stats, err
	}
	if j.logger != nil {
		j.logger.Info("confirmation dispatch batch settled",
			"claimed", stats.Claimed,
			"delivered", stats.Delivered,
			"retried", stats.Retried,
			"dead", stats.Dead,
		)
	}
	return stats, delivery.Ack(ctx)
}

func intParameter(params map[string]any, key string) (int, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, false
	}
	switch value := raw.(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}
