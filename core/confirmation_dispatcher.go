package core

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

type ConfirmationDispatcherConfig struct {
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Subject        string
}

func DefaultConfirmationDispatcherConfig() ConfirmationDispatcherConfig {
	return ConfirmationDispatcherConfig{
		BatchSize:      50,
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Minute,
		Subject:        "Your warranty claim",
	}
}

type DispatchStats struct {
	Claimed   int
	Delivered int
	Retried   int
	Dead      int
}

// ConfirmationDispatcher drains the email outbox into the mailer. Runs
// out of band from the submission path so mail provider downtime never
// blocks claim acceptance.
type ConfirmationDispatcher struct {
	store      EmailOutboxStore
	mailer     Mailer
	claimStore ClaimStore
	config     ConfirmationDispatcherConfig
	logger     Logger
	now        func() time.Time
}

type DispatcherOption func(*ConfirmationDispatcher)

func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *ConfirmationDispatcher) {
		d.logger = logger
	}
}

func WithDispatcherClaimStore(store ClaimStore) DispatcherOption {
	return func(d *ConfirmationDispatcher) {
		d.claimStore = store
	}
}

func NewConfirmationDispatcher(
	store EmailOutboxStore,
	mailer Mailer,
	config ConfirmationDispatcherConfig,
	opts ...DispatcherOption,
) (*ConfirmationDispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("core: email outbox store is required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("core: mailer is required")
	}
	defaults := DefaultConfirmationDispatcherConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if strings.TrimSpace(config.Subject) == "" {
		config.Subject = defaults.Subject
	}
	dispatcher := &ConfirmationDispatcher{
		store:  store,
		mailer: mailer,
		config: config,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(dispatcher)
	}
	return dispatcher, nil
}

func (d *ConfirmationDispatcher) DispatchPending(ctx context.Context, batchSize int) (DispatchStats, error) {
	if d == nil || d.store == nil || d.mailer == nil {
		return DispatchStats{}, fmt.Errorf("core: confirmation dispatcher is not configured")
	}
	limit := batchSize
	if limit <= 0 {
		limit = d.config.BatchSize
	}
	dispatches, err := d.store.ClaimBatch(ctx, limit)
	if err != nil {
		return DispatchStats{}, err
	}

	stats := DispatchStats{Claimed: len(dispatches)}
	var dispatchErr error
	for _, dispatch := range dispatches {
		if err := d.sendOne(ctx, dispatch); err != nil {
			nextAttemptAt := d.now().Add(d.nextBackoffDelay(dispatch.Attempts))
			if failErr := d.store.Fail(ctx, strings.TrimSpace(dispatch.ID), err, nextAttemptAt, d.config.MaxAttempts); failErr != nil {
				dispatchErr = joinErrors(dispatchErr, failErr)
			}
			if dispatch.Attempts >= d.config.MaxAttempts {
				stats.Dead++
			} else {
				stats.Retried++
			}
			dispatchErr = joinErrors(dispatchErr, err)
			continue
		}
		if err := d.store.Ack(ctx, strings.TrimSpace(dispatch.ID)); err != nil {
			dispatchErr = joinErrors(dispatchErr, err)
			continue
		}
		d.markNotified(ctx, dispatch)
		stats.Delivered++
	}

	return stats, dispatchErr
}

func (d *ConfirmationDispatcher) sendOne(ctx context.Context, dispatch EmailDispatch) error {
	subject := d.config.Subject
	if raw, ok := dispatch.Metadata["subject"]; ok {
		if typed := strings.TrimSpace(fmt.Sprint(raw)); typed != "" && typed != "<nil>" {
			subject = typed
		}
	}
	_, err := d.mailer.SendConfirmation(ctx, ConfirmationEmail{
		Recipient:   dispatch.Recipient,
		ClaimNumber: dispatch.ClaimNumber,
		Subject:     subject,
		Metadata:    dispatch.Metadata,
	})
	if err != nil {
		return fmt.Errorf("core: confirmation send failed for dispatch %q: %w", dispatch.ID, err)
	}
	return nil
}

func (d *ConfirmationDispatcher) markNotified(ctx context.Context, dispatch EmailDispatch) {
	if d.claimStore == nil || strings.TrimSpace(dispatch.ClaimID) == "" {
		return
	}
	if err := d.claimStore.UpdateStatus(ctx, dispatch.ClaimID, ClaimStatusNotified, ""); err != nil && d.logger != nil {
		d.logger.Error("claim notify mark failed", "claim_id", dispatch.ClaimID, "error", err.Error())
	}
}

func (d *ConfirmationDispatcher) nextBackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(d.config.InitialBackoff)
	multiplier := math.Pow(2, float64(attempt-1))
	next := time.Duration(base * multiplier)
	if next < 0 {
		return d.config.MaxBackoff
	}
	if next > d.config.MaxBackoff {
		return d.config.MaxBackoff
	}
	return next
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}
