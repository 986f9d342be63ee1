package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-warranty/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type EmailOutboxStore struct {
	db   *bun.DB
	repo repository.Repository[*emailOutboxRecord]
}

func NewEmailOutboxStore(db *bun.DB) (*EmailOutboxStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*emailOutboxRecord](db, emailOutboxHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid email outbox repository wiring: %w", err)
		}
	}
	return &EmailOutboxStore{db: db, repo: repo}, nil
}

func (s *EmailOutboxStore) Enqueue(ctx context.Context, in core.EnqueueEmailInput) (core.EmailDispatch, error) {
	if s == nil || s.repo == nil {
		return core.EmailDispatch{}, fmt.Errorf("sqlstore: email outbox store is not configured")
	}
	if strings.TrimSpace(in.ClaimID) == "" {
		return core.EmailDispatch{}, fmt.Errorf("sqlstore: claim id is required")
	}
	if in.ClaimNumber <= 0 {
		return core.EmailDispatch{}, fmt.Errorf("sqlstore: claim number is required")
	}
	if strings.TrimSpace(in.Recipient) == "" {
		return core.EmailDispatch{}, fmt.Errorf("sqlstore: email recipient is required")
	}

	now := time.Now().UTC()
	record := &emailOutboxRecord{
		ID:          uuid.NewString(),
		ClaimID:     strings.TrimSpace(in.ClaimID),
		ClaimNumber: in.ClaimNumber,
		Recipient:   strings.TrimSpace(in.Recipient),
		Status:      string(core.DispatchStatusPending),
		Attempts:    0,
		LastError:   "",
		Metadata:    copyAnyMap(in.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.EmailDispatch{}, err
	}
	return created.toDomain(), nil
}

func (s *EmailOutboxStore) ClaimBatch(ctx context.Context, limit int) ([]core.EmailDispatch, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: email outbox store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	var records []emailOutboxRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM warranty_email_outbox
	WHERE status = ?
	  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	ORDER BY created_at ASC
	LIMIT ?
)
UPDATE warranty_email_outbox
SET status = ?, attempts = attempts + 1, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	claim_id,
	claim_number,
	recipient,
	status,
	attempts,
	next_attempt_at,
	last_error,
	metadata,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			string(core.DispatchStatusPending),
			now,
			limit,
			string(core.DispatchStatusSending),
			now,
			string(core.DispatchStatusPending),
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	dispatches := make([]core.EmailDispatch, 0, len(records))
	for _, record := range records {
		dispatches = append(dispatches, record.toDomain())
	}
	return dispatches, nil
}

func (s *EmailOutboxStore) Ack(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: email outbox store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: dispatch id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*emailOutboxRecord)(nil)).
		Set("status = ?", string(core.DispatchStatusDelivered)).
		Set("last_error = ?", "").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (s *EmailOutboxStore) Fail(ctx context.Context, id string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: email outbox store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: dispatch id is required")
	}

	lastError := ""
	if cause != nil {
		lastError = strings.TrimSpace(cause.Error())
	}

	status := string(core.DispatchStatusPending)
	var next *time.Time
	if !nextAttemptAt.IsZero() {
		nextValue := nextAttemptAt.UTC()
		next = &nextValue
	}

	update := s.db.NewUpdate().
		Model((*emailOutboxRecord)(nil)).
		Set("status = ?", status).
		Set("next_attempt_at = ?", next).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)
	if maxAttempts > 0 {
		// Exhausted dispatches go straight to dead instead of pending.
		update = s.db.NewUpdate().
			Model((*emailOutboxRecord)(nil)).
			Set("status = CASE WHEN attempts >= ? THEN ? ELSE ? END", maxAttempts, string(core.DispatchStatusDead), status).
			Set("next_attempt_at = CASE WHEN attempts >= ? THEN NULL ELSE ? END", maxAttempts, next).
			Set("last_error = ?", lastError).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", id)
	}
	_, err := update.Exec(ctx)
	return err
}

var _ core.EmailOutboxStore = (*EmailOutboxStore)(nil)
