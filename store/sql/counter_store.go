package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-warranty/core"
	"github.com/uptrace/bun"
)

// CounterStore keeps the claim counter in a single named row. Next
// increments and reads back in one transactional statement so the new
// value is committed before any caller sees it; the database serializes
// concurrent increments across processes.
type CounterStore struct {
	db       *bun.DB
	baseline int64
}

func NewCounterStore(db *bun.DB, baseline int64) (*CounterStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if baseline <= 0 {
		baseline = core.BaselineClaimNumber
	}
	return &CounterStore{db: db, baseline: baseline}, nil
}

func (s *CounterStore) Next(ctx context.Context, name string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: counter store is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("sqlstore: counter name is required")
	}

	var value int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		incremented, incErr := incrementCounterTx(ctx, tx, name)
		if incErr == nil {
			value = incremented
			return nil
		}
		if !errors.Is(incErr, sql.ErrNoRows) {
			return incErr
		}

		// First allocation against this name: seed the baseline row.
		// DO NOTHING keeps a losing concurrent seeder inside a usable
		// transaction on postgres; the retry below picks up the
		// committed row either way.
		if _, insErr := tx.NewInsert().
			Model(&claimCounterRecord{
				Name:      name,
				Value:     s.baseline,
				UpdatedAt: time.Now().UTC(),
			}).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx); insErr != nil {
			return insErr
		}

		incremented, incErr = incrementCounterTx(ctx, tx, name)
		if incErr != nil {
			return incErr
		}
		value = incremented
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return value, nil
}

func (s *CounterStore) Current(ctx context.Context, name string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: counter store is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("sqlstore: counter name is required")
	}

	record := &claimCounterRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.baseline, nil
		}
		return 0, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return record.Value, nil
}

func incrementCounterTx(ctx context.Context, tx bun.Tx, name string) (int64, error) {
	var value int64
	query := `
UPDATE warranty_claim_counters
SET value = value + 1, updated_at = ?
WHERE name = ?
RETURNING value
`
	err := tx.NewRaw(query, time.Now().UTC(), name).Scan(ctx, &value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

var _ core.CounterStore = (*CounterStore)(nil)
