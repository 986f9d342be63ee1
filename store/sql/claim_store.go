package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-warranty/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ClaimStore struct {
	db   *bun.DB
	repo repository.Repository[*claimRecord]
}

func NewClaimStore(db *bun.DB) (*ClaimStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*claimRecord](db, claimHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid claim repository wiring: %w", err)
		}
	}
	return &ClaimStore{db: db, repo: repo}, nil
}

func (s *ClaimStore) Create(ctx context.Context, in core.CreateClaimInput) (core.Claim, error) {
	if s == nil || s.repo == nil {
		return core.Claim{}, fmt.Errorf("sqlstore: claim store is not configured")
	}
	if in.Number <= 0 {
		return core.Claim{}, fmt.Errorf("sqlstore: claim number is required")
	}
	if strings.TrimSpace(in.DealerID) == "" {
		return core.Claim{}, fmt.Errorf("sqlstore: dealer id is required")
	}

	status := in.Status
	if strings.TrimSpace(string(status)) == "" {
		status = core.ClaimStatusReceived
	}

	record := newClaimRecord(in, status, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Claim{}, fmt.Errorf("sqlstore: claim number %d already recorded: %w", in.Number, err)
		}
		return core.Claim{}, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return created.toDomain(), nil
}

func (s *ClaimStore) Get(ctx context.Context, id string) (core.Claim, error) {
	if s == nil || s.repo == nil {
		return core.Claim{}, fmt.Errorf("sqlstore: claim store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Claim{}, fmt.Errorf("sqlstore: claim id is required")
	}
	record := &claimRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Claim{}, fmt.Errorf("%w: %s", core.ErrClaimNotFound, id)
		}
		return core.Claim{}, err
	}
	return record.toDomain(), nil
}

func (s *ClaimStore) GetByNumber(ctx context.Context, number int64) (core.Claim, error) {
	if s == nil || s.db == nil {
		return core.Claim{}, fmt.Errorf("sqlstore: claim store is not configured")
	}
	if number <= 0 {
		return core.Claim{}, fmt.Errorf("sqlstore: claim number is required")
	}
	record := &claimRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.number = ?", number).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Claim{}, fmt.Errorf("%w: number %d", core.ErrClaimNotFound, number)
		}
		return core.Claim{}, err
	}
	return record.toDomain(), nil
}

func (s *ClaimStore) List(ctx context.Context, filter core.ClaimFilter) (core.ClaimPage, error) {
	if s == nil || s.repo == nil {
		return core.ClaimPage{}, fmt.Errorf("sqlstore: claim store is not configured")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 25
	}

	criteria := []repository.SelectCriteria{
		repository.OrderBy("number ASC"),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Limit(perPage).Offset((page - 1) * perPage)
		}),
	}
	if dealerID := strings.TrimSpace(filter.DealerID); dealerID != "" {
		criteria = append(criteria, repository.SelectBy("dealer_id", "=", dealerID))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		criteria = append(criteria, repository.SelectBy("status", "=", status))
	}
	if filter.From != nil {
		from := filter.From.UTC()
		criteria = append(criteria, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("created_at >= ?", from)
		}))
	}
	if filter.To != nil {
		to := filter.To.UTC()
		criteria = append(criteria, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("created_at <= ?", to)
		}))
	}

	records, total, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return core.ClaimPage{}, err
	}

	items := make([]core.Claim, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.ClaimPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: page*perPage < total,
	}, nil
}

func (s *ClaimStore) UpdateRecords(ctx context.Context, in core.UpdateClaimRecordsInput) (core.Claim, error) {
	if s == nil || s.repo == nil {
		return core.Claim{}, fmt.Errorf("sqlstore: claim store is not configured")
	}
	claimID := strings.TrimSpace(in.ClaimID)
	if claimID == "" {
		return core.Claim{}, fmt.Errorf("sqlstore: claim id is required")
	}

	current := &claimRecord{}
	err := s.db.NewSelect().
		Model(current).
		Where("?TableAlias.id = ?", claimID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Claim{}, fmt.Errorf("%w: %s", core.ErrClaimNotFound, claimID)
		}
		return core.Claim{}, err
	}

	claim := current.toDomain()
	if in.Status != "" {
		if err := claim.TransitionTo(in.Status, in.Reason, time.Now().UTC()); err != nil {
			return core.Claim{}, err
		}
	}
	if trimmed := strings.TrimSpace(in.CRMContactID); trimmed != "" {
		claim.CRMContactID = trimmed
	}
	if trimmed := strings.TrimSpace(in.CRMTicketID); trimmed != "" {
		claim.CRMTicketID = trimmed
	}

	current.Status = string(claim.Status)
	current.CRMContactID = claim.CRMContactID
	current.CRMTicketID = claim.CRMTicketID
	current.LastError = claim.LastError
	current.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, current, repository.UpdateByID(claimID))
	if err != nil {
		return core.Claim{}, err
	}
	return updated.toDomain(), nil
}

func (s *ClaimStore) UpdateStatus(ctx context.Context, id string, status core.ClaimStatus, reason string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: claim store is not configured")
	}
	_, err := s.UpdateRecords(ctx, core.UpdateClaimRecordsInput{
		ClaimID: id,
		Status:  status,
		Reason:  reason,
	})
	return err
}

func newClaimRecord(in core.CreateClaimInput, status core.ClaimStatus, now time.Time) *claimRecord {
	record := &claimRecord{
		ID:            uuid.NewString(),
		Number:        in.Number,
		DealerID:      strings.TrimSpace(in.DealerID),
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		ProductModel:  strings.TrimSpace(in.ProductModel),
		ProductSerial: strings.TrimSpace(in.ProductSerial),
		Issue:         strings.TrimSpace(in.Issue),
		Status:        string(status),
		Metadata:      copyAnyMap(in.Metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.PurchaseDate != nil {
		purchaseDate := in.PurchaseDate.UTC()
		record.PurchaseDate = &purchaseDate
	}
	return record
}

var _ core.ClaimStore = (*ClaimStore)(nil)
