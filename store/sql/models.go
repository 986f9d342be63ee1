package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// claimCounterRecord is the single durable row behind a named claim
// counter. The name is the primary key: every process sharing the
// database resolves the same row through the well-known counter name.
type claimCounterRecord struct {
	bun.BaseModel `bun:"table:warranty_claim_counters,alias:wcc"`

	Name      string    `bun:"name,pk"`
	Value     int64     `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type claimRecord struct {
	bun.BaseModel `bun:"table:warranty_claims,alias:wc"`

	ID            string         `bun:"id,pk"`
	Number        int64          `bun:"number,notnull"`
	DealerID      string         `bun:"dealer_id,notnull"`
	CustomerName  string         `bun:"customer_name,notnull"`
	CustomerEmail string         `bun:"customer_email"`
	ProductModel  string         `bun:"product_model"`
	ProductSerial string         `bun:"product_serial,notnull"`
	PurchaseDate  *time.Time     `bun:"purchase_date,nullzero"`
	Issue         string         `bun:"issue,notnull"`
	Status        string         `bun:"status,notnull"`
	CRMContactID  string         `bun:"crm_contact_id"`
	CRMTicketID   string         `bun:"crm_ticket_id"`
	LastError     string         `bun:"last_error"`
	Metadata      map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type emailOutboxRecord struct {
	bun.BaseModel `bun:"table:warranty_email_outbox,alias:weo"`

	ID            string         `bun:"id,pk"`
	ClaimID       string         `bun:"claim_id,notnull"`
	ClaimNumber   int64          `bun:"claim_number,notnull"`
	Recipient     string         `bun:"recipient,notnull"`
	Status        string         `bun:"status,notnull"`
	Attempts      int            `bun:"attempts,notnull"`
	NextAttemptAt *time.Time     `bun:"next_attempt_at,nullzero"`
	LastError     string         `bun:"last_error"`
	Metadata      map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:warranty_ratelimit_state,alias:wrs"`

	ID          string         `bun:"id,pk"`
	DealerID    string         `bun:"dealer_id,notnull"`
	Surface     string         `bun:"surface,notnull"`
	WindowStart time.Time      `bun:"window_start,notnull"`
	Count       int            `bun:"count,notnull"`
	Metadata    map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
