package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// CounterStore is the durable persistence behind the claim counter.
// Next must atomically increment and persist the named counter and
// return the new value; a failure must leave the persisted value
// untouched. Implementations own the durability guarantee, the
// allocator owns serialization and invariant checks.
type CounterStore interface {
	Next(ctx context.Context, name string) (int64, error)
	Current(ctx context.Context, name string) (int64, error)
}

type CreateClaimInput struct {
	Number        int64
	DealerID      string
	CustomerName  string
	CustomerEmail string
	ProductModel  string
	ProductSerial string
	PurchaseDate  *time.Time
	Issue         string
	Status        ClaimStatus
	Metadata      map[string]any
}

type UpdateClaimRecordsInput struct {
	ClaimID      string
	CRMContactID string
	CRMTicketID  string
	Status       ClaimStatus
	Reason       string
}

type ClaimFilter struct {
	DealerID string
	Status   ClaimStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PerPage  int
}

type ClaimPage struct {
	Items   []Claim
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

type ClaimStore interface {
	Create(ctx context.Context, in CreateClaimInput) (Claim, error)
	Get(ctx context.Context, id string) (Claim, error)
	GetByNumber(ctx context.Context, number int64) (Claim, error)
	List(ctx context.Context, filter ClaimFilter) (ClaimPage, error)
	UpdateRecords(ctx context.Context, in UpdateClaimRecordsInput) (Claim, error)
	UpdateStatus(ctx context.Context, id string, status ClaimStatus, reason string) error
}

type EnqueueEmailInput struct {
	ClaimID     string
	ClaimNumber int64
	Recipient   string
	Metadata    map[string]any
}

// EmailOutboxStore is the durable queue of pending confirmation emails.
// ClaimBatch leases pending dispatches for an attempt; Ack and Fail
// settle the lease.
type EmailOutboxStore interface {
	Enqueue(ctx context.Context, in EnqueueEmailInput) (EmailDispatch, error)
	ClaimBatch(ctx context.Context, limit int) ([]EmailDispatch, error)
	Ack(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type CRMContact struct {
	Name     string
	Email    string
	DealerID string
	Metadata map[string]any
}

type CRMContactResult struct {
	ID       string
	Metadata map[string]any
}

type CRMTicket struct {
	ContactID   string
	ClaimNumber int64
	Subject     string
	Description string
	Metadata    map[string]any
}

type CRMTicketResult struct {
	ID       string
	Metadata map[string]any
}

// CRMClient is the outbound CRM collaborator. The core treats the CRM
// as opaque: it hands over the allocated claim number and stores the
// returned record identifiers, nothing more.
type CRMClient interface {
	CreateContact(ctx context.Context, contact CRMContact) (CRMContactResult, error)
	CreateTicket(ctx context.Context, ticket CRMTicket) (CRMTicketResult, error)
}

type ConfirmationEmail struct {
	Recipient   string
	ClaimNumber int64
	Subject     string
	Metadata    map[string]any
}

type MailResult struct {
	MessageID string
	Metadata  map[string]any
}

type Mailer interface {
	SendConfirmation(ctx context.Context, email ConfirmationEmail) (MailResult, error)
}

// SubmissionThrottle guards the public intake surface. Allow returns a
// rate-limit error when the dealer has exhausted its window.
type SubmissionThrottle interface {
	Allow(ctx context.Context, dealerID string, surface string) error
}

type IntakeRequest struct {
	Surface  string
	DealerID string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

type IntakeResult struct {
	Accepted    bool
	StatusCode  int
	ClaimNumber int64
	Metadata    map[string]any
}

type IntakeHandler interface {
	Surface() string
	Handle(ctx context.Context, req IntakeRequest) (IntakeResult, error)
}

// IdempotencyClaimStore dedupes repeated intake deliveries. Claim
// returns a claim id and whether the caller won the lease for the key.
type IdempotencyClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	Idempotency          string
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type StoreProvider interface {
	ClaimStore() ClaimStore
	CounterStore() CounterStore
	EmailOutboxStore() EmailOutboxStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// SecretProvider encrypts and decrypts sensitive material, such as
// dealer signing secrets and outbound provider API tokens, before it
// reaches storage or configuration files.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
