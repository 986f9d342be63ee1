package warranty

import "github.com/goliatone/go-warranty/core"

type Config = core.Config

type CounterConfig = core.CounterConfig

type IntakeConfig = core.IntakeConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Claim = core.Claim
type ClaimStatus = core.ClaimStatus
type ClaimFilter = core.ClaimFilter
type ClaimPage = core.ClaimPage
type ClaimReceipt = core.ClaimReceipt
type Submission = core.Submission

type CounterStore = core.CounterStore
type ClaimStore = core.ClaimStore
type EmailOutboxStore = core.EmailOutboxStore
type CRMClient = core.CRMClient
type Mailer = core.Mailer
type SubmissionThrottle = core.SubmissionThrottle
type IdempotencyClaimStore = core.IdempotencyClaimStore

var (
	WithLogger                = core.WithLogger
	WithLoggerProvider        = core.WithLoggerProvider
	WithMetricsRecorder       = core.WithMetricsRecorder
	WithErrorFactory          = core.WithErrorFactory
	WithErrorMapper           = core.WithErrorMapper
	WithPersistenceClient     = core.WithPersistenceClient
	WithRepositoryFactory     = core.WithRepositoryFactory
	WithConfigProvider        = core.WithConfigProvider
	WithOptionsResolver       = core.WithOptionsResolver
	WithCounterStore          = core.WithCounterStore
	WithClaimStore            = core.WithClaimStore
	WithEmailOutboxStore      = core.WithEmailOutboxStore
	WithCRMClient             = core.WithCRMClient
	WithMailer                = core.WithMailer
	WithSubmissionThrottle    = core.WithSubmissionThrottle
	WithIdempotencyClaimStore = core.WithIdempotencyClaimStore
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
