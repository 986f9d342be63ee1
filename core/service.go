package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	allocator         *ClaimAllocator
	counterStore      CounterStore
	claimStore        ClaimStore
	outboxStore       EmailOutboxStore
	crmClient         CRMClient
	mailer            Mailer
	throttle          SubmissionThrottle
	idempotencyStore  IdempotencyClaimStore
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	Allocator         *ClaimAllocator
	CounterStore      CounterStore
	ClaimStore        ClaimStore
	EmailOutboxStore  EmailOutboxStore
	CRMClient         CRMClient
	Mailer            Mailer
	Throttle          SubmissionThrottle
	IdempotencyStore  IdempotencyClaimStore
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("warranty", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("warranty"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if (builder.claimStore == nil || builder.counterStore == nil || builder.outboxStore == nil) && builder.repositoryFactory != nil {
		var stores StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			stores = built
		} else if provider, ok := builder.repositoryFactory.(StoreProvider); ok {
			stores = provider
		}
		if stores != nil {
			if builder.claimStore == nil {
				builder.claimStore = stores.ClaimStore()
			}
			if builder.counterStore == nil {
				builder.counterStore = stores.CounterStore()
			}
			if builder.outboxStore == nil {
				builder.outboxStore = stores.EmailOutboxStore()
			}
		}
	}
	if builder.counterStore == nil {
		builder.counterStore = NewMemoryCounterStore(finalConfig.Counter.Baseline)
	}
	if builder.claimStore == nil {
		builder.claimStore = NewMemoryClaimStore()
	}
	if builder.outboxStore == nil {
		builder.outboxStore = NewMemoryEmailOutboxStore()
	}

	allocator, err := NewClaimAllocator(builder.counterStore, finalConfig.Counter,
		WithAllocatorLogger(logger),
		WithAllocatorMetrics(builder.metricsRecorder),
	)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		allocator:         allocator,
		counterStore:      builder.counterStore,
		claimStore:        builder.claimStore,
		outboxStore:       builder.outboxStore,
		crmClient:         builder.crmClient,
		mailer:            builder.mailer,
		throttle:          builder.throttle,
		idempotencyStore:  builder.idempotencyStore,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Allocator() *ClaimAllocator {
	if s == nil {
		return nil
	}
	return s.allocator
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		Allocator:         s.allocator,
		CounterStore:      s.counterStore,
		ClaimStore:        s.claimStore,
		EmailOutboxStore:  s.outboxStore,
		CRMClient:         s.crmClient,
		Mailer:            s.mailer,
		Throttle:          s.throttle,
		IdempotencyStore:  s.idempotencyStore,
	}
}

// ClaimReceipt is what a dealer gets back from a successful submission.
type ClaimReceipt struct {
	Claim       Claim
	ClaimNumber int64
	EmailQueued bool
}

// SubmitClaim runs the full intake pipeline. The claim number is
// allocated after validation and before any CRM record exists; once the
// claim row is persisted the number is spent, even when a downstream
// step fails.
func (s *Service) SubmitClaim(ctx context.Context, submission Submission) (receipt ClaimReceipt, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"dealer_id": submission.DealerID,
		"surface":   fmt.Sprint(submission.Metadata["surface"]),
	}
	defer func() {
		if receipt.ClaimNumber > 0 {
			fields["claim_number"] = receipt.ClaimNumber
		}
		s.observeOperation(ctx, startedAt, "submit_claim", err, fields)
	}()

	if s == nil || s.claimStore == nil || s.allocator == nil {
		return ClaimReceipt{}, s.mapError(fmt.Errorf("core: service is not configured"))
	}

	submission = normalizeSubmission(submission)
	if verr := submission.Validate(); verr != nil {
		return ClaimReceipt{}, s.mapError(verr)
	}

	if s.throttle != nil {
		surface := strings.TrimSpace(fmt.Sprint(submission.Metadata["surface"]))
		if surface == "" || surface == "<nil>" {
			surface = "api"
		}
		if terr := s.throttle.Allow(ctx, submission.DealerID, surface); terr != nil {
			return ClaimReceipt{}, s.mapError(terr)
		}
	}

	number, err := s.allocator.AllocateNext(ctx)
	if err != nil {
		return ClaimReceipt{}, s.mapError(err)
	}
	fields["claim_number"] = number

	claim, err := s.claimStore.Create(ctx, CreateClaimInput{
		Number:        number,
		DealerID:      submission.DealerID,
		CustomerName:  submission.CustomerName,
		CustomerEmail: submission.CustomerEmail,
		ProductModel:  submission.ProductModel,
		ProductSerial: submission.ProductSerial,
		PurchaseDate:  submission.PurchaseDate,
		Issue:         submission.Issue,
		Status:        ClaimStatusReceived,
		Metadata:      submission.Metadata,
	})
	if err != nil {
		// The allocated number stays spent: gaps are cheaper than a
		// number two dealers could both hold.
		return ClaimReceipt{}, s.mapError(err)
	}
	fields["claim_id"] = claim.ID

	claim, err = s.recordCRM(ctx, claim, submission)
	if err != nil {
		return ClaimReceipt{}, s.mapError(err)
	}

	emailQueued := false
	if submission.ConfirmationRequested && s.outboxStore != nil {
		if _, qerr := s.outboxStore.Enqueue(ctx, EnqueueEmailInput{
			ClaimID:     claim.ID,
			ClaimNumber: claim.Number,
			Recipient:   submission.CustomerEmail,
			Metadata: map[string]any{
				"subject": s.config.Intake.EmailSubject,
			},
		}); qerr != nil {
			// The claim stands. The confirmation is retried out of band
			// or lost; it never blocks acceptance.
			s.logError(ctx, "confirmation enqueue failed", map[string]any{
				"claim_id": claim.ID,
				"error":    qerr.Error(),
			})
		} else {
			emailQueued = true
		}
	}

	return ClaimReceipt{
		Claim:       claim,
		ClaimNumber: claim.Number,
		EmailQueued: emailQueued,
	}, nil
}

func (s *Service) recordCRM(ctx context.Context, claim Claim, submission Submission) (Claim, error) {
	if s.crmClient == nil {
		return claim, nil
	}

	contact, err := s.crmClient.CreateContact(ctx, CRMContact{
		Name:     submission.CustomerName,
		Email:    submission.CustomerEmail,
		DealerID: submission.DealerID,
		Metadata: submission.Metadata,
	})
	if err != nil {
		s.markClaimFailed(ctx, claim.ID, "crm contact creation failed: "+err.Error())
		return claim, goerrors.Wrap(err, goerrors.CategoryExternal, "core: crm contact creation").
			WithTextCode(ClaimsErrorExternalFailure).
			WithMetadata(map[string]any{"claim_id": claim.ID, "claim_number": claim.Number})
	}

	ticket, err := s.crmClient.CreateTicket(ctx, CRMTicket{
		ContactID:   contact.ID,
		ClaimNumber: claim.Number,
		Subject:     fmt.Sprintf("Warranty claim %d", claim.Number),
		Description: submission.Issue,
		Metadata:    submission.Metadata,
	})
	if err != nil {
		s.markClaimFailed(ctx, claim.ID, "crm ticket creation failed: "+err.Error())
		return claim, goerrors.Wrap(err, goerrors.CategoryExternal, "core: crm ticket creation").
			WithTextCode(ClaimsErrorExternalFailure).
			WithMetadata(map[string]any{"claim_id": claim.ID, "claim_number": claim.Number})
	}

	updated, err := s.claimStore.UpdateRecords(ctx, UpdateClaimRecordsInput{
		ClaimID:      claim.ID,
		CRMContactID: contact.ID,
		CRMTicketID:  ticket.ID,
		Status:       ClaimStatusRecorded,
	})
	if err != nil {
		return claim, err
	}
	return updated, nil
}

func (s *Service) markClaimFailed(ctx context.Context, claimID string, reason string) {
	if s == nil || s.claimStore == nil {
		return
	}
	if err := s.claimStore.UpdateStatus(ctx, claimID, ClaimStatusFailed, reason); err != nil {
		s.logError(ctx, "claim failure mark failed", map[string]any{
			"claim_id": claimID,
			"error":    err.Error(),
		})
	}
}

// AllocateClaimNumber exposes the counter directly. Numbers handed out
// here are spent the same as pipeline allocations.
func (s *Service) AllocateClaimNumber(ctx context.Context) (number int64, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		fields := map[string]any{}
		if number > 0 {
			fields["claim_number"] = number
		}
		s.observeOperation(ctx, startedAt, "allocate_claim_number", err, fields)
	}()
	if s == nil || s.allocator == nil {
		return 0, s.mapError(fmt.Errorf("core: service is not configured"))
	}
	number, err = s.allocator.AllocateNext(ctx)
	if err != nil {
		return 0, s.mapError(err)
	}
	return number, nil
}

func (s *Service) GetClaim(ctx context.Context, id string) (Claim, error) {
	if s == nil || s.claimStore == nil {
		return Claim{}, s.mapError(fmt.Errorf("core: service is not configured"))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Claim{}, s.mapError(fmt.Errorf("%w: claim id is required", ErrInvalidSubmission))
	}
	claim, err := s.claimStore.Get(ctx, id)
	if err != nil {
		return Claim{}, s.mapError(err)
	}
	return claim, nil
}

func (s *Service) GetClaimByNumber(ctx context.Context, number int64) (Claim, error) {
	if s == nil || s.claimStore == nil {
		return Claim{}, s.mapError(fmt.Errorf("core: service is not configured"))
	}
	if number <= 0 {
		return Claim{}, s.mapError(fmt.Errorf("%w: claim number must be positive", ErrInvalidSubmission))
	}
	claim, err := s.claimStore.GetByNumber(ctx, number)
	if err != nil {
		return Claim{}, s.mapError(err)
	}
	return claim, nil
}

func (s *Service) ListClaims(ctx context.Context, filter ClaimFilter) (ClaimPage, error) {
	if s == nil || s.claimStore == nil {
		return ClaimPage{}, s.mapError(fmt.Errorf("core: service is not configured"))
	}
	page, err := s.claimStore.List(ctx, filter)
	if err != nil {
		return ClaimPage{}, s.mapError(err)
	}
	return page, nil
}

// CurrentCounter reports the last persisted counter value without
// consuming a number.
func (s *Service) CurrentCounter(ctx context.Context) (int64, error) {
	if s == nil || s.allocator == nil {
		return 0, s.mapError(fmt.Errorf("core: service is not configured"))
	}
	value, err := s.allocator.Current(ctx)
	if err != nil {
		return 0, s.mapError(err)
	}
	return value, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return claimsErrorMapper(err)
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func normalizeSubmission(submission Submission) Submission {
	submission.DealerID = strings.TrimSpace(submission.DealerID)
	submission.CustomerName = strings.TrimSpace(submission.CustomerName)
	submission.CustomerEmail = strings.TrimSpace(strings.ToLower(submission.CustomerEmail))
	submission.ProductModel = strings.TrimSpace(submission.ProductModel)
	submission.ProductSerial = strings.TrimSpace(submission.ProductSerial)
	submission.Issue = strings.TrimSpace(submission.Issue)
	return submission
}
