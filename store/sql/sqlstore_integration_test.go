package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-warranty/core"
	warrantymigrations "github.com/goliatone/go-warranty/migrations"
	"github.com/goliatone/go-warranty/ratelimit"
	sqlstore "github.com/goliatone/go-warranty/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-warranty-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"warranty_claims",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "warranty_claims" {
		t.Fatalf("expected warranty_claims table, got %q", tableName)
	}
}

func TestCounterStore_SequenceSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	counterStore := factory.CounterStore()
	if counterStore == nil {
		t.Fatalf("expected counter store from factory")
	}

	for want := core.BaselineClaimNumber + 1; want <= core.BaselineClaimNumber+3; want++ {
		value, nextErr := counterStore.Next(ctx, core.DefaultCounterName)
		if nextErr != nil {
			t.Fatalf("next: %v", nextErr)
		}
		if value != want {
			t.Fatalf("expected counter value %d, got %d", want, value)
		}
	}

	// A second store over the same database stands in for a restarted
	// process. It must resume after the persisted value, never reuse it.
	restarted, err := sqlstore.NewCounterStore(factory.DB(), core.BaselineClaimNumber)
	if err != nil {
		t.Fatalf("new counter store: %v", err)
	}
	value, err := restarted.Next(ctx, core.DefaultCounterName)
	if err != nil {
		t.Fatalf("next after restart: %v", err)
	}
	if value != core.BaselineClaimNumber+4 {
		t.Fatalf("expected counter value %d after restart, got %d", core.BaselineClaimNumber+4, value)
	}

	current, err := restarted.Current(ctx, core.DefaultCounterName)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current != core.BaselineClaimNumber+4 {
		t.Fatalf("expected current %d, got %d", core.BaselineClaimNumber+4, current)
	}
}

func TestCounterStore_CurrentReturnsBaselineBeforeFirstNext(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	counterStore, err := sqlstore.NewCounterStore(client.DB(), core.BaselineClaimNumber)
	if err != nil {
		t.Fatalf("new counter store: %v", err)
	}

	current, err := counterStore.Current(ctx, core.DefaultCounterName)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current != core.BaselineClaimNumber {
		t.Fatalf("expected baseline %d before first allocation, got %d", core.BaselineClaimNumber, current)
	}
}

func TestClaimAllocator_OverSQLiteNeverRepeats(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	counterStore, err := sqlstore.NewCounterStore(client.DB(), core.BaselineClaimNumber)
	if err != nil {
		t.Fatalf("new counter store: %v", err)
	}
	allocator, err := core.NewClaimAllocator(counterStore, core.CounterConfig{
		Name:     core.DefaultCounterName,
		Baseline: core.BaselineClaimNumber,
	})
	if err != nil {
		t.Fatalf("new allocator: %v", err)
	}

	const workers = 25
	var wg sync.WaitGroup
	results := make(chan int64, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, allocErr := allocator.AllocateNext(ctx)
			if allocErr != nil {
				errs <- allocErr
				return
			}
			results <- value
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for allocErr := range errs {
		t.Fatalf("allocate: %v", allocErr)
	}
	seen := map[int64]bool{}
	for value := range results {
		if value <= core.BaselineClaimNumber || value > core.BaselineClaimNumber+workers {
			t.Fatalf("allocated value %d outside expected range", value)
		}
		if seen[value] {
			t.Fatalf("claim number %d issued twice", value)
		}
		seen[value] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d distinct claim numbers, got %d", workers, len(seen))
	}
}

func TestCounterStore_ConcurrentFirstAllocationSeedsOnce(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	// Two store instances racing to seed the same fresh counter name,
	// as two service processes would after a deploy.
	first, err := sqlstore.NewCounterStore(client.DB(), core.BaselineClaimNumber)
	if err != nil {
		t.Fatalf("new counter store: %v", err)
	}
	second, err := sqlstore.NewCounterStore(client.DB(), core.BaselineClaimNumber)
	if err != nil {
		t.Fatalf("new counter store: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan int64, 2)
	errs := make(chan error, 2)
	for _, store := range []*sqlstore.CounterStore{first, second} {
		wg.Add(1)
		go func(s *sqlstore.CounterStore) {
			defer wg.Done()
			value, nextErr := s.Next(ctx, "racing-counter")
			if nextErr != nil {
				errs <- nextErr
				return
			}
			results <- value
		}(store)
	}
	wg.Wait()
	close(results)
	close(errs)

	for nextErr := range errs {
		t.Fatalf("next: %v", nextErr)
	}
	seen := map[int64]bool{}
	for value := range results {
		if seen[value] {
			t.Fatalf("counter value %d issued twice", value)
		}
		seen[value] = true
	}
	if !seen[core.BaselineClaimNumber+1] || !seen[core.BaselineClaimNumber+2] {
		t.Fatalf("expected consecutive seeded values, got %v", seen)
	}
}

func TestClaimStore_RoundTripAndUniqueness(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	claimStore := factory.ClaimStore()
	if claimStore == nil {
		t.Fatalf("expected claim store from factory")
	}

	purchase := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	created, err := claimStore.Create(ctx, core.CreateClaimInput{
		Number:        core.BaselineClaimNumber + 1,
		DealerID:      "dealer-north",
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		ProductModel:  "HX-200",
		ProductSerial: "SN-0001",
		PurchaseDate:  &purchase,
		Issue:         "compressor rattles on startup",
		Status:        core.ClaimStatusReceived,
		Metadata:      map[string]any{"surface": "api"},
	})
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated claim id")
	}

	if _, err := claimStore.Create(ctx, core.CreateClaimInput{
		Number:        core.BaselineClaimNumber + 1,
		DealerID:      "dealer-south",
		CustomerName:  "Grace Hopper",
		ProductSerial: "SN-0002",
		Issue:         "does not power on",
		Status:        core.ClaimStatusReceived,
	}); err == nil {
		t.Fatalf("expected duplicate claim number to be rejected")
	}

	byID, err := claimStore.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if byID.Number != core.BaselineClaimNumber+1 {
		t.Fatalf("expected claim number %d, got %d", core.BaselineClaimNumber+1, byID.Number)
	}
	if byID.PurchaseDate == nil || !byID.PurchaseDate.Equal(purchase) {
		t.Fatalf("expected purchase date round trip, got %v", byID.PurchaseDate)
	}

	byNumber, err := claimStore.GetByNumber(ctx, created.Number)
	if err != nil {
		t.Fatalf("get claim by number: %v", err)
	}
	if byNumber.ID != created.ID {
		t.Fatalf("expected claim %s by number, got %s", created.ID, byNumber.ID)
	}

	if _, err := claimStore.Get(ctx, "11111111-1111-4111-8111-111111111111"); !errors.Is(err, core.ErrClaimNotFound) {
		t.Fatalf("expected ErrClaimNotFound, got %v", err)
	}
	if _, err := claimStore.GetByNumber(ctx, core.BaselineClaimNumber+999); !errors.Is(err, core.ErrClaimNotFound) {
		t.Fatalf("expected ErrClaimNotFound by number, got %v", err)
	}

	updated, err := claimStore.UpdateRecords(ctx, core.UpdateClaimRecordsInput{
		ClaimID:      created.ID,
		CRMContactID: "crm-contact-1",
		CRMTicketID:  "crm-ticket-1",
		Status:       core.ClaimStatusRecorded,
	})
	if err != nil {
		t.Fatalf("update records: %v", err)
	}
	if updated.Status != core.ClaimStatusRecorded {
		t.Fatalf("expected recorded status, got %s", updated.Status)
	}
	if updated.CRMContactID != "crm-contact-1" || updated.CRMTicketID != "crm-ticket-1" {
		t.Fatalf("expected CRM identifiers to persist, got %q %q", updated.CRMContactID, updated.CRMTicketID)
	}

	if _, err := claimStore.UpdateRecords(ctx, core.UpdateClaimRecordsInput{
		ClaimID: created.ID,
		Status:  core.ClaimStatusReceived,
	}); !errors.Is(err, core.ErrInvalidClaimTransition) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}

	if err := claimStore.UpdateStatus(ctx, created.ID, core.ClaimStatusClosed, "resolved"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	closed, err := claimStore.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get closed claim: %v", err)
	}
	if closed.Status != core.ClaimStatusClosed {
		t.Fatalf("expected closed status, got %s", closed.Status)
	}
}

func TestClaimStore_ListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	claimStore := factory.ClaimStore()

	dealers := []string{"dealer-north", "dealer-south", "dealer-north"}
	for i, dealer := range dealers {
		if _, err := claimStore.Create(ctx, core.CreateClaimInput{
			Number:        core.BaselineClaimNumber + int64(i) + 1,
			DealerID:      dealer,
			CustomerName:  fmt.Sprintf("Customer %d", i+1),
			ProductSerial: fmt.Sprintf("SN-%04d", i+1),
			Issue:         "unit overheats",
			Status:        core.ClaimStatusReceived,
		}); err != nil {
			t.Fatalf("create claim %d: %v", i, err)
		}
	}

	page, err := claimStore.List(ctx, core.ClaimFilter{DealerID: "dealer-north"})
	if err != nil {
		t.Fatalf("list claims: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected 2 dealer-north claims, got %d", page.Total)
	}
	for _, claim := range page.Items {
		if claim.DealerID != "dealer-north" {
			t.Fatalf("unexpected dealer %q in filtered listing", claim.DealerID)
		}
	}

	firstPage, err := claimStore.List(ctx, core.ClaimFilter{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(firstPage.Items) != 2 || !firstPage.HasNext {
		t.Fatalf("expected full first page with next, got %d items hasNext=%v", len(firstPage.Items), firstPage.HasNext)
	}
	if firstPage.Items[0].Number > firstPage.Items[1].Number {
		t.Fatalf("expected claims ordered by number ascending")
	}

	secondPage, err := claimStore.List(ctx, core.ClaimFilter{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(secondPage.Items) != 1 || secondPage.HasNext {
		t.Fatalf("expected final page with 1 item, got %d hasNext=%v", len(secondPage.Items), secondPage.HasNext)
	}

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	inWindow, err := claimStore.List(ctx, core.ClaimFilter{From: &past, To: &future})
	if err != nil {
		t.Fatalf("list claims in date window: %v", err)
	}
	if inWindow.Total != 3 {
		t.Fatalf("expected all 3 claims in window, got %d", inWindow.Total)
	}

	beforeWindow, err := claimStore.List(ctx, core.ClaimFilter{To: &past})
	if err != nil {
		t.Fatalf("list claims before window: %v", err)
	}
	if beforeWindow.Total != 0 {
		t.Fatalf("expected no claims before window, got %d", beforeWindow.Total)
	}
}

func TestEmailOutboxStore_LeaseAckAndRetry(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	outbox := factory.EmailOutboxStore()
	if outbox == nil {
		t.Fatalf("expected email outbox store from factory")
	}

	first, err := outbox.Enqueue(ctx, core.EnqueueEmailInput{
		ClaimID:     "21111111-1111-4111-8111-111111111111",
		ClaimNumber: core.BaselineClaimNumber + 1,
		Recipient:   "ada@example.com",
		Metadata:    map[string]any{"subject": "Your warranty claim"},
	})
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	second, err := outbox.Enqueue(ctx, core.EnqueueEmailInput{
		ClaimID:     "21111111-1111-4111-8111-111111111112",
		ClaimNumber: core.BaselineClaimNumber + 2,
		Recipient:   "grace@example.com",
	})
	if err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	claimed, err := outbox.ClaimBatch(ctx, 10)
	if err != nil {
		t.Fatalf("claim batch: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("expected 2 claimed dispatches, got %d", len(claimed))
	}
	for _, dispatch := range claimed {
		if dispatch.Status != core.DispatchStatusSending {
			t.Fatalf("expected sending status, got %s", dispatch.Status)
		}
		if dispatch.Attempts != 1 {
			t.Fatalf("expected 1 attempt, got %d", dispatch.Attempts)
		}
	}

	// The lease is exclusive until the dispatch is settled.
	again, err := outbox.ClaimBatch(ctx, 10)
	if err != nil {
		t.Fatalf("claim batch again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no reclaimable dispatches, got %d", len(again))
	}

	if err := outbox.Ack(ctx, first.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	if err := outbox.Fail(ctx, second.ID, errors.New("postmark 503"), time.Now().Add(-time.Second), 3); err != nil {
		t.Fatalf("fail: %v", err)
	}

	retried, err := outbox.ClaimBatch(ctx, 10)
	if err != nil {
		t.Fatalf("claim batch after fail: %v", err)
	}
	if len(retried) != 1 {
		t.Fatalf("expected 1 retried dispatch, got %d", len(retried))
	}
	if retried[0].ID != second.ID {
		t.Fatalf("expected dispatch %s to retry, got %s", second.ID, retried[0].ID)
	}
	if retried[0].Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", retried[0].Attempts)
	}
}

func TestEmailOutboxStore_DeadLettersAtMaxAttempts(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	outbox := factory.EmailOutboxStore()

	dispatch, err := outbox.Enqueue(ctx, core.EnqueueEmailInput{
		ClaimID:     "31111111-1111-4111-8111-111111111111",
		ClaimNumber: core.BaselineClaimNumber + 1,
		Recipient:   "ada@example.com",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	const maxAttempts = 2
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		claimed, claimErr := outbox.ClaimBatch(ctx, 1)
		if claimErr != nil {
			t.Fatalf("claim batch attempt %d: %v", attempt, claimErr)
		}
		if len(claimed) != 1 {
			t.Fatalf("expected dispatch on attempt %d, got %d", attempt, len(claimed))
		}
		if failErr := outbox.Fail(ctx, dispatch.ID, errors.New("smtp timeout"), time.Now().Add(-time.Second), maxAttempts); failErr != nil {
			t.Fatalf("fail attempt %d: %v", attempt, failErr)
		}
	}

	claimed, err := outbox.ClaimBatch(ctx, 1)
	if err != nil {
		t.Fatalf("claim batch after dead-letter: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("expected dead dispatch to stay parked, got %d", len(claimed))
	}
}

func TestRateLimitStateStore_UpsertAndPolicy(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	stateStore := factory.RateLimitStateStore()
	if stateStore == nil {
		t.Fatalf("expected rate-limit state store from factory")
	}

	key := ratelimit.Key{DealerID: "dealer-north", Surface: "form"}
	if _, err := stateStore.Get(ctx, key); !errors.Is(err, ratelimit.ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	if err := stateStore.Upsert(ctx, ratelimit.State{
		Key:         key,
		WindowStart: now,
		Count:       1,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("upsert insert: %v", err)
	}
	if err := stateStore.Upsert(ctx, ratelimit.State{
		Key:         key,
		WindowStart: now,
		Count:       2,
		UpdatedAt:   now.Add(time.Second),
	}); err != nil {
		t.Fatalf("upsert update: %v", err)
	}

	state, err := stateStore.Get(ctx, key)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Count != 2 {
		t.Fatalf("expected count 2 after update, got %d", state.Count)
	}

	policy := ratelimit.NewFixedWindowPolicy(stateStore, 3, time.Hour)
	if err := policy.Allow(ctx, "dealer-south", "form"); err != nil {
		t.Fatalf("expected first submission allowed: %v", err)
	}
	if err := policy.Allow(ctx, "dealer-south", "form"); err != nil {
		t.Fatalf("expected second submission allowed: %v", err)
	}
	if err := policy.Allow(ctx, "dealer-south", "form"); err != nil {
		t.Fatalf("expected third submission allowed: %v", err)
	}
	err = policy.Allow(ctx, "dealer-south", "form")
	var throttled *ratelimit.ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error, got %v", err)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:warranty-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = warrantymigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != warrantymigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, warrantymigrations.WithValidationTargets(warrantymigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
