package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-warranty/core"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds every SQL-backed store over a shared bun
// connection and doubles as the store provider the service consumes.
type RepositoryFactory struct {
	db       *bun.DB
	baseline int64
	cache    repositorycache.CacheService

	claimStore          core.ClaimStore
	counterStore        *CounterStore
	emailOutboxStore    *EmailOutboxStore
	rateLimitStateStore *RateLimitStateStore
}

type FactoryOption func(*RepositoryFactory)

// WithCounterBaseline overrides the floor the counter row is seeded
// with when it does not exist yet.
func WithCounterBaseline(baseline int64) FactoryOption {
	return func(f *RepositoryFactory) {
		if baseline > 0 {
			f.baseline = baseline
		}
	}
}

// WithClaimCache wraps the claim store with read-through caching.
func WithClaimCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{
		baseline: core.BaselineClaimNumber,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.claimStore != nil && f.counterStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) ClaimStore() core.ClaimStore {
	if f == nil {
		return nil
	}
	return f.claimStore
}

func (f *RepositoryFactory) CounterStore() core.CounterStore {
	if f == nil {
		return nil
	}
	return f.counterStore
}

func (f *RepositoryFactory) EmailOutboxStore() core.EmailOutboxStore {
	if f == nil {
		return nil
	}
	return f.emailOutboxStore
}

func (f *RepositoryFactory) RateLimitStateStore() *RateLimitStateStore {
	if f == nil {
		return nil
	}
	return f.rateLimitStateStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	claimStore, err := NewClaimStore(f.db)
	if err != nil {
		return err
	}
	if f.cache != nil {
		cached, cacheErr := NewCachedClaimStore(claimStore, f.cache)
		if cacheErr != nil {
			return cacheErr
		}
		f.claimStore = cached
	} else {
		f.claimStore = claimStore
	}

	counterStore, err := NewCounterStore(f.db, f.baseline)
	if err != nil {
		return err
	}
	f.counterStore = counterStore

	emailOutboxStore, err := NewEmailOutboxStore(f.db)
	if err != nil {
		return err
	}
	f.emailOutboxStore = emailOutboxStore

	rateLimitStateStore, err := NewRateLimitStateStore(f.db)
	if err != nil {
		return err
	}
	f.rateLimitStateStore = rateLimitStateStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var (
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
