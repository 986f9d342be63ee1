package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-warranty/core"
)

const claimCacheKeyPrefix = "go-warranty::claim::v1"

// CachedClaimStore layers read-through caching over a base claim
// store. Single-claim lookups are cached; list queries and writes go
// straight to the base store, and every write invalidates both cache
// entries for the touched claim.
type CachedClaimStore struct {
	base  core.ClaimStore
	cache repositorycache.CacheService
}

func NewCachedClaimStore(
	base core.ClaimStore,
	cacheService repositorycache.CacheService,
) (*CachedClaimStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base claim store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: claim cache service is required")
	}
	return &CachedClaimStore{base: base, cache: cacheService}, nil
}

// ClaimCacheKeyByID returns the deterministic cache key contract for
// claim-by-id reads: go-warranty::claim::v1::id::<claim_id> with the
// identifier segment URL-path escaped.
func ClaimCacheKeyByID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("sqlstore: claim id is required")
	}
	return strings.Join([]string{claimCacheKeyPrefix, "id", url.PathEscape(id)}, "::"), nil
}

// ClaimCacheKeyByNumber returns the deterministic cache key contract
// for claim-by-number reads: go-warranty::claim::v1::number::<number>.
func ClaimCacheKeyByNumber(number int64) (string, error) {
	if number <= 0 {
		return "", fmt.Errorf("sqlstore: claim number must be positive")
	}
	return strings.Join([]string{claimCacheKeyPrefix, "number", strconv.FormatInt(number, 10)}, "::"), nil
}

func (s *CachedClaimStore) Create(ctx context.Context, in core.CreateClaimInput) (core.Claim, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Claim{}, fmt.Errorf("sqlstore: cached claim store is not configured")
	}
	created, err := s.base.Create(ctx, in)
	if err != nil {
		return core.Claim{}, err
	}
	if err := s.invalidate(ctx, created.ID, created.Number); err != nil {
		return core.Claim{}, err
	}
	return created, nil
}

func (s *CachedClaimStore) Get(ctx context.Context, id string) (core.Claim, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Claim{}, fmt.Errorf("sqlstore: cached claim store is not configured")
	}
	cacheKey, err := ClaimCacheKeyByID(id)
	if err != nil {
		return core.Claim{}, err
	}
	claim, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Claim, error) {
		fetched, fetchErr := s.base.Get(ctx, id)
		if fetchErr != nil {
			return core.Claim{}, fetchErr
		}
		return cloneCachedClaim(fetched), nil
	})
	if err != nil {
		return core.Claim{}, err
	}
	return cloneCachedClaim(claim), nil
}

func (s *CachedClaimStore) GetByNumber(ctx context.Context, number int64) (core.Claim, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Claim{}, fmt.Errorf("sqlstore: cached claim store is not configured")
	}
	cacheKey, err := ClaimCacheKeyByNumber(number)
	if err != nil {
		return core.Claim{}, err
	}
	claim, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Claim, error) {
		fetched, fetchErr := s.base.GetByNumber(ctx, number)
		if fetchErr != nil {
			return core.Claim{}, fetchErr
		}
		return cloneCachedClaim(fetched), nil
	})
	if err != nil {
		return core.Claim{}, err
	}
	return cloneCachedClaim(claim), nil
}

func (s *CachedClaimStore) List(ctx context.Context, filter core.ClaimFilter) (core.ClaimPage, error) {
	if s == nil || s.base == nil {
		return core.ClaimPage{}, fmt.Errorf("sqlstore: cached claim store is not configured")
	}
	return s.base.List(ctx, filter)
}

func (s *CachedClaimStore) UpdateRecords(ctx context.Context, in core.UpdateClaimRecordsInput) (core.Claim, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Claim{}, fmt.Errorf("sqlstore: cached claim store is not configured")
	}
	updated, err := s.base.UpdateRecords(ctx, in)
	if err != nil {
		return core.Claim{}, err
	}
	if err := s.invalidate(ctx, updated.ID, updated.Number); err != nil {
		return core.Claim{}, err
	}
	return updated, nil
}

func (s *CachedClaimStore) UpdateStatus(ctx context.Context, id string, status core.ClaimStatus, reason string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached claim store is not configured")
	}
	if err := s.base.UpdateStatus(ctx, id, status, reason); err != nil {
		return err
	}
	claim, err := s.base.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.invalidate(ctx, claim.ID, claim.Number)
}

func (s *CachedClaimStore) invalidate(ctx context.Context, id string, number int64) error {
	idKey, err := ClaimCacheKeyByID(id)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, idKey); err != nil {
		return err
	}
	numberKey, err := ClaimCacheKeyByNumber(number)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, numberKey); err != nil {
		return err
	}
	return nil
}

func cloneCachedClaim(claim core.Claim) core.Claim {
	cloned := claim
	cloned.Metadata = copyAnyMap(claim.Metadata)
	cloned.PurchaseDate = cloneTimePtr(claim.PurchaseDate)
	return cloned
}

var _ core.ClaimStore = (*CachedClaimStore)(nil)
