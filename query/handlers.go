package query

import (
	"context"

	"github.com/goliatone/go-warranty/core"
)

// ClaimReader is the read-side slice of *core.Service.
type ClaimReader interface {
	GetClaim(ctx context.Context, id string) (core.Claim, error)
	GetClaimByNumber(ctx context.Context, number int64) (core.Claim, error)
	ListClaims(ctx context.Context, filter core.ClaimFilter) (core.ClaimPage, error)
}

// CounterReader exposes the last persisted counter value without
// advancing it.
type CounterReader interface {
	CurrentCounter(ctx context.Context) (int64, error)
}

type GetClaimQuery struct {
	reader ClaimReader
}

func NewGetClaimQuery(reader ClaimReader) *GetClaimQuery {
	return &GetClaimQuery{reader: reader}
}

func (q *GetClaimQuery) Query(ctx context.Context, msg GetClaimMessage) (core.Claim, error) {
	if q == nil || q.reader == nil {
		return core.Claim{}, queryDependencyError("query: claim reader is required")
	}
	return q.reader.GetClaim(ctx, msg.ClaimID)
}

type GetClaimByNumberQuery struct {
	reader ClaimReader
}

func NewGetClaimByNumberQuery(reader ClaimReader) *GetClaimByNumberQuery {
	return &GetClaimByNumberQuery{reader: reader}
}

func (q *GetClaimByNumberQuery) Query(ctx context.Context, msg GetClaimByNumberMessage) (core.Claim, error) {
	if q == nil || q.reader == nil {
		return core.Claim{}, queryDependencyError("query: claim reader is required")
	}
	return q.reader.GetClaimByNumber(ctx, msg.Number)
}

type ListClaimsQuery struct {
	reader ClaimReader
}

func NewListClaimsQuery(reader ClaimReader) *ListClaimsQuery {
	return &ListClaimsQuery{reader: reader}
}

func (q *ListClaimsQuery) Query(ctx context.Context, msg ListClaimsMessage) (core.ClaimPage, error) {
	if q == nil || q.reader == nil {
		return core.ClaimPage{}, queryDependencyError("query: claim reader is required")
	}
	return q.reader.ListClaims(ctx, msg.Filter)
}

type CurrentCounterQuery struct {
	reader CounterReader
}

func NewCurrentCounterQuery(reader CounterReader) *CurrentCounterQuery {
	return &CurrentCounterQuery{reader: reader}
}

func (q *CurrentCounterQuery) Query(ctx context.Context, msg CurrentCounterMessage) (int64, error) {
	if q == nil || q.reader == nil {
		return 0, queryDependencyError("query: counter reader is required")
	}
	return q.reader.CurrentCounter(ctx)
}
