package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-warranty/core"
)

type stubClaimReader struct {
	getFn         func(ctx context.Context, id string) (core.Claim, error)
	getByNumberFn func(ctx context.Context, number int64) (core.Claim, error)
	listFn        func(ctx context.Context, filter core.ClaimFilter) (core.ClaimPage, error)
}

func (s stubClaimReader) GetClaim(ctx context.Context, id string) (core.Claim, error) {
	if s.getFn == nil {
		return core.Claim{}, fmt.Errorf("get not configured")
	}
	return s.getFn(ctx, id)
}

func (s stubClaimReader) GetClaimByNumber(ctx context.Context, number int64) (core.Claim, error) {
	if s.getByNumberFn == nil {
		return core.Claim{}, fmt.Errorf("get by number not configured")
	}
	return s.getByNumberFn(ctx, number)
}

func (s stubClaimReader) ListClaims(ctx context.Context, filter core.ClaimFilter) (core.ClaimPage, error) {
	if s.listFn == nil {
		return core.ClaimPage{}, fmt.Errorf("list not configured")
	}
	return s.listFn(ctx, filter)
}

type stubCounterReader struct {
	currentFn func(ctx context.Context) (int64, error)
}

func (s stubCounterReader) CurrentCounter(ctx context.Context) (int64, error) {
	return s.currentFn(ctx)
}

func TestGetClaimQuery_QueryDelegates(t *testing.T) {
	expected := core.Claim{ID: "claim_1", Number: 100001, DealerID: "dealer-042"}
	called := false
	reader := stubClaimReader{
		getFn: func(_ context.Context, id string) (core.Claim, error) {
			called = true
			if id != "claim_1" {
				t.Fatalf("unexpected claim id %q", id)
			}
			return expected, nil
		},
	}

	qry := NewGetClaimQuery(reader)
	result, err := qry.Query(context.Background(), GetClaimMessage{ClaimID: "claim_1"})
	if err != nil {
		t.Fatalf("query claim: %v", err)
	}
	if !called {
		t.Fatalf("expected claim reader invocation")
	}
	if result.Number != expected.Number {
		t.Fatalf("unexpected claim result: %#v", result)
	}
}

func TestGetClaimByNumberQuery_QueryDelegates(t *testing.T) {
	reader := stubClaimReader{
		getByNumberFn: func(_ context.Context, number int64) (core.Claim, error) {
			if number != 100001 {
				t.Fatalf("unexpected claim number %d", number)
			}
			return core.Claim{ID: "claim_1", Number: number}, nil
		},
	}

	qry := NewGetClaimByNumberQuery(reader)
	result, err := qry.Query(context.Background(), GetClaimByNumberMessage{Number: 100001})
	if err != nil {
		t.Fatalf("query claim by number: %v", err)
	}
	if result.ID != "claim_1" {
		t.Fatalf("unexpected claim result: %#v", result)
	}
}

func TestListClaimsQuery_QueryDelegates(t *testing.T) {
	expected := core.ClaimPage{
		Items:   []core.Claim{{ID: "claim_1", Number: 100001}},
		Page:    1,
		PerPage: 20,
		Total:   1,
	}
	reader := stubClaimReader{
		listFn: func(_ context.Context, filter core.ClaimFilter) (core.ClaimPage, error) {
			if filter.DealerID != "dealer-042" {
				t.Fatalf("unexpected filter dealer: %q", filter.DealerID)
			}
			return expected, nil
		},
	}

	qry := NewListClaimsQuery(reader)
	result, err := qry.Query(context.Background(), ListClaimsMessage{
		Filter: core.ClaimFilter{DealerID: "dealer-042", Page: 1, PerPage: 20},
	})
	if err != nil {
		t.Fatalf("query claims: %v", err)
	}
	if result.Total != expected.Total {
		t.Fatalf("unexpected claim page result: %#v", result)
	}
}

func TestCurrentCounterQuery_QueryDelegates(t *testing.T) {
	reader := stubCounterReader{
		currentFn: func(_ context.Context) (int64, error) {
			return 100317, nil
		},
	}

	qry := NewCurrentCounterQuery(reader)
	value, err := qry.Query(context.Background(), CurrentCounterMessage{})
	if err != nil {
		t.Fatalf("query counter: %v", err)
	}
	if value != 100317 {
		t.Fatalf("expected 100317, got %d", value)
	}
}

func TestQueries_NilReaderReturnsDependencyError(t *testing.T) {
	var claimQry *GetClaimQuery
	if _, err := claimQry.Query(context.Background(), GetClaimMessage{ClaimID: "claim_1"}); err == nil {
		t.Fatalf("expected dependency error for nil query")
	}
	if _, err := NewCurrentCounterQuery(nil).Query(context.Background(), CurrentCounterMessage{}); err == nil {
		t.Fatalf("expected dependency error for nil reader")
	}
}

func TestMessages_Validate(t *testing.T) {
	if err := (GetClaimMessage{}).Validate(); err == nil {
		t.Fatalf("expected missing claim id to fail validation")
	}
	if err := (GetClaimByNumberMessage{Number: 0}).Validate(); err == nil {
		t.Fatalf("expected non-positive number to fail validation")
	}
	if err := (ListClaimsMessage{Filter: core.ClaimFilter{Page: -1}}).Validate(); err == nil {
		t.Fatalf("expected negative page to fail validation")
	}
	if err := (ListClaimsMessage{}).Validate(); err != nil {
		t.Fatalf("validate empty list filter: %v", err)
	}
	if err := (CurrentCounterMessage{}).Validate(); err != nil {
		t.Fatalf("validate counter message: %v", err)
	}
}
