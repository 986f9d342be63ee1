package query

import (
	"strings"

	"github.com/goliatone/go-warranty/core"
)

const (
	TypeGetClaim         = "warranty.query.claim.get"
	TypeGetClaimByNumber = "warranty.query.claim.get_by_number"
	TypeListClaims       = "warranty.query.claim.list"
	TypeCurrentCounter   = "warranty.query.counter.current"
)

type GetClaimMessage struct {
	ClaimID string
}

func (GetClaimMessage) Type() string { return TypeGetClaim }

func (m GetClaimMessage) Validate() error {
	if strings.TrimSpace(m.ClaimID) == "" {
		return queryValidationError("claim_id", "claim id is required")
	}
	return nil
}

type GetClaimByNumberMessage struct {
	Number int64
}

func (GetClaimByNumberMessage) Type() string { return TypeGetClaimByNumber }

func (m GetClaimByNumberMessage) Validate() error {
	if m.Number <= 0 {
		return queryValidationError("number", "claim number must be positive")
	}
	return nil
}

type ListClaimsMessage struct {
	Filter core.ClaimFilter
}

func (ListClaimsMessage) Type() string { return TypeListClaims }

func (m ListClaimsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}

type CurrentCounterMessage struct{}

func (CurrentCounterMessage) Type() string { return TypeCurrentCounter }

func (CurrentCounterMessage) Validate() error { return nil }
