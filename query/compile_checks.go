package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-warranty/core"
)

var (
	_ gocmd.Querier[GetClaimMessage, core.Claim]         = (*GetClaimQuery)(nil)
	_ gocmd.Querier[GetClaimByNumberMessage, core.Claim] = (*GetClaimByNumberQuery)(nil)
	_ gocmd.Querier[ListClaimsMessage, core.ClaimPage]   = (*ListClaimsQuery)(nil)
	_ gocmd.Querier[CurrentCounterMessage, int64]        = (*CurrentCounterQuery)(nil)
)
