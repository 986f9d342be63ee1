package warranty

import (
	"context"
	"testing"

	warrantycommand "github.com/goliatone/go-warranty/command"
	"github.com/goliatone/go-warranty/core"
	warrantyquery "github.com/goliatone/go-warranty/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}
	dispatcher := &stubFacadeDispatcher{}

	facade, err := NewFacade(svc, WithConfirmationDispatcher(dispatcher))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.SubmitClaim == nil || commands.AllocateClaimNumber == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	if commands.DispatchConfirmations == nil {
		t.Fatalf("expected dispatch command when dispatcher is provided")
	}
	if commands.TransitionClaim == nil {
		t.Fatalf("expected transition command resolved from the service store")
	}
	queries := facade.Queries()
	if queries.GetClaim == nil || queries.GetClaimByNumber == nil || queries.ListClaims == nil || queries.CurrentCounter == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().SubmitClaim.Execute(context.Background(), warrantycommand.SubmitClaimMessage{
		Submission: core.Submission{DealerID: "dealer-042", CustomerName: "Avery Ruiz", Issue: "leaking valve"},
	}); err != nil {
		t.Fatalf("execute submit claim command: %v", err)
	}
	if svc.lastSubmission.DealerID != "dealer-042" {
		t.Fatalf("unexpected submit delegation payload: %#v", svc.lastSubmission)
	}

	claim, err := facade.Queries().GetClaimByNumber.Query(context.Background(), warrantyquery.GetClaimByNumberMessage{
		Number: 100001,
	})
	if err != nil {
		t.Fatalf("query claim by number: %v", err)
	}
	if claim.ID != "claim_1" || claim.Number != 100001 {
		t.Fatalf("unexpected claim query result: %#v", claim)
	}

	value, err := facade.Queries().CurrentCounter.Query(context.Background(), warrantyquery.CurrentCounterMessage{})
	if err != nil {
		t.Fatalf("query counter: %v", err)
	}
	if value != 100001 {
		t.Fatalf("unexpected counter value: %d", value)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastSubmission core.Submission
}

func (s *stubFacadeService) SubmitClaim(_ context.Context, submission core.Submission) (core.ClaimReceipt, error) {
	s.lastSubmission = submission
	return core.ClaimReceipt{ClaimNumber: 100001, EmailQueued: true}, nil
}

func (s *stubFacadeService) AllocateClaimNumber(context.Context) (int64, error) {
	return 100001, nil
}

func (s *stubFacadeService) GetClaim(_ context.Context, id string) (core.Claim, error) {
	return core.Claim{ID: id, Number: 100001}, nil
}

func (s *stubFacadeService) GetClaimByNumber(_ context.Context, number int64) (core.Claim, error) {
	return core.Claim{ID: "claim_1", Number: number}, nil
}

func (s *stubFacadeService) ListClaims(context.Context, core.ClaimFilter) (core.ClaimPage, error) {
	return core.ClaimPage{Total: 1}, nil
}

func (s *stubFacadeService) CurrentCounter(context.Context) (int64, error) {
	return 100001, nil
}

func (s *stubFacadeService) UpdateStatus(context.Context, string, core.ClaimStatus, string) error {
	return nil
}

type stubFacadeDispatcher struct{}

func (s *stubFacadeDispatcher) DispatchPending(context.Context, int) (core.DispatchStats, error) {
	return core.DispatchStats{}, nil
}

var _ CommandQueryService = (*stubFacadeService)(nil)
