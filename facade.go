package warranty

import (
	"fmt"

	warrantycommand "github.com/goliatone/go-warranty/command"
	"github.com/goliatone/go-warranty/core"
	warrantyquery "github.com/goliatone/go-warranty/query"
)

type CommandQueryService interface {
	warrantycommand.MutatingService
	warrantyquery.ClaimReader
	warrantyquery.CounterReader
}

type Commands struct {
	SubmitClaim           *warrantycommand.SubmitClaimCommand
	AllocateClaimNumber   *warrantycommand.AllocateClaimNumberCommand
	DispatchConfirmations *warrantycommand.DispatchConfirmationsCommand
	TransitionClaim       *warrantycommand.TransitionClaimCommand
}

type Queries struct {
	GetClaim         *warrantyquery.GetClaimQuery
	GetClaimByNumber *warrantyquery.GetClaimByNumberQuery
	ListClaims       *warrantyquery.ListClaimsQuery
	CurrentCounter   *warrantyquery.CurrentCounterQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	dispatcher   warrantycommand.ConfirmationService
	transitioner warrantycommand.ClaimTransitioner
}

func WithConfirmationDispatcher(dispatcher warrantycommand.ConfirmationService) FacadeOption {
	return func(options *facadeOptions) {
		options.dispatcher = dispatcher
	}
}

func WithClaimTransitioner(transitioner warrantycommand.ClaimTransitioner) FacadeOption {
	return func(options *facadeOptions) {
		options.transitioner = transitioner
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("warranty: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	transitioner := cfg.transitioner
	if transitioner == nil {
		transitioner = resolveClaimTransitioner(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SubmitClaim:         warrantycommand.NewSubmitClaimCommand(service),
		AllocateClaimNumber: warrantycommand.NewAllocateClaimNumberCommand(service),
	}
	if cfg.dispatcher != nil {
		facade.commands.DispatchConfirmations = warrantycommand.NewDispatchConfirmationsCommand(cfg.dispatcher)
	}
	if transitioner != nil {
		facade.commands.TransitionClaim = warrantycommand.NewTransitionClaimCommand(transitioner)
	}
	facade.queries = Queries{
		GetClaim:         warrantyquery.NewGetClaimQuery(service),
		GetClaimByNumber: warrantyquery.NewGetClaimByNumberQuery(service),
		ListClaims:       warrantyquery.NewListClaimsQuery(service),
		CurrentCounter:   warrantyquery.NewCurrentCounterQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveClaimTransitioner(service CommandQueryService) warrantycommand.ClaimTransitioner {
	if service == nil {
		return nil
	}
	if transitioner, ok := service.(warrantycommand.ClaimTransitioner); ok {
		return transitioner
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if deps.ClaimStore == nil {
		return nil
	}
	return deps.ClaimStore
}
