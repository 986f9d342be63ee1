package warranty

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"

	gocommandadapter "github.com/goliatone/go-warranty/adapters/gocommand"
)

// RegisterWithDispatcher publishes the facade's commands and queries
// on the go-command dispatcher and records them with the registry
// adapter. Commands the facade did not wire, such as
// DispatchConfirmations without a dispatcher option, are skipped.
// The returned subscriptions let callers tear the wiring down.
func (f *Facade) RegisterWithDispatcher(adapter *gocommandadapter.RegistryAdapter) ([]commanddispatcher.Subscription, error) {
	if f == nil {
		return nil, fmt.Errorf("warranty: facade is nil")
	}
	if adapter == nil {
		adapter = gocommandadapter.NewRegistryAdapter(nil)
	}

	var subscriptions []commanddispatcher.Subscription
	unwind := func() {
		for _, subscription := range subscriptions {
			if subscription != nil {
				subscription.Unsubscribe()
			}
		}
	}
	keep := func(subscription commanddispatcher.Subscription, err error) error {
		if err != nil {
			unwind()
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	commands := f.Commands()
	if commands.SubmitClaim != nil {
		if err := keep(gocommandadapter.RegisterAndSubscribe(adapter, commands.SubmitClaim)); err != nil {
			return nil, err
		}
	}
	if commands.AllocateClaimNumber != nil {
		if err := keep(gocommandadapter.RegisterAndSubscribe(adapter, commands.AllocateClaimNumber)); err != nil {
			return nil, err
		}
	}
	if commands.DispatchConfirmations != nil {
		if err := keep(gocommandadapter.RegisterAndSubscribe(adapter, commands.DispatchConfirmations)); err != nil {
			return nil, err
		}
	}
	if commands.TransitionClaim != nil {
		if err := keep(gocommandadapter.RegisterAndSubscribe(adapter, commands.TransitionClaim)); err != nil {
			return nil, err
		}
	}

	queries := f.Queries()
	if queries.GetClaim != nil {
		if err := keep(gocommandadapter.RegisterAndSubscribeQuery(adapter, queries.GetClaim)); err != nil {
			return nil, err
		}
	}
	if queries.GetClaimByNumber != nil {
		if err := keep(gocommandadapter.RegisterAndSubscribeQuery(adapter, queries.GetClaimByNumber)); err != nil {
			return nil, err
		}
	}
	if queries.ListClaims != nil {
		if err := keep(gocommandadapter.RegisterAndSubscribeQuery(adapter, queries.ListClaims)); err != nil {
			return nil, err
		}
	}
	if queries.CurrentCounter != nil {
		if err := keep(gocommandadapter.RegisterAndSubscribeQuery(adapter, queries.CurrentCounter)); err != nil {
			return nil, err
		}
	}

	return subscriptions, nil
}
