package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SubmitClaimMessage]           = (*SubmitClaimCommand)(nil)
	_ gocmd.Commander[AllocateClaimNumberMessage]   = (*AllocateClaimNumberCommand)(nil)
	_ gocmd.Commander[DispatchConfirmationsMessage] = (*DispatchConfirmationsCommand)(nil)
	_ gocmd.Commander[TransitionClaimMessage]       = (*TransitionClaimCommand)(nil)
)
