package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ CounterStore     = (*MemoryCounterStore)(nil)
	_ ClaimStore       = (*MemoryClaimStore)(nil)
	_ EmailOutboxStore = (*MemoryEmailOutboxStore)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
