package warranty

import (
	"github.com/goliatone/go-warranty/core"
	"github.com/goliatone/go-warranty/crm/freshdesk"
	"github.com/goliatone/go-warranty/mailer/postmark"
	"github.com/goliatone/go-warranty/transport"
)

func FreshdeskCRM(cfg freshdesk.Config) (core.CRMClient, error) {
	return freshdesk.New(cfg)
}

func PostmarkMailer(cfg postmark.Config) (core.Mailer, error) {
	return postmark.New(cfg)
}

func DefaultTransportRegistry() *transport.Registry {
	return transport.NewDefaultRegistry()
}
