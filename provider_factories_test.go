package warranty

import (
	"testing"

	"github.com/goliatone/go-warranty/crm/freshdesk"
	"github.com/goliatone/go-warranty/mailer/postmark"
	"github.com/goliatone/go-warranty/transport"
)

func TestBuiltInProviderFactories(t *testing.T) {
	t.Run("freshdesk", func(t *testing.T) {
		client, err := FreshdeskCRM(freshdesk.Config{
			BaseURL: "https://acme.freshdesk.com",
			APIKey:  "key",
		})
		if err != nil {
			t.Fatalf("factory error: %v", err)
		}
		if client == nil {
			t.Fatalf("expected freshdesk client")
		}
	})

	t.Run("freshdesk requires api key", func(t *testing.T) {
		if _, err := FreshdeskCRM(freshdesk.Config{BaseURL: "https://acme.freshdesk.com"}); err == nil {
			t.Fatalf("expected missing api key error")
		}
	})

	t.Run("postmark", func(t *testing.T) {
		mailer, err := PostmarkMailer(postmark.Config{
			ServerToken: "token",
			From:        "claims@acme.example",
		})
		if err != nil {
			t.Fatalf("factory error: %v", err)
		}
		if mailer == nil {
			t.Fatalf("expected postmark mailer")
		}
	})

	t.Run("postmark requires sender", func(t *testing.T) {
		if _, err := PostmarkMailer(postmark.Config{ServerToken: "token"}); err == nil {
			t.Fatalf("expected missing sender error")
		}
	})

	t.Run("transport registry", func(t *testing.T) {
		registry := DefaultTransportRegistry()
		if registry == nil {
			t.Fatalf("expected transport registry")
		}
		if _, ok := registry.Get(transport.KindREST); !ok {
			t.Fatalf("expected REST adapter in default registry")
		}
	})
}
