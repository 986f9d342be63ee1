package sqlstore

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestConnect_SQLiteRoundTrip(t *testing.T) {
	dsn := fmt.Sprintf(
		"file:warranty-connect-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	client, err := Connect(ConnectionConfig{Dialect: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = client.DB().Close() }()

	var one int
	if err := client.DB().NewRaw("SELECT 1").Scan(context.Background(), &one); err != nil {
		t.Fatalf("ping query: %v", err)
	}
	if one != 1 {
		t.Fatalf("expected probe result 1; got %d", one)
	}
}

func TestConnect_RejectsBadConfig(t *testing.T) {
	if _, err := Connect(ConnectionConfig{Dialect: "oracle", DSN: "dsn"}); err == nil {
		t.Fatalf("expected unsupported dialect error")
	}
	if _, err := Connect(ConnectionConfig{Dialect: "postgres"}); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestConnectionConfig_Defaults(t *testing.T) {
	cfg := ConnectionConfig{Dialect: "postgresql", DSN: " postgres://localhost/warranty "}
	if cfg.GetDriver() != DriverPostgres {
		t.Fatalf("expected postgres driver; got %q", cfg.GetDriver())
	}
	if cfg.GetServer() != "postgres://localhost/warranty" {
		t.Fatalf("expected trimmed dsn; got %q", cfg.GetServer())
	}
	if cfg.GetPingTimeout() != defaultPingTimeout {
		t.Fatalf("expected default ping timeout; got %s", cfg.GetPingTimeout())
	}
	if cfg.GetOtelIdentifier() != defaultOtelIdentifier {
		t.Fatalf("expected default otel identifier; got %q", cfg.GetOtelIdentifier())
	}
}
