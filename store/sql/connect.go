package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	defaultPingTimeout    = 5 * time.Second
	defaultOtelIdentifier = "go-warranty"
)

// ConnectionConfig describes the database a deployment persists
// claims to. Postgres backs production; SQLite covers local and
// embedded setups.
type ConnectionConfig struct {
	Dialect        string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c ConnectionConfig) GetDebug() bool {
	return c.Debug
}

func (c ConnectionConfig) GetDriver() string {
	driver, _, err := resolveDialect(c.Dialect)
	if err != nil {
		return strings.TrimSpace(c.Dialect)
	}
	return driver
}

func (c ConnectionConfig) GetServer() string {
	return strings.TrimSpace(c.DSN)
}

func (c ConnectionConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout > 0 {
		return c.PingTimeout
	}
	return defaultPingTimeout
}

func (c ConnectionConfig) GetOtelIdentifier() string {
	if trimmed := strings.TrimSpace(c.OtelIdentifier); trimmed != "" {
		return trimmed
	}
	return defaultOtelIdentifier
}

// Connect opens the configured database and wraps it in a persistence
// client ready for NewRepositoryFactoryFromPersistence.
func Connect(cfg ConnectionConfig) (*persistence.Client, error) {
	driver, dialect, err := resolveDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: connection dsn is required")
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// Shared in-memory SQLite databases disappear when the last
		// connection closes.
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	return client, nil
}

func resolveDialect(name string) (string, schema.Dialect, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "postgres", "postgresql", "pg":
		return DriverPostgres, pgdialect.New(), nil
	case "sqlite", "sqlite3":
		return DriverSQLite, sqlitedialect.New(), nil
	default:
		return "", nil, fmt.Errorf("sqlstore: unsupported dialect %q", name)
	}
}
