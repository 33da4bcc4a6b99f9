package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	repoleadmigrations "github.com/lippelima5/repolead-sub000/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DatabaseConfig describes the backing database connection.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite3". Inferred from the DSN when empty.
	Driver         string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

// DetectDriver infers the sql driver from a connection string.
func DetectDriver(dsn string) string {
	trimmed := strings.TrimSpace(strings.ToLower(dsn))
	switch {
	case strings.HasPrefix(trimmed, "postgres://"),
		strings.HasPrefix(trimmed, "postgresql://"),
		strings.Contains(trimmed, "host="):
		return DriverPostgres
	case strings.HasPrefix(trimmed, "file:"),
		strings.HasSuffix(trimmed, ".db"),
		strings.Contains(trimmed, ":memory:"):
		return DriverSQLite
	default:
		return ""
	}
}

// OpenClient opens the database described by cfg, registers the schema
// migrations for its dialect, and applies them.
func OpenClient(ctx context.Context, cfg DatabaseConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = DetectDriver(cfg.DSN)
	}

	var dialect schema.Dialect
	var migrationDialect string
	switch driver {
	case DriverPostgres:
		dialect = pgdialect.New()
		migrationDialect = repoleadmigrations.DialectPostgres
	case DriverSQLite:
		dialect = sqlitedialect.New()
		migrationDialect = repoleadmigrations.DialectSQLite
	default:
		return nil, fmt.Errorf("sqlstore: unsupported database driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// shared in-memory sqlite databases need a single connection
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(connectionConfig{cfg: cfg, driver: driver}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	_, err = repoleadmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migrationDialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, repoleadmigrations.WithValidationTargets(migrationDialect))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: register migrations: %w", err)
	}

	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: apply migrations: %w", err)
	}

	return client, nil
}

type connectionConfig struct {
	cfg    DatabaseConfig
	driver string
}

func (c connectionConfig) GetDebug() bool {
	return c.cfg.Debug
}

func (c connectionConfig) GetDriver() string {
	return c.driver
}

func (c connectionConfig) GetServer() string {
	return c.cfg.DSN
}

func (c connectionConfig) GetPingTimeout() time.Duration {
	if c.cfg.PingTimeout > 0 {
		return c.cfg.PingTimeout
	}
	return 5 * time.Second
}

func (c connectionConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.cfg.OtelIdentifier) != "" {
		return c.cfg.OtelIdentifier
	}
	return "repolead"
}
