package bookkeeper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// sqlitePragmas apply to every connection of a file database.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"

// DialectForDriver returns the dialect for a database/sql driver name.
//
// Parameters:
//   - driver: The driver name.
//
// Returns:
//   - Dialect: The matching dialect.
//   - error: ErrUnsupportedDriver if no dialect matches.
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return NewSQLiteDialect(), nil
	case "pgx", "postgres":
		return NewPostgresDialect(), nil
	case "mysql":
		return NewMySQLDialect(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// Open opens and pings the configured database.
//
// Parameters:
//   - ctx: Context to use for the ping.
//   - cfg: The configuration.
//
// Returns:
//   - *sql.DB: The opened database.
//   - Dialect: The dialect matching the driver.
//   - error: An error if the config is invalid or the database unreachable.
func Open(ctx context.Context, cfg *Config) (*sql.DB, Dialect, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	d, err := DialectForDriver(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}

	dsn := cfg.DSN
	if cfg.Driver == "sqlite" && dsn != ":memory:" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + sqlitePragmas
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// Attached schemas and in-memory databases live on one connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, d, nil
}

// Bootstrap opens the configured database, ensures its bookkeeping tables
// and closes it again.
//
// Parameters:
//   - ctx: Context to use.
//   - cfg: The configuration.
//   - logger: Optional logger. Defaults to slog.Default().
//
// Returns:
//   - error: An error if opening or bootstrapping fails.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	db, d, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	b := cfg.Bootstrapper(d)
	if logger != nil {
		b = b.WithLogger(logger)
	}
	return b.EnsureTable(ctx, db, cfg.TableName, cfg.SchemaName)
}
