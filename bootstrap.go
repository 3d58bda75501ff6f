package bookkeeper

import (
	"context"
	"fmt"
	"log/slog"
)

// Bootstrapper creates the migrations table and its lock table and brings
// both, with their rows, to the current bookkeeping-schema version.
type Bootstrapper struct {
	Dialect      Dialect
	Normalizer   *ExtensionNormalizer
	Logger       *slog.Logger
	AdvisoryLock bool
}

// NewBootstrapper returns a new Bootstrapper. It normalizes names with
// DefaultLoadExtensions and logs to slog.Default().
//
// Parameters:
//   - d: The dialect of the target database.
//
// Returns:
//   - *Bootstrapper: A new Bootstrapper.
func NewBootstrapper(d Dialect) *Bootstrapper {
	return &Bootstrapper{
		Dialect:    d,
		Normalizer: NewExtensionNormalizer(DefaultLoadExtensions),
		Logger:     slog.Default(),
	}
}

// WithNormalizer returns a new Bootstrapper with the given normalizer.
//
// Parameters:
//   - normalizer: The normalizer applied to legacy migration names.
//
// Returns:
//   - *Bootstrapper: A new Bootstrapper.
func (b *Bootstrapper) WithNormalizer(
	normalizer *ExtensionNormalizer,
) *Bootstrapper {
	new := *b
	new.Normalizer = normalizer
	return &new
}

// WithLogger returns a new Bootstrapper with the given logger.
//
// Parameters:
//   - logger: The logger to use.
//
// Returns:
//   - *Bootstrapper: A new Bootstrapper.
func (b *Bootstrapper) WithLogger(logger *slog.Logger) *Bootstrapper {
	new := *b
	new.Logger = logger
	return &new
}

// WithAdvisoryLock returns a new Bootstrapper that serializes bootstrap
// behind an advisory lock when the dialect supports one.
//
// Parameters:
//   - enabled: Whether to take the advisory lock.
//
// Returns:
//   - *Bootstrapper: A new Bootstrapper.
func (b *Bootstrapper) WithAdvisoryLock(enabled bool) *Bootstrapper {
	new := *b
	new.AdvisoryLock = enabled
	return &new
}

// SchemaBuilder returns a schema builder on conn scoped to schemaName, or
// to the default namespace when schemaName is empty.
func (b *Bootstrapper) SchemaBuilder(
	conn Conn, schemaName string,
) *SQLSchemaBuilder {
	return GetSchemaBuilder(conn, b.Dialect, schemaName)
}

// EnsureTable creates or upgrades the migrations table tableName and its
// lock table in schemaName, then makes sure the lock table holds its row.
// It is safe to call on any earlier layout and any number of times.
//
// Parameters:
//   - ctx: Context to use for database operations.
//   - conn: The connection or transaction to use.
//   - tableName: The logical migrations table name.
//   - schemaName: The schema namespace, or empty for the default one.
//
// Returns:
//   - error: The first error from the database, unmodified in its chain.
func (b *Bootstrapper) EnsureTable(
	ctx context.Context, conn Conn, tableName, schemaName string,
) error {
	if tableName == "" {
		return ErrEmptyTableName
	}

	if b.AdvisoryLock {
		if locker, ok := b.Dialect.(AdvisoryLocker); ok {
			return inTransaction(ctx, conn, func(tx Conn) error {
				key := NewResolver(b.Dialect).TableName(tableName, schemaName)
				if _, err := tx.ExecContext(
					ctx, locker.AdvisoryLockSQL(), key,
				); err != nil {
					return fmt.Errorf("acquire bootstrap lock %s: %w", key, err)
				}
				return b.ensure(ctx, tx, tableName, schemaName)
			})
		}
		b.logger().Debug(
			"dialect has no advisory lock, bootstrapping unserialized",
			"dialect", b.Dialect.Name(),
		)
	}
	return b.ensure(ctx, conn, tableName, schemaName)
}

// ensure runs the bootstrap steps in order on conn.
func (b *Bootstrapper) ensure(
	ctx context.Context, conn Conn, tableName, schemaName string,
) error {
	logger := b.logger()
	builder := b.SchemaBuilder(conn, schemaName)
	upgrader := NewVersionUpgrader(b.Dialect, b.Normalizer).WithLogger(logger)
	locks := NewLockRowManager(b.Dialect).WithLogger(logger)
	lockTable := NewResolver(b.Dialect).LockTableName(tableName)

	if err := b.createIfMissing(
		ctx, builder, migrationsTableSpec(tableName),
	); err != nil {
		return err
	}
	if err := upgrader.Upgrade(
		ctx, conn, schemaName, tableName, upgrader.MigrationsLadder(),
	); err != nil {
		return err
	}

	if err := b.createIfMissing(
		ctx, builder, lockTableSpec(lockTable),
	); err != nil {
		return err
	}
	if err := upgrader.Upgrade(
		ctx, conn, schemaName, lockTable, upgrader.LockLadder(),
	); err != nil {
		return err
	}

	if _, err := locks.EnsureLockRow(ctx, conn, schemaName, lockTable); err != nil {
		return err
	}
	rows, err := locks.LockRows(ctx, conn, schemaName, lockTable)
	if err != nil {
		return err
	}
	if len(rows) > 1 {
		logger.Warn(
			"lock table holds more than one row",
			"table", lockTable,
			"schema", schemaName,
			"rows", len(rows),
		)
	}

	logger.Debug("bookkeeping tables ready", "table", tableName, "schema", schemaName)
	return nil
}

// createIfMissing creates the table unless the probe finds it.
func (b *Bootstrapper) createIfMissing(
	ctx context.Context, builder *SQLSchemaBuilder, spec TableSpec,
) error {
	exists, err := builder.HasTable(ctx, spec.Name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := builder.CreateTable(ctx, spec); err != nil {
		return err
	}
	b.logger().Info("created table", "table", spec.Name, "schema", builder.Schema())
	return nil
}

func (b *Bootstrapper) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// EnsureTable bootstraps tableName in schemaName with a default
// Bootstrapper for the dialect.
func EnsureTable(
	ctx context.Context, conn Conn, d Dialect, tableName, schemaName string,
) error {
	return NewBootstrapper(d).EnsureTable(ctx, conn, tableName, schemaName)
}
