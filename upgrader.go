package bookkeeper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	sq "github.com/Masterminds/squirrel"
)

// defaultUpdateBatchSize bounds the id list of one version-marking UPDATE.
const defaultUpdateBatchSize = 500

// UpgradeFunc applies one upgrade step to a logical table in schema.
type UpgradeFunc func(ctx context.Context, conn Conn, schema, table string) error

// UpgradeStep brings a table from Version-1 to Version. Every step must be
// safe to apply again to a table that is already at or past Version.
type UpgradeStep struct {
	Version     int
	Description string
	Apply       UpgradeFunc
}

// Ladder is an ordered list of upgrade steps starting at version 1.
type Ladder []UpgradeStep

// Validate checks that the ladder is numbered 1..n without gaps and that
// every step has a function.
func (l Ladder) Validate() error {
	for i, step := range l {
		if step.Version != i+1 {
			return fmt.Errorf(
				"%w: step %d has version %d, want %d",
				ErrInvalidLadder, i, step.Version, i+1,
			)
		}
		if step.Apply == nil {
			return fmt.Errorf(
				"%w: step %d (%s) has no apply function",
				ErrInvalidLadder, step.Version, step.Description,
			)
		}
	}
	return nil
}

// Target returns the version a table reaches after the whole ladder.
func (l Ladder) Target() int {
	if len(l) == 0 {
		return 0
	}
	return l[len(l)-1].Version
}

// VersionUpgrader upgrades bookkeeping tables written by earlier versions
// of the runner.
type VersionUpgrader struct {
	dialect    Dialect
	normalizer *ExtensionNormalizer
	logger     *slog.Logger
	batchSize  int
}

// NewVersionUpgrader returns a new VersionUpgrader. If normalizer is nil,
// one built from DefaultLoadExtensions is used.
//
// Parameters:
//   - d: The dialect of the target database.
//   - normalizer: Optional ExtensionNormalizer.
//
// Returns:
//   - *VersionUpgrader: A new VersionUpgrader.
func NewVersionUpgrader(
	d Dialect, normalizer *ExtensionNormalizer,
) *VersionUpgrader {
	if normalizer == nil {
		normalizer = NewExtensionNormalizer(DefaultLoadExtensions)
	}
	return &VersionUpgrader{
		dialect:    d,
		normalizer: normalizer,
		logger:     slog.Default(),
		batchSize:  defaultUpdateBatchSize,
	}
}

// WithLogger returns a new VersionUpgrader with the given logger.
//
// Parameters:
//   - logger: The logger to use.
//
// Returns:
//   - *VersionUpgrader: A new VersionUpgrader.
func (u *VersionUpgrader) WithLogger(logger *slog.Logger) *VersionUpgrader {
	new := *u
	new.logger = logger
	return &new
}

// MigrationsLadder returns the upgrade steps of the migrations table.
func (u *VersionUpgrader) MigrationsLadder() Ladder {
	return Ladder{
		{Version: 1, Description: "add version column", Apply: u.addVersionColumn},
		{Version: 2, Description: "strip script extensions", Apply: u.stripExtensions},
	}
}

// LockLadder returns the upgrade steps of the lock table.
func (u *VersionUpgrader) LockLadder() Ladder {
	return Ladder{
		{Version: 1, Description: "add version column", Apply: u.addVersionColumn},
	}
}

// Upgrade applies every step of the ladder to the table, in order.
//
// Parameters:
//   - ctx: Context to use.
//   - conn: The connection or transaction to use.
//   - schema: The schema namespace, or empty.
//   - table: The logical table name.
//   - ladder: The steps to apply.
//
// Returns:
//   - error: An error if the ladder is invalid or a step fails.
func (u *VersionUpgrader) Upgrade(
	ctx context.Context, conn Conn, schema, table string, ladder Ladder,
) error {
	if err := ladder.Validate(); err != nil {
		return err
	}
	for _, step := range ladder {
		if err := step.Apply(ctx, conn, schema, table); err != nil {
			return fmt.Errorf(
				"upgrade %s to version %d (%s): %w",
				table, step.Version, step.Description, err,
			)
		}
	}
	return nil
}

// addVersionColumn adds the version column with default 1 and backfills
// rows the engine left NULL.
func (u *VersionUpgrader) addVersionColumn(
	ctx context.Context, conn Conn, schema, table string,
) error {
	b := GetSchemaBuilder(conn, u.dialect, schema)
	has, err := b.HasColumn(ctx, table, columnVersion)
	if err != nil {
		return err
	}
	if has {
		u.logger.Debug("version column present", "table", table, "schema", schema)
		return nil
	}

	if err := b.AlterTable(ctx, table, versionColumn()); err != nil {
		return err
	}

	version := u.dialect.Quote(columnVersion)
	query, args, err := statements(u.dialect).
		Update(qualify(u.dialect, schema, table)).
		Set(version, 1).
		Where(sq.Eq{version: nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build version backfill: %w", err)
	}
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("backfill version of %s: %w", table, err)
	}

	u.logger.Info("added version column", "table", table, "schema", schema)
	return nil
}

// pendingRecord is a migrations row below version 2.
type pendingRecord struct {
	id   int64
	name sql.NullString
}

// stripExtensions rewrites the names of rows below version 2 and marks
// every one of them version 2. All updates share one transaction.
func (u *VersionUpgrader) stripExtensions(
	ctx context.Context, conn Conn, schema, table string,
) error {
	return inTransaction(ctx, conn, func(tx Conn) error {
		qualified := qualify(u.dialect, schema, table)
		pending, err := u.pendingRecords(ctx, tx, qualified)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			u.logger.Debug("no rows to upgrade", "table", table, "schema", schema)
			return nil
		}

		renamed := 0
		var unchanged []int64
		for _, rec := range pending {
			if rec.name.Valid {
				if name, ok := u.normalizer.Normalize(rec.name.String); ok {
					if err := u.rename(ctx, tx, qualified, rec.id, name); err != nil {
						return err
					}
					renamed++
					continue
				}
			}
			unchanged = append(unchanged, rec.id)
		}

		for ids := range slices.Chunk(unchanged, u.batchSize) {
			if err := u.markUpgraded(ctx, tx, qualified, ids); err != nil {
				return err
			}
		}

		u.logger.Info(
			"upgraded migration rows",
			"table", table,
			"schema", schema,
			"rows", len(pending),
			"renamed", renamed,
		)
		return nil
	})
}

// pendingRecords reads all rows below version 2. The result set is closed
// before any update runs on the same connection.
func (u *VersionUpgrader) pendingRecords(
	ctx context.Context, conn Conn, qualified string,
) ([]pendingRecord, error) {
	id := u.dialect.Quote(columnID)
	query, args, err := statements(u.dialect).
		Select(id, u.dialect.Quote(columnName)).
		From(qualified).
		Where(sq.Lt{u.dialect.Quote(columnVersion): MigrationsTableVersion}).
		OrderBy(id).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending row query: %w", err)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select pending rows of %s: %w", qualified, err)
	}
	defer rows.Close()

	var out []pendingRecord
	for rows.Next() {
		var rec pendingRecord
		if err := rows.Scan(&rec.id, &rec.name); err != nil {
			return nil, fmt.Errorf("scan pending row of %s: %w", qualified, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pending rows of %s: %w", qualified, err)
	}
	return out, nil
}

func (u *VersionUpgrader) rename(
	ctx context.Context, conn Conn, qualified string, id int64, name string,
) error {
	query, args, err := statements(u.dialect).
		Update(qualified).
		Set(u.dialect.Quote(columnName), name).
		Set(u.dialect.Quote(columnVersion), MigrationsTableVersion).
		Where(sq.Eq{u.dialect.Quote(columnID): id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rename: %w", err)
	}
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("rename row %d of %s: %w", id, qualified, err)
	}
	return nil
}

func (u *VersionUpgrader) markUpgraded(
	ctx context.Context, conn Conn, qualified string, ids []int64,
) error {
	query, args, err := statements(u.dialect).
		Update(qualified).
		Set(u.dialect.Quote(columnVersion), MigrationsTableVersion).
		Where(sq.Eq{u.dialect.Quote(columnID): ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build version update: %w", err)
	}
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark rows of %s upgraded: %w", qualified, err)
	}
	return nil
}
