package bookkeeper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
)

// LockRowManager keeps the lock table at exactly one row. It never changes
// is_locked on an existing row; that belongs to the lock protocol.
type LockRowManager struct {
	dialect Dialect
	logger  *slog.Logger
}

// NewLockRowManager returns a new LockRowManager.
//
// Parameters:
//   - d: The dialect of the target database.
//
// Returns:
//   - *LockRowManager: A new LockRowManager.
func NewLockRowManager(d Dialect) *LockRowManager {
	return &LockRowManager{dialect: d, logger: slog.Default()}
}

// WithLogger returns a new LockRowManager with the given logger.
//
// Parameters:
//   - logger: The logger to use.
//
// Returns:
//   - *LockRowManager: A new LockRowManager.
func (m *LockRowManager) WithLogger(logger *slog.Logger) *LockRowManager {
	new := *m
	new.logger = logger
	return &new
}

// EnsureLockRow inserts an unlocked row when the lock table is empty. The
// emptiness check and the insert are one statement.
//
// Parameters:
//   - ctx: Context to use.
//   - conn: The connection or transaction to use.
//   - schema: The schema namespace, or empty.
//   - lockTable: The logical lock table name.
//
// Returns:
//   - bool: True if a row was inserted.
//   - error: An error if the statement fails.
func (m *LockRowManager) EnsureLockRow(
	ctx context.Context, conn Conn, schema, lockTable string,
) (bool, error) {
	qualified := qualify(m.dialect, schema, lockTable)

	absent := sq.Select("0").
		Where(sq.Expr("NOT EXISTS (SELECT 1 FROM " + qualified + ")"))
	if src := m.dialect.ConstantSource(); src != "" {
		absent = absent.From(src)
	}
	query, args, err := statements(m.dialect).
		Insert(qualified).
		Columns(m.dialect.Quote(columnIsLocked)).
		Select(absent).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build lock row insert: %w", err)
	}

	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert lock row into %s: %w", lockTable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count inserted lock rows: %w", err)
	}

	if n > 0 {
		m.logger.Info("inserted lock row", "table", lockTable, "schema", schema)
		return true, nil
	}
	m.logger.Debug("lock row present", "table", lockTable, "schema", schema)
	return false, nil
}

// LockRows returns every row of the lock table ordered by index.
//
// Parameters:
//   - ctx: Context to use.
//   - conn: The connection or transaction to use.
//   - schema: The schema namespace, or empty.
//   - lockTable: The logical lock table name.
//
// Returns:
//   - []LockRow: The rows.
//   - error: An error if the query fails.
func (m *LockRowManager) LockRows(
	ctx context.Context, conn Conn, schema, lockTable string,
) ([]LockRow, error) {
	index := m.dialect.Quote(columnIndex)
	query, args, err := statements(m.dialect).
		Select(
			index,
			m.dialect.Quote(columnIsLocked),
			m.dialect.Quote(columnVersion),
		).
		From(qualify(m.dialect, schema, lockTable)).
		OrderBy(index).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lock row query: %w", err)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select lock rows of %s: %w", lockTable, err)
	}
	defer rows.Close()

	var out []LockRow
	for rows.Next() {
		var (
			row      LockRow
			isLocked sql.NullInt64
			version  sql.NullInt64
		)
		if err := rows.Scan(&row.Index, &isLocked, &version); err != nil {
			return nil, fmt.Errorf("scan lock row of %s: %w", lockTable, err)
		}
		row.IsLocked = int(isLocked.Int64)
		row.Version = int(version.Int64)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read lock rows of %s: %w", lockTable, err)
	}
	return out, nil
}
