package bookkeeper

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// pgDuplicateColumn is the SQLSTATE for duplicate_column.
const pgDuplicateColumn = "42701"

// PostgresDialect implements Dialect for PostgreSQL, with either the pgx
// or the lib/pq driver.
type PostgresDialect struct{}

// NewPostgresDialect returns a new PostgresDialect.
//
// Returns:
//   - *PostgresDialect: A new PostgresDialect instance.
func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{}
}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) Placeholder() sq.PlaceholderFormat { return sq.Dollar }

func (PostgresDialect) Quote(ident string) string { return quoteWith(ident, `"`) }

func (PostgresDialect) ConstantSource() string { return "" }

// ColumnType renders the PostgreSQL type of a column kind.
//
// Parameters:
//   - kind: The portable column kind.
//
// Returns:
//   - string: The column type and constraints.
func (PostgresDialect) ColumnType(kind ColumnKind) string {
	switch kind {
	case KindIncrements:
		return "serial primary key"
	case KindString:
		return "varchar(255)"
	case KindTimestamp:
		return "timestamptz"
	default:
		return "integer"
	}
}

// HasTableQuery looks the table up in information_schema.tables.
//
// Parameters:
//   - schema: The schema name, empty for current_schema().
//   - table: The unquoted table name.
//
// Returns:
//   - string: The query.
//   - []any: The query arguments.
//   - error: An error if the query cannot be built.
func (PostgresDialect) HasTableQuery(
	schema, table string,
) (string, []any, error) {
	return sq.Select("COUNT(*)").
		From("information_schema.tables").
		Where(schemaPredicate("table_schema", schema, "current_schema()")).
		Where(sq.Eq{"table_name": table}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

// ColumnsQuery lists the table's columns from information_schema.columns.
//
// Parameters:
//   - schema: The schema name, empty for current_schema().
//   - table: The unquoted table name.
//
// Returns:
//   - string: The query.
//   - []any: The query arguments.
//   - error: An error if the query cannot be built.
func (PostgresDialect) ColumnsQuery(
	schema, table string,
) (string, []any, error) {
	return sq.Select("column_name").
		From("information_schema.columns").
		Where(schemaPredicate("table_schema", schema, "current_schema()")).
		Where(sq.Eq{"table_name": table}).
		OrderBy("ordinal_position").
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

// AddColumnSQL uses ADD COLUMN IF NOT EXISTS so concurrent upgrades do not
// conflict.
func (PostgresDialect) AddColumnSQL(table, definition string) string {
	return "ALTER TABLE " + table + " ADD COLUMN IF NOT EXISTS " + definition
}

// IsDuplicateColumn reports SQLSTATE 42701 from either driver.
func (PostgresDialect) IsDuplicateColumn(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDuplicateColumn
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgDuplicateColumn
	}
	return false
}

// AdvisoryLockSQL takes a transaction-scoped advisory lock on the hashed
// key. It is released on commit or rollback.
func (PostgresDialect) AdvisoryLockSQL() string {
	return "SELECT pg_advisory_xact_lock(hashtext($1))"
}
