package bookkeeper

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// sqliteDefaultSchema is the name SQLite gives the main database.
const sqliteDefaultSchema = "main"

// SQLiteDialect implements Dialect for SQLite. Schemas map to attached
// databases.
type SQLiteDialect struct{}

// NewSQLiteDialect returns a new SQLiteDialect.
//
// Returns:
//   - *SQLiteDialect: A new SQLiteDialect instance.
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (SQLiteDialect) Quote(ident string) string { return quoteWith(ident, `"`) }

func (SQLiteDialect) ConstantSource() string { return "" }

// ColumnType renders the SQLite type of a column kind.
//
// Parameters:
//   - kind: The portable column kind.
//
// Returns:
//   - string: The column type and constraints.
func (SQLiteDialect) ColumnType(kind ColumnKind) string {
	switch kind {
	case KindIncrements:
		return "integer not null primary key autoincrement"
	case KindString:
		return "varchar(255)"
	case KindTimestamp:
		return "datetime"
	default:
		return "integer"
	}
}

// HasTableQuery looks the table up in the schema's sqlite_master.
//
// Parameters:
//   - schema: The attached database name, empty for main.
//   - table: The unquoted table name.
//
// Returns:
//   - string: The query.
//   - []any: The query arguments.
//   - error: An error if the query cannot be built.
func (s SQLiteDialect) HasTableQuery(
	schema, table string,
) (string, []any, error) {
	if schema == "" {
		schema = sqliteDefaultSchema
	}
	return sq.Select("COUNT(*)").
		From(s.Quote(schema) + ".sqlite_master").
		Where(sq.Eq{"type": "table", "name": table}).
		ToSql()
}

// ColumnsQuery lists the table's columns through pragma_table_info.
//
// Parameters:
//   - schema: The attached database name, empty for main.
//   - table: The unquoted table name.
//
// Returns:
//   - string: The query.
//   - []any: The query arguments.
//   - error: Always nil.
func (SQLiteDialect) ColumnsQuery(
	schema, table string,
) (string, []any, error) {
	if schema == "" {
		schema = sqliteDefaultSchema
	}
	return "SELECT name FROM pragma_table_info(?, ?) ORDER BY cid",
		[]any{table, schema}, nil
}

func (SQLiteDialect) AddColumnSQL(table, definition string) string {
	return "ALTER TABLE " + table + " ADD COLUMN " + definition
}

// IsDuplicateColumn matches SQLite's "duplicate column name" error. The
// driver exposes no dedicated code for it.
func (SQLiteDialect) IsDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(
		strings.ToLower(err.Error()), "duplicate column name",
	)
}
