package bookkeeper

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateColumn is ER_DUP_FIELDNAME.
const mysqlDuplicateColumn = 1060

// MySQLDialect implements Dialect for MySQL. Schemas map to databases.
type MySQLDialect struct{}

// NewMySQLDialect returns a new MySQLDialect.
//
// Returns:
//   - *MySQLDialect: A new MySQLDialect instance.
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (MySQLDialect) Quote(ident string) string { return quoteWith(ident, "`") }

func (MySQLDialect) ConstantSource() string { return "DUAL" }

// ColumnType renders the MySQL type of a column kind.
//
// Parameters:
//   - kind: The portable column kind.
//
// Returns:
//   - string: The column type and constraints.
func (MySQLDialect) ColumnType(kind ColumnKind) string {
	switch kind {
	case KindIncrements:
		return "int unsigned not null auto_increment primary key"
	case KindString:
		return "varchar(255)"
	case KindTimestamp:
		return "timestamp null"
	default:
		return "int"
	}
}

// HasTableQuery looks the table up in information_schema.tables.
//
// Parameters:
//   - schema: The database name, empty for DATABASE().
//   - table: The unquoted table name.
//
// Returns:
//   - string: The query.
//   - []any: The query arguments.
//   - error: An error if the query cannot be built.
func (MySQLDialect) HasTableQuery(
	schema, table string,
) (string, []any, error) {
	return sq.Select("COUNT(*)").
		From("information_schema.tables").
		Where(schemaPredicate("table_schema", schema, "DATABASE()")).
		Where(sq.Eq{"table_name": table}).
		ToSql()
}

// ColumnsQuery lists the table's columns from information_schema.columns.
//
// Parameters:
//   - schema: The database name, empty for DATABASE().
//   - table: The unquoted table name.
//
// Returns:
//   - string: The query.
//   - []any: The query arguments.
//   - error: An error if the query cannot be built.
func (MySQLDialect) ColumnsQuery(
	schema, table string,
) (string, []any, error) {
	return sq.Select("column_name").
		From("information_schema.columns").
		Where(schemaPredicate("table_schema", schema, "DATABASE()")).
		Where(sq.Eq{"table_name": table}).
		OrderBy("ordinal_position").
		ToSql()
}

func (MySQLDialect) AddColumnSQL(table, definition string) string {
	return "ALTER TABLE " + table + " ADD COLUMN " + definition
}

// IsDuplicateColumn reports ER_DUP_FIELDNAME.
func (MySQLDialect) IsDuplicateColumn(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateColumn
	}
	return false
}
