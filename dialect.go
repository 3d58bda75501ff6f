package bookkeeper

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// ColumnKind is the portable type of a bookkeeping column.
type ColumnKind int

const (
	// KindIncrements is an auto-incrementing integer primary key.
	KindIncrements ColumnKind = iota
	KindString
	KindInteger
	KindTimestamp
)

// Column describes one column of a bookkeeping table.
type Column struct {
	Name string
	Kind ColumnKind
	// Default is a SQL literal. Empty means no default.
	Default string
}

// TableSpec describes a table to create.
type TableSpec struct {
	Name    string
	Columns []Column
}

// Dialect renders the engine-specific parts of the bookkeeping DDL and
// metadata probes.
type Dialect interface {
	// Name returns the dialect name.
	Name() string
	// Placeholder returns the bind parameter format of the engine.
	Placeholder() sq.PlaceholderFormat
	// Quote quotes a single identifier.
	Quote(ident string) string
	// ColumnType renders the SQL type of a column kind.
	ColumnType(kind ColumnKind) string
	// HasTableQuery returns a query yielding a single count, non-zero when
	// the table exists in schema (empty schema means the default one).
	HasTableQuery(schema, table string) (string, []any, error)
	// ColumnsQuery returns a query yielding one column name per row.
	ColumnsQuery(schema, table string) (string, []any, error)
	// AddColumnSQL renders ALTER TABLE for an already qualified table and
	// a rendered column definition.
	AddColumnSQL(table, definition string) string
	// IsDuplicateColumn reports whether err means the column already exists.
	IsDuplicateColumn(err error) bool
	// ConstantSource returns the pseudo-table a constant SELECT with a
	// WHERE clause must read from, or empty when none is needed.
	ConstantSource() string
}

// AdvisoryLocker is implemented by dialects able to serialize bootstrap
// with a transaction-scoped advisory lock. The statement takes the lock
// key as its only parameter.
type AdvisoryLocker interface {
	AdvisoryLockSQL() string
}

// statements returns a squirrel builder using the dialect's placeholders.
func statements(d Dialect) sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Placeholder())
}

// qualify quotes table and, when set, prefixes it with the quoted schema.
func qualify(d Dialect, schema, table string) string {
	if schema == "" {
		return d.Quote(table)
	}
	return d.Quote(schema) + "." + d.Quote(table)
}

// columnDefinition renders a column for CREATE TABLE or ADD COLUMN.
func columnDefinition(d Dialect, c Column) string {
	def := d.Quote(c.Name) + " " + d.ColumnType(c.Kind)
	if c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	return def
}

// quoteWith wraps ident in q, doubling any q inside it.
func quoteWith(ident string, q string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

// schemaPredicate matches column against schema, or against the engine's
// current schema expression when schema is empty.
func schemaPredicate(column, schema, current string) sq.Sqlizer {
	if schema == "" {
		return sq.Expr(column + " = " + current)
	}
	return sq.Eq{column: schema}
}
