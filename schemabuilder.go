package bookkeeper

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// SchemaBuilder issues the DDL and metadata probes needed to realize the
// bookkeeping tables. Table names are logical; the builder qualifies them
// with its schema.
type SchemaBuilder interface {
	// HasTable reports whether the table exists.
	HasTable(ctx context.Context, table string) (bool, error)
	// HasColumn reports whether the table has the column.
	HasColumn(ctx context.Context, table, column string) (bool, error)
	// ColumnNames lists the table's columns in declaration order.
	ColumnNames(ctx context.Context, table string) ([]string, error)
	// CreateTable creates the table unless it already exists.
	CreateTable(ctx context.Context, spec TableSpec) error
	// AlterTable adds columns to the table. Columns that already exist
	// are left as they are.
	AlterTable(ctx context.Context, table string, add ...Column) error
}

// SQLSchemaBuilder implements SchemaBuilder over a Conn and a Dialect.
type SQLSchemaBuilder struct {
	conn    Conn
	dialect Dialect
	schema  string
}

var _ SchemaBuilder = (*SQLSchemaBuilder)(nil)

// NewSchemaBuilder returns a SQLSchemaBuilder for the default namespace.
//
// Parameters:
//   - conn: The connection or transaction to run statements on.
//   - d: The dialect of the target database.
//
// Returns:
//   - *SQLSchemaBuilder: A new SQLSchemaBuilder.
func NewSchemaBuilder(conn Conn, d Dialect) *SQLSchemaBuilder {
	return &SQLSchemaBuilder{conn: conn, dialect: d}
}

// GetSchemaBuilder returns a schema builder scoped to schemaName when it is
// set, otherwise to the default namespace.
//
// Parameters:
//   - conn: The connection or transaction to run statements on.
//   - d: The dialect of the target database.
//   - schemaName: The schema namespace, or empty.
//
// Returns:
//   - *SQLSchemaBuilder: A new SQLSchemaBuilder.
func GetSchemaBuilder(
	conn Conn, d Dialect, schemaName string,
) *SQLSchemaBuilder {
	b := NewSchemaBuilder(conn, d)
	if schemaName != "" {
		b = b.WithSchema(schemaName)
	}
	return b
}

// WithSchema returns a new SQLSchemaBuilder scoped to the given schema.
//
// Parameters:
//   - schema: The schema namespace.
//
// Returns:
//   - *SQLSchemaBuilder: A new SQLSchemaBuilder.
func (b *SQLSchemaBuilder) WithSchema(schema string) *SQLSchemaBuilder {
	new := *b
	new.schema = schema
	return &new
}

// Schema returns the schema the builder is scoped to.
func (b *SQLSchemaBuilder) Schema() string {
	return b.schema
}

// HasTable reports whether the table exists in the builder's schema.
//
// Parameters:
//   - ctx: Context to use.
//   - table: The logical table name.
//
// Returns:
//   - bool: True if the table exists.
//   - error: An error if the probe fails.
func (b *SQLSchemaBuilder) HasTable(
	ctx context.Context, table string,
) (bool, error) {
	query, args, err := b.dialect.HasTableQuery(b.schema, table)
	if err != nil {
		return false, fmt.Errorf("build table probe for %s: %w", table, err)
	}
	var count int
	if err := b.conn.QueryRowContext(ctx, query, args...).Scan(
		&count,
	); err != nil {
		return false, fmt.Errorf("probe table %s: %w", table, err)
	}
	return count > 0, nil
}

// HasColumn reports whether the table has the column. Names compare
// case-insensitively.
//
// Parameters:
//   - ctx: Context to use.
//   - table: The logical table name.
//   - column: The column name.
//
// Returns:
//   - bool: True if the column exists.
//   - error: An error if the probe fails.
func (b *SQLSchemaBuilder) HasColumn(
	ctx context.Context, table, column string,
) (bool, error) {
	names, err := b.ColumnNames(ctx, table)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(names, func(name string) bool {
		return strings.EqualFold(name, column)
	}), nil
}

// ColumnNames lists the table's columns in declaration order.
//
// Parameters:
//   - ctx: Context to use.
//   - table: The logical table name.
//
// Returns:
//   - []string: The column names.
//   - error: An error if the query fails.
func (b *SQLSchemaBuilder) ColumnNames(
	ctx context.Context, table string,
) ([]string, error) {
	query, args, err := b.dialect.ColumnsQuery(b.schema, table)
	if err != nil {
		return nil, fmt.Errorf("build column probe for %s: %w", table, err)
	}
	names, err := queryStrings(ctx, b.conn, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	return names, nil
}

// CreateTable creates the table with CREATE TABLE IF NOT EXISTS.
//
// Parameters:
//   - ctx: Context to use.
//   - spec: The table to create.
//
// Returns:
//   - error: An error if the statement fails.
func (b *SQLSchemaBuilder) CreateTable(
	ctx context.Context, spec TableSpec,
) error {
	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		defs = append(defs, columnDefinition(b.dialect, c))
	}
	query := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s)",
		qualify(b.dialect, b.schema, spec.Name),
		strings.Join(defs, ", "),
	)
	if _, err := b.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// AlterTable adds the given columns. A column added concurrently by
// another process is not an error.
//
// Parameters:
//   - ctx: Context to use.
//   - table: The logical table name.
//   - add: The columns to add.
//
// Returns:
//   - error: An error if a statement fails.
func (b *SQLSchemaBuilder) AlterTable(
	ctx context.Context, table string, add ...Column,
) error {
	qualified := qualify(b.dialect, b.schema, table)
	for _, c := range add {
		query := b.dialect.AddColumnSQL(
			qualified, columnDefinition(b.dialect, c),
		)
		if _, err := b.conn.ExecContext(ctx, query); err != nil {
			if b.dialect.IsDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf(
				"add column %s to %s: %w", c.Name, table, err,
			)
		}
	}
	return nil
}
