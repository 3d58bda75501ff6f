package bookkeeper

// lockTableSuffix is appended to the data table name to name its lock table.
const lockTableSuffix = "_lock"

// Resolver maps logical bookkeeping table names to physical, quoted and
// optionally schema-qualified names.
type Resolver struct {
	dialect Dialect
}

// NewResolver returns a Resolver quoting names for the given dialect.
//
// Parameters:
//   - d: The dialect used to quote identifiers.
//
// Returns:
//   - *Resolver: A new Resolver.
func NewResolver(d Dialect) *Resolver {
	return &Resolver{dialect: d}
}

// TableName returns the physical name of a logical table.
//
// Parameters:
//   - logical: The logical table name.
//   - schema: The schema namespace. Empty means the default namespace.
//
// Returns:
//   - string: The quoted, possibly schema-qualified name.
func (r *Resolver) TableName(logical, schema string) string {
	return qualify(r.dialect, schema, logical)
}

// LockTableName returns the logical name of the lock table that belongs to
// the logical data table.
func (r *Resolver) LockTableName(logical string) string {
	return logical + lockTableSuffix
}

// LockTableNameWithSchema returns the physical name of the lock table that
// belongs to the logical data table.
//
// Parameters:
//   - logical: The logical data table name.
//   - schema: The schema namespace. Empty means the default namespace.
//
// Returns:
//   - string: The quoted, possibly schema-qualified lock table name.
func (r *Resolver) LockTableNameWithSchema(logical, schema string) string {
	return r.TableName(r.LockTableName(logical), schema)
}
