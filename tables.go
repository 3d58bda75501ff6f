package bookkeeper

// Current bookkeeping-schema versions. Rows and tables below these are
// upgraded in place by the VersionUpgrader.
const (
	MigrationsTableVersion = 2
	LockTableVersion       = 1
)

const (
	columnID            = "id"
	columnName          = "name"
	columnBatch         = "batch"
	columnMigrationTime = "migration_time"
	columnVersion       = "version"
	columnIndex         = "index"
	columnIsLocked      = "is_locked"
)

// LockRow is the singleton row of a lock table.
type LockRow struct {
	Index    int64
	IsLocked int
	Version  int
}

func versionColumn() Column {
	return Column{Name: columnVersion, Kind: KindInteger, Default: "1"}
}

// migrationsTableSpec is the current layout of the migrations table.
func migrationsTableSpec(name string) TableSpec {
	return TableSpec{
		Name: name,
		Columns: []Column{
			{Name: columnID, Kind: KindIncrements},
			{Name: columnName, Kind: KindString},
			{Name: columnBatch, Kind: KindInteger},
			{Name: columnMigrationTime, Kind: KindTimestamp},
			versionColumn(),
		},
	}
}

// lockTableSpec is the current layout of the lock table.
func lockTableSpec(name string) TableSpec {
	return TableSpec{
		Name: name,
		Columns: []Column{
			{Name: columnIndex, Kind: KindIncrements},
			{Name: columnIsLocked, Kind: KindInteger},
			versionColumn(),
		},
	}
}
