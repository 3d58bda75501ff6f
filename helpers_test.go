package bookkeeper

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// --- Fake driver ---

const fakeDriverName = "bookkeeperfake"

type fakeDrv struct{}
type fakeConn struct{}
type fakeTx struct{}
type fakeResult struct{}
type fakeRows struct {
	cols []string
	data [][]driver.Value
	i    int
}

var (
	fakeMu       sync.Mutex
	fakeQueries  []string
	fakeCommits  int
	fakeRollback int
	// fakeNextRows is returned by the next SELECT.
	fakeNextRows [][]driver.Value
	fakeNextCols []string
	// fakeFailArg makes any Exec carrying this argument fail.
	fakeFailArg string
)

func resetFake() {
	fakeMu.Lock()
	defer fakeMu.Unlock()
	fakeQueries = nil
	fakeCommits, fakeRollback = 0, 0
	fakeNextRows, fakeNextCols = nil, nil
	fakeFailArg = ""
}

func setFakeRows(cols []string, data [][]driver.Value) {
	fakeMu.Lock()
	defer fakeMu.Unlock()
	fakeNextCols, fakeNextRows = cols, data
}

func fakeRecorded() []string {
	fakeMu.Lock()
	defer fakeMu.Unlock()
	return append([]string(nil), fakeQueries...)
}

func fakeTxCounts() (commits, rollbacks int) {
	fakeMu.Lock()
	defer fakeMu.Unlock()
	return fakeCommits, fakeRollback
}

func (fakeDrv) Open(name string) (driver.Conn, error) { return fakeConn{}, nil }
func (fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}
func (fakeConn) Close() error { return nil }
func (fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }
func (fakeConn) CheckNamedValue(*driver.NamedValue) error { return nil }
func (fakeConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return fakeTx{}, nil
}
func (fakeTx) Commit() error {
	fakeMu.Lock()
	fakeCommits++
	fakeMu.Unlock()
	return nil
}
func (fakeTx) Rollback() error {
	fakeMu.Lock()
	fakeRollback++
	fakeMu.Unlock()
	return nil
}

func (fakeConn) ExecContext(
	ctx context.Context, query string, args []driver.NamedValue,
) (driver.Result, error) {
	fakeMu.Lock()
	defer fakeMu.Unlock()
	fakeQueries = append(fakeQueries, query)
	for _, a := range args {
		if s, ok := a.Value.(string); ok && fakeFailArg != "" && s == fakeFailArg {
			return nil, errors.New("forced exec failure")
		}
	}
	return fakeResult{}, nil
}

func (fakeConn) QueryContext(
	ctx context.Context, query string, args []driver.NamedValue,
) (driver.Rows, error) {
	fakeMu.Lock()
	defer fakeMu.Unlock()
	fakeQueries = append(fakeQueries, query)
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return nil, errors.New("not implemented")
	}
	cols, data := fakeNextCols, fakeNextRows
	fakeNextCols, fakeNextRows = nil, nil
	if cols == nil {
		cols = []string{"value"}
	}
	return &fakeRows{cols: cols, data: data}, nil
}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }
func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.i])
	r.i++
	return nil
}

var (
	_ driver.Driver            = fakeDrv{}
	_ driver.Conn              = fakeConn{}
	_ driver.ExecerContext     = fakeConn{}
	_ driver.QueryerContext    = fakeConn{}
	_ driver.ConnBeginTx       = fakeConn{}
	_ driver.NamedValueChecker = fakeConn{}
)

func init() {
	sql.Register(fakeDriverName, fakeDrv{})
}

func openFake(t *testing.T) *sql.DB {
	t.Helper()
	resetFake()
	db, err := sql.Open(fakeDriverName, "")
	if err != nil {
		t.Fatalf("open fake driver: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// --- SQLite helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &Config{
		Driver:    "sqlite",
		DSN:       filepath.Join(t.TempDir(), "bookkeeping.db"),
		TableName: DefaultTableName,
	}
	db, _, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func testBootstrapper() *Bootstrapper {
	return NewBootstrapper(NewSQLiteDialect()).WithLogger(discardLogger())
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query int value: %v", err)
	}
	return value
}

// queryColumn returns the first column of every row as text, NULL as "<nil>".
func queryColumn(t *testing.T, db *sql.DB, query string) []string {
	t.Helper()
	rows, err := db.Query(query)
	if err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if !v.Valid {
			out = append(out, "<nil>")
			continue
		}
		out = append(out, v.String)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

func tableExists(t *testing.T, db *sql.DB, schema, table string) bool {
	t.Helper()
	ok, err := GetSchemaBuilder(db, NewSQLiteDialect(), schema).HasTable(
		context.Background(), table,
	)
	if err != nil {
		t.Fatalf("probe table %s: %v", table, err)
	}
	return ok
}

func columnNames(t *testing.T, db *sql.DB, schema, table string) []string {
	t.Helper()
	names, err := GetSchemaBuilder(db, NewSQLiteDialect(), schema).ColumnNames(
		context.Background(), table,
	)
	if err != nil {
		t.Fatalf("list columns of %s: %v", table, err)
	}
	return names
}

// createLegacyMigrations creates the pre-version migrations table layout
// and inserts one row per name.
func createLegacyMigrations(t *testing.T, db *sql.DB, names ...string) {
	t.Helper()
	mustExec(t, db, `CREATE TABLE migrations (
		id integer not null primary key autoincrement,
		name varchar(255),
		batch integer,
		migration_time datetime)`)
	for _, name := range names {
		mustExec(t, db,
			`INSERT INTO migrations (name, batch, migration_time) VALUES (?, 1, CURRENT_TIMESTAMP)`,
			name,
		)
	}
}

// snapshot renders the bookkeeping state of the default schema.
func snapshot(t *testing.T, db *sql.DB) string {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "migrations columns: %v\n", columnNames(t, db, "", "migrations"))
	fmt.Fprintf(&b, "lock columns: %v\n", columnNames(t, db, "", "migrations_lock"))
	fmt.Fprintf(&b, "rows: %v\n", queryColumn(t, db,
		`SELECT id || '|' || COALESCE(name, '<nil>') || '|' || version FROM migrations ORDER BY id`))
	fmt.Fprintf(&b, "locks: %v\n", queryColumn(t, db,
		`SELECT "index" || '|' || is_locked || '|' || version FROM migrations_lock ORDER BY "index"`))
	return b.String()
}
