package bookkeeper

import "testing"

func TestResolver(t *testing.T) {
	tests := []struct {
		name       string
		dialect    Dialect
		schema     string
		wantTable  string
		wantLockWS string
	}{
		{"sqlite default", NewSQLiteDialect(), "", `"migrations"`, `"migrations_lock"`},
		{"sqlite schema", NewSQLiteDialect(), "other", `"other"."migrations"`, `"other"."migrations_lock"`},
		{"postgres schema", NewPostgresDialect(), "public", `"public"."migrations"`, `"public"."migrations_lock"`},
		{"mysql default", NewMySQLDialect(), "", "`migrations`", "`migrations_lock`"},
		{"mysql schema", NewMySQLDialect(), "app", "`app`.`migrations`", "`app`.`migrations_lock`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.dialect)
			if got := r.TableName("migrations", tt.schema); got != tt.wantTable {
				t.Fatalf("TableName = %s, want %s", got, tt.wantTable)
			}
			if got := r.LockTableName("migrations"); got != "migrations_lock" {
				t.Fatalf("LockTableName = %s", got)
			}
			if got := r.LockTableNameWithSchema("migrations", tt.schema); got != tt.wantLockWS {
				t.Fatalf("LockTableNameWithSchema = %s, want %s", got, tt.wantLockWS)
			}
		})
	}
}

func TestResolver_EscapesQuotes(t *testing.T) {
	r := NewResolver(NewPostgresDialect())
	if got, want := r.TableName(`odd"name`, ""), `"odd""name"`; got != want {
		t.Fatalf("TableName = %s, want %s", got, want)
	}
	r = NewResolver(NewMySQLDialect())
	if got, want := r.TableName("odd`name", ""), "`odd``name`"; got != want {
		t.Fatalf("TableName = %s, want %s", got, want)
	}
}
