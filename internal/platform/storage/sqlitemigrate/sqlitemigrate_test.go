package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "migrate.db")
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return sqlDB
}

func migrationFS(files map[string]string) fstest.MapFS {
	mapFS := fstest.MapFS{}
	for name, content := range files {
		mapFS[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return mapFS
}

func TestApplyMigrationsCreatesSchema(t *testing.T) {
	sqlDB := openTestDB(t)

	err := ApplyMigrations(sqlDB, migrationFS(map[string]string{
		"0001_widgets.sql": `-- +migrate Up
CREATE TABLE widgets (id TEXT PRIMARY KEY);
-- +migrate Down
DROP TABLE widgets;`,
	}), "")
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := sqlDB.Exec(`INSERT INTO widgets (id) VALUES ('w1')`); err != nil {
		t.Fatalf("widgets table not created: %v", err)
	}

	var name string
	row := sqlDB.QueryRow(`SELECT name FROM schema_migrations`)
	if err := row.Scan(&name); err != nil {
		t.Fatalf("migration not recorded: %v", err)
	}
	if name != "0001_widgets.sql" {
		t.Fatalf("recorded name = %q, want 0001_widgets.sql", name)
	}
}

func TestApplyMigrationsRunsEachFileOnce(t *testing.T) {
	sqlDB := openTestDB(t)
	fsys := migrationFS(map[string]string{
		"0001_counters.sql": `-- +migrate Up
CREATE TABLE counters (id TEXT PRIMARY KEY);
INSERT INTO counters (id) VALUES ('c1');`,
	})

	if err := ApplyMigrations(sqlDB, fsys, ""); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := ApplyMigrations(sqlDB, fsys, ""); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var count int
	row := sqlDB.QueryRow(`SELECT COUNT(*) FROM counters`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count counters: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 (migration re-ran)", count)
	}
}

func TestApplyMigrationsOrdersLexically(t *testing.T) {
	sqlDB := openTestDB(t)

	// The second file alters the table the first creates; out-of-order
	// execution would fail.
	err := ApplyMigrations(sqlDB, migrationFS(map[string]string{
		"0002_add_column.sql": `-- +migrate Up
ALTER TABLE widgets ADD COLUMN label TEXT;`,
		"0001_widgets.sql": `-- +migrate Up
CREATE TABLE widgets (id TEXT PRIMARY KEY);`,
	}), "")
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := sqlDB.Exec(`INSERT INTO widgets (id, label) VALUES ('w1', 'first')`); err != nil {
		t.Fatalf("label column missing: %v", err)
	}
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "markers",
			content: "-- +migrate Up\nCREATE TABLE a (id TEXT);\n-- +migrate Down\nDROP TABLE a;",
			want:    "\nCREATE TABLE a (id TEXT);\n",
		},
		{
			name:    "no markers runs whole",
			content: "CREATE TABLE a (id TEXT);",
			want:    "CREATE TABLE a (id TEXT);",
		},
		{
			name:    "up only",
			content: "-- +migrate Up\nCREATE TABLE a (id TEXT);",
			want:    "\nCREATE TABLE a (id TEXT);",
		},
	}
	for _, tt := range tests {
		if got := upSection(tt.content); got != tt.want {
			t.Fatalf("%s: upSection = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestApplyMigrationsRequiresDB(t *testing.T) {
	err := ApplyMigrations(nil, migrationFS(nil), "")
	if err == nil {
		t.Fatal("expected error for nil db")
	}
}
