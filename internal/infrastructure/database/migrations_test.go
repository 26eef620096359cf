package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"sql/20260301_090000_create_ovens.up.sql": {
			Data: []byte("CREATE TABLE ovens (id INTEGER PRIMARY KEY, name TEXT NOT NULL);"),
		},
		"sql/20260301_090000_create_ovens.down.sql": {
			Data: []byte("DROP TABLE ovens;"),
		},
		"sql/20260302_100000_add_oven_zone.up.sql": {
			Data: []byte("ALTER TABLE ovens ADD COLUMN zone TEXT;"),
		},
		"sql/README.md": {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrateFrom(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.MigrateFrom(ctx, fsys, "sql"); err != nil {
		t.Fatalf("MigrateFrom() error = %v", err)
	}
	if !tableExists(t, db, "ovens") {
		t.Fatal("table ovens not created")
	}

	applied, pending, err := db.migrationStatus(ctx, fsys, "sql")
	if err != nil {
		t.Fatalf("migrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	if err := db.MigrateFrom(ctx, fsys, "sql"); err != nil {
		t.Fatalf("second MigrateFrom() error = %v", err)
	}
}

func TestMigrateDownFrom(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()
	delete(fsys, "sql/20260302_100000_add_oven_zone.up.sql")

	if err := db.MigrateFrom(ctx, fsys, "sql"); err != nil {
		t.Fatalf("MigrateFrom() error = %v", err)
	}
	if err := db.MigrateDownFrom(ctx, fsys, "sql"); err != nil {
		t.Fatalf("MigrateDownFrom() error = %v", err)
	}
	if tableExists(t, db, "ovens") {
		t.Error("table ovens should have been dropped")
	}

	applied, _, err := db.migrationStatus(ctx, fsys, "sql")
	if err != nil {
		t.Fatalf("migrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d after rollback, want 0", len(applied))
	}
}

func TestMigrateDownFrom_NoDownSQL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.MigrateFrom(ctx, fsys, "sql"); err != nil {
		t.Fatalf("MigrateFrom() error = %v", err)
	}
	if err := db.MigrateDownFrom(ctx, fsys, "sql"); err == nil {
		t.Error("expected error rolling back migration without down SQL")
	}
}

func TestMigrateFrom_FailureKeepsEarlierMigrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()
	fsys["sql/20260303_110000_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE")}

	if err := db.MigrateFrom(ctx, fsys, "sql"); err == nil {
		t.Fatal("expected error from broken migration")
	}
	if !tableExists(t, db, "ovens") {
		t.Error("earlier migrations should stay committed")
	}

	_, pending, err := db.migrationStatus(ctx, fsys, "sql")
	if err != nil {
		t.Fatalf("migrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("pending = %+v, want only the broken migration", pending)
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	db := openTestDB(t)
	if err := db.MigrateFrom(context.Background(), nil, "."); err != nil {
		t.Fatalf("MigrateFrom(nil) error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{"valid up", "20260301_090000_initial_schema.up.sql", "20260301_090000", true, true},
		{"valid down", "20260301_090000_initial_schema.down.sql", "20260301_090000", false, true},
		{"not sql", "readme.txt", "", false, false},
		{"missing direction", "20260301_090000_initial_schema.sql", "", false, false},
		{"invalid format", "invalid.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && (version != tt.wantVersion || isUp != tt.wantIsUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260301_090000_initial_schema.up.sql", "initial_schema"},
		{"20260301_090000_initial_schema.down.sql", "initial_schema"},
		{"20260302_100000_add_oven_zone.up.sql", "add_oven_zone"},
	}

	for _, tt := range tests {
		if got := extractMigrationName(tt.filename); got != tt.want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
