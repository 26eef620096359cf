package migrations

import (
	"context"
	"testing"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
)

func TestSchema_UpAndDown(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	want := map[int]string{1: "CREATED", 2: "IN PROGRESS", 3: "STOPPED", 4: "COMPLETED"}
	rows, err := db.QueryContext(ctx, "SELECT id, name FROM session_states ORDER BY id")
	if err != nil {
		t.Fatalf("query session_states: %v", err)
	}
	got := map[int]string{}
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got[id] = name
	}
	rows.Close()
	if len(got) != len(want) {
		t.Fatalf("session_states = %v, want %v", got, want)
	}
	for id, name := range want {
		if got[id] != name {
			t.Errorf("session_states[%d] = %q, want %q", id, got[id], name)
		}
	}

	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='logs'").Scan(&n); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if n != 0 {
		t.Error("logs table should be dropped after MigrateDown")
	}
}
