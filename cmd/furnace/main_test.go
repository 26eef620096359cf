package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
	"github.com/nerrad567/furnace-core/internal/ingest"
	"github.com/nerrad567/furnace-core/internal/sensorgroup"
)

// writeConfig writes a minimal config with the API and mirrors disabled.
// hubURL and groups are substituted into the template.
func writeConfig(t *testing.T, dbPath, hubURL, groups string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "furnace.yaml")

	var indented strings.Builder
	for _, line := range strings.Split(groups, "\n") {
		indented.WriteString("    " + line + "\n")
	}

	configContent := `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

hub:
  url: "` + hubURL + `"
  token: "test-token"
  handshake_timeout: 2

sensor_groups:
  options_file: "` + filepath.Join(tmpDir, "missing-options.json") + `"
  text: |
` + indented.String() + `
ingest:
  queue_size: 16

api:
  enabled: false

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// closedPortURL returns a websocket URL nothing is listening on.
func closedPortURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()
	return url
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/furnace.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	configPath := writeConfig(t, "", "ws://127.0.0.1:1/api/websocket", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %v, want database.path validation error", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv(configEnv, "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/furnace.yaml"
	t.Setenv(configEnv, expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_HubUnreachable verifies an unreachable hub is a startup failure,
// and that reference data was synchronised before ingestion began.
func TestRun_HubUnreachable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "furnace.db")
	configPath := writeConfig(t, dbPath, closedPortURL(t), "zone1 = sensor.t1, sensor.t2")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if !errors.Is(err, ingest.ErrConnectionClosed) {
		t.Fatalf("run() error = %v, want ErrConnectionClosed", err)
	}

	groups := listGroups(t, dbPath)
	if len(groups) != 1 || groups[0].Name != "zone1" || len(groups[0].Sensors) != 2 {
		t.Errorf("groups = %+v, want zone1 with 2 sensors", groups)
	}
}

// TestRun_AuthInvalidKeepsRunning verifies a rejected token stops ingestion
// but not the process; run returns cleanly on shutdown.
func TestRun_AuthInvalidKeepsRunning(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteJSON(map[string]string{"type": "auth_required"}) //nolint:errcheck // Test hub
		conn.ReadMessage()                                         //nolint:errcheck // Test hub
		conn.WriteJSON(map[string]string{"type": "auth_invalid"})  //nolint:errcheck // Test hub
		conn.ReadMessage()                                         //nolint:errcheck // Test hub
	}))
	defer srv.Close()

	dbPath := filepath.Join(t.TempDir(), "furnace.db")
	configPath := writeConfig(t, dbPath, "ws"+strings.TrimPrefix(srv.URL, "http"), "")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := run(ctx, configPath); err != nil {
		t.Fatalf("run() error = %v, want nil after auth rejection", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("run() returned after %v, want it to wait for shutdown", elapsed)
	}
}

// TestRun_ContextCancelledDuringStartup verifies cancellation during startup.
func TestRun_ContextCancelledDuringStartup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "furnace.db")
	configPath := writeConfig(t, dbPath, closedPortURL(t), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, configPath)
	if err == nil {
		t.Log("run() completed without error (cancelled cleanly)")
	} else {
		t.Logf("run() returned error (expected): %v", err)
	}
}

func TestGroupsCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "furnace.db")
	configPath := writeConfig(t, dbPath, "ws://127.0.0.1:1/api/websocket",
		"furnace_a:\n  - sensor.a1\n  - sensor.a2\nfurnace_b = sensor.b1")

	tests := []struct {
		name       string
		args       []string
		wantOutput []string
		wantSynced bool
	}{
		{
			name: "print only",
			args: []string{"groups", "--config", configPath},
			wantOutput: []string{
				"furnace_a\tversion=" + sensorgroup.Version([]string{"sensor.a1", "sensor.a2"}) + "\tsensors=2",
				"  sensor.a1",
				"furnace_b\tversion=",
			},
		},
		{
			name:       "sync",
			args:       []string{"groups", "--sync", "--config", configPath},
			wantOutput: []string{"synced=2 skipped=0"},
			wantSynced: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := newRootCommand()
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)

			if err := cmd.ExecuteContext(context.Background()); err != nil {
				t.Fatalf("Execute() error = %v\noutput:\n%s", err, out.String())
			}

			for _, want := range tt.wantOutput {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q\noutput:\n%s", want, out.String())
				}
			}

			if tt.wantSynced {
				if groups := listGroups(t, dbPath); len(groups) != 2 {
					t.Errorf("got %d groups in database, want 2", len(groups))
				}
			}
		})
	}
}

func TestGroupsCommand_Empty(t *testing.T) {
	configPath := writeConfig(t, filepath.Join(t.TempDir(), "furnace.db"), "ws://127.0.0.1:1/api/websocket", "# nothing yet")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"groups", "--config", configPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "no sensor groups configured") {
		t.Errorf("output = %q", out.String())
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "furnace "+version) {
		t.Errorf("output = %q", out.String())
	}
}

// listGroups opens the database file and returns its groups with sensors.
func listGroups(t *testing.T, dbPath string) []sensorgroup.Group {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close()

	groups, err := sensorgroup.NewSQLiteRepository(db).List(ctx, true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	return groups
}
