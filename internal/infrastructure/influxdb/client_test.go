package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/furnace-core/internal/infrastructure/config"
)

// fakeServer answers /ping and captures /api/v2/write bodies.
type fakeServer struct {
	*httptest.Server
	writes chan string
}

func newFakeServer(t *testing.T, pingStatus int) *fakeServer {
	t.Helper()
	fs := &fakeServer{writes: make(chan string, 16)}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(pingStatus)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
			fs.writes <- string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "furnace-dev-token",
		Org:           "furnace",
		Bucket:        "telemetry",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	if _, err := Connect(cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	if _, err := Connect(testConfig("http://127.0.0.1:59999")); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	srv := newFakeServer(t, http.StatusServiceUnavailable)

	if _, err := Connect(testConfig(srv.URL)); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteReading(t *testing.T) {
	srv := newFakeServer(t, http.StatusNoContent)

	client, err := Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WriteReading(Reading{
		SessionID:  12,
		PartID:     3,
		GroupName:  "zone1",
		EntityID:   "sensor.zone1_temp",
		Value:      812.5,
		CapturedAt: time.Unix(1700000000, 0),
	})
	client.Flush()

	select {
	case body := <-srv.writes:
		for _, want := range []string{
			"furnace_telemetry,",
			"entity_id=sensor.zone1_temp",
			"group=zone1",
			"part_id=3",
			"session_id=12",
			"value=812.5",
			"1700000000000000000",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("line protocol %q missing %q", body, want)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no write received")
	}
}

func TestClose(t *testing.T) {
	srv := newFakeServer(t, http.StatusNoContent)

	client, err := Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}

	// No panic after close.
	client.WriteReading(Reading{EntityID: "sensor.x"})
	client.Flush()
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}

func TestReadingPoint_DefaultsTime(t *testing.T) {
	before := time.Now()
	p := readingPoint(Reading{EntityID: "sensor.t"})
	if p.Time().Before(before) {
		t.Errorf("point time %v before %v", p.Time(), before)
	}
	if p.Name() != TelemetryMeasurement {
		t.Errorf("Name() = %q", p.Name())
	}
}
