// Furnace Core - manufacturing telemetry logger.
//
// Furnace subscribes to state_changed events from a Home Assistant hub,
// attributes each numeric reading to the active monitoring session and part,
// and stores it in SQLite. A small REST API manages sessions, part names and
// sensor groups.
//
// Commands:
//
//	furnace serve    run the logger (default)
//	furnace groups   parse and optionally sync the configured sensor groups
//	furnace version  print build information
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/furnace-core/migrations"

	"github.com/nerrad567/furnace-core/internal/api"
	"github.com/nerrad567/furnace-core/internal/audit"
	"github.com/nerrad567/furnace-core/internal/infrastructure/config"
	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
	"github.com/nerrad567/furnace-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/furnace-core/internal/infrastructure/logging"
	"github.com/nerrad567/furnace-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/furnace-core/internal/ingest"
	"github.com/nerrad567/furnace-core/internal/sensorgroup"
	"github.com/nerrad567/furnace-core/internal/session"
	"github.com/nerrad567/furnace-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/furnace.yaml"

// configEnv names the environment variable that overrides the config path.
const configEnv = "FURNACE_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every command.
type rootOptions struct {
	ConfigPath string
}

// newRootCommand builds the furnace command tree. Running it without a
// subcommand is the same as "furnace serve".
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "furnace",
		Short:         "Furnace - manufacturing telemetry logger",
		Long:          "Logs Home Assistant sensor readings against active manufacturing sessions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.ConfigPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", getConfigPath(),
		"path to the YAML config file (env "+configEnv+")")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newGroupsCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the telemetry logger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.ConfigPath)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "furnace %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// groupsOptions holds flags for the groups command.
type groupsOptions struct {
	Sync bool
}

// newGroupsCommand parses the configured sensor-group text and prints the
// result. With --sync the groups are also written to the database, exactly
// as serve does at startup.
func newGroupsCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &groupsOptions{}

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Show the configured sensor groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGroups(cmd.Context(), rootOpts.ConfigPath, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Sync, "sync", false, "write the parsed groups to the database")

	return cmd
}

func runGroups(ctx context.Context, configPath string, opts *groupsOptions, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	text, err := cfg.SensorGroupsText()
	if err != nil {
		return fmt.Errorf("reading sensor groups: %w", err)
	}

	defs := sensorgroup.Parse(text)
	if len(defs) == 0 {
		fmt.Fprintln(out, "no sensor groups configured")
		return nil
	}

	for _, def := range defs {
		fmt.Fprintf(out, "%s\tversion=%s\tsensors=%d\n", def.Name, sensorgroup.Version(def.Sensors), len(def.Sensors))
		for _, id := range def.Sensors {
			fmt.Fprintf(out, "  %s\n", id)
		}
	}

	if !opts.Sync {
		return nil
	}

	log := logging.New(cfg.Logging, version)
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Short-lived CLI connection

	sync := sensorgroup.NewSynchronizer(sensorgroup.NewSQLiteRepository(db))
	sync.SetLogger(log)
	res := sync.Sync(ctx, defs)
	fmt.Fprintf(out, "synced=%d skipped=%d\n", res.Synced, res.Skipped)

	if res.Skipped > 0 {
		return fmt.Errorf("%d sensor group(s) failed to sync", res.Skipped)
	}
	return nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure. A closed
//     hub connection is an error so the supervisor restarts the process.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Furnace Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	// Reference data
	groupRepo := sensorgroup.NewSQLiteRepository(db)
	if err := syncSensorGroups(ctx, cfg, groupRepo, log); err != nil {
		return err
	}

	// Active sessions
	sessionRepo := session.NewSQLiteRepository(db, groupRepo)
	registry := session.NewRegistry(sessionRepo)
	registry.SetLogger(log)

	restored, err := registry.RestoreActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("restoring active sessions: %w", err)
	}
	log.Info("session registry initialised", "active_sessions", restored)

	// Optional mirrors
	var mirrors []telemetry.Mirror

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		mirrors = append(mirrors, telemetry.NewMQTTMirror(mqttClient))
	} else {
		log.Info("MQTT mirror disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		mirrors = append(mirrors, telemetry.NewInfluxMirror(influxClient))
	} else {
		log.Info("InfluxDB mirror disabled")
	}

	// Telemetry writer. Closed after the hub client stops and before the
	// mirrors disconnect, so queued readings still reach them.
	logRepo := telemetry.NewSQLiteRepository(db)
	writer := telemetry.NewWriter(logRepo, cfg.Ingest.QueueSize, mirrors...)
	writer.SetLogger(log)
	defer func() {
		log.Info("draining telemetry queue")
		writer.Close()
		stats := writer.Stats()
		log.Info("telemetry writer stopped",
			"written", stats.Written,
			"failed", stats.Failed,
			"mirror_failed", stats.MirrorFailed,
		)
	}()

	hub := ingest.NewClient(cfg.Hub, registry, writer)
	hub.SetLogger(log)

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			Logger:    log,
			Groups:    groupRepo,
			Sessions:  sessionRepo,
			PartNames: sessionRepo,
			Registry:  registry,
			Logs:      logRepo,
			Audit:     audit.NewSQLiteRepository(db),
			DB:        db,
			Ingest:    hub,
			Writer:    writer,
			Version:   version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}

		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	ingestDone := make(chan error, 1)
	go func() {
		ingestDone <- hub.Run(ctx)
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		<-ingestDone
	case err := <-ingestDone:
		switch {
		case err == nil:
			// Run only returns nil once ctx is done.
		case errors.Is(err, ingest.ErrAuthInvalid):
			log.Error("hub rejected access token, ingestion stopped", "error", err)
			<-ctx.Done()
		default:
			return fmt.Errorf("hub ingestion: %w", err)
		}
	}

	log.Info("shutdown signal received, cleaning up")
	log.Info("Furnace Core stopped")
	return nil
}

// openDatabase opens the configured SQLite file and applies migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// syncSensorGroups parses the configured group text and writes it to the
// store. Failed groups are logged and skipped; they never stop startup.
func syncSensorGroups(ctx context.Context, cfg *config.Config, store sensorgroup.Upserter, log *logging.Logger) error {
	text, err := cfg.SensorGroupsText()
	if err != nil {
		return fmt.Errorf("reading sensor groups: %w", err)
	}

	defs := sensorgroup.Parse(text)
	sync := sensorgroup.NewSynchronizer(store)
	sync.SetLogger(log)

	res := sync.Sync(ctx, defs)
	log.Info("sensor groups synchronised",
		"groups", len(defs),
		"synced", res.Synced,
		"skipped", res.Skipped,
	)
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FURNACE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
