package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Furnace Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Hub          HubConfig          `yaml:"hub"`
	SensorGroups SensorGroupsConfig `yaml:"sensor_groups"`
	Ingest       IngestConfig       `yaml:"ingest"`
	API          APIConfig          `yaml:"api"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HubConfig contains the home-automation hub websocket settings.
type HubConfig struct {
	// URL is the websocket endpoint, e.g. ws://supervisor/core/websocket.
	URL string `yaml:"url"`

	// Token is the long-lived access token sent in the auth message.
	Token string `yaml:"token"`

	// EventType is the event category requested in subscribe_events.
	// Only "state_changed" carries sensor readings, so it is the only
	// accepted value.
	// Default: "state_changed"
	EventType string `yaml:"event_type"`

	// HandshakeTimeout bounds the websocket opening handshake (seconds).
	HandshakeTimeout int `yaml:"handshake_timeout"`
}

// SensorGroupsConfig describes where the sensor-group definition text comes from.
type SensorGroupsConfig struct {
	// Text is the raw definition blob (inline or block grammar).
	Text string `yaml:"text"`

	// OptionsFile is a JSON options file whose "sensor_groups" key takes
	// precedence over Text when the file exists (add-on deployments).
	OptionsFile string `yaml:"options_file"`
}

// IngestConfig contains telemetry ingestion settings.
type IngestConfig struct {
	// QueueSize is the capacity of the telemetry write queue.
	// Enqueue blocks once the queue is full.
	QueueSize int `yaml:"queue_size"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// MQTTConfig contains MQTT broker connection settings.
// When enabled, every persisted reading is mirrored to the broker.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// envOverrides lists every environment variable that can override the file.
// Pointer fields distinguish "unset" from "set to the zero value".
type envOverrides struct {
	DatabasePath      *string `env:"FURNACE_DATABASE_PATH"`
	APIHost           *string `env:"FURNACE_API_HOST"`
	APIPort           *int    `env:"FURNACE_API_PORT"`
	LogLevel          *string `env:"FURNACE_LOG_LEVEL"`
	MQTTHost          *string `env:"FURNACE_MQTT_HOST"`
	MQTTUsername      *string `env:"FURNACE_MQTT_USERNAME"`
	MQTTPassword      *string `env:"FURNACE_MQTT_PASSWORD"`
	InfluxDBToken     *string `env:"FURNACE_INFLUXDB_TOKEN"`
	HubURL            *string `env:"FURNACE_HUB_URL"`
	HomeAssistantURL  *string `env:"HA_URL"`
	HomeAssistantAuth *string `env:"HA_TOKEN"`
	SupervisorToken   *string `env:"SUPERVISOR_TOKEN"`
	SensorGroups      *string `env:"SENSOR_GROUPS"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults plus environment
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/furnace.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Hub: HubConfig{
			URL:              "ws://supervisor/core/websocket",
			EventType:        "state_changed",
			HandshakeTimeout: 10,
		},
		SensorGroups: SensorGroupsConfig{
			OptionsFile: "/data/options.json",
		},
		Ingest: IngestConfig{
			QueueSize: 256,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "furnace-core",
			},
			QoS:         1,
			TopicPrefix: "furnace",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	setString(&cfg.Database.Path, o.DatabasePath)
	setString(&cfg.API.Host, o.APIHost)
	if o.APIPort != nil {
		cfg.API.Port = *o.APIPort
	}
	setString(&cfg.Logging.Level, o.LogLevel)
	setString(&cfg.MQTT.Broker.Host, o.MQTTHost)
	setString(&cfg.MQTT.Auth.Username, o.MQTTUsername)
	setString(&cfg.MQTT.Auth.Password, o.MQTTPassword)
	setString(&cfg.InfluxDB.Token, o.InfluxDBToken)

	// HA_URL is the http(s) base URL of Home Assistant; FURNACE_HUB_URL wins over it.
	if o.HomeAssistantURL != nil && *o.HomeAssistantURL != "" {
		cfg.Hub.URL = HubURLFromBase(*o.HomeAssistantURL)
	}
	setString(&cfg.Hub.URL, o.HubURL)

	// HA_TOKEN wins over the add-on supervisor token.
	setString(&cfg.Hub.Token, o.SupervisorToken)
	setString(&cfg.Hub.Token, o.HomeAssistantAuth)

	if o.SensorGroups != nil {
		cfg.SensorGroups.Text = *o.SensorGroups
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

// HubURLFromBase turns an http(s) base URL into the hub websocket endpoint.
//
// Example: "http://homeassistant.local:8123" -> "ws://homeassistant.local:8123/api/websocket"
func HubURLFromBase(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(base, "http") {
		base = "ws" + strings.TrimPrefix(base, "http")
	}
	return base + "/api/websocket"
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Hub.URL == "" {
		errs = append(errs, "hub.url is required")
	}
	if c.Hub.EventType != "state_changed" {
		errs = append(errs, fmt.Sprintf("hub.event_type %q not supported, must be state_changed", c.Hub.EventType))
	}

	if c.Ingest.QueueSize < 1 {
		errs = append(errs, "ingest.queue_size must be at least 1")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SensorGroupsText resolves the sensor-group definition text.
//
// If the options file exists its "sensor_groups" string is used, otherwise
// the configured text (possibly set from SENSOR_GROUPS) is returned.
//
// Returns:
//   - string: Raw definition text, possibly empty
//   - error: If the options file exists but cannot be read or decoded
func (c *Config) SensorGroupsText() (string, error) {
	if c.SensorGroups.OptionsFile == "" {
		return c.SensorGroups.Text, nil
	}

	data, err := os.ReadFile(c.SensorGroups.OptionsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.SensorGroups.Text, nil
		}
		return "", fmt.Errorf("reading options file: %w", err)
	}

	var opts struct {
		SensorGroups string `json:"sensor_groups"`
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return "", fmt.Errorf("parsing options file: %w", err)
	}
	return opts.SensorGroups, nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetHandshakeTimeout returns the websocket handshake timeout as a Duration.
func (h HubConfig) GetHandshakeTimeout() time.Duration {
	return time.Duration(h.HandshakeTimeout) * time.Second
}
