// Package config handles loading and validating Furnace Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (FURNACE_*, HA_URL, HA_TOKEN,
//     SUPERVISOR_TOKEN, SENSOR_GROUPS)
//   - Validation of required fields
//   - Resolving the sensor-group definition text from an add-on options file
//
// Security Considerations:
//   - The hub access token should be set via HA_TOKEN or SUPERVISOR_TOKEN
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/furnace.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	text, err := cfg.SensorGroupsText()
package config
