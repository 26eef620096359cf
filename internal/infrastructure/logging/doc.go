// Package logging provides structured logging for Furnace Core.
//
// The package wraps log/slog so every component logs the same way:
// JSON in production, text when a human is watching, and a fixed set of
// default fields (service, version) on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	ingestLog := logger.With("component", "ingest")
//	ingestLog.Info("subscribed", "event_type", "state_changed")
//
// Never log the hub access token or broker credentials.
package logging
