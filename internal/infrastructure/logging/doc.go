// Package logging provides structured logging for knxnetdump.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler, level and default fields.
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("frame decoded", "service", "TUNNELLING_REQUEST", "channel", 21)
//	logger.Error("recording frame failed", "error", err)
//
// # Security
//
// Never log broker passwords or InfluxDB tokens.
package logging
