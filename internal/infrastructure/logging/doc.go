// Package logging provides the structured logger shared by the whole
// agent.
//
// It is a thin wrapper over the standard library's log/slog: records
// are key-value pairs, emitted as JSON for machine collection or as
// text for a terminal. Two fields, service and version, are stamped on
// every record so a collector fed by several units can attribute them.
//
// # Configuration
//
// The logging section of config.yaml controls the logger:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("download complete", "uuid", id, "bytes", n)
//
// Subsystems receive children carrying a component field:
//
//	updateLog := log.With("component", "update")
//
// # Security
//
// The credentials secret and the pairing token must never be logged,
// not even at debug level. Log a short prefix when an identifier is
// needed:
//
//	log.Info("credentials loaded", "secret_prefix", secret[:4]+"...")
package logging
