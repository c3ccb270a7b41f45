package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Edgehog device runtime.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	// Realm is the Astarte realm this device belongs to.
	Realm string `yaml:"realm"`

	// DeviceID is the device identifier. When empty, the runtime asks the
	// OS-level hardware-ID service over the system bus.
	DeviceID string `yaml:"device_id"`

	// CredentialsSecret authenticates the device with the platform. When
	// empty, the runtime falls back to the on-disk cache and then to
	// registration with PairingToken.
	CredentialsSecret string `yaml:"credentials_secret"`

	// PairingURL is the base URL of the pairing API.
	PairingURL string `yaml:"pairing_url"`

	// PairingToken authorises one-time device registration. Only consulted
	// when no credentials secret is available.
	PairingToken string `yaml:"pairing_token"`

	// BrokerURL overrides the transport broker address. When empty it is
	// derived from PairingURL.
	BrokerURL string `yaml:"broker_url"`

	// InterfacesDirectory holds the interface definition JSON files the
	// device announces and validates against.
	InterfacesDirectory string `yaml:"interfaces_directory"`

	// StateFile is the path of the agent state database (pending update
	// record, stored publications).
	StateFile string `yaml:"state_file"`

	// DownloadDirectory is where update bundles are downloaded before
	// installation.
	DownloadDirectory string `yaml:"download_directory"`

	// Telemetry lists the default per-interface telemetry schedule. The
	// platform can override entries at runtime.
	Telemetry []TelemetryInterfaceConfig `yaml:"telemetry"`

	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TelemetryInterfaceConfig is the default sampling schedule for one telemetry
// interface. Enabled and Period are pointers so that "not set" is
// distinguishable from false/zero, mirroring the runtime override semantics.
type TelemetryInterfaceConfig struct {
	InterfaceName string `yaml:"interface_name"`
	Enabled       *bool  `yaml:"enabled"`
	Period        *int   `yaml:"period"` // seconds
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig contains the optional local InfluxDB telemetry mirror
// settings. Disabled by default; the agent functions fully without it.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: EDGEHOG_KEY
// For example: EDGEHOG_REALM, EDGEHOG_CREDENTIALS_SECRET
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		InterfacesDirectory: "/usr/share/edgehog/interfaces",
		StateFile:           "/var/lib/edgehog/state.db",
		DownloadDirectory:   "/var/tmp/edgehog/updates",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			BatchSize:     1000,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: EDGEHOG_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EDGEHOG_REALM"); v != "" {
		cfg.Realm = v
	}
	if v := os.Getenv("EDGEHOG_DEVICE_ID"); v != "" {
		cfg.DeviceID = v
	}

	// Secrets are the usual reason to prefer environment over file
	if v := os.Getenv("EDGEHOG_CREDENTIALS_SECRET"); v != "" {
		cfg.CredentialsSecret = v
	}
	if v := os.Getenv("EDGEHOG_PAIRING_TOKEN"); v != "" {
		cfg.PairingToken = v
	}

	if v := os.Getenv("EDGEHOG_PAIRING_URL"); v != "" {
		cfg.PairingURL = v
	}
	if v := os.Getenv("EDGEHOG_BROKER_URL"); v != "" {
		cfg.BrokerURL = v
	}
	if v := os.Getenv("EDGEHOG_STATE_FILE"); v != "" {
		cfg.StateFile = v
	}
	if v := os.Getenv("EDGEHOG_METRICS_TOKEN"); v != "" {
		cfg.Metrics.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Realm == "" {
		errs = append(errs, "realm is required")
	}

	if c.PairingURL == "" {
		errs = append(errs, "pairing_url is required")
	}

	if c.InterfacesDirectory == "" {
		errs = append(errs, "interfaces_directory is required")
	}

	if c.StateFile == "" {
		errs = append(errs, "state_file is required")
	}

	if c.DownloadDirectory == "" {
		errs = append(errs, "download_directory is required")
	}

	for i, t := range c.Telemetry {
		if t.InterfaceName == "" {
			errs = append(errs, fmt.Sprintf("telemetry[%d].interface_name is required", i))
		}
		if t.Period != nil && *t.Period <= 0 {
			errs = append(errs, fmt.Sprintf("telemetry[%d].period must be positive", i))
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.URL == "" {
			errs = append(errs, "metrics.url is required when metrics is enabled")
		}
		if c.Metrics.Org == "" {
			errs = append(errs, "metrics.org is required when metrics is enabled")
		}
		if c.Metrics.Bucket == "" {
			errs = append(errs, "metrics.bucket is required when metrics is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetFlushInterval returns the metrics flush interval as a Duration.
func (c *MetricsConfig) GetFlushInterval() time.Duration {
	return time.Duration(c.FlushInterval) * time.Second
}
