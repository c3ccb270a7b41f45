// Edgehog Device Runtime - Edge Device Agent
//
// This is the main entry point for the Edgehog device runtime, the agent
// that connects a Linux edge device to its management platform:
//   - Remote base-system updates via RAUC A/B slots
//   - Remote commands (reboot)
//   - Periodic system status and one-shot inventory telemetry
//   - Automatic device registration through the pairing API
//
// For the control flow, see the internal/devicemanager package docs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/astarte"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/commands"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/devicemanager"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/hardware"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/infrastructure/config"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/infrastructure/influxdb"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/infrastructure/logging"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/pairing"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/store"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/supervisor"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/update"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "/etc/edgehog/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Edgehog device runtime",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the agent state database
	st, err := store.Open(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer func() {
		log.Info("closing state store")
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing state store", "error", closeErr)
		}
	}()
	log.Info("state store opened", "path", cfg.StateFile)

	// Pairing client for one-time registration, only when a token is
	// configured. Devices with a credentials secret never need it.
	var registrar devicemanager.Registrar
	if cfg.PairingToken != "" {
		pairingClient, pairingErr := pairing.New(cfg.PairingURL, cfg.Realm, cfg.PairingToken)
		if pairingErr != nil {
			return fmt.Errorf("creating pairing client: %w", pairingErr)
		}
		registrar = pairingClient
	}

	// Command executor doubles as the update handler's rebooter
	executor := commands.New(log.With("component", "commands"))

	// RAUC installer over the system bus
	installer, err := update.NewRAUCInstaller(log.With("component", "rauc"))
	if err != nil {
		return fmt.Errorf("connecting to RAUC: %w", err)
	}
	defer func() {
		if closeErr := installer.Close(); closeErr != nil {
			log.Error("error closing RAUC connection", "error", closeErr)
		}
	}()
	log.Info("RAUC connected")

	updates, err := update.New(update.Options{
		DownloadDirectory: cfg.DownloadDirectory,
		Store:             st,
		Installer:         installer,
		Rebooter:          executor,
		Logger:            log.With("component", "update"),
	})
	if err != nil {
		return fmt.Errorf("creating update handler: %w", err)
	}

	// Connect to the local telemetry mirror (optional)
	var metrics devicemanager.MetricsSink
	if cfg.Metrics.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.Metrics)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.Metrics.URL,
			"org", cfg.Metrics.Org,
			"bucket", cfg.Metrics.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// The broker address defaults to the pairing host when not configured
	brokerURL := cfg.BrokerURL
	if brokerURL == "" {
		brokerURL, err = astarte.DefaultBrokerURL(cfg.PairingURL)
		if err != nil {
			return fmt.Errorf("deriving broker URL: %w", err)
		}
	}

	openSession := func(_ context.Context, deviceID, credentialsSecret string) (devicemanager.Session, error) {
		return astarte.Connect(astarte.Options{
			Realm:               cfg.Realm,
			DeviceID:            deviceID,
			CredentialsSecret:   credentialsSecret,
			BrokerURL:           brokerURL,
			InterfacesDirectory: cfg.InterfacesDirectory,
			Store:               st,
			Logger:              log.With("component", "transport"),
		})
	}

	mgr, err := devicemanager.New(devicemanager.Deps{
		Config:      cfg,
		OpenSession: openSession,
		Updates:     updates,
		Commands:    executor,
		HardwareID:  hardware.DBusSource{},
		Registrar:   registrar,
		Notifier:    supervisor.New(log.With("component", "supervisor")),
		Metrics:     metrics,
		Logger:      log,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating device manager: %w", err)
	}

	log.Info("initialisation complete, starting device manager", "broker", brokerURL)

	if err := mgr.Run(ctx); err != nil {
		return err
	}

	log.Info("Edgehog device runtime stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses EDGEHOG_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("EDGEHOG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
