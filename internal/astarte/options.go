package astarte

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/store"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// reconnectInitialDelay and reconnectMaxDelay bound the backoff between
	// reconnection attempts.
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 60 * time.Second

	// inboundBufferSize bounds the channel between the paho handler and
	// Receive. When full, delivery backpressure is pushed to the broker.
	inboundBufferSize = 32

	// defaultQoS is the delivery guarantee for publications.
	defaultQoS = 1

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Options configures a session.
type Options struct {
	// Realm is the platform realm the device belongs to.
	Realm string

	// DeviceID identifies the device within the realm.
	DeviceID string

	// CredentialsSecret authenticates the session.
	CredentialsSecret string

	// BrokerURL is the broker address, e.g. "ssl://broker.example:8883".
	BrokerURL string

	// InterfacesDirectory holds the interface definition files.
	InterfacesDirectory string

	// Store, when set, backs SendStored: publications that cannot be
	// delivered are queued and flushed on the next (re)connect.
	Store *store.Store

	// Logger receives connection lifecycle and redelivery events. Optional.
	Logger Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when Options.Logger is nil.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// validate checks the options required to open a session.
func (o Options) validate() error {
	if o.Realm == "" {
		return fmt.Errorf("%w: realm is required", ErrConnectionFailed)
	}
	if o.DeviceID == "" {
		return fmt.Errorf("%w: device ID is required", ErrConnectionFailed)
	}
	if o.BrokerURL == "" {
		return fmt.Errorf("%w: broker URL is required", ErrConnectionFailed)
	}
	if o.InterfacesDirectory == "" {
		return fmt.Errorf("%w: interfaces directory is required", ErrConnectionFailed)
	}
	return nil
}

// DefaultBrokerURL derives a broker address from the pairing API base URL:
// same host, standard broker ports, TLS whenever the API uses https.
func DefaultBrokerURL(pairingURL string) (string, error) {
	u, err := url.Parse(pairingURL)
	if err != nil {
		return "", fmt.Errorf("parsing pairing URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("pairing URL %q has no host", pairingURL)
	}

	if u.Scheme == "https" {
		return fmt.Sprintf("ssl://%s:8883", u.Hostname()), nil
	}
	return fmt.Sprintf("tcp://%s:1883", u.Hostname()), nil
}

// buildClientOptions creates paho MQTT options for the session.
//
// This configures:
//   - Broker URL (tcp:// or ssl://)
//   - Client ID and credentials scoped to realm/device
//   - Auto-reconnect with exponential backoff
//   - Persistent session so the broker holds deliveries across reconnects
func buildClientOptions(o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(o.BrokerURL)

	// The platform scopes a device session by realm and device ID
	clientID := fmt.Sprintf("%s/%s", o.Realm, o.DeviceID)
	opts.SetClientID(clientID)
	opts.SetUsername(clientID)
	opts.SetPassword(o.CredentialsSecret)

	// Persistent session: the broker queues deliveries while disconnected
	opts.SetCleanSession(false)

	// Auto-reconnect with exponential backoff
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(reconnectInitialDelay)
	opts.SetMaxReconnectInterval(reconnectMaxDelay)

	// Connection timeout
	opts.SetConnectTimeout(defaultConnectTimeout)

	// Keepalive - broker sends PINGs to detect dead connections
	opts.SetKeepAlive(defaultKeepAlive)

	// TLS configuration for ssl:// brokers
	opts.SetTLSConfig(&tls.Config{
		MinVersion: tlsMinVersion,
	})

	return opts
}
