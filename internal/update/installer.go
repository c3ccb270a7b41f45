package update

import (
	"context"
	"fmt"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/store"
)

// Installer deploys downloaded bundles and answers slot queries.
//
// The production implementation talks to RAUC over D-Bus; tests substitute
// an in-memory fake.
type Installer interface {
	// Install deploys the bundle at path and blocks until the install
	// completes or fails.
	Install(ctx context.Context, path string) error

	// NextSlot reports the slot the system will boot into after a
	// successful install.
	NextSlot(ctx context.Context) (string, error)

	// BootSlot reports the slot the system is currently booted from.
	BootSlot(ctx context.Context) (string, error)
}

// Rebooter restarts the system after a successful deployment.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// Publisher sends status reports upstream.
type Publisher interface {
	// SendObject publishes an aggregate and fails when the session is down.
	SendObject(ctx context.Context, interfaceName, path string, fields map[string]any) error

	// SendStored publishes an aggregate and spools it for redelivery when
	// the session is down.
	SendStored(ctx context.Context, interfaceName, path string, fields map[string]any) error
}

// Logger is the minimal logging interface the handler needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Handler.
type Options struct {
	// DownloadDirectory is where bundles are staged before installation.
	DownloadDirectory string

	// Store persists the pending update across the post-install reboot.
	Store *store.Store

	// Installer deploys bundles.
	Installer Installer

	// Rebooter restarts the system after a successful install. Optional;
	// when nil the device keeps running until an operator reboots it.
	Rebooter Rebooter

	// Logger receives handler logs. Optional.
	Logger Logger
}

func (o Options) validate() error {
	if o.DownloadDirectory == "" {
		return fmt.Errorf("update: download directory is required")
	}
	if o.Store == nil {
		return fmt.Errorf("update: store is required")
	}
	if o.Installer == nil {
		return fmt.Errorf("update: installer is required")
	}
	return nil
}

// Handler drives update requests through download, installation and the
// post-reboot acknowledgement.
type Handler struct {
	downloadDir string
	store       *store.Store
	installer   Installer
	rebooter    Rebooter
	logger      Logger
}

// New creates a Handler from the given options.
//
// Parameters:
//   - opts: Handler configuration
//
// Returns:
//   - *Handler: The configured handler
//   - error: When a required option is missing
func New(opts Options) (*Handler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Handler{
		downloadDir: opts.DownloadDirectory,
		store:       opts.Store,
		installer:   opts.Installer,
		rebooter:    opts.Rebooter,
		logger:      logger,
	}, nil
}
