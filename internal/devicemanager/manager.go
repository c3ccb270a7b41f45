package devicemanager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/astarte"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/infrastructure/config"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/telemetry"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/update"
)

// queueCapacity bounds the update and telemetry queues. A full update queue
// blocks the receive loop (backpressure over unbounded buffering).
const queueCapacity = 32

// Session is the transport session boundary. Send operations are safe for
// concurrent use from the receive loop, the workers and the telemetry
// forwarder; that guarantee is the session implementation's contract.
type Session interface {
	Receive(ctx context.Context) (*astarte.Message, error)
	Send(ctx context.Context, iface, path string, value any) error
	SendObject(ctx context.Context, iface, path string, fields map[string]any) error
	SendStored(ctx context.Context, iface, path string, fields map[string]any) error
	Close() error
}

// SessionFactory opens the transport session once identity and credentials
// are resolved.
type SessionFactory func(ctx context.Context, deviceID, credentialsSecret string) (Session, error)

// UpdateHandler drives update requests and the post-reboot resolution of an
// interrupted update.
type UpdateHandler interface {
	HandleEvent(ctx context.Context, pub update.Publisher, data map[string]any) error
	EnsurePendingResponse(ctx context.Context, pub update.Publisher) error
}

// StatusNotifier reports startup progress to the host supervisor.
// Notifications are fire-and-forget.
type StatusNotifier interface {
	Status(status string)
	Ready()
}

// MetricsSink mirrors system status samples into local storage.
type MetricsSink interface {
	WriteSystemStatus(deviceID string, status *telemetry.SystemStatus)
}

// InventorySource collects the one-shot startup inventories.
type InventorySource interface {
	OSInfo(ctx context.Context) (map[string]any, error)
	HardwareInfo(ctx context.Context) (map[string]any, error)
	RuntimeInfo() map[string]any
}

// Logger is the minimal logging interface the manager needs.
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

// noopNotifier drops supervisor notifications when none is wired.
type noopNotifier struct{}

func (noopNotifier) Status(string) {}
func (noopNotifier) Ready()        {}

// systemInventory is the production InventorySource, backed by the host.
type systemInventory struct {
	version string
}

func (s systemInventory) OSInfo(ctx context.Context) (map[string]any, error) {
	return telemetry.OSInfo(ctx)
}

func (s systemInventory) HardwareInfo(ctx context.Context) (map[string]any, error) {
	return telemetry.HardwareInfo(ctx)
}

func (s systemInventory) RuntimeInfo() map[string]any {
	return telemetry.RuntimeInfo(s.version)
}

// Deps carries the manager's collaborators. Config, OpenSession, Updates
// and Commands are required; the rest default to no-ops or host-backed
// implementations.
type Deps struct {
	Config      *config.Config
	OpenSession SessionFactory
	Updates     UpdateHandler
	Commands    CommandRunner

	// HardwareID resolves the identity when no device id is configured.
	HardwareID HardwareIDSource

	// Registrar performs registration when no secret or cache exists.
	Registrar Registrar

	// Notifier reports startup progress to the host supervisor.
	Notifier StatusNotifier

	// Metrics mirrors telemetry samples locally.
	Metrics MetricsSink

	// Inventory collects the startup inventories. Defaults to the host.
	Inventory InventorySource

	Logger Logger

	// Version is reported in the runtime inventory.
	Version string
}

func (d Deps) validate() error {
	if d.Config == nil {
		return fmt.Errorf("devicemanager: config is required")
	}
	if d.OpenSession == nil {
		return fmt.Errorf("devicemanager: session factory is required")
	}
	if d.Updates == nil {
		return fmt.Errorf("devicemanager: update handler is required")
	}
	if d.Commands == nil {
		return fmt.Errorf("devicemanager: command runner is required")
	}
	return nil
}

// Manager is the agent's bootstrap sequencer and control loop.
//
// Run resolves identity and credentials, opens the session, resolves any
// pending update, spawns the workers, publishes the startup inventories and
// then serves the receive loop until cancellation.
type Manager struct {
	deps Deps

	deviceID string
	session  Session

	telemetry *telemetry.Telemetry
	router    *router

	updateQueue    chan map[string]any
	telemetryQueue chan telemetry.Payload

	logger   Logger
	notifier StatusNotifier
}

// New wires the queues, the telemetry subsystem and the router.
//
// Parameters:
//   - deps: The manager's collaborators
//
// Returns:
//   - *Manager: The wired manager, ready for Run
//   - error: When a required dependency is missing
func New(deps Deps) (*Manager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if deps.Inventory == nil {
		deps.Inventory = systemInventory{version: deps.Version}
	}

	m := &Manager{
		deps:           deps,
		updateQueue:    make(chan map[string]any, queueCapacity),
		telemetryQueue: make(chan telemetry.Payload, queueCapacity),
		logger:         logger,
		notifier:       notifier,
	}

	m.telemetry = telemetry.New(deps.Config.Telemetry, m.telemetryQueue, logger)
	m.router = &router{
		updates:   m.updateQueue,
		commands:  deps.Commands,
		telemetry: m.telemetry,
		logger:    logger,
	}

	return m, nil
}

// Run drives the bootstrap sequence and serves until ctx is cancelled.
//
// The sequence is strictly ordered and never retried: identity,
// credentials, transport, pending-update resolution, workers, initial
// telemetry, receive loop. Any failure before the loop aborts startup so no
// partially initialised agent runs unattended. Once the loop is serving,
// per-message errors are logged and never crash the agent.
//
// Parameters:
//   - ctx: Cancelling it shuts the agent down
//
// Returns:
//   - error: The fatal startup failure, nil after a clean shutdown
func (m *Manager) Run(ctx context.Context) error {
	m.notifier.Status("Initializing")

	deviceID, err := resolveDeviceID(ctx, m.deps.Config.DeviceID, m.deps.HardwareID)
	if err != nil {
		return err
	}
	m.deviceID = deviceID
	m.logger.Info("device identity resolved", "device_id", deviceID)

	secret, err := resolveCredentials(ctx, m.deps.Config, deviceID, m.deps.Registrar)
	if err != nil {
		return err
	}

	session, err := m.deps.OpenSession(ctx, deviceID, secret)
	if err != nil {
		return fmt.Errorf("opening transport session: %w", err)
	}
	m.session = session
	defer func() {
		if err := session.Close(); err != nil {
			m.logger.Warn("closing session", "error", err)
		}
	}()
	m.logger.Info("transport session open", "realm", m.deps.Config.Realm)

	// An update interrupted by the activation reboot is resolved before any
	// new traffic is processed.
	if err := m.deps.Updates.EnsurePendingResponse(ctx, session); err != nil {
		return fmt.Errorf("resolving pending update: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(3)
	go func() {
		defer wg.Done()
		m.updateWorker(runCtx)
	}()
	go func() {
		defer wg.Done()
		m.telemetry.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		m.telemetryForwarder(runCtx)
	}()

	m.notifier.Status("Sending initial telemetry")
	if err := m.sendInitialTelemetry(ctx, session); err != nil {
		return fmt.Errorf("%w: %w", ErrInitialTelemetry, err)
	}

	m.notifier.Status("Running")
	m.notifier.Ready()
	m.logger.Info("startup complete, serving")

	m.receiveLoop(ctx, session)
	return nil
}

// receiveLoop is the single long-lived control loop: one blocking receive
// per iteration, one dispatch. Receive errors are logged and the loop
// continues; only cancellation or session closure end it.
func (m *Manager) receiveLoop(ctx context.Context, session Session) {
	for {
		msg, err := session.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, astarte.ErrClosed) {
				return
			}
			m.logger.Error("receive failed", "error", err)
			continue
		}

		m.router.dispatch(ctx, msg)
	}
}

// updateWorker drains the update queue in arrival order, one request at a
// time. Processing errors are logged; the worker exits only on
// cancellation.
func (m *Manager) updateWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-m.updateQueue:
			if err := m.deps.Updates.HandleEvent(ctx, m.session, data); err != nil {
				m.logger.Error("update processing failed", "error", err)
			}
		}
	}
}

// telemetryForwarder drains the telemetry queue in arrival order and
// forwards each sample upstream.
func (m *Manager) telemetryForwarder(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-m.telemetryQueue:
			m.publishTelemetry(ctx, payload)
		}
	}
}

// publishTelemetry forwards one sample upstream and tees it into the local
// mirror. Publish failures are logged and the sample dropped, not retried.
func (m *Manager) publishTelemetry(ctx context.Context, p telemetry.Payload) {
	if p.SystemStatus == nil {
		return
	}

	err := m.session.SendObject(ctx, telemetry.SystemStatusInterface, telemetry.SystemStatusPath, p.SystemStatus.Fields())
	if err != nil {
		m.logger.Warn("telemetry publish failed", "error", err)
	}

	if m.deps.Metrics != nil {
		m.deps.Metrics.WriteSystemStatus(m.deviceID, p.SystemStatus)
	}
}

// sendInitialTelemetry publishes the OS, hardware and runtime inventories
// once. Unlike periodic publishing, any failure here is fatal: an agent
// that cannot report its inventory is not considered started.
func (m *Manager) sendInitialTelemetry(ctx context.Context, session Session) error {
	osInfo, err := m.deps.Inventory.OSInfo(ctx)
	if err != nil {
		return fmt.Errorf("collecting os inventory: %w", err)
	}
	if err := sendInventory(ctx, session, telemetry.OSInfoInterface, osInfo); err != nil {
		return err
	}

	hwInfo, err := m.deps.Inventory.HardwareInfo(ctx)
	if err != nil {
		return fmt.Errorf("collecting hardware inventory: %w", err)
	}
	if err := sendInventory(ctx, session, telemetry.HardwareInfoInterface, hwInfo); err != nil {
		return err
	}

	return sendInventory(ctx, session, telemetry.RuntimeInfoInterface, m.deps.Inventory.RuntimeInfo())
}

// sendInventory publishes each inventory field to its path, sequentially.
func sendInventory(ctx context.Context, session Session, interfaceName string, fields map[string]any) error {
	for path, value := range fields {
		if err := session.Send(ctx, interfaceName, path, value); err != nil {
			return fmt.Errorf("publishing %s%s: %w", interfaceName, path, err)
		}
	}
	return nil
}
