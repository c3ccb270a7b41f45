package update

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	raucService   = "de.pengutronix.rauc"
	raucPath      = "/"
	raucInterface = "de.pengutronix.rauc.Installer"

	signalBufferSize = 8
)

// raucSlot mirrors one element of the GetSlotStatus reply.
type raucSlot struct {
	Name  string
	Props map[string]dbus.Variant
}

// RAUCInstaller deploys bundles through the RAUC daemon on the system bus.
//
// Install subscribes to the daemon's Completed signal before starting the
// install, so a fast install cannot finish unobserved.
type RAUCInstaller struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger Logger
}

// NewRAUCInstaller connects to the RAUC daemon on the system bus.
//
// Parameters:
//   - logger: Receives installer logs, may be nil
//
// Returns:
//   - *RAUCInstaller: The connected installer
//   - error: When the system bus is unreachable
func NewRAUCInstaller(logger Logger) (*RAUCInstaller, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}

	if logger == nil {
		logger = noopLogger{}
	}

	return &RAUCInstaller{
		conn:   conn,
		obj:    conn.Object(raucService, raucPath),
		logger: logger,
	}, nil
}

// Install deploys the bundle at path and blocks until the daemon reports
// completion.
//
// Parameters:
//   - ctx: Context for cancellation
//   - path: Filesystem path of the staged bundle
//
// Returns:
//   - error: When the install cannot be started or the daemon reports failure
func (r *RAUCInstaller) Install(ctx context.Context, path string) error {
	signals := make(chan *dbus.Signal, signalBufferSize)
	r.conn.Signal(signals)
	defer r.conn.RemoveSignal(signals)

	if err := r.conn.AddMatchSignal(
		dbus.WithMatchInterface(raucInterface),
		dbus.WithMatchMember("Completed"),
	); err != nil {
		return fmt.Errorf("subscribing to install completion: %w", err)
	}
	defer func() {
		_ = r.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(raucInterface),
			dbus.WithMatchMember("Completed"),
		)
	}()

	call := r.obj.CallWithContext(ctx, raucInterface+".InstallBundle", 0, path, map[string]dbus.Variant{})
	if call.Err != nil {
		return fmt.Errorf("starting install: %w", call.Err)
	}

	r.logger.Info("install started", "bundle", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-signals:
			if sig == nil || sig.Name != raucInterface+".Completed" {
				continue
			}

			var result int32
			if len(sig.Body) > 0 {
				result, _ = sig.Body[0].(int32)
			}
			if result != 0 {
				return fmt.Errorf("install failed: %s", r.lastError())
			}
			return nil
		}
	}
}

// NextSlot reports the bootname of the inactive rootfs slot, the slot an
// install deploys into.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - string: The target slot bootname
//   - error: When the slot status cannot be queried or no inactive rootfs
//     slot exists
func (r *RAUCInstaller) NextSlot(ctx context.Context) (string, error) {
	call := r.obj.CallWithContext(ctx, raucInterface+".GetSlotStatus", 0)
	if call.Err != nil {
		return "", fmt.Errorf("querying slot status: %w", call.Err)
	}

	var slots []raucSlot
	if err := call.Store(&slots); err != nil {
		return "", fmt.Errorf("decoding slot status: %w", err)
	}

	for _, slot := range slots {
		if variantString(slot.Props["class"]) != "rootfs" {
			continue
		}
		if variantString(slot.Props["state"]) == "booted" {
			continue
		}
		if bootname := variantString(slot.Props["bootname"]); bootname != "" {
			return bootname, nil
		}
	}

	return "", fmt.Errorf("no inactive rootfs slot found")
}

// BootSlot reports the bootname of the slot the system is booted from.
//
// Parameters:
//   - ctx: Context for cancellation (unused, property reads do not block)
//
// Returns:
//   - string: The booted slot bootname
//   - error: When the property cannot be read
func (r *RAUCInstaller) BootSlot(_ context.Context) (string, error) {
	variant, err := r.obj.GetProperty(raucInterface + ".BootSlot")
	if err != nil {
		return "", fmt.Errorf("querying boot slot: %w", err)
	}

	slot, ok := variant.Value().(string)
	if !ok {
		return "", fmt.Errorf("boot slot property is not a string")
	}

	return slot, nil
}

// Close releases the bus connection.
func (r *RAUCInstaller) Close() error {
	return r.conn.Close()
}

func (r *RAUCInstaller) lastError() string {
	variant, err := r.obj.GetProperty(raucInterface + ".LastError")
	if err != nil {
		return "unknown cause"
	}

	msg, ok := variant.Value().(string)
	if !ok || msg == "" {
		return "unknown cause"
	}

	return msg
}

func variantString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}
