package hardware

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	deviceService   = "io.edgehog.Device"
	devicePath      = "/io/edgehog/Device"
	deviceInterface = "io.edgehog.Device1"
)

// DBusSource resolves the hardware identity through io.edgehog.Device1.
type DBusSource struct{}

// HardwareID queries the board support service for the device identity.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - string: The hardware identity
//   - error: When the bus is unreachable, the call fails, or the service
//     answers with an empty id
func (DBusSource) HardwareID(ctx context.Context) (string, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return "", fmt.Errorf("connecting to system bus: %w", err)
	}
	defer conn.Close() //nolint:errcheck // best-effort cleanup

	var id string
	obj := conn.Object(deviceService, devicePath)
	if err := obj.CallWithContext(ctx, deviceInterface+".GetHardwareId", 0, "").Store(&id); err != nil {
		return "", fmt.Errorf("querying hardware id: %w", err)
	}

	if id == "" {
		return "", fmt.Errorf("device service returned an empty hardware id")
	}

	return id, nil
}
