package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// bootIDPath is where the kernel exposes the per-boot identifier.
const bootIDPath = "/proc/sys/kernel/random/boot_id"

// SystemStatus is one sample of the SystemStatusInterface aggregate.
type SystemStatus struct {
	AvailMemoryBytes int64
	BootID           string
	TaskCount        int32
	UptimeMillis     int64
}

// Fields returns the aggregate in wire form, keyed by endpoint name.
func (s *SystemStatus) Fields() map[string]any {
	return map[string]any{
		"availMemoryBytes": s.AvailMemoryBytes,
		"bootId":           s.BootID,
		"taskCount":        s.TaskCount,
		"uptimeMillis":     s.UptimeMillis,
	}
}

// GetSystemStatus collects a system status sample.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - *SystemStatus: The sample
//   - error: If any of the underlying sources cannot be read
func GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading memory stats: %w", err)
	}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading host stats: %w", err)
	}

	bootID, err := readBootID()
	if err != nil {
		return nil, err
	}

	return &SystemStatus{
		AvailMemoryBytes: int64(vm.Available),
		BootID:           bootID,
		TaskCount:        int32(info.Procs),
		UptimeMillis:     int64(info.Uptime) * 1000,
	}, nil
}

// readBootID returns the kernel boot identifier.
func readBootID() (string, error) {
	data, err := os.ReadFile(bootIDPath)
	if err != nil {
		return "", fmt.Errorf("reading boot id: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
