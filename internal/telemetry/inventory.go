package telemetry

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Inventories are the one-shot property sets published once per session,
// keyed by endpoint path. Each map feeds field-by-field individual sends on
// its interface.

// OSInfo collects the OSInfoInterface properties.
func OSInfo(ctx context.Context) (map[string]any, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading OS info: %w", err)
	}

	return map[string]any{
		"/osName":    info.Platform,
		"/osVersion": info.PlatformVersion,
	}, nil
}

// HardwareInfo collects the HardwareInfoInterface properties.
func HardwareInfo(ctx context.Context) (map[string]any, error) {
	arch, err := host.KernelArch()
	if err != nil {
		return nil, fmt.Errorf("reading machine architecture: %w", err)
	}

	cpus, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading CPU info: %w", err)
	}
	if len(cpus) == 0 {
		return nil, fmt.Errorf("no CPU info available")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading memory info: %w", err)
	}

	return map[string]any{
		"/cpu/architecture": arch,
		"/cpu/model":        cpus[0].Model,
		"/cpu/modelName":    cpus[0].ModelName,
		"/cpu/vendor":       cpus[0].VendorID,
		"/mem/totalBytes":   int64(vm.Total),
	}, nil
}

// RuntimeInfo reports the RuntimeInfoInterface properties for this agent
// build. It cannot fail; everything is known at build time.
func RuntimeInfo(version string) map[string]any {
	return map[string]any{
		"/name":        "edgehog-device-runtime",
		"/url":         "https://github.com/FrancescoVaiani/edgehog-device-runtime",
		"/version":     version,
		"/environment": runtime.Version(),
	}
}
