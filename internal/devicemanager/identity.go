package devicemanager

import (
	"context"
	"fmt"
)

// HardwareIDSource retrieves the device identity from the host, typically
// over the system bus. Consulted only when no device id is configured.
type HardwareIDSource interface {
	HardwareID(ctx context.Context) (string, error)
}

// resolveDeviceID returns the configured device id unchanged when present,
// otherwise asks the hardware source. No retry: identity failures abort
// startup.
func resolveDeviceID(ctx context.Context, configured string, source HardwareIDSource) (string, error) {
	if configured != "" {
		return configured, nil
	}

	if source == nil {
		return "", fmt.Errorf("%w: no device id configured and no hardware source available", ErrEmptyHardwareID)
	}

	id, err := source.HardwareID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEmptyHardwareID, err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: hardware source returned an empty id", ErrEmptyHardwareID)
	}

	return id, nil
}
