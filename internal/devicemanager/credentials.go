package devicemanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/infrastructure/config"
)

const cacheFilePermissions = 0600

// Registrar obtains a credentials secret for a device. Satisfied by
// pairing.Client.
type Registrar interface {
	Register(ctx context.Context, deviceID string) (string, error)
}

// credentialCachePath derives the per-device cache location. The file lives
// in the working directory so a device re-provisioned under a new id never
// picks up stale credentials.
func credentialCachePath(deviceID string) string {
	return deviceID + ".json"
}

// resolveCredentials returns the secret used to authenticate the transport
// session, trying strictly in order:
//
//  1. the secret from configuration, returned unchanged;
//  2. the cached secret at the per-device path; a cache that exists but
//     cannot be read or parsed is fatal, never silently re-registered over;
//  3. registration through the registrar when a pairing token is
//     configured; the obtained secret is persisted before it is returned.
//
// With none of the three available the resolution fails with
// ErrMissingArguments.
func resolveCredentials(ctx context.Context, cfg *config.Config, deviceID string, registrar Registrar) (string, error) {
	if cfg.CredentialsSecret != "" {
		return cfg.CredentialsSecret, nil
	}

	cachePath := credentialCachePath(deviceID)
	secret, found, err := readCachedSecret(cachePath)
	if err != nil {
		return "", err
	}
	if found {
		return secret, nil
	}

	if cfg.PairingToken == "" {
		return "", fmt.Errorf("%w: no credentials secret, cached secret or pairing token", ErrMissingArguments)
	}
	if registrar == nil {
		return "", fmt.Errorf("%w: pairing token configured but no registrar available", ErrPairing)
	}

	secret, err = registrar.Register(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPairing, err)
	}

	if err := writeCachedSecret(cachePath, secret); err != nil {
		return "", err
	}

	return secret, nil
}

// readCachedSecret loads the cache file. A missing file reports found=false;
// any other failure is fatal.
func readCachedSecret(path string) (secret string, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: reading %s: %w", ErrCredentialCache, path, err)
	}

	if err := json.Unmarshal(data, &secret); err != nil {
		return "", false, fmt.Errorf("%w: parsing %s: %w", ErrCredentialCache, path, err)
	}

	return secret, true, nil
}

// writeCachedSecret persists a freshly obtained secret as a JSON string so
// future startups skip registration.
func writeCachedSecret(path, secret string) error {
	data, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("%w: encoding secret: %w", ErrCredentialCache, err)
	}

	if err := os.WriteFile(path, data, cacheFilePermissions); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrCredentialCache, path, err)
	}

	return nil
}
