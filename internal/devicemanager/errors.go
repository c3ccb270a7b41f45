package devicemanager

import "errors"

// Sentinel errors for the bootstrap sequence. Each maps to a different
// operator remedy, so startup failures stay tellable apart:
//
//	if errors.Is(err, devicemanager.ErrMissingArguments) {
//	    // the configuration lacks a secret, cache and pairing token
//	}
var (
	// ErrMissingArguments indicates no credential source is available:
	// neither an explicit secret, a cache file nor a pairing token.
	ErrMissingArguments = errors.New("devicemanager: missing arguments")

	// ErrEmptyHardwareID indicates the identity lookup yielded nothing.
	ErrEmptyHardwareID = errors.New("devicemanager: empty hardware id")

	// ErrCredentialCache indicates the credential cache file exists but
	// cannot be used. Startup treats this as fatal and never falls
	// through to re-registration.
	ErrCredentialCache = errors.New("devicemanager: credential cache unusable")

	// ErrPairing indicates device registration failed.
	ErrPairing = errors.New("devicemanager: registration failed")

	// ErrInitialTelemetry indicates the one-shot startup inventory
	// publish failed.
	ErrInitialTelemetry = errors.New("devicemanager: initial telemetry failed")
)
