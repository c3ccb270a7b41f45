package pairing

import "errors"

// Sentinel errors for registration operations. Wrapped errors carry the
// operator remedy, since an expired token, a wrong realm and an unreachable
// endpoint each need a different fix.
var (
	// ErrTokenExpired indicates the pairing token expired before the
	// request was attempted.
	ErrTokenExpired = errors.New("pairing: token expired")

	// ErrUnauthorized indicates the pairing endpoint rejected the token.
	ErrUnauthorized = errors.New("pairing: token rejected")

	// ErrRegistrationFailed indicates the registration request could not
	// be completed.
	ErrRegistrationFailed = errors.New("pairing: registration failed")
)
