package astarte

import "errors"

// Domain-specific errors for session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("astarte: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("astarte: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("astarte: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("astarte: subscribe failed")

	// ErrUnknownInterface is returned when publishing to an interface the
	// device does not declare.
	ErrUnknownInterface = errors.New("astarte: unknown interface")

	// ErrAggregationMismatch is returned when an individual send targets an
	// object-aggregated interface or vice versa.
	ErrAggregationMismatch = errors.New("astarte: aggregation mismatch")

	// ErrMalformedMessage is returned by Receive for inbound messages that
	// cannot be parsed. The session stays usable.
	ErrMalformedMessage = errors.New("astarte: malformed message")

	// ErrClosed is returned by Receive after Close.
	ErrClosed = errors.New("astarte: client closed")
)
