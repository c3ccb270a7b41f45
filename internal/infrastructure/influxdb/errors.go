package influxdb

import "errors"

// Sentinels callers branch on with errors.Is. Startup in particular
// treats a disabled mirror as normal:
//
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // Run without the local mirror
//	}
var (
	// ErrNotConnected means the client was never connected or has been closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed means the server did not answer the initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled means the metrics mirror is switched off in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
