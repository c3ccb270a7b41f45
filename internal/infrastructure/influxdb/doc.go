// Package influxdb provides the local telemetry mirror.
//
// It wraps the official influxdb-client-go v2 library with the agent's
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// Devices in the field are often inspected on site, without platform
// access. When the mirror is enabled, every system status sample the agent
// reports upstream is also written to a local or site-local InfluxDB
// bucket, giving operators a queryable history of memory, task count and
// uptime.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.Metrics)
//	if err != nil {
//	    // errors.Is(err, influxdb.ErrDisabled) means the mirror is off
//	}
//	defer client.Close()
//
//	client.WriteSystemStatus("dev-1", status)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly. The mirror is an observer: its failures are logged and never
// interrupt reporting to the platform.
package influxdb
