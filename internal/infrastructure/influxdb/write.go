package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/telemetry"
)

// WriteSystemStatus mirrors one system status sample.
//
// The point is buffered and flushed on the batch schedule, so the call
// returns immediately whatever the state of the server.
//
// Parameters:
//   - deviceID: The device identity, used as the series tag
//   - status: The sample as reported upstream, nil is a no-op
func (c *Client) WriteSystemStatus(deviceID string, status *telemetry.SystemStatus) {
	if status == nil {
		return
	}

	c.WritePoint(
		"system_status",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"avail_memory_bytes": status.AvailMemoryBytes,
			"boot_id":            status.BootID,
			"task_count":         int64(status.TaskCount),
			"uptime_millis":      status.UptimeMillis,
		},
	)
}

// WritePoint buffers an arbitrary measurement, timestamped now.
//
// WriteSystemStatus covers the regular reporting path. This exists for
// anything else worth mirroring, keep tags low cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
