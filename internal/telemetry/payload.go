package telemetry

// Payload is one produced telemetry sample on its way to the publish task.
// Exactly one variant field is set.
type Payload struct {
	SystemStatus *SystemStatus
}
