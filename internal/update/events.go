package update

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Interface names of the update exchange.
const (
	// RequestInterface is the server-owned interface update requests arrive on.
	RequestInterface = "io.edgehog.devicemanager.OTARequest"

	// ResponseInterface is the device-owned interface status reports leave on.
	ResponseInterface = "io.edgehog.devicemanager.OTAResponse"

	// responsePath is the aggregate path of every status report.
	responsePath = "/response"
)

// Status values reported on ResponseInterface.
const (
	StatusInProgress = "InProgress"
	StatusDone       = "Done"
	StatusError      = "Error"
)

// Status codes detailing StatusError reports.
const (
	// CodeRequest marks a request that failed validation.
	CodeRequest = "OTAErrorRequest"

	// CodeNetwork marks a failed bundle download.
	CodeNetwork = "OTAErrorNetwork"

	// CodeDeploy marks a failed installation.
	CodeDeploy = "OTAErrorDeploy"

	// CodeBoot marks a reboot that came up in the wrong slot.
	CodeBoot = "OTAErrorBoot"

	// CodeInternal marks a state persistence failure.
	CodeInternal = "OTAErrorInternal"
)

// Event is one validated update request.
type Event struct {
	// UUID is the platform-assigned request identifier, echoed in every
	// status report.
	UUID uuid.UUID

	// URL is where the bundle is downloaded from.
	URL string
}

// ParseEvent validates the raw request aggregate.
//
// Parameters:
//   - data: The request fields as delivered ("uuid" and "url")
//
// Returns:
//   - Event: The validated request
//   - error: When a field is missing, the uuid does not parse, or the URL
//     is not http(s)
func ParseEvent(data map[string]any) (Event, error) {
	rawUUID, ok := data["uuid"].(string)
	if !ok {
		return Event{}, fmt.Errorf("update request has no uuid")
	}

	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return Event{}, fmt.Errorf("update request uuid %q: %w", rawUUID, err)
	}

	rawURL, ok := data["url"].(string)
	if !ok {
		return Event{}, fmt.Errorf("update request has no url")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Event{}, fmt.Errorf("update request url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Event{}, fmt.Errorf("update request url %q: unsupported scheme %q", rawURL, u.Scheme)
	}

	return Event{UUID: id, URL: rawURL}, nil
}

// responseFields builds one status report aggregate.
func responseFields(id, status, statusCode string) map[string]any {
	return map[string]any{
		"uuid":       id,
		"status":     status,
		"statusCode": statusCode,
	}
}
