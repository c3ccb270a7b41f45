package devicemanager

import (
	"context"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/astarte"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/commands"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/telemetry"
	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/update"
)

// CommandRunner executes platform-issued command verbs. Invoked inline on
// the receive loop, so implementations must return promptly.
type CommandRunner interface {
	Execute(ctx context.Context, command string) error
}

// ConfigHandler applies telemetry schedule overrides. Invoked inline on the
// receive loop.
type ConfigHandler interface {
	ConfigEvent(interfaceName, endpoint string, value any) error
}

// router classifies each inbound message against a fixed rule table and
// dispatches it to exactly one destination. Messages matching no rule are
// logged and dropped, never fatal.
type router struct {
	updates   chan<- map[string]any
	commands  CommandRunner
	telemetry ConfigHandler
	logger    Logger
}

// dispatch routes one message.
//
// Update requests go through the bounded queue: when it is full the send
// blocks, holding back the receive loop until the update worker drains
// capacity. Commands and telemetry overrides run inline; their failures are
// logged and the loop moves on.
func (r *router) dispatch(ctx context.Context, msg *astarte.Message) {
	switch {
	case matchUpdateRequest(msg):
		select {
		case r.updates <- msg.Payload.Fields:
		case <-ctx.Done():
		}

	case matchCommand(msg):
		cmd := msg.Payload.Value.(string)
		if err := r.commands.Execute(ctx, cmd); err != nil {
			r.logger.Error("command execution failed", "command", cmd, "error", err)
		}

	case matchTelemetryConfig(msg):
		if err := r.telemetry.ConfigEvent(msg.Path[1], msg.Path[2], msg.Payload.Value); err != nil {
			r.logger.Error("telemetry config event rejected",
				"interface", msg.Path[1],
				"endpoint", msg.Path[2],
				"error", err,
			)
		}

	default:
		r.logger.Warn("unrecognised message dropped",
			"interface", msg.Interface,
			"path", msg.PathString(),
		)
	}
}

func matchUpdateRequest(msg *astarte.Message) bool {
	return msg.Interface == update.RequestInterface &&
		isRequestPath(msg.Path) &&
		msg.Payload.Kind == astarte.PayloadObject
}

func matchCommand(msg *astarte.Message) bool {
	if msg.Interface != commands.RequestInterface ||
		!isRequestPath(msg.Path) ||
		msg.Payload.Kind != astarte.PayloadIndividual {
		return false
	}

	_, ok := msg.Payload.Value.(string)
	return ok
}

func matchTelemetryConfig(msg *astarte.Message) bool {
	return msg.Interface == telemetry.ConfigInterface &&
		len(msg.Path) == 3 &&
		msg.Path[0] == "request" &&
		msg.Payload.Kind == astarte.PayloadIndividual
}

func isRequestPath(path []string) bool {
	return len(path) == 1 && path[0] == "request"
}
