// Package supervisor reports agent state to the service manager over the
// sd_notify protocol. Every notification is best-effort: on devices not
// running under systemd the calls are silent no-ops, and delivery failures
// are logged at debug level and never escalated.
package supervisor

import (
	"github.com/coreos/go-systemd/v22/daemon"
)

// Logger is the minimal logging interface the notifier needs.
type Logger interface {
	Debug(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Notifier publishes startup progress to the service manager.
type Notifier struct {
	logger Logger
}

// New creates a Notifier.
//
// Parameters:
//   - logger: Receives delivery failures at debug level, may be nil
func New(logger Logger) *Notifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Notifier{logger: logger}
}

// Status publishes a STATUS line describing the current startup phase.
func (n *Notifier) Status(status string) {
	if _, err := daemon.SdNotify(false, "STATUS="+status); err != nil {
		n.logger.Debug("supervisor notification failed", "status", status, "error", err)
	}
}

// Ready signals that startup completed and the agent is serving.
func (n *Notifier) Ready() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		n.logger.Debug("supervisor readiness notification failed", "error", err)
	}
}
