// Package commands executes platform-issued device commands. The set is
// deliberately small: commands run with the agent's privileges, so every
// verb is allow-listed by name.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// RequestInterface is the server-owned interface command requests arrive on.
const RequestInterface = "io.edgehog.devicemanager.Commands"

// CommandReboot restarts the device.
const CommandReboot = "Reboot"

// ErrUnknownCommand indicates a command verb outside the allow-list.
var ErrUnknownCommand = errors.New("commands: unknown command")

// Runner spawns system commands. Swapped for a recorder in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// execRunner spawns real processes. The child is started but not awaited,
// a reboot never reports back, and a goroutine reaps it if it does exit.
type execRunner struct{}

func (execRunner) Run(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	go func() { _ = cmd.Wait() }()
	return nil
}

// Logger is the minimal logging interface the executor needs.
type Logger interface {
	Info(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// Executor runs platform-issued commands.
type Executor struct {
	runner Runner
	logger Logger
}

// New creates an Executor backed by real process spawning.
//
// Parameters:
//   - logger: Receives command logs, may be nil
func New(logger Logger) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Executor{runner: execRunner{}, logger: logger}
}

// NewWithRunner creates an Executor with a custom runner.
func NewWithRunner(runner Runner, logger Logger) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Executor{runner: runner, logger: logger}
}

// Execute runs the named command.
//
// Parameters:
//   - ctx: Context for cancellation
//   - command: The command verb as delivered by the platform
//
// Returns:
//   - error: ErrUnknownCommand for verbs outside the allow-list, or the
//     spawn failure
func (e *Executor) Execute(ctx context.Context, command string) error {
	switch command {
	case CommandReboot:
		return e.Reboot(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

// Reboot restarts the device. Also invoked directly by the update flow
// after a successful install.
func (e *Executor) Reboot(ctx context.Context) error {
	e.logger.Info("reboot requested")

	if err := e.runner.Run(ctx, "shutdown", "-r", "now"); err != nil {
		return fmt.Errorf("spawning shutdown: %w", err)
	}
	return nil
}
