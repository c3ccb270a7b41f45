package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/infrastructure/config"
)

// Interface names the telemetry subsystem publishes on or is configured by.
const (
	// SystemStatusInterface carries the periodic system status aggregate.
	SystemStatusInterface = "io.edgehog.devicemanager.SystemStatus"

	// SystemStatusPath is the aggregate path on SystemStatusInterface.
	SystemStatusPath = "/systemStatus"

	// OSInfoInterface carries the OS inventory properties.
	OSInfoInterface = "io.edgehog.devicemanager.OSInfo"

	// HardwareInfoInterface carries the hardware inventory properties.
	HardwareInfoInterface = "io.edgehog.devicemanager.HardwareInfo"

	// RuntimeInfoInterface carries the runtime inventory properties.
	RuntimeInfoInterface = "io.edgehog.devicemanager.RuntimeInfo"

	// ConfigInterface is the server-owned interface the platform uses to
	// override the telemetry schedule at runtime.
	ConfigInterface = "io.edgehog.devicemanager.config.Telemetry"
)

// Override endpoints of ConfigInterface.
const (
	EndpointEnable        = "enable"
	EndpointPeriodSeconds = "periodSeconds"
)

const (
	// defaultPeriod applies to configured interfaces without an explicit period.
	defaultPeriod = 60 * time.Second

	// idleWake bounds how long the sampler sleeps when nothing is scheduled,
	// so it notices schedule changes even if the change signal was consumed.
	idleWake = time.Minute
)

// schedule is the effective sampling state of one interface: configured
// defaults plus optional platform overrides.
type schedule struct {
	defaultEnabled bool
	defaultPeriod  time.Duration

	overrideEnabled *bool
	overridePeriod  *time.Duration

	// nextDue is maintained by the sampling loop. The zero value requests an
	// immediate sample; overrides reset it so changes take effect at once.
	nextDue time.Time
}

// enabled returns the override when set, the default otherwise.
func (s *schedule) enabled() bool {
	if s.overrideEnabled != nil {
		return *s.overrideEnabled
	}
	return s.defaultEnabled
}

// period returns the override when set, the default otherwise.
func (s *schedule) period() time.Duration {
	if s.overridePeriod != nil {
		return *s.overridePeriod
	}
	return s.defaultPeriod
}

// samplerFunc collects one payload for an interface. A nil payload with nil
// error means the interface has no collector.
type samplerFunc func(ctx context.Context, interfaceName string) (*Payload, error)

// Logger interface for telemetry logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Telemetry owns the sampling schedule and the sampling loop.
//
// Thread Safety:
//   - ConfigEvent and the accessors may be called concurrently with Run.
//   - The schedule lock is held only for bookkeeping, never across
//     collection or queue pushes.
type Telemetry struct {
	mu        sync.RWMutex
	schedules map[string]*schedule

	// changed wakes the sampling loop after an override. Capacity one:
	// coalescing wakeups is fine, the loop re-reads the whole schedule.
	changed chan struct{}

	queue   chan<- Payload
	sampler samplerFunc
	logger  Logger
}

// New builds the schedule from configuration defaults.
//
// A configured interface defaults to enabled unless the entry says otherwise,
// and to a 60 second period when none is given.
//
// Parameters:
//   - cfgs: Default schedule entries from configuration
//   - queue: Destination for produced payloads
//   - logger: Optional logger
//
// Returns:
//   - *Telemetry: Ready to serve overrides; call Run to start sampling
func New(cfgs []config.TelemetryInterfaceConfig, queue chan<- Payload, logger Logger) *Telemetry {
	if logger == nil {
		logger = noopLogger{}
	}

	schedules := make(map[string]*schedule, len(cfgs))
	for _, c := range cfgs {
		s := &schedule{
			defaultEnabled: true,
			defaultPeriod:  defaultPeriod,
		}
		if c.Enabled != nil {
			s.defaultEnabled = *c.Enabled
		}
		if c.Period != nil {
			s.defaultPeriod = time.Duration(*c.Period) * time.Second
		}
		schedules[c.InterfaceName] = s
	}

	t := &Telemetry{
		schedules: schedules,
		changed:   make(chan struct{}, 1),
		queue:     queue,
		logger:    logger,
	}
	t.sampler = t.defaultSample
	return t
}

// ConfigEvent applies one platform override.
//
// Endpoint "enable" takes a bool, "periodSeconds" a non-negative number. A
// nil value reverts the field to its configured default. Unknown interfaces
// and endpoints are rejected so the caller can log them.
//
// Parameters:
//   - interfaceName: The target interface, e.g. SystemStatusInterface
//   - endpoint: EndpointEnable or EndpointPeriodSeconds
//   - value: The override value, or nil to revert
//
// Returns:
//   - error: When the interface, endpoint or value type is not recognised
func (t *Telemetry) ConfigEvent(interfaceName, endpoint string, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.schedules[interfaceName]
	if !ok {
		return fmt.Errorf("telemetry: interface %s not configured", interfaceName)
	}

	switch endpoint {
	case EndpointEnable:
		switch v := value.(type) {
		case nil:
			s.overrideEnabled = nil
		case bool:
			s.overrideEnabled = &v
		default:
			return fmt.Errorf("telemetry: enable takes a bool, got %T", value)
		}

	case EndpointPeriodSeconds:
		switch v := value.(type) {
		case nil:
			s.overridePeriod = nil
		case float64:
			if v < 0 {
				return fmt.Errorf("telemetry: negative period %v", v)
			}
			d := time.Duration(v * float64(time.Second))
			s.overridePeriod = &d
		case int:
			if v < 0 {
				return fmt.Errorf("telemetry: negative period %v", v)
			}
			d := time.Duration(v) * time.Second
			s.overridePeriod = &d
		default:
			return fmt.Errorf("telemetry: periodSeconds takes a number, got %T", value)
		}

	default:
		return fmt.Errorf("telemetry: unknown endpoint %q", endpoint)
	}

	// Re-plan this interface immediately
	s.nextDue = time.Time{}

	select {
	case t.changed <- struct{}{}:
	default:
	}

	return nil
}

// Schedule reports the effective state of one interface.
//
// Returns:
//   - enabled: Whether sampling is active
//   - period: The effective sampling period
//   - ok: Whether the interface is configured at all
func (t *Telemetry) Schedule(interfaceName string) (enabled bool, period time.Duration, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, found := t.schedules[interfaceName]
	if !found {
		return false, 0, false
	}
	return s.enabled(), s.period(), true
}

// Run samples due interfaces until the context is cancelled.
//
// Enabled interfaces are sampled immediately on start and then once per
// period. Overrides wake the loop so they apply without waiting out a sleep.
func (t *Telemetry) Run(ctx context.Context) {
	for {
		due, wait := t.takeDue(time.Now())

		for _, name := range due {
			t.sampleOne(ctx, name)
		}

		select {
		case <-ctx.Done():
			return
		case <-t.changed:
		case <-time.After(wait):
		}
	}
}

// takeDue collects the interfaces due at now, advances their deadlines, and
// returns how long the loop may sleep until the next deadline.
func (t *Telemetry) takeDue(now time.Time) ([]string, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var due []string
	var earliest time.Time

	for name, s := range t.schedules {
		if !s.enabled() || s.period() <= 0 {
			s.nextDue = time.Time{}
			continue
		}

		if s.nextDue.IsZero() || !s.nextDue.After(now) {
			due = append(due, name)
			s.nextDue = now.Add(s.period())
		}

		if earliest.IsZero() || s.nextDue.Before(earliest) {
			earliest = s.nextDue
		}
	}

	if earliest.IsZero() {
		return due, idleWake
	}

	wait := time.Until(earliest)
	if wait < 0 {
		wait = 0
	}
	return due, wait
}

// sampleOne collects one interface and pushes the payload. Collection errors
// are logged and the sample skipped; the schedule keeps running.
func (t *Telemetry) sampleOne(ctx context.Context, name string) {
	p, err := t.sampler(ctx, name)
	if err != nil {
		t.logger.Warn("telemetry sample failed", "interface", name, "error", err)
		return
	}
	if p == nil {
		t.logger.Debug("no telemetry collector for interface", "interface", name)
		return
	}

	select {
	case t.queue <- *p:
	case <-ctx.Done():
	}
}

// defaultSample maps interface names to their collectors.
func (t *Telemetry) defaultSample(ctx context.Context, name string) (*Payload, error) {
	switch name {
	case SystemStatusInterface:
		status, err := GetSystemStatus(ctx)
		if err != nil {
			return nil, err
		}
		return &Payload{SystemStatus: status}, nil
	default:
		return nil, nil
	}
}
