package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/infrastructure/config"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

// newTestTelemetry builds a Telemetry with one SystemStatus entry and a
// recording fake sampler.
func newTestTelemetry(t *testing.T, cfgs []config.TelemetryInterfaceConfig) (*Telemetry, chan Payload) {
	t.Helper()

	queue := make(chan Payload, 32)
	tel := New(cfgs, queue, nil)
	tel.sampler = func(_ context.Context, name string) (*Payload, error) {
		if name != SystemStatusInterface {
			return nil, nil
		}
		return &Payload{SystemStatus: &SystemStatus{TaskCount: 1}}, nil
	}
	return tel, queue
}

func TestNewDefaults(t *testing.T) {
	tel, _ := newTestTelemetry(t, []config.TelemetryInterfaceConfig{
		{InterfaceName: SystemStatusInterface},
	})

	enabled, period, ok := tel.Schedule(SystemStatusInterface)
	if !ok {
		t.Fatal("Schedule() ok = false for configured interface")
	}
	if !enabled {
		t.Error("a configured interface should default to enabled")
	}
	if period != 60*time.Second {
		t.Errorf("period = %v, want 60s default", period)
	}
}

func TestNewExplicitValues(t *testing.T) {
	tel, _ := newTestTelemetry(t, []config.TelemetryInterfaceConfig{
		{InterfaceName: SystemStatusInterface, Enabled: boolPtr(false), Period: intPtr(10)},
	})

	enabled, period, ok := tel.Schedule(SystemStatusInterface)
	if !ok {
		t.Fatal("Schedule() ok = false for configured interface")
	}
	if enabled {
		t.Error("enabled = true, want configured false")
	}
	if period != 10*time.Second {
		t.Errorf("period = %v, want 10s", period)
	}
}

func TestScheduleUnknownInterface(t *testing.T) {
	tel, _ := newTestTelemetry(t, nil)

	if _, _, ok := tel.Schedule("io.edgehog.devicemanager.Missing"); ok {
		t.Error("Schedule() ok = true for unconfigured interface")
	}
}

func TestConfigEvent(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		value    any
		wantErr  bool
	}{
		{"enable true", EndpointEnable, true, false},
		{"enable false", EndpointEnable, false, false},
		{"enable unset reverts", EndpointEnable, nil, false},
		{"enable wrong type", EndpointEnable, "yes", true},
		{"period from json number", EndpointPeriodSeconds, float64(30), false},
		{"period from int", EndpointPeriodSeconds, 30, false},
		{"period unset reverts", EndpointPeriodSeconds, nil, false},
		{"period negative", EndpointPeriodSeconds, float64(-1), true},
		{"period wrong type", EndpointPeriodSeconds, "soon", true},
		{"unknown endpoint", "cadence", float64(30), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel, _ := newTestTelemetry(t, []config.TelemetryInterfaceConfig{
				{InterfaceName: SystemStatusInterface},
			})

			err := tel.ConfigEvent(SystemStatusInterface, tt.endpoint, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ConfigEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigEventUnknownInterface(t *testing.T) {
	tel, _ := newTestTelemetry(t, nil)

	err := tel.ConfigEvent("io.edgehog.devicemanager.Missing", EndpointEnable, true)
	if err == nil {
		t.Error("ConfigEvent() should reject an unconfigured interface")
	}
}

func TestConfigEventOverridesAndReverts(t *testing.T) {
	tel, _ := newTestTelemetry(t, []config.TelemetryInterfaceConfig{
		{InterfaceName: SystemStatusInterface, Enabled: boolPtr(true), Period: intPtr(60)},
	})

	// Override both fields
	if err := tel.ConfigEvent(SystemStatusInterface, EndpointEnable, false); err != nil {
		t.Fatalf("ConfigEvent(enable) error = %v", err)
	}
	if err := tel.ConfigEvent(SystemStatusInterface, EndpointPeriodSeconds, float64(5)); err != nil {
		t.Fatalf("ConfigEvent(periodSeconds) error = %v", err)
	}

	enabled, period, _ := tel.Schedule(SystemStatusInterface)
	if enabled {
		t.Error("enabled = true, want overridden false")
	}
	if period != 5*time.Second {
		t.Errorf("period = %v, want overridden 5s", period)
	}

	// Unset values revert to the configured defaults
	if err := tel.ConfigEvent(SystemStatusInterface, EndpointEnable, nil); err != nil {
		t.Fatalf("ConfigEvent(enable unset) error = %v", err)
	}
	if err := tel.ConfigEvent(SystemStatusInterface, EndpointPeriodSeconds, nil); err != nil {
		t.Fatalf("ConfigEvent(periodSeconds unset) error = %v", err)
	}

	enabled, period, _ = tel.Schedule(SystemStatusInterface)
	if !enabled {
		t.Error("enabled = false after revert, want default true")
	}
	if period != 60*time.Second {
		t.Errorf("period = %v after revert, want default 60s", period)
	}
}

func TestRunSamplesPeriodically(t *testing.T) {
	tel, queue := newTestTelemetry(t, []config.TelemetryInterfaceConfig{
		{InterfaceName: SystemStatusInterface, Enabled: boolPtr(true), Period: intPtr(60)},
	})

	// Shrink the period below what configuration can express
	d := 10 * time.Millisecond
	tel.schedules[SystemStatusInterface].defaultPeriod = d

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		tel.Run(ctx)
		close(done)
	}()

	// First sample is immediate, then one per period
	for i := 0; i < 3; i++ {
		select {
		case p := <-queue:
			if p.SystemStatus == nil {
				t.Fatalf("payload %d has no system status", i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for sample %d", i)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop on context cancellation")
	}
}

func TestRunAppliesOverridePromptly(t *testing.T) {
	tel, queue := newTestTelemetry(t, []config.TelemetryInterfaceConfig{
		{InterfaceName: SystemStatusInterface, Enabled: boolPtr(false), Period: intPtr(60)},
	})
	d := 10 * time.Millisecond
	tel.schedules[SystemStatusInterface].defaultPeriod = d

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tel.Run(ctx)

	// Disabled: nothing may arrive
	select {
	case <-queue:
		t.Fatal("received sample while disabled")
	case <-time.After(50 * time.Millisecond):
	}

	// Enabling must produce a sample without waiting out a sleep
	if err := tel.ConfigEvent(SystemStatusInterface, EndpointEnable, true); err != nil {
		t.Fatalf("ConfigEvent() error = %v", err)
	}

	select {
	case p := <-queue:
		if p.SystemStatus == nil {
			t.Fatal("payload has no system status")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no sample after enabling")
	}
}

// TestConcurrentOverrides hammers the schedule from several writers while a
// reader spins, relying on the race detector to catch locking mistakes.
func TestConcurrentOverrides(t *testing.T) {
	tel, _ := newTestTelemetry(t, []config.TelemetryInterfaceConfig{
		{InterfaceName: SystemStatusInterface},
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(on bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tel.ConfigEvent(SystemStatusInterface, EndpointEnable, on)
				_ = tel.ConfigEvent(SystemStatusInterface, EndpointPeriodSeconds, float64(j))
			}
		}(i%2 == 0)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 400; j++ {
			tel.Schedule(SystemStatusInterface)
		}
	}()

	wg.Wait()

	// The schedule must still be readable and self-consistent
	if _, _, ok := tel.Schedule(SystemStatusInterface); !ok {
		t.Error("Schedule() lost the interface after concurrent writes")
	}
}
