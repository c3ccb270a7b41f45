package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{
			name: "json to stdout",
			cfg:  config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		},
		{
			name: "text to stderr",
			cfg:  config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
		},
		{
			name: "empty config falls back to defaults",
			cfg:  config.LoggingConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if logger := New(tt.cfg, "1.0.0"); logger == nil {
				t.Fatal("New() returned nil")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "warning alias", input: "warning", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "uppercase accepted", input: "ERROR", want: slog.LevelError},
		{name: "unrecognised falls back to info", input: "nonsense", want: slog.LevelInfo},
		{name: "empty falls back to info", input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestRecordFields drives a logger into a buffer and checks that the
// default fields, the With attributes and the call-site pairs all land
// in the emitted record.
func TestRecordFields(t *testing.T) {
	var buf bytes.Buffer

	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}).WithAttrs([]slog.Attr{
		slog.String("service", "edgehog"),
		slog.String("version", "9.9.9"),
	})

	log := &Logger{Logger: slog.New(handler)}
	log.With("component", "transport").Info("session opened", "broker", "ssl://host:8883")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decoding record: %v", err)
	}

	want := map[string]string{
		"service":   "edgehog",
		"version":   "9.9.9",
		"component": "transport",
		"broker":    "ssl://host:8883",
		"msg":       "session opened",
	}
	for field, value := range want {
		if record[field] != value {
			t.Errorf("record[%q] = %v, want %q", field, record[field], value)
		}
	}
}

func TestWith_ReturnsNewLogger(t *testing.T) {
	parent := Default()

	child := parent.With("component", "update")
	if child == nil {
		t.Fatal("With() returned nil")
	}
	if child == parent {
		t.Error("With() returned the receiver, want a distinct logger")
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}
