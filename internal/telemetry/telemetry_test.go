package telemetry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range tests {
		if got := ParseLevel(raw); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestInitLoggerWritesFile(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	path := filepath.Join(t.TempDir(), "logs", "renovation.log")
	logger, cleanup, err := InitLogger(LoggerConfig{File: path, Level: "debug", Quiet: true})
	if err != nil {
		t.Fatalf("InitLogger returned error: %v", err)
	}
	logger.Debug("session created", "session_id", "abc")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"session_id":"abc"`) {
		t.Errorf("Expected structured entry in log file, got %s", data)
	}
}

func TestInitWithoutTraceFileIsNoop(t *testing.T) {
	providers, shutdown, err := Init(context.Background(), "")
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	defer shutdown()
	if providers.Tracer == nil || providers.Meter == nil {
		t.Fatal("Expected no-op providers")
	}
	_, span := providers.Tracer.Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("Expected a non-recording span")
	}
	span.End()
}
