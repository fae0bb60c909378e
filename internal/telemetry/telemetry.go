package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "renovation-ai"

// LoggerConfig describes where structured logs go.
type LoggerConfig struct {
	File  string
	Level string
	// Quiet drops the stdout copy, leaving only the file.
	Quiet bool
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// InitLogger initializes structured JSON logging, tee'd into a rotated file when one is set.
func InitLogger(cfg LoggerConfig) (*slog.Logger, func(), error) {
	var writers []io.Writer
	if !cfg.Quiet {
		writers = append(writers, os.Stdout)
	}

	cleanup := func() {}
	if file := strings.TrimSpace(cfg.File); file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, nil, fmt.Errorf("telemetry: create log directory: %w", err)
		}
		rotated := rotatingFile(file)
		writers = append(writers, rotated)
		cleanup = func() { _ = rotated.Close() }
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// Providers holds the tracer and meter handed to the workflow.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
}

// Noop returns providers that record nothing.
func Noop() Providers {
	return Providers{
		Tracer: tracenoop.NewTracerProvider().Tracer(serviceName),
		Meter:  metricnoop.NewMeterProvider().Meter(serviceName),
	}
}

// Init installs OpenTelemetry tracing and metrics exporting into traceFile.
// An empty traceFile yields no-op providers.
func Init(ctx context.Context, traceFile string) (Providers, func(), error) {
	traceFile = strings.TrimSpace(traceFile)
	if traceFile == "" {
		return Noop(), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(traceFile), 0o755); err != nil {
		return Providers{}, nil, fmt.Errorf("telemetry: create trace directory: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return Providers{}, nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	traceOut := rotatingFile(traceFile)
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
	if err != nil {
		return Providers{}, nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricsOut := rotatingFile(strings.TrimSuffix(traceFile, filepath.Ext(traceFile)) + ".metrics" + filepath.Ext(traceFile))
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsOut))
	if err != nil {
		return Providers{}, nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown meter provider", "error", err)
		}
		_ = traceOut.Close()
		_ = metricsOut.Close()
	}
	return Providers{Tracer: tp.Tracer(serviceName), Meter: mp.Meter(serviceName)}, shutdown, nil
}

func rotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}
