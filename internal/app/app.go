// Package app wires configuration into a running studio. Both the HTTP server
// and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"renovationAi/internal/config"
	"renovationAi/internal/events"
	"renovationAi/internal/llm"
	"renovationAi/internal/media"
	"renovationAi/internal/report"
	"renovationAi/internal/storage"
	"renovationAi/internal/studio"
	"renovationAi/internal/telemetry"
	"renovationAi/internal/vision"
	"renovationAi/internal/workflow"
)

// Options adjusts wiring for the calling binary.
type Options struct {
	// QuietLogs keeps stdout free for command output.
	QuietLogs bool
}

// App holds the wired components and their cleanup.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Service *studio.Service
	Store   storage.Store

	closers []func()
}

// New builds every component named in cfg.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	logger, closeLogs, err := telemetry.InitLogger(telemetry.LoggerConfig{
		File:  cfg.Telemetry.LogFile,
		Level: cfg.Telemetry.LogLevel,
		Quiet: opts.QuietLogs,
	})
	if err != nil {
		return nil, err
	}
	a.Logger = logger
	a.closers = append(a.closers, closeLogs)

	providers, closeTelemetry, err := telemetry.Init(ctx, cfg.Telemetry.TraceFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeTelemetry)

	text, err := newTextClient(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	editor, err := newEditor(ctx, cfg, text)
	if err != nil {
		a.Close()
		return nil, err
	}

	var annotator workflow.Annotator
	if text != nil {
		annotator = workflow.NewLLMAnnotator(text, cfg.Text.Model)
	} else {
		annotator = workflow.NewHeuristic()
		logger.Info("annotator ready: heuristic fallback")
	}

	orchestrator := workflow.New(editor, annotator, workflow.Options{
		ExtractMaterials: cfg.Report.ExtractMaterials && text != nil,
		IncludeRationale: cfg.Report.IncludeRationale,
		StepTimeout:      cfg.RequestTimeout(),
		Logger:           logger,
		Tracer:           providers.Tracer,
		Meter:            providers.Meter,
	})

	uploader, err := newUploader(ctx, cfg.Media, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.Service = studio.NewService(studio.Deps{
		Registry:       studio.NewRegistry(cfg.MaxSessions),
		Generator:      orchestrator,
		Reports:        report.NewBuilder(cfg.Report.SearchURLTemplate, cfg.Report.IncludeNextSteps),
		Uploader:       uploader,
		Store:          store,
		Events:         events.NewBroker(),
		Logger:         logger,
		MaxDimension:   cfg.MaxImageDimension,
		SearchTemplate: cfg.Report.SearchURLTemplate,
	})

	logger.Info("studio ready",
		"editor", cfg.Editor.Backend,
		"text_provider", cfg.Text.Provider,
		"database", cfg.DatabaseURL != "",
		"max_sessions", cfg.MaxSessions,
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// newTextClient returns nil when no text provider is configured.
func newTextClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.Text.Provider {
	case "openai":
		return llm.NewOpenAIClient(cfg.Text.OpenAIAPIKey, cfg.Text.Model, "", cfg.RequestTimeout()), nil
	case "gemini":
		geminiCfg := llm.GeminiConfig{
			APIKey:  cfg.Google.APIKey,
			Model:   cfg.Text.Model,
			Timeout: cfg.RequestTimeout(),
		}
		if cfg.Google.ServiceAccountJSON != "" {
			ts, err := llm.TokenSourceFromJSON(ctx, cfg.Google.ServiceAccountJSON)
			if err != nil {
				return nil, err
			}
			geminiCfg.TokenSource = ts
		}
		return llm.NewGeminiClient(geminiCfg), nil
	}
	return nil, nil
}

func newEditor(ctx context.Context, cfg config.Config, text llm.Client) (vision.ImageEditor, error) {
	backend, err := vision.ParseBackend(cfg.Editor.Backend)
	if err != nil {
		return nil, err
	}
	editor, err := vision.NewEditor(ctx, vision.Config{
		Backend:     backend,
		APIKey:      cfg.Google.APIKey,
		Model:       cfg.Editor.Model,
		Temperature: cfg.Editor.Temperature,
		Imagen: vision.VertexImagenConfig{
			ProjectID:          cfg.Editor.Imagen.ProjectID,
			Location:           cfg.Editor.Imagen.Location,
			Model:              cfg.Editor.Imagen.Model,
			EditMode:           cfg.Editor.Imagen.EditMode,
			APIKey:             cfg.Google.APIKey,
			ServiceAccount:     cfg.Editor.Imagen.ServiceAccountFile,
			ServiceAccountJSON: cfg.Google.ServiceAccountJSON,
		},
		Render: vision.RenderConfig{
			Endpoint: cfg.Editor.Render.Endpoint,
			APIKey:   cfg.Editor.Render.APIKey,
			Strength: cfg.Editor.Render.Strength,
			Steps:    cfg.Editor.Render.Steps,
			Format:   cfg.Editor.Render.Format,
		},
		PromptWriter: text,
		Timeout:      cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("init image editor: %w", err)
	}
	return editor, nil
}

func newUploader(ctx context.Context, cfg config.MediaConfig, logger *slog.Logger) (media.Uploader, error) {
	if cfg.Bucket != "" && cfg.Region != "" {
		uploader, err := media.NewUploader(ctx, media.Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			PublicURL:       cfg.PublicURL,
			KeyPrefix:       cfg.KeyPrefix,
			ForcePathStyle:  cfg.ForcePathStyle,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init media uploader: %w", err)
		}
		return uploader, nil
	}

	uploader, err := media.NewLocalUploader(cfg.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("init local media storage: %w", err)
	}
	logger.Info("media uploader: using local storage (S3 config missing)", "dir", uploader.BaseDir)
	return uploader, nil
}
