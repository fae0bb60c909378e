package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"renovationAi/internal/app"
	"renovationAi/internal/config"
	"renovationAi/internal/server"
	"renovationAi/internal/studio"
	"renovationAi/web"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			slog.Error("refusing to start without credentials", "error", err)
		} else {
			slog.Error("server failed", "error", err)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("RENOVATION_CONFIG"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer application.Close()

	srv := server.New(server.Config{
		Port:           cfg.Port,
		RequestTimeout: cfg.RequestTimeout(),
	}, studio.Handler{Service: application.Service}, web.Handler())

	go func() {
		<-ctx.Done()
		application.Logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			application.Logger.Error("server shutdown error", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
