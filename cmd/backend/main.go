package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/RijinRaju/healthcare-translation-backend/external/audio"
	configloader "github.com/RijinRaju/healthcare-translation-backend/external/config"
	repositoryimpl "github.com/RijinRaju/healthcare-translation-backend/external/repository"
	transcriberimpl "github.com/RijinRaju/healthcare-translation-backend/external/transcriber"
	translatorimpl "github.com/RijinRaju/healthcare-translation-backend/external/translator"
	webhookimpl "github.com/RijinRaju/healthcare-translation-backend/external/webhook"
	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
	"github.com/RijinRaju/healthcare-translation-backend/internal/relay"
	"github.com/RijinRaju/healthcare-translation-backend/internal/server"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 30 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "transcriber", cfg.TranscriberProvider)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching relay server")
	runServer(injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	translatorimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	relay.RegisterDI(injector)
	server.RegisterDI(injector)

	return injector
}

func runServer(injector do.Injector) {
	srv, err := do.Invoke[*server.Server](injector)
	if err != nil {
		slog.Error("failed to resolve server", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown: signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		slog.Error("shutdown: drain incomplete", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown: complete")
}
