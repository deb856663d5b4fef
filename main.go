package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"taskboard-service/adapters/db"
	"taskboard-service/adapters/rest/handlers"
	"taskboard-service/adapters/sqlite"
	"taskboard-service/config"
	"taskboard-service/core"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "taskboard server configuration file")
	flag.Parse()

	// local overrides, ignored when absent
	_ = godotenv.Load()

	cfg := config.MustLoad(configPath)
	log := mustMakeLogger(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	log.Info("starting taskboard server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closer, err := makeStorage(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Error("failed to close storage", "error", err)
		}
	}()

	service := core.NewService(storage)

	mux := http.NewServeMux()
	handlers.Register(mux, log, service, cfg.HTTP.Timeout, cfg.AgentSecret)

	server := http.Server{
		Addr:              cfg.HTTP.Address,
		ReadHeaderTimeout: cfg.HTTP.Timeout,
		Handler:           mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("taskboard http server is running", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func makeStorage(cfg config.Config, log *slog.Logger) (core.DB, io.Closer, error) {
	switch cfg.DBDriver {
	case "postgres":
		storage, err := db.New(log, cfg.DBAddress)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(); err != nil {
			_ = storage.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return storage, storage, nil
	case "sqlite":
		storage, err := sqlite.New(log, cfg.DBAddress)
		if err != nil {
			return nil, nil, err
		}
		return storage, storage, nil
	default:
		return nil, nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

func mustMakeLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
