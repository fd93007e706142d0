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

	"github.com/joho/godotenv"

	"github.com/tabledock/tabledock/internal/config"
	"github.com/tabledock/tabledock/internal/core"
	"github.com/tabledock/tabledock/internal/logging"
	"github.com/tabledock/tabledock/internal/store/mysql"
	"github.com/tabledock/tabledock/internal/web"
)

func main() {
	// Load .env for local development; real deployments set the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := mysql.Open(ctx, mysql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	cancel()
	if err != nil {
		slog.Error("database connection failed",
			"host", cfg.Database.Host,
			"database", cfg.Database.Name,
			"error", err,
		)
		os.Exit(1)
	}
	defer store.Close()

	policy, err := core.ParseInvalidCellPolicy(cfg.Upload.InvalidPolicy)
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	service := core.NewService(store, core.ServiceOptions{
		BatchSize:     cfg.Upload.BatchSize,
		Policy:        policy,
		DateLayouts:   cfg.Upload.DateFormats,
		UploadTimeout: cfg.Upload.Timeout,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWaitTime:   cfg.Upload.MaxWaitTime,
	})

	server := web.NewServer(service, cfg)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting requests first, then let in-flight uploads drain.
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown incomplete", "error", err)
	}
	if err := service.WaitForUploads(shutdownCtx); err != nil {
		slog.Warn("uploads still running at shutdown", "error", err)
	}

	slog.Info("server stopped")
}
