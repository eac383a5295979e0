package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"prodboard/internal/backend"
	"prodboard/internal/cli"
	"prodboard/internal/config"
	"prodboard/internal/dashboard"
	apphttp "prodboard/internal/http"
	applog "prodboard/internal/log"
	"prodboard/internal/services"
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger()
	if err := envErr; err != nil {
		logger.Warn("Ignoring unreadable .env file", applog.FieldError, err)
	}
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	loc, err := cfg.Location()
	if err != nil {
		cli.Fatal(logger, "Invalid timezone", applog.FieldError, err)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", applog.FieldError, err)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
	}
	store := result.Backend

	board := dashboard.NewBoard(dashboard.Sources{
		History:  store,
		Requests: store,
		Meta:     store,
	}, loc, logger)

	// Prime the board; a failure here is retried on the first request.
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	if err := board.Load(loadCtx); err != nil {
		logger.Warn("Initial load incomplete", applog.FieldError, err)
	}
	cancelLoad()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Board:              board,
		Entries:            services.NewEntryService(store, board, logger),
		Edits:              services.NewEditService(store, board, logger),
		Store:              store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting prodboard server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", applog.FieldError, err, "port", cfg.Port)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
