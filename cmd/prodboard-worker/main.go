package main

import (
	"context"
	"errors"
	"time"

	"prodboard/internal/amqp"
	"prodboard/internal/backend"
	"prodboard/internal/cli"
	"prodboard/internal/config"
	applog "prodboard/internal/log"
	"prodboard/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(applog.ComponentWorker)
	if err := envErr; err != nil {
		logger.Warn("Ignoring unreadable .env file", applog.FieldError, err)
	}
	logger.Info("Starting prodboard-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	targetCfg, err := backend.SyncTargetConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid sync target", applog.FieldError, err)
	}
	target, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), targetCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize sync target", applog.FieldError, err, "target", cfg.SyncTarget)
	}
	if target.Cleanup != nil {
		defer target.Cleanup()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", applog.FieldError, err)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, target.Backend)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Batches announced while the worker was down are still pending.
	logger.Info("Performing startup sync check...")
	if _, err := syncWorker.SyncPending(ctx); err != nil {
		logger.Error("Startup sync failed", applog.FieldError, err)
	}

	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := syncWorker.SyncPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Periodic sync failed", applog.FieldError, err)
				}
			}
		}
	}()

	logger.Info("Consuming sync messages",
		"queue", cfg.AMQPQueue,
		"target", cfg.SyncTarget,
		"sync_interval", cfg.SyncInterval)
	if err := amqpClient.ConsumeSync(ctx, syncWorker.HandleSyncMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
