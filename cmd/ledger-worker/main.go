package main

import (
	"context"
	"errors"
	"os"
	"time"

	"jobledger/internal/amqp"
	"jobledger/internal/cli"
	gsheet "jobledger/internal/sheets/google"
	"jobledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	// The worker's whole purpose is exporting jobs to the ledger; unlike
	// the API server it cannot run without the exporter or the broker.
	if !cfg.ExportEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for ledger-worker")
		os.Exit(1)
	}

	store := cli.InitBackend(logger, cfg)

	exporter, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	ledgerWorker := worker.NewLedgerWorker(store, store, exporter, cfg.SyncBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 2*time.Second, func() {
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", "error", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("Store close error", "error", err)
		}
	})

	// Recover exports whose messages were lost while the worker was down.
	logger.Info("Performing startup export check...")
	if err := ledgerWorker.ProcessPendingJobs(ctx); err != nil {
		logger.Error("Startup export check failed", "error", err)
		// Don't exit - the consume loop will retry as messages arrive
	}

	go func() {
		err := amqpClient.ConsumeJobSync(ctx, func(msg *amqp.JobSyncMessage) error {
			return ledgerWorker.HandleSyncMessage(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	// Periodic catch-up for messages dropped between startup checks.
	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ledgerWorker.ProcessPendingJobs(ctx); err != nil {
					logger.Error("Periodic export check failed", "error", err)
				}
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
