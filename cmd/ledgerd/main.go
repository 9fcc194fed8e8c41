package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobledger/internal/amqp"
	"jobledger/internal/cli"
	apphttp "jobledger/internal/http"
	"jobledger/internal/services"
	gsheet "jobledger/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitBackend(logger, cfg)
	defer store.Close()

	// AMQP is optional. Without it, job writes still land in the sync
	// queue; the in-process sync processor below drains them instead of
	// the dedicated worker.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without message publishing", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	jobService := services.NewJobService(store, store, amqpClient)

	deps := apphttp.Deps{
		Jobs:      jobService,
		Expenses:  services.NewExpenseService(store),
		Goals:     services.NewGoalService(store, store, store),
		Profiles:  services.NewProfileService(store),
		Summaries: services.NewSummaryService(store, store, store, store),
		DB:        store,
	}
	if amqpClient != nil {
		deps.Queue = amqpClient
	}

	// Ledger export without a broker: poll the sync queue in-process.
	// With a broker the dedicated ledger-worker owns the export.
	var syncProcessor *services.SyncProcessor
	if cfg.ExportEnabled() && amqpClient == nil {
		exporter, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		procCfg := services.DefaultSyncProcessorConfig()
		procCfg.PollInterval = cfg.SyncInterval
		procCfg.BatchSize = cfg.SyncBatchSize
		syncProcessor = services.NewSyncProcessor(store, store, exporter, procCfg)
		if err := syncProcessor.Start(context.Background()); err != nil {
			logger.Error("Failed to start sync processor", "error", err)
			os.Exit(1)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if syncProcessor != nil {
			if err := syncProcessor.Stop(shutdownCtx); err != nil {
				logger.Error("Sync processor shutdown error", "error", err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting API server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"export_enabled", cfg.ExportEnabled(),
		"amqp_connected", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
