package main

import (
	"time"

	"jobledger/internal/cli"
	"jobledger/internal/core"
	"jobledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitBackend(logger, cfg)

	// Bills stay local; only jobs are exported to the ledger. The
	// recurring worker therefore needs no broker connection.
	processor := services.NewRecurringProcessor(store)

	ctx, done := cli.GracefulShutdown(logger, 2*time.Second, func() {
		if err := store.Close(); err != nil {
			logger.Error("Store close error", "error", err)
		}
	})

	logger.Info("Recurring bill processor configured",
		"interval", cfg.RecurringInterval,
		"backend", cfg.DataBackend)

	// Run once on startup so a worker that was down over a due date
	// catches up immediately.
	if count, err := processor.ProcessDueExpenses(ctx, core.DateOf(time.Now())); err != nil {
		logger.Error("Initial processing failed", "error", err)
	} else {
		logger.Info("Initial processing complete", "bills_created", count)
	}

	go func() {
		ticker := time.NewTicker(cfg.RecurringInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				count, err := processor.ProcessDueExpenses(ctx, core.DateOf(now))
				if err != nil {
					logger.Error("Periodic processing failed", "error", err)
					continue
				}
				logger.Info("Periodic processing complete",
					"bills_created", count,
					"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
