package main

import (
	"context"
	"errors"
	"os"
	"time"

	"financeflow/internal/cli"
	"financeflow/internal/core"
	"financeflow/internal/events"
	"financeflow/internal/log"
	"financeflow/internal/metrics"
	"financeflow/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	statsInterval   = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker, false)

	logger.Info("Starting financeflow-watch")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required to watch for changes")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	user, err := app.Session.CurrentUser(ctx)
	if err != nil {
		logger.Error("No stored session, run financeflow login first", log.FieldError, err)
		os.Exit(1)
	}
	if err := app.EnableFanOut(); err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	if err := app.Controller.Load(ctx); err != nil {
		// The consumer refreshes the collections on the next change anyway.
		logger.Error("Initial load failed", log.FieldError, err)
	}

	unsub := app.Bus.Subscribe(events.SnapshotUpdated, func(ctx context.Context, _ events.Event) {
		budgets, expenses := app.Controller.Budgets(), app.Controller.Expenses()
		ov := metrics.FallbackOverview(budgets, expenses)
		logger.InfoContext(ctx, "Snapshot updated",
			"budgets", len(budgets),
			"transactions", len(expenses),
			"net_savings", core.Headline(ov.NetSavings),
			"budget_used_pct", metrics.RoundPercent(ov.BudgetUsedPercentage),
		)
	})
	defer unsub()

	w := worker.NewChangeWorker(app.Bus, app.Instance, cfg.WatchRefreshRate, logger)
	go func() {
		if err := app.AMQP().ConsumeChanges(ctx, w.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Change consumption failed", log.FieldError, err)
		}
	}()

	logger.Info("Watching for changes", "user", user.Email, log.FieldOrigin, app.Instance)

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			applied, skipped := w.Stats()
			logger.Info("Watcher stopped", "applied", applied, "skipped", skipped)
			<-done
			return
		case <-ticker.C:
			applied, skipped := w.Stats()
			logger.Info("Change stats", "applied", applied, "skipped", skipped)
		}
	}
}
