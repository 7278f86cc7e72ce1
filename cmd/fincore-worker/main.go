package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"fincore/internal/amqp"
	"fincore/internal/cli"
	"fincore/internal/config"
	"fincore/internal/log"
	"fincore/internal/metrics"
	"fincore/internal/sheets"
	gsheet "fincore/internal/sheets/google"
	memsheet "fincore/internal/sheets/memory"
	"fincore/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting fincore-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Worker is using the memory backend; it will not see the server's ledger")
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Cleanup()

	m := metrics.New()
	svc := cli.NewServices(store.Store, cfg, m, nil)
	defer svc.Close()

	scheduler := worker.NewScheduler()
	job := &worker.ReconcileJob{Reconciler: svc.Reconciler, Repair: cfg.ReconcileRepair}
	if err := scheduler.AddJob(cfg.ReconcileSchedule, job); err != nil {
		logger.Error("Failed to schedule reconciliation", log.FieldError, err)
		os.Exit(1)
	}
	// Catch drift left by a previous run before waiting for the schedule.
	if err := scheduler.RunNow(job); err != nil {
		logger.Error("Startup reconciliation failed", log.FieldError, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		writer, err := ledgerWriter(gctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}

		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		mirror := worker.NewMirrorWorker(store.Store, writer, m)
		g.Go(func() error {
			return client.ConsumeDistributions(gctx, mirror.HandleDistribution)
		})
	} else {
		logger.Info("Skipping ledger mirror - no AMQP_URL provided")
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

// ledgerWriter returns the Google Sheets mirror, or an in-memory sink when
// no spreadsheet is configured.
func ledgerWriter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.LedgerWriter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - mirroring to memory")
		return memsheet.New(), nil
	}
	client, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleLedgerSheetName)
	return client, nil
}
