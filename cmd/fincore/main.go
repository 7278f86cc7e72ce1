package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fincore/internal/amqp"
	"fincore/internal/cli"
	apphttp "fincore/internal/http"
	"fincore/internal/log"
	"fincore/internal/metrics"
	"fincore/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.OpenStore(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	m := metrics.New()

	// Publishing is optional; distributions commit regardless.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := cli.NewServices(store.Store, cfg, m, publisher)
	defer svc.Close()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Distributor:        svc.Distributor,
		Summaries:          svc.Summaries,
		Projections:        svc.Projections,
		Metrics:            m,
		Ready:              store.Ready(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fincore server", "port", cfg.Port, "backend", cfg.DataBackend,
			"amqp_enabled", publisher != nil, "summary_cache", cfg.SummaryCacheEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, log.FieldOperation, log.OpShutdown)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
