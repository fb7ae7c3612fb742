package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"lifedash/internal/amqp"
	"lifedash/internal/backend"
	"lifedash/internal/cli"
	applog "lifedash/internal/log"
	"lifedash/internal/metrics"
	"lifedash/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting lifedash-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the sync worker")
		os.Exit(1)
	}

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	exporter, err := backend.NewFactory(logger.Logger).CreateExporter(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize export backend", applog.FieldError, err, "backend", backendCfg.Export)
		os.Exit(1)
	}
	if exporter.Cleanup != nil {
		defer exporter.Cleanup()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPChangesQueue, cfg.AMQPAcksQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	m := metrics.New()
	syncWorker := worker.NewSyncWorker(exporter.Exporter, amqpClient, worker.WithObserver(m))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := amqpClient.ConsumeChanges(gctx, syncWorker.HandleChange)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// The worker exposes only /metrics, on PORT.
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           metricsMux(m),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("Serving worker metrics", "port", cfg.Port)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	logger.Info("Worker ready",
		"export", backendCfg.Export,
		"changes_queue", cfg.AMQPChangesQueue,
		"acks_queue", cfg.AMQPAcksQueue)

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func metricsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
