package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"lifedash/internal/amqp"
	"lifedash/internal/auth"
	"lifedash/internal/backend"
	"lifedash/internal/cache"
	"lifedash/internal/cli"
	apphttp "lifedash/internal/http"
	applog "lifedash/internal/log"
	"lifedash/internal/metrics"
	"lifedash/internal/middleware/ratelimit"
	"lifedash/internal/middleware/security"
	"lifedash/internal/session"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	snapshots := cli.InitSnapshotStore(logger, cfg.SQLiteDBPath)
	defer snapshots.Close()

	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	fetcher, err := backend.NewFactory(logger.Logger).CreateFetcher(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize remote backend", applog.FieldError, err, "backend", backendCfg.Remote)
		os.Exit(1)
	}
	if fetcher.Cleanup != nil {
		defer fetcher.Cleanup()
	}

	sessionCfg := session.Config{
		Fetcher:        fetcher.Fetcher,
		FetchObserver:  m,
		PageSize:       cfg.PageSize,
		Strict:         cfg.StrictMode,
		StatsCacheSize: cfg.StatsCacheSize,
		StatsCacheTTL:  cfg.StatsCacheTTL,
	}

	// AMQP is optional; without it records stay local and unsynced.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPChangesQueue, cfg.AMQPAcksQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			sessionCfg.Publisher = m.InstrumentPublisher(amqpClient)
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"changes_queue", cfg.AMQPChangesQueue,
				"acks_queue", cfg.AMQPAcksQueue)
		}
	}

	manager := session.NewManager(session.ManagerConfig{
		Session:     sessionCfg,
		MaxSessions: cfg.MaxSessions,
		IdleTTL:     cfg.SessionIdleTTL,
	}, snapshots)

	if err := m.Gauge("sessions_resident", "Sessions currently held in memory.", func() float64 {
		return float64(len(manager.Resident()))
	}); err != nil {
		logger.Error("Failed to register gauge", applog.FieldError, err)
	}
	if err := m.Gauge("sessions_in_memory", "Sessions in memory, including evicted ones still held or unsaved.", func() float64 {
		return float64(manager.InMemory())
	}); err != nil {
		logger.Error("Failed to register gauge", applog.FieldError, err)
	}
	if err := m.Gauge("sessions_dirty", "Sessions with changes not yet written to the snapshot store.", func() float64 {
		return float64(manager.Dirty())
	}); err != nil {
		logger.Error("Failed to register gauge", applog.FieldError, err)
	}

	caches := cache.NewManager()
	caches.Register("sessions", manager.Cache())

	detector := security.NewDetector()
	for _, proxy := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(proxy); err != nil {
			logger.Error("Invalid trusted proxy", applog.FieldError, err, "proxy", proxy)
			os.Exit(1)
		}
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	if err := m.Gauge("ratelimit_keys", "Callers tracked by the rate limiter.", func() float64 {
		return float64(limiter.Stats().Keys)
	}); err != nil {
		logger.Error("Failed to register gauge", applog.FieldError, err)
	}
	authenticator := auth.New(cfg.JWTSecret)
	if !authenticator.Enforced() {
		logger.Warn("JWT_SECRET not set, trusting the X-User-ID header")
	}

	srv := apphttp.NewServer(":"+cfg.Port, manager,
		apphttp.WithAuthenticator(authenticator),
		apphttp.WithRateLimiter(limiter),
		apphttp.WithDetector(detector),
		apphttp.WithMetrics(m.Handler(), m),
		apphttp.WithReadinessCheck("snapshots", snapshots.Ping),
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)),
	)

	if n, err := manager.ResyncPending(ctx); err != nil {
		logger.Error("Startup resync failed", applog.FieldError, err)
	} else if n > 0 {
		logger.Info("Startup resync queued pending records", "records", n)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting lifedash server",
			"port", cfg.Port,
			"remote", backendCfg.Remote,
			"sync_enabled", amqpClient != nil,
			"auth_enforced", authenticator.Enforced())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return manager.Run(gctx, cfg.SnapshotInterval)
	})

	g.Go(func() error {
		return caches.Run(gctx, cacheSweepInterval)
	})

	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeAcks(gctx, func(ctx context.Context, msg *amqp.SyncAckMessage) error {
				applied, err := manager.ApplyAck(ctx, msg.SyncAck)
				if err != nil {
					return err
				}
				m.ObserveAck(applied)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	waitErr := g.Wait()

	// Requests and acks have drained; whatever they dirtied is written here.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.Flush(flushCtx); err != nil {
		logger.Error("Final snapshot flush failed", applog.FieldError, err)
		os.Exit(1)
	}

	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		logger.Error("Server stopped with error", applog.FieldError, waitErr)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
