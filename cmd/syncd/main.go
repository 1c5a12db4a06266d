package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"clinicsync/internal/app"
	"clinicsync/internal/availability"
	"clinicsync/internal/cache"
	"clinicsync/internal/config"
	"clinicsync/internal/connectivity"
	"clinicsync/internal/fetch"
	"clinicsync/internal/handler"
	"clinicsync/internal/localstore"
	"clinicsync/internal/model"
	"clinicsync/internal/notify"
	"clinicsync/internal/queue"
	"clinicsync/internal/remote"
	"clinicsync/internal/retry"
	"clinicsync/internal/router"
	"clinicsync/internal/service"
	sig "clinicsync/internal/signal"
)

// Entity types whose writes flow through the pending-mutation queue.
var syncedEntityTypes = []string{"bookings", "slot_configs", "blackout_days"}

func main() {
	cfg := config.MustLoad()

	logger := app.NewLogger(cfg.App.Environment)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting clinicsync",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment))

	// Durable local store shared by cache and queue.
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}
	store, err := localstore.Open(cfg.Store.Path, logger.Named("localstore"))
	if err != nil {
		logger.Fatal("failed to open local store", zap.Error(err))
	}
	defer store.Close()

	// Remote data service client; also serves as the connectivity prober.
	remoteClient := remote.NewClient(remote.Config{
		BaseURL:        cfg.Remote.BaseURL,
		RequestTimeout: cfg.Remote.RequestTimeout,
		ProbeTimeout:   cfg.Remote.ProbeTimeout,
	}, logger.Named("remote"))

	// Single process-wide connectivity monitor, injected everywhere.
	monitor := connectivity.NewMonitor(remoteClient, connectivity.Config{
		ProbeInterval: cfg.Connectivity.ProbeInterval,
		ProbeTimeout:  cfg.Connectivity.ProbeTimeout,
	}, logger.Named("connectivity"))

	signals := sig.NewHub(logger.Named("signals"))
	monitor.Subscribe(signals.ObserveConnectivity)

	// TTL cache backend.
	var dataCache cache.Cache
	switch cfg.Cache.Type {
	case "memory":
		mem := cache.NewMemoryCache()
		defer mem.Close()
		dataCache = mem
		logger.Info("memory cache initialized")
	default: // sqlite
		dataCache = cache.NewStoreCache(store, cfg.Cache.Namespace, logger.Named("cache"))
		logger.Info("durable cache initialized")
	}

	exec := retry.New(monitor, logger.Named("retry"))
	retryOpts := retry.Options{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
	}
	fetcher := fetch.New(dataCache, exec, monitor, signals, fetch.Config{
		DefaultTTL: cfg.Cache.DefaultTTL,
		Retry:      retryOpts,
	}, logger.Named("fetch"))

	// Pending-mutation queue + replay on reconnect.
	pendingQueue := queue.New(store, monitor, signals, logger.Named("queue"))
	writes := service.NewWriteService(monitor, exec, pendingQueue, remoteClient, retryOpts, logger.Named("writes"))

	scheduler := queue.NewReplayScheduler(pendingQueue, logger.Named("replay"))
	for _, entityType := range syncedEntityTypes {
		scheduler.Register(entityType, remoteClient.Apply)
	}
	scheduler.Start(monitor)
	defer scheduler.Stop()

	// Change-notification stream.
	var notifier notify.Notifier
	switch cfg.Notify.Type {
	case "memory":
		notifier = notify.NewMemoryNotifier()
		logger.Info("in-memory notifier initialized")
	default: // redis
		redisNotifier, err := notify.NewRedisNotifier(notify.RedisConfig{
			Addr:          cfg.Notify.RedisAddress(),
			Password:      cfg.Notify.RedisPassword,
			DB:            cfg.Notify.RedisDB,
			ChannelPrefix: cfg.Notify.ChannelPrefix,
		}, logger.Named("notify"))
		if err != nil {
			logger.Warn("redis notifier unavailable, falling back to in-memory", zap.Error(err))
			notifier = notify.NewMemoryNotifier()
		} else {
			defer redisNotifier.Close()
			notifier = redisNotifier
			logger.Info("redis notifier initialized")
		}
	}
	calc := availability.NewCalculator(fetcher, remoteClient, logger.Named("availability"))

	// Background lifecycle: probe loop and cache invalidation run until
	// shutdown.
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go monitor.Run(runCtx)
	monitor.Probe(runCtx)

	invalidator := availability.NewInvalidator(dataCache, notifier, logger.Named("invalidator"))
	if err := invalidator.Run(runCtx); err != nil {
		logger.Warn("cache invalidation unavailable", zap.Error(err))
	}

	// Local status API for the UI shell.
	statusHandler := handler.NewStatusHandler(monitor, writes, signals, cfg.App.Version)
	availabilityHandler := handler.NewAvailabilityHandler(calc)
	syncHandler := handler.NewSyncHandler(writes)

	r := router.New(router.Config{
		StatusHandler:       statusHandler,
		AvailabilityHandler: availabilityHandler,
		SyncHandler:         syncHandler,
		Logger:              logger.Named("http"),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Address()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	// One last replay attempt so a clean shutdown leaves as little queued
	// as possible.
	if monitor.Status().State == model.StateOnlineReachable {
		scheduler.Trigger()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("stopped")
}
