package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bakehouse/internal/b2b"
	"bakehouse/internal/cart"
	"bakehouse/internal/checkout"
	"bakehouse/internal/config"
	"bakehouse/internal/db"
	"bakehouse/internal/events"
	"bakehouse/internal/httpapi"
	"bakehouse/internal/metrics"
	"bakehouse/internal/notify"
	"bakehouse/internal/orders"
	"bakehouse/internal/pickup"
	"bakehouse/internal/redisx"
	"bakehouse/internal/report"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("BAKEHOUSE_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	dbLogger := logger.With().Str("component", "db").Logger()
	database, err := db.NewDB(cfg.Database.Path, &dbLogger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store list and holidays come from stores.yaml and follow its edits.
	err = config.WatchStores(ctx, cfg.StoresPath, 30*time.Second,
		func(sc *config.StoresConfig) {
			syncCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := database.SyncStoresFromConfig(syncCtx, sc); err != nil {
				logger.Error().Err(err).Msg("Failed to sync stores config")
				return
			}
			logger.Info().Int("stores", len(sc.Stores)).Int("holidays", len(sc.Holidays)).Msg("Stores config synced")
		},
		func(err error) {
			logger.Error().Err(err).Msg("Failed to reload stores config, keeping previous")
		},
	)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.StoresPath).Msg("failed to load stores config")
	}

	var rdb *redis.Client
	var cartStore cart.Store
	if cfg.Redis.Address != "" {
		rdb = redisx.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
		cartStore = cart.NewRedisStore(rdb, cfg.CartTTL())
	} else {
		logger.Warn().Msg("Redis not configured, carts are kept in memory")
		cartStore = cart.NewMemoryStore()
	}

	busLogger := logger.With().Str("component", "events").Logger()
	bus := events.NewEventBus(&busLogger)

	if len(cfg.Kafka.Brokers) > 0 {
		sink := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, "bakehouse", 0, &busLogger)
		sink.Start()
		defer sink.Close()
		bus.Subscribe(events.AllTypes, sink.Handle)
	}

	var tg *notify.Telegram
	if cfg.Telegram.BotToken != "" {
		notifyLogger := logger.With().Str("component", "notify").Logger()
		tg, err = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.Debug, cfg.Telegram.StaffIDs, &notifyLogger)
		if err != nil {
			logger.Error().Err(err).Msg("Telegram notifier disabled")
		} else {
			tg.Subscribe(bus)
			go tg.Run(ctx)
		}
	}

	if cfg.Reports.Monthly {
		if tg == nil {
			logger.Warn().Msg("Monthly reports need telegram, skipping")
		} else {
			reportLogger := logger.With().Str("component", "report").Logger()
			report.NewMonthly(database, tg, &reportLogger).Start(ctx)
		}
	}

	backupDir := cfg.Backup.Path
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	}
	backupLogger := logger.With().Str("component", "backup").Logger()
	backups := db.NewBackupService(database, db.BackupOptions{
		Enabled:       cfg.Backup.Enabled,
		Dir:           backupDir,
		Interval:      cfg.BackupInterval(),
		RetentionDays: cfg.Backup.RetentionDays,
	}, &backupLogger)
	go backups.Start(ctx)

	resolver := pickup.NewResolver(cfg.PickupCutoff(), cfg.PickupHorizon(), cfg.PickupLocation())

	cartLogger := logger.With().Str("component", "cart").Logger()
	carts := cart.NewService(cartStore, database, &cartLogger, cartMetrics{})

	checkoutLogger := logger.With().Str("component", "checkout").Logger()
	checkoutSvc := checkout.NewService(database, carts, resolver, bus, &checkoutLogger, checkout.Options{
		SlotStep:       cfg.PickupSlotStep(),
		IdempotencyTTL: cfg.IdempotencyTTL(),
	})
	if rdb != nil {
		checkoutSvc.UseIdempotency(rdb)
	}

	ordersLogger := logger.With().Str("component", "orders").Logger()
	b2bLogger := logger.With().Str("component", "b2b").Logger()
	perSecond, burst := cfg.CheckoutRate()
	apiLogger := logger.With().Str("component", "http").Logger()
	api := &httpapi.Server{
		DB:                database,
		Carts:             carts,
		Checkout:          checkoutSvc,
		Orders:            orders.NewService(database, bus, &ordersLogger),
		B2B:               b2b.NewService(database, bus, &b2bLogger),
		Logger:            &apiLogger,
		AdminTokens:       cfg.AdminTokens,
		TrustedProxies:    cfg.TrustedProxies(),
		CheckoutPerSecond: perSecond,
		CheckoutBurst:     burst,
		RequestTimeout:    cfg.WriteTimeout(),
	}
	if len(cfg.AdminTokens) == 0 {
		logger.Warn().Msg("No admin tokens configured, admin API is locked")
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           api.Router(),
		ReadTimeout:       cfg.ReadTimeout(),
		ReadHeaderTimeout: 5 * time.Second,
		// Leave room for the handler timeout to answer first.
		WriteTimeout: cfg.WriteTimeout() + 5*time.Second,
	}
	// In-flight requests still publish events; the sinks close after they drain.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("http shutdown error")
		}
	}()

	logger.Info().
		Str("address", cfg.HTTP.Address).
		Str("cutoff", cfg.PickupCutoff().String()).
		Int("horizon_days", cfg.PickupHorizon()).
		Msg("bakehouse started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("http server error")
		stop()
	}
	<-drained
	logger.Info().Msg("bakehouse stopped")
}

// cartMetrics counts rolled back cart mutations.
type cartMetrics struct{}

func (cartMetrics) CartRolledBack(action cart.ActionType) {
	metrics.IncCartRollback(string(action))
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
