package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Sudhaanshuu/Arogyam/internal/api"
	"github.com/Sudhaanshuu/Arogyam/internal/booking"
	"github.com/Sudhaanshuu/Arogyam/internal/calendar"
	"github.com/Sudhaanshuu/Arogyam/internal/config"
	"github.com/Sudhaanshuu/Arogyam/internal/db"
	"github.com/Sudhaanshuu/Arogyam/internal/logger"
	"github.com/Sudhaanshuu/Arogyam/internal/metrics"
	"github.com/Sudhaanshuu/Arogyam/internal/notify"
	"github.com/Sudhaanshuu/Arogyam/internal/redisclient"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic("logger init error: " + err.Error())
	}
	defer log.Sync()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.Duration("booking_hold_ttl", cfg.BookingHoldTTL),
		zap.Duration("lock_ttl", cfg.LockTTL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, 10)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisPoolSize)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	var notifier notify.Notifier = notify.Nop{}
	if cfg.AMQPURL != "" {
		rn, err := notify.NewRabbitNotifier(cfg.AMQPURL)
		if err != nil {
			log.Fatal("rabbitmq connection error", zap.Error(err))
		}
		defer rn.Close()
		notifier = rn
		log.Info("connected to RabbitMQ")
	} else {
		log.Warn("AMQP_URL not set, booking notifications disabled")
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	calRepo := calendar.NewPgRepository(pgPool)
	cal := calendar.NewCalendar(calRepo)
	ledger := booking.NewPgRepository(pgPool)
	locker := redisclient.NewPractitionerLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(ledger, cal, locker, notifier, collector, log, cfg)

	handler := api.NewRouter(api.RouterConfig{
		Service:      svc,
		CalendarRepo: calRepo,
		PgPool:       pgPool,
		Redis:        rdb,
		Log:          log,
		Metrics:      collector,
		RateLimit:    cfg.RateLimit,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("http server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}

	log.Info("api-server stopped")
}
