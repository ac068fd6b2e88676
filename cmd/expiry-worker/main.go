package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Sudhaanshuu/Arogyam/internal/booking"
	"github.com/Sudhaanshuu/Arogyam/internal/calendar"
	"github.com/Sudhaanshuu/Arogyam/internal/config"
	"github.com/Sudhaanshuu/Arogyam/internal/db"
	"github.com/Sudhaanshuu/Arogyam/internal/logger"
	"github.com/Sudhaanshuu/Arogyam/internal/metrics"
	"github.com/Sudhaanshuu/Arogyam/internal/notify"
	"github.com/Sudhaanshuu/Arogyam/internal/redisclient"
)

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

	log.Info("expiry-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, 5)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, 2)
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
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	calRepo := calendar.NewPgRepository(pgPool)
	cal := calendar.NewCalendar(calRepo)
	ledger := booking.NewPgRepository(pgPool)
	locker := redisclient.NewPractitionerLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(ledger, cal, locker, notifier, collector, log, cfg)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.ExpirePendingHolds(runCtx); err != nil {
		log.Error("expiry run error", zap.Error(err))
		return
	}
	log.Info("expiry run complete", zap.Duration("took", time.Since(start)))
}
