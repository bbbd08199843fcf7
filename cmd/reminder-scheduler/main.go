// cmd/reminder-scheduler/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"studybuddy-backend/internal/common/config"
	"studybuddy-backend/internal/common/database"
	"studybuddy-backend/internal/common/logger"
	"studybuddy-backend/internal/common/observability"
	"studybuddy-backend/internal/events"
	"studybuddy-backend/internal/scheduler"
	"studybuddy-backend/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting reminder-scheduler...")

	obs := observability.New("reminder-scheduler")
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	connector := database.NewConnector(cfg.Database.Postgres)
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = connector.Get(ctx)
		return err
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer connector.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	bus := events.NewBus(log)
	cache := store.NewCountsCache(rdb.GetClient(), time.Duration(cfg.Database.Redis.CountsTTL)*time.Second)
	st := store.New(pg.GetDB(), bus, cache, log)
	sched := scheduler.New(pg.GetDB(), st, cfg.Scheduler, obs, log)

	// Metrics endpoint for scraping; no API surface here.
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: promhttp.Handler(),
	}
	go func() {
		zapLog.Info("Metrics server listening", zap.Int("port", cfg.Server.Port))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	hourly := time.NewTicker(config.GetDuration(cfg.Scheduler.HourlyInterval))
	defer hourly.Stop()
	daily := time.NewTicker(config.GetDuration(cfg.Scheduler.DailyInterval))
	defer daily.Stop()

	// First pass immediately so a restart does not wait out a full tick.
	sched.ScanHourly(ctx)
	sched.ScheduleDailyBatch(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-hourly.C:
			sched.ScanHourly(ctx)
		case <-daily.C:
			sched.ScheduleDailyBatch(ctx)
		case <-quit:
			zapLog.Info("Shutting down reminder-scheduler...")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
			defer shutdownCancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				zapLog.Error("metrics server shutdown failed", zap.Error(err))
			}
			zapLog.Info("reminder-scheduler stopped")
			return
		}
	}
}
