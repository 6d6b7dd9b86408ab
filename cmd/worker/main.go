// Package main runs the background notification worker (email over SMTP, Discord channel posts).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meetup-ops/backend/config"
	"github.com/meetup-ops/backend/internal/metrics"
	"github.com/meetup-ops/backend/internal/notify"
	"github.com/meetup-ops/backend/internal/worker"
	"github.com/meetup-ops/backend/pkg/database"
	"github.com/meetup-ops/backend/pkg/queue"
	"github.com/meetup-ops/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	if cfg.Email.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set; email notifications will be logged as failed")
	}
	if cfg.Discord.BotToken == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set; discord notifications will be logged as failed")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	jobQueue := queue.NewQueue(rdb.Client, cfg.Queue.MaxRetries, logger)
	processor := worker.NewNotificationProcessor(
		jobQueue,
		notify.NewSMTPSender(cfg.Email),
		notify.NewDiscordSender(cfg.Discord, &http.Client{Timeout: 10 * time.Second}),
		notify.NewRepository(pool),
		m,
		logger,
	)

	// Metrics only; the worker serves no API.
	metricsSrv := &http.Server{Addr: ":" + cfg.Worker.MetricsPort, Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started", zap.Int("max_retries", cfg.Queue.MaxRetries))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
