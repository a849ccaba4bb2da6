// cmd/notification-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cityreport-notifications/internal/common/config"
	"cityreport-notifications/internal/common/database"
	"cityreport-notifications/internal/common/logger"
	"cityreport-notifications/internal/common/observability"
	"cityreport-notifications/internal/dispatcher"
	"cityreport-notifications/internal/resolver"
	"cityreport-notifications/internal/server"
	"cityreport-notifications/internal/store"
	"cityreport-notifications/internal/stream"
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
			delay *= 2 // Exponential backoff
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

	zapLog.Info("Starting notification server...",
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis (optional: absent Redis means single-instance stream) ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Warn("redis unavailable, stream runs in single-instance mode", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Wire the engine ---
	hub := stream.NewHub(cfg.Notifications.SessionBuffer)
	bridge := stream.NewBridge(rawRedis(redisClient), cfg.Database.Redis.Channel, hub, log)
	bridge.Start(ctx)
	defer bridge.Stop()

	notifStore := store.NewPostgresStore(pg.GetDB(), bridge, log)
	directory := store.NewPostgresDirectory(pg.GetDB())
	snapshots := store.NewPostgresSnapshots(pg.GetDB())

	disp := dispatcher.New(snapshots, resolver.New(directory), notifStore, log).WithObservability(obs)

	srv := server.New(server.Options{
		Dispatcher:  disp,
		Store:       notifStore,
		Departments: directory,
		Subscriber:  hub,
		Logger:      log,
		ListLimit:   cfg.Notifications.ListLimit,
	})

	// --- Metrics and pprof endpoint ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
		addr := fmt.Sprintf(":%d", cfg.HTTP.MetricsPort)
		zapLog.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			zapLog.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	// --- Run HTTP server with graceful shutdown ---
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown failed", zap.Error(err))
	}
}

func rawRedis(c *database.RedisClient) *redis.Client {
	if c == nil {
		return nil
	}
	return c.GetClient()
}
