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

	"github.com/medibook/slot-booking/internal/api"
	"github.com/medibook/slot-booking/internal/auth"
	"github.com/medibook/slot-booking/internal/booking"
	"github.com/medibook/slot-booking/internal/config"
	"github.com/medibook/slot-booking/internal/db"
	"github.com/medibook/slot-booking/internal/logger"
	"github.com/medibook/slot-booking/internal/metrics"
	"github.com/medibook/slot-booking/internal/notify"
	"github.com/medibook/slot-booking/internal/realtime"
	redisclient "github.com/medibook/slot-booking/internal/redis"
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
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	collector := metrics.NewCollector("slotbooking", prometheus.DefaultRegisterer)

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewSlotLocker(rdb, cfg.LockTTL)
	hub := realtime.NewHub(rdb, log.Named("realtime"))

	notifyRepo := notify.NewPgRepository(pgPool)
	notifier := notify.NewService(notifyRepo, rdb, collector, log.Named("notify"))

	svc := booking.NewService(repo, locker, notifier, hub, log.Named("booking"))

	router := api.NewRouter(api.RouterConfig{
		Booking:       svc,
		Notifications: notifier,
		Hub:           hub,
		Verifier:      auth.NewVerifier(cfg.JWTSecret),
		PgPool:        pgPool,
		Redis:         rdb,
		Collector:     collector,
		Log:           log.Named("http"),
		Env:           cfg.Env,
		Version:       version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatal("server error", zap.Error(err))
	case <-rootCtx.Done():
	}

	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
