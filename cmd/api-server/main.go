package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/leave"
	"github.com/hackgods/clinic-scheduling/internal/logger"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/practitioner"
	"github.com/hackgods/clinic-scheduling/internal/ratelimit"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

var version = "dev"

// practitionerAPI joins profile admin with capacity reads for the router.
type practitionerAPI struct {
	*practitioner.Service
	*practitioner.CapacityResolver
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		lg.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("error closing redis", zap.Error(err))
		}
	}()
	lg.Info("connected to Redis")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg, "clinic")

	profiles := practitioner.NewPgRepository(pgPool)
	capacity := practitioner.NewCapacityResolver(profiles, cfg.CapacityRoles)
	availabilitySvc := availability.NewService(profiles, lg.Named("availability"))
	leaveRegistry := leave.NewRegistry(leave.NewPgRepository(pgPool), lg.Named("leave"))

	repo := appointment.NewGuardedRepository(appointment.NewPgRepository(pgPool), appointment.GuardOptions{
		Name:        "appointments",
		ReadRetries: cfg.StoreReadRetries,
		MaxFailures: cfg.BreakerFailures,
		OpenTimeout: cfg.BreakerTimeout,
		Observer:    m,
		Logger:      lg,
	})

	bookings := appointment.NewService(appointment.Deps{
		Repo:     repo,
		Locker:   redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait),
		Capacity: capacity,
		Grid:     availabilitySvc,
		Leave:    leaveRegistry,
		Metrics:  m,
		Logger:   lg.Named("booking"),
	}, cfg)

	var limiter ratelimit.Limiter
	switch cfg.RateLimitBackend {
	case "redis":
		limit := int(cfg.RateLimitRPS * cfg.RateLimitWindow.Seconds())
		limiter = redisclient.NewFixedWindowLimiter(rdb, max(limit, cfg.RateLimitBurst), cfg.RateLimitWindow)
	case "local":
		lg.Warn("using per-process rate limiter; limits are not shared across replicas")
		limiter = ratelimit.NewLocal(cfg.RateLimitRPS, cfg.RateLimitBurst)
	default:
		limiter = ratelimit.Off{}
	}

	router := api.NewRouter(api.RouterConfig{
		Bookings:       bookings,
		Leave:          leaveRegistry,
		Availability:   availabilitySvc,
		Practitioners:  practitionerAPI{practitioner.NewService(profiles, lg.Named("practitioner")), capacity},
		Consultations:  appointment.NewBridge(bookings, lg),
		Health:         api.NewHealthHandler(pgPool, redisclient.Pinger{Client: rdb}, cfg.Env, version),
		Limiter:        limiter,
		Metrics:        m,
		MetricsHandler: metrics.Handler(reg),
		Logger:         lg.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		lg.Info("shutdown signal received")
	case err := <-errCh:
		lg.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}

	lg.Info("api-server stopped")
}
