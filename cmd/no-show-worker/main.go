package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logger"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

type sweeper interface {
	SweepNoShows(ctx context.Context, now time.Time) (int, error)
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

	lg.Info("no-show worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("grace", cfg.NoShowGrace))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2, MinConns: 1})
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	// The sweep only flips status on rows whose day has passed, so it needs
	// neither slot locks nor Redis.
	m := metrics.NewCollector(prometheus.NewRegistry(), "clinic_worker")
	repo := appointment.NewGuardedRepository(appointment.NewPgRepository(pgPool), appointment.GuardOptions{
		Name:        "appointments-worker",
		ReadRetries: cfg.StoreReadRetries,
		MaxFailures: cfg.BreakerFailures,
		OpenTimeout: cfg.BreakerTimeout,
		Logger:      lg,
	})
	svc := appointment.NewService(appointment.Deps{Repo: repo, Metrics: m, Logger: lg.Named("booking")}, cfg)

	// Run once at startup
	runOnce(rootCtx, svc, m, lg)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			lg.Info("shutdown signal received, stopping no-show worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, m, lg)
		}
	}
}

func runOnce(ctx context.Context, svc sweeper, m *metrics.Collector, lg *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.SweepNoShows(runCtx, start.UTC())
	if err != nil {
		lg.Error("no-show sweep failed", zap.Error(err))
		return
	}
	m.ObserveNoShows(n)
	lg.Info("no-show sweep complete",
		zap.Int("marked", n),
		zap.Duration("took", time.Since(start)))
}
