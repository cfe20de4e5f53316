package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

const jobTimeout = 2 * time.Minute

// cmdDaemon programa el snapshot diario y el health check, y sirve /metrics
// hasta recibir SIGINT/SIGTERM.
func (a *app) cmdDaemon(ctx context.Context, args []string) error {
	fs := newFlags("daemon")
	addr := fs.String("metrics-addr", a.cfg.Daemon.MetricsAddr, "listen address for /metrics")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sched := cron.New(cron.WithLocation(time.UTC))
	if _, err := sched.AddFunc(a.cfg.Daemon.SnapshotCron, func() { a.snapshotJob(ctx) }); err != nil {
		return err
	}
	if _, err := sched.AddFunc(a.cfg.Daemon.HealthCron, func() { a.healthJob(ctx) }); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sched.Start()
	slog.Info("daemon started",
		"portfolio", a.portfolio,
		"snapshot_cron", a.cfg.Daemon.SnapshotCron,
		"health_cron", a.cfg.Daemon.HealthCron,
		"metrics_addr", *addr,
	)

	// valuación inicial para que los gauges tengan valor desde el arranque
	a.healthJob(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("daemon stopping (signal)")
	case runErr = <-errCh:
		slog.Error("metrics server failed", "err", runErr)
	}

	<-sched.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown", "err", err)
	}
	return runErr
}

func (a *app) snapshotJob(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	snap, err := a.ledger.Snapshot(ctx, a.portfolio)
	if err != nil {
		slog.Error("scheduled snapshot failed", "portfolio", a.portfolio, "err", err)
		return
	}
	slog.Info("snapshot recorded",
		"date", snap.Date,
		"total_value", snap.TotalValue,
		"daily_pnl", snap.DailyPnL,
	)
}

func (a *app) healthJob(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	h, err := a.ledger.Health(ctx, a.portfolio)
	if err != nil {
		slog.Error("scheduled health check failed", "portfolio", a.portfolio, "err", err)
		return
	}
	log := slog.Info
	if h.Status != domain.HealthGreen {
		log = slog.Warn
	}
	log("health check",
		"status", h.Status,
		"total_value", h.Portfolio.TotalValue,
		"drawdown_tier", h.Tier,
		"alerts", len(h.Alerts),
	)
	for _, al := range h.Alerts {
		slog.Warn("health alert", "severity", al.Severity, "type", al.Type, "msg", al.Message)
	}
}
