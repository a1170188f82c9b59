package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"claimdesk/internal/platform/config"
	"claimdesk/internal/platform/httpserver"
	"claimdesk/internal/platform/logger"
	"claimdesk/internal/platform/tracing"
)

// main loads configuration, assembles the service graph and runs the HTTP
// server until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.Tracing, cfg.Environment)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			log.Error("tracing shutdown failed", "error", err)
		}
	}()

	a, err := buildApp(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpserver.New(cfg.Server, a.handler)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting claimdesk", "addr", cfg.Server.Addr, "environment", cfg.Environment, "demo", cfg.DemoMode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	})

	if cfg.Tenancy.ReclaimOnStartup && cfg.Tenancy.AbandonedAfter > 0 {
		g.Go(func() error {
			reclaimLoop(gctx, a, cfg.Tenancy.AbandonedAfter, log)
			return nil
		})
	}

	return g.Wait()
}

// reclaimLoop removes tenants stuck in provisioning once at startup and then
// every interval until ctx ends.
func reclaimLoop(ctx context.Context, a *app, interval time.Duration, log *slog.Logger) {
	reclaim := func() {
		n, err := a.provisioner.ReclaimAbandoned(ctx, time.Now().Add(-interval))
		if err != nil {
			log.ErrorContext(ctx, "reclaiming abandoned tenants failed", "error", err)
			return
		}
		if n > 0 {
			log.InfoContext(ctx, "reclaimed abandoned tenants", "count", n)
		}
	}

	reclaim()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaim()
		}
	}
}
