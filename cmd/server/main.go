// Package main serves the simulator over HTTP:
// - JSON session API (start/pause/resume/stop, grids, performance)
// - websocket stream of ticks, executions, state and grid updates at /ws
// - Prometheus metrics at /metrics
// A ticker advances the running session every server.tick_interval.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"grid-trading-lab/internal/api"
	"grid-trading-lab/internal/archive"
	"grid-trading-lab/internal/config"
	"grid-trading-lab/internal/logging"
	"grid-trading-lab/internal/observability"
	"grid-trading-lab/internal/session"
	"grid-trading-lab/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default ./config.yaml)")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := cfg.Registry()
	if err != nil {
		logger.WithError(err).Fatal("build scenario registry")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(cfg.Server.MetricsPrefix, reg)

	hub := stream.NewHub(stream.HubOptions{Logger: logger})
	defer hub.Close()

	sim := session.NewSimulator(session.SimulatorOptions{
		Registry:  registry,
		Logger:    logger,
		Observers: []session.Observer{metrics, hub},
	})

	stores, cleanup, err := archive.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatal("open stores")
	}
	defer cleanup()

	archiver, err := archive.New(archive.Options{Stores: stores, Logger: logger})
	if err != nil {
		logger.WithError(err).Fatal("create archiver")
	}

	handler, err := api.New(api.Options{
		Simulator: sim,
		Config:    cfg,
		Archiver:  archiver,
		Metrics:   metrics,
		Stream:    hub,
		Gatherer:  observability.Handler(reg),
		Logger:    logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("create api")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go session.RunTicker(ctx, sim, cfg.Server.TickInterval, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("server failed")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown")
	}

	// a running session is stopped and archived so no work is lost
	if sim.GetSession() != nil {
		snap, err := sim.StopSimulation()
		if err == nil {
			if err := archiver.Save(shutdownCtx, snap); err != nil {
				logger.WithError(err).Warn("archive on shutdown")
			}
		}
	}

	logger.Info("shutdown complete")
}
