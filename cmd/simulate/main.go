// Package main runs one headless simulation session from configuration,
// places the configured grids, runs it to completion and writes the report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"grid-trading-lab/internal/archive"
	"grid-trading-lab/internal/config"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/logging"
	"grid-trading-lab/internal/reporting"
	"grid-trading-lab/internal/session"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default ./config.yaml)")
	outputDir := flag.String("output-dir", "", "Directory for report files (default: markdown to stdout)")
	doArchive := flag.Bool("archive", false, "Archive the session to the configured stores")
	seed := flag.Uint64("seed", 0, "Override the configured seed")
	outputJSON := flag.Bool("json", false, "Print the report as JSON")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Warn("shutting down")
		cancel()
	}()

	snap, err := run(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("simulation failed")
	}

	if *doArchive {
		if err := archiveSnapshot(ctx, cfg, snap, logger); err != nil {
			logger.WithError(err).Fatal("archive failed")
		}
	}

	report, err := reporting.NewGenerator().Generate(snap)
	if err != nil {
		logger.WithError(err).Fatal("generate report")
	}

	switch {
	case *outputJSON:
		// ProfitFactor may be +Inf, which encoding/json rejects
		view := struct {
			SessionID string
			Session   reporting.SessionSummary
			Grids     []reporting.GridRow
			Replay    reporting.ReplaySection
		}{snap.SessionID, report.Session, report.Grids, report.Replay}
		out, _ := json.MarshalIndent(view, "", "  ")
		fmt.Println(string(out))
	case *outputDir != "":
		paths, err := reporting.WriteFiles(*outputDir, report, snap.ValueSeries)
		if err != nil {
			logger.WithError(err).Fatal("write reports")
		}
		for _, p := range paths {
			fmt.Println(p)
		}
	default:
		fmt.Print(reporting.RenderMarkdown(report))
	}
}

// run starts a session, places the configured grids and advances it until
// the duration elapses.
func run(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*domain.SessionSnapshot, error) {
	simCfg, err := cfg.SimulationConfig()
	if err != nil {
		return nil, err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	sim := session.NewSimulator(session.SimulatorOptions{
		Registry: registry,
		Logger:   logger,
	})
	sess, err := sim.StartSimulation(simCfg, cfg.InitialPortfolio())
	if err != nil {
		return nil, err
	}

	for _, gc := range cfg.GridConfigs(simCfg.TokenID, sess.CurrentPrice()) {
		g, err := sess.CreateGrid(gc)
		if err != nil {
			return nil, fmt.Errorf("create grid: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"grid_id": g.ID,
			"orders":  len(g.Orders),
			"min":     gc.PriceRange.Min,
			"max":     gc.PriceRange.Max,
		}).Info("grid placed")
	}

	start := time.Now()
	snap, err := session.RunToCompletion(ctx, sess)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"session_id": snap.SessionID,
		"ticks":      len(snap.Ticks),
		"executions": len(snap.Executions),
		"elapsed":    time.Since(start).String(),
	}).Info("simulation complete")
	return snap, nil
}

func archiveSnapshot(ctx context.Context, cfg *config.Config, snap *domain.SessionSnapshot, logger logrus.FieldLogger) error {
	stores, cleanup, err := archive.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := archive.New(archive.Options{Stores: stores, Logger: logger})
	if err != nil {
		return err
	}
	return a.Save(ctx, snap)
}
