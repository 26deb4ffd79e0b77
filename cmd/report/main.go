// Package main renders the report files of an archived session.
// With --demo it runs a seeded session in memory instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"grid-trading-lab/internal/archive"
	"grid-trading-lab/internal/config"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/logging"
	"grid-trading-lab/internal/reporting"
	"grid-trading-lab/internal/session"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default ./config.yaml)")
	sessionID := flag.String("session-id", "", "Archived session ID to report on")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	demo := flag.Bool("demo", false, "Run a seeded in-memory session instead of loading one")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	if !*demo && *sessionID == "" {
		fmt.Fprintln(os.Stderr, "Error: --session-id is required unless --demo is set")
		os.Exit(1)
	}

	ctx := context.Background()

	var snap *domain.SessionSnapshot
	if *demo {
		snap, err = demoSession(ctx, cfg)
	} else {
		snap, err = loadSession(ctx, cfg, *sessionID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// fixed clock so repeated runs produce identical files
	generated := snap.StoppedAt
	report, err := reporting.NewGenerator().WithClock(func() time.Time { return generated }).Generate(snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	paths, err := reporting.WriteFiles(*outputDir, report, snap.ValueSeries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("session_id", snap.SessionID).Info("report generated")
	fmt.Println("Report generated successfully:")
	for _, p := range paths {
		fmt.Printf("  - %s\n", p)
	}
}

func loadSession(ctx context.Context, cfg *config.Config, id string) (*domain.SessionSnapshot, error) {
	if cfg.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is required to load archived sessions")
	}
	stores, cleanup, err := archive.OpenStores(ctx, cfg.Storage, logging.Discard())
	if err != nil {
		return nil, err
	}
	defer cleanup()

	a, err := archive.New(archive.Options{Stores: stores})
	if err != nil {
		return nil, err
	}
	return a.Load(ctx, id)
}

func demoSession(ctx context.Context, cfg *config.Config) (*domain.SessionSnapshot, error) {
	simCfg, err := cfg.SimulationConfig()
	if err != nil {
		return nil, err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	fixedTime := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	s, err := session.New(session.Options{
		ID:               "demo",
		Config:           simCfg,
		InitialPortfolio: cfg.InitialPortfolio(),
		Registry:         registry,
		Clock:            func() time.Time { return fixedTime },
		Logger:           logging.Discard(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	for _, gc := range cfg.GridConfigs(simCfg.TokenID, s.CurrentPrice()) {
		if _, err := s.CreateGrid(gc); err != nil {
			return nil, err
		}
	}
	return session.RunToCompletion(ctx, s)
}
