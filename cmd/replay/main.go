// Package main verifies archived sessions by replaying their execution
// logs against the initial portfolio.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grid-trading-lab/internal/archive"
	"grid-trading-lab/internal/config"
	"grid-trading-lab/internal/logging"
	"grid-trading-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default ./config.yaml)")
	sessionID := flag.String("session-id", "", "Session ID to verify (default: all archived sessions)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides storage.postgres_dsn)")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if cfg.Storage.PostgresDSN == "" {
		logger.Fatal("a postgres dsn is required (--postgres-dsn or GRIDLAB_STORAGE_POSTGRES_DSN)")
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

	stores, cleanup, err := archive.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatal("open stores")
	}
	defer cleanup()

	archiver, err := archive.New(archive.Options{Stores: stores, Logger: logger})
	if err != nil {
		logger.WithError(err).Fatal("create archiver")
	}
	verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		Loader: archiver,
		Logger: logger,
	})

	var report *verification.VerificationReport
	if *sessionID != "" {
		result, err := verifier.VerifySession(ctx, *sessionID)
		if err != nil {
			logger.WithError(err).Fatal("verify session")
		}
		report = &verification.VerificationReport{TotalSessions: 1, Results: []verification.VerificationResult{*result}}
		if result.Match {
			report.MatchedSessions = 1
		} else {
			report.DivergentSessions = 1
		}
	} else {
		report, err = verifier.VerifyAll(ctx)
		if err != nil {
			logger.WithError(err).Fatal("verify sessions")
		}
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		printReport(report)
	}

	if report.DivergentSessions > 0 {
		os.Exit(2)
	}
}

func printReport(r *verification.VerificationReport) {
	fmt.Printf("\n=== Replay Verification ===\n")
	fmt.Printf("Sessions:   %d\n", r.TotalSessions)
	fmt.Printf("Matched:    %d\n", r.MatchedSessions)
	fmt.Printf("Divergent:  %d\n", r.DivergentSessions)

	for _, res := range r.Results {
		status := "MATCH"
		if !res.Match {
			status = "DIVERGENT"
		}
		fmt.Printf("\n%s  %s\n", res.SessionID, status)
		fmt.Printf("  executions replayed: %d\n", res.ReplayedExecutions)
		fmt.Printf("  stored equity:       %.6f\n", res.StoredEquity)
		fmt.Printf("  replayed equity:     %.6f\n", res.ReplayedEquity)
		for _, d := range res.Divergences {
			fmt.Printf("  - %s: stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
		}
	}
}
