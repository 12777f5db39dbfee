package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"subaudit/internal/config"
	"subaudit/internal/engine"
	"subaudit/internal/export"
	"subaudit/internal/logging"
	"subaudit/internal/mail"
	"subaudit/internal/oracle"
	"subaudit/internal/render"
)

func main() {
	// .env is optional; real settings come from config + env.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "subaudit",
		Usage: "audit a mailbox for recurring subscriptions and trials",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "days",
				Value: 365,
				Usage: "how many days back to scan",
			},
			&cli.IntFlag{
				Name:  "max-results",
				Value: 500,
				Usage: "maximum messages per search query",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "write the report as CSV to `PATH`",
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "passed through to the assistant connector",
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "passed through to the assistant connector",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"SUBAUDIT_LOG_LEVEL"},
			},
		},
		Action: runScan,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runScan(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	level := c.String("log-level")
	if level == "" {
		level = cfg.Log.Level
	}
	logging.Init(os.Stderr, level)

	if r := c.String("region"); r != "" {
		cfg.Oracle.Region = r
	}
	if p := c.String("profile"); p != "" {
		cfg.Oracle.Profile = p
	}

	source, err := mail.NewGmailSource(ctx, mail.GmailConfig{
		CredentialsPath:   cfg.Gmail.CredentialsPath,
		TokenPath:         cfg.Gmail.TokenPath,
		RequestsPerSecond: cfg.Gmail.RequestsPerSecond,
		MaxRetries:        cfg.Gmail.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("authentication: %w (run the setup flow to refresh credentials)", err)
	}

	scanner := &engine.Scanner{
		Source: source,
		Extractor: &engine.Extractor{
			Categories: engine.NewCategoryClassifier(cfg.CategoryTable()),
			Oracle:     oracleProvider(cfg),
			Providers:  providers(cfg),
		},
		Detector: engine.DetectorConfig{
			UnusedAfter:        time.Duration(cfg.Scan.UnusedAfterDays) * 24 * time.Hour,
			TrialHorizon:       time.Duration(cfg.Scan.TrialHorizonDays) * 24 * time.Hour,
			DefaultTrialLength: time.Duration(cfg.Scan.TrialLengthDays) * 24 * time.Hour,
			PriceTolerance:     cfg.Scan.PriceTolerance,
		},
		Queries:   cfg.Scan.Queries,
		Providers: providers(cfg),
		Workers:   cfg.Scan.Workers,
	}

	report, scanErr := scanner.Run(ctx, engine.ScanOptions{
		Days:       c.Int("days"),
		MaxResults: c.Int("max-results"),
	})
	if report == nil {
		return scanErr
	}

	fmt.Print(render.Report(report))

	if path := c.String("export"); path != "" {
		if !strings.HasSuffix(path, ".csv") {
			path += ".csv"
		}
		if err := export.ToFile(path, report); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		slog.Info("report exported", "path", path)
	}

	// A partial report still prints, but the run did not complete.
	return scanErr
}

func oracleProvider(cfg config.Config) oracle.Provider {
	var inner oracle.Provider
	switch strings.ToLower(strings.TrimSpace(cfg.Oracle.Provider)) {
	case "openai":
		inner = oracle.NewOpenAIProvider(cfg.ResolveOracleKey(), cfg.Oracle.Model)
	case "none", "off":
		return nil
	default:
		inner = oracle.NewHeuristicProvider()
	}
	return oracle.NewCachingProvider(inner, 15*time.Minute)
}

func providers(cfg config.Config) []string {
	if len(cfg.Scan.Providers) > 0 {
		return cfg.Scan.Providers
	}
	return engine.DefaultProviders()
}
