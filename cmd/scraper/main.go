package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/listing-scraper/internal/app"
	"github.com/maltedev/listing-scraper/internal/config"
	"github.com/maltedev/listing-scraper/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		url      = flag.String("url", "", "Listing page to scrape (overrides SCRAPER_URL)")
		output   = flag.String("output", "", "CSV export path (overrides SCRAPER_EXPORT_PATH, \"-\" disables export)")
		headless = flag.Bool("headless", true, "Run browser in headless mode")
		noDB     = flag.Bool("no-db", false, "Skip persistence and only write the export")
		report   = flag.Bool("report", false, "Print the run report as JSON to stdout")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *url != "" {
		cfg.Scraper.URL = *url
	}
	switch *output {
	case "":
	case "-":
		cfg.Scraper.ExportPath = ""
	default:
		cfg.Scraper.ExportPath = *output
	}
	cfg.Browser.Headless = *headless && cfg.Browser.Headless
	if *noDB {
		cfg.Database.Driver = "none"
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	l, logFile, err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()
	slog.SetDefault(l)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		l.Error("Failed to initialize", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			l.Warn("Failed to release resources", "error", err)
		}
	}()

	result, runErr := a.Pipeline.Run(ctx)

	if *report && result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			l.Error("Failed to print report", "error", err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", runErr)
		return 1
	}

	return 0
}
