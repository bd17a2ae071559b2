package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/pkg/logger"
)

func main() {
	var (
		mode     = flag.String("mode", "run", "Mode: run, recheck, images or serve")
		input    = flag.String("input", "", "Input workbook or directory (defaults to INPUT_PATH)")
		output   = flag.String("output", "", "Output workbook (defaults to OUTPUT_PATH)")
		workers  = flag.Int("workers", 0, "Parallel browser workers (defaults to SCRAPER_WORKERS)")
		headless = flag.Bool("headless", true, "Run browser in headless mode")
		archive  = flag.Bool("archive", false, "Move inputs, outputs and images into a batch folder after the run")
	)
	flag.Parse()

	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *input != "" {
		cfg.Files.Input = *input
	}
	if *output != "" {
		cfg.Files.Output = *output
	}
	if *workers > 0 {
		cfg.Scraper.Workers = *workers
	}
	cfg.Browser.Headless = *headless
	cfg.Files.Archive = cfg.Files.Archive || *archive

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logger.New(logger.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AuditFile: cfg.Logging.AuditFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	log.Info("Starting catalog reconciler", "mode", *mode, "workers", cfg.Scraper.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutdown signal received")
		cancel()
	}()

	if err := run(ctx, *mode, cfg, log); err != nil {
		log.Error("Reconciler stopped with error", "mode", *mode, "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, mode string, cfg *config.Config, log *slog.Logger) error {
	switch mode {
	case "images":
		return runImages(ctx, cfg, log)
	case "run", "recheck", "serve":
	default:
		flag.Usage()
		return fmt.Errorf("unknown mode: %s", mode)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	switch mode {
	case "run":
		return a.runBatch(ctx)
	case "recheck":
		_, err := a.recheck(ctx)
		return err
	default:
		return a.serve(ctx)
	}
}
