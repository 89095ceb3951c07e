package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/config"
	"github.com/David-Botos/pos-cleaner/pkg/logging"
	"github.com/David-Botos/pos-cleaner/pkg/transfer"
)

func main() {
	envFile := flag.String("env", "", "path to a .env file (default ./.env if present)")
	input := flag.String("input", "", "raw transactions CSV; overrides SOURCE_PATH")
	output := flag.String("output", "", "cleaned CSV path; overrides OUTPUT_CSV")
	seed := flag.String("seed", "", "seed for the item tie-break; overrides RANDOM_SEED")
	showMetrics := flag.Bool("metrics", false, "print the run metrics report")
	flag.Parse()

	// Flags are applied as environment so .env files cannot override them
	overrides := map[string]string{
		"SOURCE_PATH": *input,
		"OUTPUT_CSV":  *output,
		"RANDOM_SEED": *seed,
	}
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			fmt.Fprintf(os.Stderr, "failed to set %s: %v\n", key, err)
			os.Exit(2)
		}
	}
	if *seed != "" {
		if _, err := strconv.ParseUint(*seed, 10, 64); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -seed %q: %v\n", *seed, err)
			os.Exit(2)
		}
	}

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithContext(ctx, logger)

	result, err := transfer.Run(ctx, cfg)
	if err != nil {
		logger.Error("Run failed",
			zap.String("category", transfer.CategorizeError(err).String()),
			zap.Error(err))
		if result != nil && result.Cleaning != nil {
			fmt.Println(result.Cleaning.Report.String())
		}
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}

	fmt.Println(result.Cleaning.Report.String())
	fmt.Println(result.Verification.String())
	if *showMetrics {
		fmt.Println(result.Metrics.GenerateMetricsReport())
	}
	for _, out := range result.Outputs {
		fmt.Printf("wrote %d rows to %s\n", out.Rows, out.Target)
	}
	if digest := result.Digest(); digest != "" {
		fmt.Printf("digest: %s\n", digest)
	}
}
