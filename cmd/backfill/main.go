// Package main is the entry point for the embedding backfill job.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odfp/odfp/internal/ai/openai"
	"github.com/odfp/odfp/internal/backfill"
	"github.com/odfp/odfp/internal/catalog"
	"github.com/odfp/odfp/internal/config"
	"github.com/odfp/odfp/internal/db"
	"github.com/odfp/odfp/internal/jobs"
	"github.com/odfp/odfp/internal/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	batchSize := flag.Int("batch", backfill.DefaultBatchSize, "records embedded per batch")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("ODFP Embedding Backfill")
		fmt.Println()
		fmt.Println("Computes embeddings for catalog records that have none and stores")
		fmt.Println("them back. Requires DATABASE_URL and a configured AI backend.")
		fmt.Println()
		fmt.Println("Usage: backfill [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if err := run(cfg, *batchSize, logger); err != nil {
		logger.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, batchSize int, logger *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	aiCfg := cfg.AI()
	if !aiCfg.Configured() {
		return fmt.Errorf("AI_BASE_URL and AI_EMBEDDING_MODEL are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	embedder, err := openai.NewEmbedder(aiCfg)
	if err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}

	metrics := jobs.NewMetrics()
	if err := metrics.Register(prometheus.NewRegistry()); err != nil {
		return fmt.Errorf("register job metrics: %w", err)
	}

	store := catalog.NewPostgresStore(sqlDB, logger)
	runner, err := backfill.NewRunner(store, embedder, logger, backfill.Options{
		BatchSize: batchSize,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}

	logger.Info("starting embedding backfill", "batch_size", batchSize)
	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("embedding backfill complete", "embedded", stats.Embedded(),
		"skipped", stats.Skipped(), "failed", stats.Failed())
	return nil
}
