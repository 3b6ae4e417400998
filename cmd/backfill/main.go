package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/b3quotes/b3-quote-service/internal/config"
	"github.com/b3quotes/b3-quote-service/internal/database"
	"github.com/b3quotes/b3-quote-service/internal/extract"
	"github.com/b3quotes/b3-quote-service/internal/kafka"
	"github.com/b3quotes/b3-quote-service/internal/logging"
	"github.com/b3quotes/b3-quote-service/internal/parse"
	"github.com/b3quotes/b3-quote-service/internal/pipeline"
	"github.com/b3quotes/b3-quote-service/internal/storage"
)

// Backfill purges the quote table and reloads a historical window of
// trading days in parallel.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	days := flag.Int("days", cfg.Pipeline.BackfillDays, "number of calendar days to backfill, ending yesterday")
	flag.Parse()

	logger := logging.New(cfg.LogLevel)

	store, err := storage.NewFSStore(cfg.Storage.DataDir)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}

	loaders := func() (pipeline.Loader, error) {
		return database.Connect(cfg.Database.ConnectionString(), database.RetryPolicy{
			MaxRetries: cfg.Database.MaxRetries,
			Interval:   cfg.Database.RetryInterval,
		}, logger)
	}

	var events pipeline.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		events = producer
	}

	orch := pipeline.New(
		extract.New(cfg.Source, store, logger),
		parse.New(logger),
		store, loaders, events, cfg.Pipeline, logger,
	)

	summary, err := orch.RunBackfill(context.Background(), *days)
	if err != nil {
		logger.Error("backfill aborted", "error", err)
		os.Exit(1)
	}
	if summary.Failed > 0 && summary.Succeeded == 0 {
		os.Exit(1)
	}
}
