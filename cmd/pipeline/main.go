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
	"github.com/b3quotes/b3-quote-service/internal/marketday"
	"github.com/b3quotes/b3-quote-service/internal/parse"
	"github.com/b3quotes/b3-quote-service/internal/pipeline"
	"github.com/b3quotes/b3-quote-service/internal/storage"
)

func main() {
	dayKey := flag.String("day", "", "explicit trading day to process (yymmdd); default: most recent available")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	orch, cleanup, err := buildOrchestrator(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx := context.Background()

	if *dayKey != "" {
		day, err := marketday.ParseKey(*dayKey)
		if err != nil {
			logger.Error("invalid day flag", "error", err)
			os.Exit(1)
		}
		res := orch.RunDay(ctx, day)
		logger.Info("day finished", "day", res.DayKey, "status", string(res.Status), "quotes", res.Quotes)
		if res.Status == pipeline.StatusFailed {
			logger.Error("day failed", "day", res.DayKey, "stage", string(res.Stage), "error", res.Err)
			os.Exit(1)
		}
		return
	}

	summary := orch.RunLatest(ctx)
	if summary.Succeeded == 0 {
		os.Exit(1)
	}
}

func buildOrchestrator(cfg *config.Config, logger *slog.Logger) (*pipeline.Orchestrator, func(), error) {
	store, err := storage.NewFSStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, err
	}

	extractor := extract.New(cfg.Source, store, logger)
	parser := parse.New(logger)

	loaders := func() (pipeline.Loader, error) {
		return database.Connect(cfg.Database.ConnectionString(), database.RetryPolicy{
			MaxRetries: cfg.Database.MaxRetries,
			Interval:   cfg.Database.RetryInterval,
		}, logger)
	}

	cleanup := func() {}
	var events pipeline.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		events = producer
		cleanup = func() { producer.Close() }
	}

	return pipeline.New(extractor, parser, store, loaders, events, cfg.Pipeline, logger), cleanup, nil
}
