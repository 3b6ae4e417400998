package main

import (
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/b3quotes/b3-quote-service/internal/api"
	"github.com/b3quotes/b3-quote-service/internal/cache"
	"github.com/b3quotes/b3-quote-service/internal/config"
	"github.com/b3quotes/b3-quote-service/internal/database"
	"github.com/b3quotes/b3-quote-service/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	db, err := database.Connect(cfg.Database.ConnectionString(), database.RetryPolicy{
		MaxRetries: cfg.Database.MaxRetries,
		Interval:   cfg.Database.RetryInterval,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var quoteCache api.QuoteCache
	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis)
		defer c.Close()
		quoteCache = c
		logger.Info("quote cache enabled", "addr", cfg.Redis.Addr)
	}

	handler := api.NewHandler(db, quoteCache, logger)
	router := api.SetupRoutes(handler)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting API server", "addr", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
