package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"padmapper-scraper/config"
	"padmapper-scraper/models"
	"padmapper-scraper/scraper/padmapper"
	"padmapper-scraper/storage"
	"padmapper-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== PadMapper Scraping System starting ===")
	logger.Info("Config — search: %s | limit: %d | strategy: %s | retries: %d",
		cfg.SearchURL, cfg.Limit, cfg.Strategy, cfg.MaxRetries)

	if err := os.MkdirAll(cfg.DebugDir, 0755); err != nil {
		logger.Error("Failed to create debug dir: %v", err)
		os.Exit(1)
	}

	store, err := storage.NewJSONStore(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to create output store: %v", err)
		os.Exit(1)
	}
	logger.Info("Run artifacts will be written to %s", store.RunDir())

	// An interrupt cancels the context, which tears down any acquired
	// browser session before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strategy := models.StrategyBrowser
	if cfg.Strategy == string(models.StrategyHTTP) {
		strategy = models.StrategyHTTP
	}

	scraper := padmapper.New(cfg, logger, store)
	ok := scraper.Run(ctx, cfg.Limit, strategy)
	if !ok {
		logger.Error("Run failed: no listings discovered")
		os.Exit(1)
	}

	if cfg.PostgresEnabled {
		persistToPostgres(cfg, logger, store)
	}

	logger.Info("Run complete. Output → %s", store.RunDir())
}

// persistToPostgres mirrors the run's batch into PostgreSQL when enabled.
// A storage failure here does not change the run result.
func persistToPostgres(cfg *config.Config, logger *utils.Logger, store *storage.JSONStore) {
	pg, err := storage.NewPostgresWriter(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		return
	}
	defer pg.Close()

	batch, err := store.ReadBatch()
	if err != nil {
		logger.Error("Failed to reload batch for PostgreSQL: %v", err)
		return
	}
	if err := pg.Write(batch); err != nil {
		logger.Error("PostgreSQL write failed: %v", err)
		return
	}
	logger.Info("Batch stored in PostgreSQL (table: listings)")
}
