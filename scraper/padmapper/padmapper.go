package padmapper

import (
	"context"
	"net/http"
	"time"

	"padmapper-scraper/config"
	"padmapper-scraper/models"
	"padmapper-scraper/services"
	"padmapper-scraper/storage"
	"padmapper-scraper/utils"
)

type urlDiscoverer interface {
	Discover(ctx context.Context, limit int) ([]string, error)
	DiscoverHTTP(ctx context.Context, limit int) ([]string, error)
}

type contentFetcher interface {
	Fetch(ctx context.Context, url string) (*models.RawContent, error)
}

// Scraper coordinates one end-to-end run: discovery, fetch, parse, persist,
// statistics. Per-listing failures are isolated; only an empty discovery
// result fails the run.
type Scraper struct {
	cfg       *config.Config
	logger    *utils.Logger
	discovery urlDiscoverer
	fetcher   contentFetcher
	parser    *Parser
	store     storage.RunWriter
	stats     *services.StatsService

	// Randomized inter-listing pause bounds.
	delayMin time.Duration
	delayMax time.Duration
}

// New creates a ready-to-use Scraper writing artifacts through store.
func New(cfg *config.Config, logger *utils.Logger, store storage.RunWriter) *Scraper {
	factory := NewChromeFactory(cfg, logger)
	client := &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSec) * time.Second}

	return &Scraper{
		cfg:       cfg,
		logger:    logger,
		discovery: NewDiscovery(cfg, logger, factory, client),
		fetcher:   NewDetailFetcher(cfg, logger, factory, client),
		parser:    NewParser(logger),
		store:     store,
		stats:     services.NewStatsService(logger),
		delayMin:  2 * time.Second,
		delayMax:  5 * time.Second,
	}
}

// Run executes one snapshot run. It returns true when discovery produced at
// least one URL, regardless of per-listing failures.
func (s *Scraper) Run(ctx context.Context, limit int, strategy models.Strategy) bool {
	s.logger.Info("[run] starting scraper run (limit: %d, strategy: %s)", limit, strategy)

	var (
		urls []string
		err  error
	)
	switch strategy {
	case models.StrategyHTTP:
		urls, err = s.discovery.DiscoverHTTP(ctx, limit)
	default:
		urls, err = s.discovery.Discover(ctx, limit)
	}
	if err != nil {
		s.logger.Error("[run] discovery failed: %v", err)
	}
	if len(urls) == 0 {
		s.logger.Error("[run] no listing URLs found")
		return false
	}
	s.logger.Info("[run] found %d listings to process", len(urls))

	if err := s.store.WriteSnapshot("discovery", map[string]any{
		"strategy": strategy,
		"urls":     urls,
	}); err != nil {
		s.logger.Warn("[run] %v", err)
	}

	var batch []*models.Listing
	for _, url := range urls {
		if ctx.Err() != nil {
			s.logger.Warn("[run] interrupted, stopping after %d listings", len(batch))
			break
		}

		listing := s.processListing(ctx, url)
		if listing != nil {
			batch = append(batch, listing)
		}

		utils.SleepJitter(ctx, s.delayMin, s.delayMax)
	}

	if err := s.store.WriteBatch(batch); err != nil {
		s.logger.Error("[run] persist batch: %v", err)
	} else {
		s.logger.Info("[run] saved %d listings", len(batch))
	}

	s.stats.Log(s.stats.Generate(batch))
	return true
}

// processListing runs the fetch/parse/persist steps for one URL. Any failure
// is logged and yields nil; it never aborts the run.
func (s *Scraper) processListing(ctx context.Context, url string) *models.Listing {
	content, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.logger.Error("[run] error processing listing %s: %v", url, err)
		return nil
	}

	listing := s.parser.Parse(content)
	if listing == nil {
		s.logger.Error("[run] could not parse listing %s", url)
		return nil
	}

	if err := s.store.WriteListing(listing); err != nil {
		s.logger.Error("[run] persist listing %s: %v", listing.ID, err)
	}
	return listing
}
