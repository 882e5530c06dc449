package padmapper

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"padmapper-scraper/config"
	"padmapper-scraper/utils"
)

const (
	// listingSelector matches the search result cards. The obfuscated class
	// comes first; the anchor pattern catches markup revisions.
	listingSelector = ".ListingCardstyles__LinkContainer-h2iq0y-1, a[href*='/apartments/']"
	looseSelector   = "a[href*='/apartments/']"

	scrollScript = `window.scrollTo(0, document.body.scrollHeight)`
	heightScript = `document.body.scrollHeight`
)

// Discovery collects deduplicated listing URLs from the search page, either
// by driving a browser through scroll pagination or by a direct fetch of the
// server-rendered markup.
type Discovery struct {
	cfg      *config.Config
	logger   *utils.Logger
	factory  SessionFactory
	detector *ProtectionDetector
	client   *http.Client

	// Pause bounds for the scroll loop and page-load retries.
	scrollJitterMin time.Duration
	scrollJitterMax time.Duration
	loopDelayMin    time.Duration
	loopDelayMax    time.Duration
	retryDelayMin   time.Duration
	retryDelayMax   time.Duration
	initialDelayMin time.Duration
	initialDelayMax time.Duration
}

// NewDiscovery wires a Discovery over the given session factory and HTTP
// client.
func NewDiscovery(cfg *config.Config, logger *utils.Logger, factory SessionFactory, client *http.Client) *Discovery {
	return &Discovery{
		cfg:      cfg,
		logger:   logger,
		factory:  factory,
		detector: NewProtectionDetector(logger),
		client:   client,

		scrollJitterMin: time.Second,
		scrollJitterMax: 2 * time.Second,
		loopDelayMin:    time.Second,
		loopDelayMax:    3 * time.Second,
		retryDelayMin:   5 * time.Second,
		retryDelayMax:   10 * time.Second,
		initialDelayMin: 2 * time.Second,
		initialDelayMax: 5 * time.Second,
	}
}

// Discover drives the browser through the search page's infinite scroll and
// returns listing URLs in discovery order. limit <= 0 means unbounded.
func (d *Discovery) Discover(ctx context.Context, limit int) ([]string, error) {
	session, err := d.factory.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	defer session.Release()

	utils.SleepJitter(ctx, d.initialDelayMin, d.initialDelayMax)

	if err := d.waitForSearchPage(ctx, session); err != nil {
		return nil, err
	}

	content, err := session.HTML()
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	if d.detector.Blocked(content) {
		return nil, fmt.Errorf("discovery: protection page detected on search results")
	}

	if err := session.Screenshot(filepath.Join(d.cfg.DebugDir, "debug_screenshot.png")); err != nil {
		d.logger.Warn("[discovery] screenshot failed: %v", err)
	}

	urls := d.scrollAndCollect(ctx, session, limit)

	if urls.Size() == 0 {
		d.logger.Warn("[discovery] no listing URLs found, the site may be blocking us")
		d.dumpPageSource(session, "debug_page.html")
		return nil, nil
	}

	result := urls.URLs()
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	d.logger.Info("[discovery] found %d unique listing URLs", len(result))
	return result, nil
}

// waitForSearchPage navigates to the search URL and waits for listing cards,
// clearing cookies and backing off between attempts. After the final failure
// it tries the looser selector once.
func (d *Discovery) waitForSearchPage(ctx context.Context, session Session) error {
	timeout := time.Duration(d.cfg.PageLoadTimeoutSec) * time.Second

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		if err := session.Navigate(d.cfg.SearchURL); err != nil {
			lastErr = err
		} else {
			d.logger.Info("[discovery] waiting for page to load (attempt %d/%d)", attempt, d.cfg.MaxRetries)
			err := session.WaitFor(listingSelector, timeout)
			if err == nil {
				d.logger.Info("[discovery] page loaded, scraping listing URLs")
				return nil
			}
			lastErr = err
		}

		if attempt < d.cfg.MaxRetries {
			d.logger.Warn("[discovery] timed out on attempt %d, clearing cookies and retrying", attempt)
			if err := session.ClearCookies(); err != nil {
				d.logger.Warn("[discovery] %v", err)
			}
			utils.SleepJitter(ctx, d.retryDelayMin, d.retryDelayMax)
		}
	}

	// Secondary, looser marker before giving up.
	d.logger.Info("[discovery] trying alternative selector")
	if err := session.WaitFor(looseSelector, 10*time.Second); err == nil {
		d.logger.Info("[discovery] found alternative elements, continuing")
		return nil
	}
	return fmt.Errorf("discovery: no listing elements after %d attempts: %w", d.cfg.MaxRetries, lastErr)
}

// scrollAndCollect repeats the scroll/scan cycle until the stall ceiling,
// the iteration ceiling or the requested limit is reached.
func (d *Discovery) scrollAndCollect(ctx context.Context, session Session, limit int) *utils.URLSet {
	seen := utils.NewURLSet()
	pause := time.Duration(d.cfg.ScrollWaitMs) * time.Millisecond

	var prevHeight float64
	if err := session.Evaluate(heightScript, &prevHeight); err != nil {
		d.logger.Warn("[discovery] %v", err)
	}

	stalls := 0
	for iter := 0; iter < d.cfg.MaxScrolls; iter++ {
		if ctx.Err() != nil {
			break
		}

		if err := session.Evaluate(scrollScript, nil); err != nil {
			d.logger.Warn("[discovery] scroll failed: %v", err)
			break
		}
		utils.SleepJitter(ctx, pause+d.scrollJitterMin, pause+d.scrollJitterMax)

		content, err := session.HTML()
		if err != nil {
			d.logger.Warn("[discovery] %v", err)
			break
		}
		d.collectAnchors(content, seen)
		d.logger.Info("[discovery] found %d listing URLs so far", seen.Size())

		var height float64
		if err := session.Evaluate(heightScript, &height); err != nil {
			d.logger.Warn("[discovery] %v", err)
			break
		}
		if height == prevHeight {
			stalls++
			d.logger.Info("[discovery] no new content loaded, attempt %d/%d", stalls, d.cfg.StallLimit)
			if stalls >= d.cfg.StallLimit {
				d.logger.Info("[discovery] reached maximum scroll attempts, stopping")
				break
			}
		} else {
			stalls = 0
			prevHeight = height
		}

		utils.SleepJitter(ctx, d.loopDelayMin, d.loopDelayMax)

		if limit > 0 && seen.Size() >= limit {
			d.logger.Info("[discovery] reached the limit of %d listings", limit)
			break
		}
	}

	return seen
}

// collectAnchors scans the rendered markup for listing anchors, falling back
// to the looser selector when the primary one matches nothing.
func (d *Discovery) collectAnchors(content string, seen *utils.URLSet) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		d.logger.Warn("[discovery] parse page: %v", err)
		return
	}

	links := doc.Find(listingSelector)
	if links.Length() == 0 {
		links = doc.Find(looseSelector)
	}

	links.Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.HasPrefix(href, "/apartments/") {
			return
		}
		seen.Add(d.cfg.BaseURL + href)
	})
}

// DiscoverHTTP is the HTTP-only discovery variant: a single direct fetch of
// the search page, scanned with a wider selector list.
func (d *Discovery) DiscoverHTTP(ctx context.Context, limit int) ([]string, error) {
	utils.SleepJitter(ctx, d.initialDelayMin, d.initialDelayMax)
	d.logger.Info("[discovery] using fallback method to get listing URLs")

	retry := &utils.RetryConfig{MaxAttempts: d.cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: d.logger}

	var body string
	err := retry.Do("discovery-http", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.SearchURL, nil)
		if err != nil {
			return err
		}
		setBrowserHeaders(req)

		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.Header.Get("cf-ray") != "" {
			d.logger.Warn("[discovery] Cloudflare detected, might need to adjust approach")
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("search page returned status %d", resp.StatusCode)
		}

		b, err := readBody(resp)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	d.writeDebugFile("fallback_debug_page.html", body)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("discovery: parse search page: %w", err)
	}

	seen := utils.NewURLSet()
	selectors := []string{
		looseSelector,
		".ListingCardstyles__LinkContainer-h2iq0y-1",
		"a[href*='/buildings/']",
	}
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			if !strings.Contains(href, "/apartments/") && !strings.Contains(href, "/buildings/") {
				return
			}
			if strings.HasPrefix(href, "/") {
				href = d.cfg.BaseURL + href
			}
			seen.Add(href)
		})
	}

	result := seen.URLs()
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	d.logger.Info("[discovery] found %d listing URLs", len(result))
	return result, nil
}

// dumpPageSource saves the current page markup for diagnosis.
func (d *Discovery) dumpPageSource(session Session, name string) {
	content, err := session.HTML()
	if err != nil {
		d.logger.Warn("[discovery] %v", err)
		return
	}
	d.writeDebugFile(name, content)
}

func (d *Discovery) writeDebugFile(name, content string) {
	path := filepath.Join(d.cfg.DebugDir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		d.logger.Warn("[discovery] write %s: %v", path, err)
		return
	}
	d.logger.Info("[discovery] saved debug artifact to %s", path)
}
