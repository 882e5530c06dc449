package padmapper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"padmapper-scraper/config"
	"padmapper-scraper/models"
	"padmapper-scraper/utils"
)

// retryBaseDelay scales the per-attempt wait timeout in the browser fetch
// path: attempt N waits up to N * retryBaseDelay.
const retryBaseDelay = 5 * time.Second

var errProtected = errors.New("protection page detected")

// DetailFetcher acquires listing page content, preferring a direct HTTP
// request against the building endpoint when a building id is derivable from
// the URL, and falling back to a browser-rendered fetch with protection
// recovery.
type DetailFetcher struct {
	cfg      *config.Config
	logger   *utils.Logger
	factory  SessionFactory
	client   *http.Client
	detector *ProtectionDetector

	// baseDelay scales the per-attempt wait timeout; preDelayMin/Max bound
	// the randomized pause before each navigation.
	baseDelay   time.Duration
	preDelayMin time.Duration
	preDelayMax time.Duration
}

// NewDetailFetcher wires a DetailFetcher over the given session factory and
// HTTP client.
func NewDetailFetcher(cfg *config.Config, logger *utils.Logger, factory SessionFactory, client *http.Client) *DetailFetcher {
	return &DetailFetcher{
		cfg:      cfg,
		logger:   logger,
		factory:  factory,
		client:   client,
		detector: NewProtectionDetector(logger),

		baseDelay:   retryBaseDelay,
		preDelayMin: 2 * time.Second,
		preDelayMax: 4 * time.Second,
	}
}

// Fetch returns the content behind url. Failure is scoped to this URL; the
// caller decides whether to continue the run.
func (f *DetailFetcher) Fetch(ctx context.Context, url string) (*models.RawContent, error) {
	if id, ok := BuildingID(url); ok {
		content, err := f.FetchBuilding(ctx, id)
		if err == nil {
			return content, nil
		}
		f.logger.Warn("[fetch] direct fetch for building %s failed (%v), falling back to browser", id, err)
	}
	return f.FetchBrowser(ctx, url)
}

// BuildingID derives the stable building identifier from a /buildings/p<id>
// URL.
func BuildingID(url string) (string, bool) {
	const marker = "/buildings/p"
	i := strings.Index(url, marker)
	if i < 0 {
		return "", false
	}
	id := url[i+len(marker):]
	if j := strings.IndexByte(id, '/'); j >= 0 {
		id = id[:j]
	}
	if id == "" {
		return "", false
	}
	return id, true
}

// FetchBuilding requests the building page for id directly over HTTP.
func (f *DetailFetcher) FetchBuilding(ctx context.Context, id string) (*models.RawContent, error) {
	url := fmt.Sprintf("%s/buildings/p%s", f.cfg.BaseURL, id)
	f.logger.Info("[fetch] fetching HTML content for building %s", id)

	utils.SleepJitter(ctx, f.preDelayMin/2, f.preDelayMax/2)

	body, err := f.fetchDirect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch: building %s: %w", id, err)
	}

	f.writeDebugFile(fmt.Sprintf("building_%s.html", id), body)

	return &models.RawContent{
		URL:       url,
		Body:      body,
		Method:    models.FetchDirect,
		FetchedAt: time.Now(),
	}, nil
}

// fetchDirect performs a single GET with browser-like headers. No protection
// recovery: a non-2xx status or network error fails immediately.
func (f *DetailFetcher) fetchDirect(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	setBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return readBody(resp)
}

// FetchBrowser renders url in a scoped browser session, retrying with a
// growing wait timeout when the page times out or a protection page is
// served. Exhausting the retry budget fails this URL only.
func (f *DetailFetcher) FetchBrowser(ctx context.Context, url string) (*models.RawContent, error) {
	session, err := f.factory.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer session.Release()

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		f.logger.Info("[fetch] extracting details from %s (attempt %d/%d)", url, attempt, f.cfg.MaxRetries)
		utils.SleepJitter(ctx, f.preDelayMin, f.preDelayMax)

		wait := time.Duration(attempt) * f.baseDelay

		if err := session.Navigate(url); err != nil {
			lastErr = err
			continue
		}
		if err := session.WaitFor("body", wait); err != nil {
			lastErr = err
			if attempt < f.cfg.MaxRetries {
				f.logger.Warn("[fetch] timeout, retrying in %v", wait)
				sleepCtx(ctx, wait)
			}
			continue
		}

		content, err := session.HTML()
		if err != nil {
			lastErr = err
			continue
		}

		if f.detector.Blocked(content) {
			lastErr = errProtected
			if attempt < f.cfg.MaxRetries {
				f.logger.Warn("[fetch] protection detected, retrying in %v", wait)
				sleepCtx(ctx, wait)
			}
			continue
		}

		f.writeDebugFile(fmt.Sprintf("listing_debug_%d.html", time.Now().Unix()), content)

		return &models.RawContent{
			URL:       url,
			Body:      content,
			Method:    models.FetchBrowser,
			FetchedAt: time.Now(),
		}, nil
	}

	return nil, fmt.Errorf("fetch: %s failed after %d attempts: %w", url, f.cfg.MaxRetries, lastErr)
}

func (f *DetailFetcher) writeDebugFile(name, content string) {
	path := filepath.Join(f.cfg.DebugDir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		f.logger.Warn("[fetch] write %s: %v", path, err)
	}
}

// setBrowserHeaders makes a direct request look like a regular browser
// navigation.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Cache-Control", "max-age=0")
	req.Header.Set("DNT", "1")
}

func readBody(resp *http.Response) (string, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	return string(b), nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
