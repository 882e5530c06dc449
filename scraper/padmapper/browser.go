package padmapper

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"padmapper-scraper/config"
	"padmapper-scraper/utils"
)

// userAgents is the fixed pool of browser-like user agent strings drawn from
// on every session and direct request.
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0",
}

// randomUserAgent picks one entry from the user agent pool.
func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Session is the capability surface discovery and fetching consume. Hiding
// the automation library behind it keeps the pipeline testable without a
// browser.
type Session interface {
	Navigate(url string) error
	WaitFor(selector string, timeout time.Duration) error
	Evaluate(script string, out any) error
	Screenshot(path string) error
	HTML() (string, error)
	ClearCookies() error
	Release()
}

// SessionFactory acquires a Session scoped to ctx. Canceling ctx tears the
// session down even if Release is never reached.
type SessionFactory interface {
	Acquire(ctx context.Context) (Session, error)
}

// ChromeFactory creates chromedp-backed sessions configured to look like a
// regular desktop browser.
type ChromeFactory struct {
	cfg    *config.Config
	logger *utils.Logger
}

// NewChromeFactory returns a SessionFactory driving headless Chrome.
func NewChromeFactory(cfg *config.Config, logger *utils.Logger) *ChromeFactory {
	return &ChromeFactory{cfg: cfg, logger: logger}
}

type chromeSession struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// Acquire starts a browser with anti-detection flags, a randomized user
// agent and the navigator.webdriver marker masked. The caller must call
// Release on every exit path.
func (f *ChromeFactory) Acquire(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(randomUserAgent()),
	)
	if bin := findChromeBinary(f.cfg.ChromeBin); bin != "" {
		f.logger.Debug("[browser] using binary %s", bin)
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	s := &chromeSession{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
	}

	// Start the browser process and mask automation markers before the
	// first navigation.
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(
			`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`,
		).Do(ctx)
		return err
	}))
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("browser: start failed: %w", err)
	}

	return s, nil
}

func (s *chromeSession) Navigate(url string) error {
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitFor(selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("browser: wait for %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) Evaluate(script string, out any) error {
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("browser: evaluate: %w", err)
	}
	return nil
}

func (s *chromeSession) Screenshot(path string) error {
	var buf []byte
	if err := chromedp.Run(s.ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("browser: screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("browser: write screenshot %s: %w", path, err)
	}
	return nil
}

func (s *chromeSession) HTML() (string, error) {
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("browser: page source: %w", err)
	}
	return html, nil
}

func (s *chromeSession) ClearCookies() error {
	if err := chromedp.Run(s.ctx, network.ClearBrowserCookies()); err != nil {
		return fmt.Errorf("browser: clear cookies: %w", err)
	}
	return nil
}

// Release shuts the browser down. Safe to call more than once.
func (s *chromeSession) Release() {
	s.cancelCtx()
	s.cancelAlloc()
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the
// configured override.
func findChromeBinary(override string) string {
	if override != "" {
		return override
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
