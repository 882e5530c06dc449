package padmapper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"padmapper-scraper/config"
	"padmapper-scraper/utils"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SearchURL:          "https://www.padmapper.com/apartments/los-angeles-ca",
		BaseURL:            "https://www.padmapper.com",
		MaxRetries:         3,
		MaxScrolls:         20,
		StallLimit:         2,
		ScrollWaitMs:       0,
		PageLoadTimeoutSec: 1,
		HTTPTimeoutSec:     5,
		DataDir:            t.TempDir(),
		DebugDir:           t.TempDir(),
	}
}

func fastDiscovery(cfg *config.Config, factory SessionFactory, client *http.Client) *Discovery {
	d := NewDiscovery(cfg, utils.NewLogger(), factory, client)
	d.scrollJitterMin = time.Millisecond
	d.scrollJitterMax = 2 * time.Millisecond
	d.loopDelayMin = time.Millisecond
	d.loopDelayMax = 2 * time.Millisecond
	d.retryDelayMin = time.Millisecond
	d.retryDelayMax = 2 * time.Millisecond
	d.initialDelayMin = time.Millisecond
	d.initialDelayMax = 2 * time.Millisecond
	return d
}

// scrollingSession simulates an infinite-scroll page: each scroll advances
// to the next snapshot of markup and document height.
type scrollingSession struct {
	fakeSession
	pages   []string
	heights []float64
	idx     int
}

func newScrollingSession(pages []string, heights []float64) *scrollingSession {
	s := &scrollingSession{pages: pages, heights: heights}
	s.htmlFn = func() (string, error) {
		return s.pages[s.idx], nil
	}
	s.evaluateFn = func(script string, out any) error {
		switch script {
		case scrollScript:
			if s.idx < len(s.pages)-1 {
				s.idx++
			}
		case heightScript:
			if p, ok := out.(*float64); ok {
				*p = s.heights[s.idx]
			}
		}
		return nil
	}
	return s
}

func anchorPage(hrefs ...string) string {
	page := "<html><body>"
	for _, h := range hrefs {
		page += fmt.Sprintf(`<a href="%s">listing</a>`, h)
	}
	return page + "</body></html>"
}

func TestDiscoverDeduplicatesAndStops(t *testing.T) {
	pages := []string{
		anchorPage("/apartments/la/unit-1"),
		anchorPage("/apartments/la/unit-1", "/apartments/la/unit-2", "/apartments/la/unit-1"),
		anchorPage("/apartments/la/unit-1", "/apartments/la/unit-2", "/apartments/la/unit-3"),
		anchorPage("/apartments/la/unit-1", "/apartments/la/unit-2", "/apartments/la/unit-3"),
	}
	heights := []float64{100, 200, 300, 300}
	session := newScrollingSession(pages, heights)
	cfg := testConfig(t)

	d := fastDiscovery(cfg, &fakeFactory{session: session}, http.DefaultClient)
	urls, err := d.Discover(context.Background(), 0)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	if len(urls) != 3 {
		t.Fatalf("got %d URLs, want 3 distinct: %v", len(urls), urls)
	}
	seen := make(map[string]int)
	for _, u := range urls {
		seen[u]++
	}
	for u, n := range seen {
		if n != 1 {
			t.Errorf("URL %s appears %d times, want exactly once", u, n)
		}
	}
	if want := cfg.BaseURL + "/apartments/la/unit-1"; seen[want] != 1 {
		t.Errorf("expected absolute URL %s in result", want)
	}
	if !session.released {
		t.Error("session was not released")
	}
}

func TestDiscoverHonorsLimit(t *testing.T) {
	pages := []string{
		anchorPage("/apartments/la/unit-1"),
		anchorPage("/apartments/la/unit-1", "/apartments/la/unit-2", "/apartments/la/unit-3"),
	}
	session := newScrollingSession(pages, []float64{100, 200})
	cfg := testConfig(t)

	d := fastDiscovery(cfg, &fakeFactory{session: session}, http.DefaultClient)
	urls, err := d.Discover(context.Background(), 2)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("got %d URLs, want limit of 2", len(urls))
	}
}

func TestDiscoverAbortsOnProtectionPage(t *testing.T) {
	blocked := `<html><head><title>Security Check</title></head><body>verify you are a human</body></html>`
	session := newScrollingSession([]string{blocked}, []float64{100})
	cfg := testConfig(t)

	d := fastDiscovery(cfg, &fakeFactory{session: session}, http.DefaultClient)
	urls, err := d.Discover(context.Background(), 0)
	if err == nil {
		t.Error("expected an error for a protection page")
	}
	if len(urls) != 0 {
		t.Errorf("got %d URLs, want empty result on protection page", len(urls))
	}
}

func TestDiscoverRetriesThenLooseSelector(t *testing.T) {
	calls := 0
	session := newScrollingSession(
		[]string{anchorPage("/apartments/la/unit-1")},
		[]float64{100},
	)
	session.waitForFn = func(selector string, timeout time.Duration) error {
		calls++
		// Primary selector times out on every attempt; the loose one works.
		if selector == looseSelector {
			return nil
		}
		return fmt.Errorf("timeout waiting for %q", selector)
	}
	cfg := testConfig(t)

	d := fastDiscovery(cfg, &fakeFactory{session: session}, http.DefaultClient)
	urls, err := d.Discover(context.Background(), 0)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(urls) != 1 {
		t.Errorf("got %d URLs, want 1", len(urls))
	}
	if calls != cfg.MaxRetries+1 {
		t.Errorf("WaitFor called %d times, want %d attempts plus one loose try", calls, cfg.MaxRetries+1)
	}
	if session.cleared != cfg.MaxRetries-1 {
		t.Errorf("cookies cleared %d times, want %d", session.cleared, cfg.MaxRetries-1)
	}
}

func TestDiscoverHTTP(t *testing.T) {
	page := `<html><body>
		<a href="/apartments/la/unit-1">one</a>
		<a href="/apartments/la/unit-1">dup</a>
		<a href="/buildings/p555">building</a>
		<a href="/about">ignored</a>
	</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.SearchURL = server.URL
	cfg.BaseURL = "https://www.padmapper.com"

	d := fastDiscovery(cfg, &fakeFactory{}, server.Client())
	urls, err := d.DiscoverHTTP(context.Background(), 0)
	if err != nil {
		t.Fatalf("DiscoverHTTP returned error: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("got %d URLs, want 2: %v", len(urls), urls)
	}
	for _, u := range urls {
		if u != "https://www.padmapper.com/apartments/la/unit-1" &&
			u != "https://www.padmapper.com/buildings/p555" {
			t.Errorf("unexpected URL %s", u)
		}
	}
}

func TestDiscoverHTTPBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.SearchURL = server.URL
	cfg.MaxRetries = 1

	d := fastDiscovery(cfg, &fakeFactory{}, server.Client())
	urls, err := d.DiscoverHTTP(context.Background(), 0)
	if err == nil {
		t.Error("expected error on non-2xx status")
	}
	if len(urls) != 0 {
		t.Errorf("got %d URLs, want 0", len(urls))
	}
}
