// Package scrape extracts readable text from web pages.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mohammad-safakhou/topicbook/config"
	"golang.org/x/time/rate"
)

// Scraper returns the text of the page at url.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

type Mode string

const (
	ParagraphMode   Mode = "goquery"
	ReadabilityMode Mode = "readability"
	ChromedpMode    Mode = "chromedp"
)

const (
	DefaultTimeout  = 10 * time.Second
	MaxCharsDefault = 20000
	maxBodyBytes    = 8 << 20
)

var (
	ErrUnsupportedMode = errors.New("unsupported scrape mode")
	ErrNotHTML         = errors.New("response is not html")
)

// DefaultUserAgents is used when no pool is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
}

// New builds the scraper for cfg.Mode.
func New(cfg config.ScrapeConfig) (Scraper, error) {
	f := newFetcher(cfg)
	switch Mode(cfg.Mode) {
	case ParagraphMode, "":
		return &Paragraphs{fetch: f}, nil
	case ReadabilityMode:
		return &Readability{fetch: f}, nil
	case ChromedpMode:
		return &Chromedp{fetch: f}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, cfg.Mode)
	}
}

// fetcher holds what every mode shares: timeout, user agents, pacing and the
// output cap.
type fetcher struct {
	client   *http.Client
	timeout  time.Duration
	agents   []string
	next     atomic.Uint64
	limiter  *rate.Limiter
	maxChars int
}

func newFetcher(cfg config.ScrapeConfig) *fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}
	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &fetcher{
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		agents:   append([]string(nil), agents...),
		limiter:  limiter,
		maxChars: maxChars,
	}
}

// userAgent rotates through the pool.
func (f *fetcher) userAgent() string {
	idx := f.next.Add(1) - 1
	return f.agents[idx%uint64(len(f.agents))]
}

func (f *fetcher) wait(ctx context.Context) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// get downloads an HTML page.
func (f *fetcher) get(ctx context.Context, url string) ([]byte, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTML(ct) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, ct)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml")
}
