// Package fetch retrieves candidate web pages over HTTP.
//
// The fetcher follows redirects (bounded), reports the final URL, and caps
// body size. URL validation runs before the request and again on every
// redirect hop.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BrowserUserAgent is sent by default. Documentation hosts routinely serve
// bot user agents a challenge page with no article text.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Result contains the outcome of a fetch.
type Result struct {
	Body       []byte
	StatusCode int
	FinalURL   string // after redirects
	Hash       string // SHA-256 of body
}

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // HTTP timeout. Default: 15s.
	MaxBytes int64         // Max response body size. Default: 10MB.
	// UserAgent sent with requests. Default: BrowserUserAgent.
	UserAgent string
	// URLValidator validates URLs before fetch and on each redirect.
	// Default: allow everything.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024 // 10MB
	}
	if c.UserAgent == "" {
		c.UserAgent = BrowserUserAgent
	}
	if c.URLValidator == nil {
		c.URLValidator = func(string) error { return nil }
	}
}

// Fetcher performs HTTP GETs with redirect validation.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves a URL and returns the body plus the final URL after
// redirects. Non-2xx/3xx statuses return an error alongside the status code.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	if err := f.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("URL blocked: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &Result{StatusCode: resp.StatusCode, FinalURL: finalURL},
			fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	h := sha256.Sum256(body)
	return &Result{
		Body:       body,
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
		Hash:       fmt.Sprintf("%x", h),
	}, nil
}
