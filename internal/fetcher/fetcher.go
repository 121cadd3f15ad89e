// Package fetcher retrieves listing pages over HTTP with browser-emulation
// headers and retry-with-backoff, plus an optional rendered-page path for
// markup that only appears after script execution.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oleksdev/silpo-scraper/internal/browser"
)

// Attempt failure reasons surfaced in FetchError.
const (
	ReasonNotFound    = "not found"
	ReasonBlocked     = "forbidden/blocked"
	ReasonRateLimited = "rate limited"
	ReasonTimeout     = "timeout"
	ReasonConnection  = "connection error"
	ReasonShortBody   = "short response"
	ReasonNotHTML     = "not html"
)

const (
	// Responses shorter than this are error pages, not listings.
	minBodyChars = 1000

	// A doctype or html tag must appear this early in a real page.
	htmlMarkerWindow = 500
)

// browserHeaders emulates a real Chrome session; Silpo rejects bare
// clients. Accept-Encoding is deliberately absent so the transport
// negotiates gzip and decompresses transparently.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
	"Accept-Language":           "uk-UA,uk;q=0.9,en-US;q=0.8,en;q=0.7,ru;q=0.6",
	"Cache-Control":             "max-age=0",
	"DNT":                       "1",
	"Priority":                  "u=0, i",
	"Referer":                   "https://silpo.ua/",
	"Sec-Ch-Ua":                 `"Not A(Brand";v="99", "Google Chrome";v="131", "Chromium";v="131"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"Windows"`,
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "same-origin",
	"Sec-Fetch-User":            "?1",
	"Upgrade-Insecure-Requests": "1",
}

// FetchError carries the last attempt's failure reason after all retries
// are exhausted.
type FetchError struct {
	URL      string
	Attempts int
	Reason   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %s", e.URL, e.Attempts, e.Reason)
}

// Fetcher issues paced GET requests over a pooled connection. The browser
// collaborator is optional; when absent the rendered path degrades to the
// plain one.
type Fetcher struct {
	client     *http.Client
	browser    *browser.Browser
	retryDelay time.Duration
	logger     *slog.Logger
}

type Options struct {
	Timeout    time.Duration
	RetryDelay time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		Timeout:    15 * time.Second,
		RetryDelay: 2 * time.Second,
	}
}

// New builds a Fetcher. Pass a nil browser to disable the rendered path.
func New(opts *Options, b *browser.Browser) *Fetcher {
	if opts == nil {
		opts = DefaultOptions()
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		browser:    b,
		retryDelay: opts.RetryDelay,
		logger:     slog.Default().With("component", "fetcher"),
	}
}

// Fetch retrieves a page, retrying up to maxAttempts. The backoff between
// failed attempts is linear: retryDelay×1 after the first failure,
// retryDelay×2 after the second, and so on; no sleep follows the last
// attempt. On exhaustion the returned error is a *FetchError carrying the
// last attempt's reason.
func (f *Fetcher) Fetch(ctx context.Context, url string, maxAttempts int) (string, error) {
	var lastReason string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		f.logger.Debug("fetching", "url", url, "attempt", attempt, "max", maxAttempts)

		body, reason := f.attempt(ctx, url)
		if reason == "" {
			f.logger.Info("fetched page", "url", url, "chars", len(body), "attempt", attempt)
			return body, nil
		}

		lastReason = reason
		f.logger.Warn("fetch attempt failed", "url", url, "attempt", attempt, "reason", reason)

		if attempt < maxAttempts {
			delay := f.retryDelay * time.Duration(attempt)
			f.logger.Debug("waiting before retry", "delay", delay)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return "", &FetchError{URL: url, Attempts: maxAttempts, Reason: lastReason}
}

// FetchRendered loads the page in the scripted browsing context, used for
// the first page of a run where pagination discovery needs fully rendered
// content. Any browser failure falls back transparently to the plain path
// with the same contract.
func (f *Fetcher) FetchRendered(ctx context.Context, url string, maxAttempts int) (string, error) {
	if f.browser == nil {
		f.logger.Debug("no browser available, using plain fetch", "url", url)
		return f.Fetch(ctx, url, maxAttempts)
	}

	html, err := f.browser.FetchPage(url)
	if err != nil {
		f.logger.Warn("rendered fetch failed, falling back to plain fetch", "url", url, "error", err)
		return f.Fetch(ctx, url, maxAttempts)
	}

	return html, nil
}

// attempt performs one GET and classifies the outcome. An empty reason
// means success.
func (f *Fetcher) attempt(ctx context.Context, url string) (string, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", ReasonConnection
	}
	for key, value := range browserHeaders {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", ReasonTimeout
		}
		return "", ReasonConnection
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ReasonNotFound
	case resp.StatusCode == http.StatusForbidden:
		return "", ReasonBlocked
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ReasonRateLimited
	case resp.StatusCode >= 400:
		return "", fmt.Sprintf("http error %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return "", ReasonTimeout
		}
		return "", ReasonConnection
	}

	body := string(data)
	if utf8.RuneCountInString(body) < minBodyChars {
		return "", ReasonShortBody
	}

	head := body
	if len(head) > htmlMarkerWindow {
		head = head[:htmlMarkerWindow]
	}
	if !strings.Contains(head, "DOCTYPE") && !strings.Contains(head, "<html") {
		return "", ReasonNotHTML
	}

	return body, ""
}

// Close releases the pooled connections and the scripted browsing context.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()

	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			return fmt.Errorf("failed to close browser: %w", err)
		}
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
