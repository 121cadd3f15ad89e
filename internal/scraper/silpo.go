// Package scraper drives a scraping run: pagination discovery, sequential
// fetch→extract per page, persistence, pacing and run statistics.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oleksdev/silpo-scraper/internal/config"
	"github.com/oleksdev/silpo-scraper/internal/fetcher"
	"github.com/oleksdev/silpo-scraper/internal/models"
	"github.com/oleksdev/silpo-scraper/internal/parser"
	"github.com/oleksdev/silpo-scraper/internal/ratelimit"
)

// RecordSink receives page batches of extracted records.
type RecordSink interface {
	AppendProducts(ctx context.Context, records []models.ProductRecord) error
}

// RunLog receives structured per-page outcomes and run-level milestones.
type RunLog interface {
	AppendLog(entry models.LogEntry) error
}

var (
	pageParamRe = regexp.MustCompile(`[?&]page=(\d+)`)
	pageLinkRe  = regexp.MustCompile(`(?s)<a[^>]*href="[^"]*page=(\d+)[^"]*"[^>]*>.*?(\d+).*?</a>`)
)

// Silpo orchestrates one sequential run over the category listing.
type Silpo struct {
	cfg       *config.Config
	fetcher   *fetcher.Fetcher
	extractor *parser.Extractor
	sinks     []RecordSink
	runLog    RunLog
	limiter   ratelimit.Limiter
	logger    *slog.Logger

	runID      string
	batchStamp string
	startTime  time.Time
	stats      models.RunStats
}

func New(cfg *config.Config, f *fetcher.Fetcher, e *parser.Extractor, runLog RunLog, sinks ...RecordSink) *Silpo {
	runID := uuid.NewString()
	return &Silpo{
		cfg:        cfg,
		fetcher:    f,
		extractor:  e,
		sinks:      sinks,
		runLog:     runLog,
		limiter:    ratelimit.NewFixedDelay(cfg.Scraper.RequestDelay),
		logger:     slog.Default().With("component", "scraper", "run_id", runID),
		runID:      runID,
		batchStamp: time.Now().UTC().Format(time.RFC3339),
		startTime:  time.Now(),
	}
}

// Stats returns the run counters accumulated so far.
func (s *Silpo) Stats() models.RunStats {
	return s.stats
}

// Run executes the full workflow. Page-level failures are recorded and do
// not halt subsequent pages; a returned error is a run-level fatal
// condition and the caller should exit non-zero.
func (s *Silpo) Run(ctx context.Context) error {
	s.logger.Info("starting scraper run",
		"batch", s.batchStamp, "max_pages", s.cfg.Scraper.MaxPages, "base_url", s.cfg.Scraper.BaseURL)

	if err := s.run(ctx); err != nil {
		s.stats.ElapsedSeconds = time.Since(s.startTime).Seconds()
		s.appendRunLog(models.StepCriticalError, "run_scraper", err.Error(), "", models.StatusFailed)
		return err
	}

	s.stats.ElapsedSeconds = time.Since(s.startTime).Seconds()
	s.logger.Info("scraper run completed",
		"total_products", s.stats.TotalProducts,
		"pages_success", s.stats.PagesSuccess,
		"pages_failed", s.stats.PagesFailed,
		"elapsed", fmt.Sprintf("%.2fs", s.stats.ElapsedSeconds))
	s.appendRunLog(models.StepDone, "run_scraper", s.stats.JSON(), "", models.StatusSuccess)

	return nil
}

func (s *Silpo) run(ctx context.Context) error {
	s.logger.Info("testing connectivity")
	if !s.testConnectivity(ctx) {
		return fmt.Errorf("cannot reach %s: site may be blocked or down", s.cfg.Scraper.BaseURL)
	}

	s.logger.Info("discovering pagination")
	maxPage := s.findLastPage(ctx)
	urls := s.pageURLs(maxPage)
	s.logger.Info("generated page urls", "pages", len(urls))

	for i, url := range urls {
		pageNum := i + 1
		s.stats.PagesProcessed = pageNum

		if err := ctx.Err(); err != nil {
			return err
		}

		s.scrapePage(ctx, url, pageNum, len(urls))

		// Polite pacing between pages, skipped after the last one.
		if i < len(urls)-1 {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// scrapePage fetches and extracts one page. The first page goes through
// the rendered path since pagination markup only appears after scripts
// run; later pages use the plain path.
func (s *Silpo) scrapePage(ctx context.Context, url string, pageNum, totalPages int) {
	s.logger.Info("scraping page", "page", pageNum, "total", totalPages, "url", url)

	var html string
	var err error
	if pageNum == 1 {
		html, err = s.fetcher.FetchRendered(ctx, url, s.cfg.Scraper.RetryAttempts)
	} else {
		html, err = s.fetcher.Fetch(ctx, url, s.cfg.Scraper.RetryAttempts)
	}

	if err != nil {
		s.stats.PagesFailed++
		s.logger.Error("page fetch failed", "page", pageNum, "error", err)
		s.appendRunLog(models.StepError, fmt.Sprintf("page_%d", pageNum), err.Error(), url, models.StatusFailed)
		return
	}

	records := s.extractor.Extract(html, url, s.batchStamp, pageNum)

	if len(records) == 0 {
		s.stats.PagesFailed++
		s.logger.Warn("no products extracted", "page", pageNum)
		s.appendRunLog(models.StepParse, fmt.Sprintf("page_%d/%d", pageNum, totalPages),
			"Extracted 0 products", url, models.StatusFailed)
		return
	}

	for _, sink := range s.sinks {
		if err := sink.AppendProducts(ctx, records); err != nil {
			s.logger.Error("failed to persist records", "page", pageNum, "error", err)
		}
	}

	s.stats.PagesSuccess++
	s.stats.TotalProducts += len(records)
	s.logSamples(records)
	s.appendRunLog(models.StepParse, fmt.Sprintf("page_%d/%d", pageNum, totalPages),
		fmt.Sprintf("Extracted %d products", len(records)), url, models.StatusSuccess)
}

// logSamples logs the first few extracted records so a run is inspectable
// from the console output alone.
func (s *Silpo) logSamples(records []models.ProductRecord) {
	const sampleCount = 3

	for i, rec := range records {
		if i >= sampleCount {
			s.logger.Info("more products on page", "count", len(records)-sampleCount)
			break
		}

		title := rec.Title
		if runes := []rune(title); len(runes) > 50 {
			title = string(runes[:50])
		}
		s.logger.Info("sample product",
			"title", title, "price", rec.PriceCurrent, "qty", rec.PackQty, "unit", rec.PackUnit)
	}
}

// testConnectivity checks that the base URL is reachable before committing
// to a full run.
func (s *Silpo) testConnectivity(ctx context.Context) bool {
	html, err := s.fetcher.Fetch(ctx, s.cfg.Scraper.BaseURL, 2)
	if err != nil {
		s.logger.Error("connectivity test failed", "error", err)
		return false
	}
	return len(html) > 500
}

// findLastPage discovers the page count from first-page markup, trying
// explicit ?page=N parameters, then pagination link text, then a bare
// page= marker. Every result is capped by MaxPages.
func (s *Silpo) findLastPage(ctx context.Context) int {
	html, err := s.fetcher.Fetch(ctx, s.cfg.Scraper.BaseURL, s.cfg.Scraper.RetryAttempts)
	if err != nil {
		s.logger.Warn("could not fetch first page for pagination discovery", "error", err)
		return min(10, s.cfg.Scraper.MaxPages)
	}

	return s.lastPageFromMarkup(html)
}

func (s *Silpo) lastPageFromMarkup(html string) int {
	maxPages := s.cfg.Scraper.MaxPages

	if matches := pageParamRe.FindAllStringSubmatch(html, -1); len(matches) > 0 {
		maxPage := 0
		for _, m := range matches {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
				maxPage = n
			}
		}
		if maxPage > 0 && maxPage <= maxPages {
			s.logger.Info("found pagination via url params", "pages", maxPage)
			return maxPage
		}
	}

	if matches := pageLinkRe.FindAllStringSubmatch(html, -1); len(matches) > 0 {
		maxPage := 1
		for _, m := range matches {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
				maxPage = n
			}
		}
		if maxPage <= maxPages {
			s.logger.Info("found pagination via link text", "pages", maxPage)
			return min(maxPage, maxPages)
		}
	}

	if strings.Contains(html, "page=") {
		s.logger.Info("found pagination markers")
		return min(10, maxPages)
	}

	s.logger.Warn("no pagination detected, assuming single page")
	return 1
}

// pageURLs generates listing URLs in increasing page order. The first page
// has no query parameter; pages 2+ use ?page=N.
func (s *Silpo) pageURLs(maxPage int) []string {
	urls := make([]string, 0, maxPage)

	for p := 1; p <= maxPage; p++ {
		if p == 1 {
			urls = append(urls, s.cfg.Scraper.BaseURL)
		} else {
			urls = append(urls, fmt.Sprintf("%s?page=%d", s.cfg.Scraper.BaseURL, p))
		}
	}

	return urls
}

func (s *Silpo) appendRunLog(step, stage, message, url, status string) {
	if s.runLog == nil {
		return
	}

	if url == "" {
		url = "N/A"
	}

	entry := models.LogEntry{
		TS:      time.Now().UTC(),
		Step:    step,
		Stage:   stage,
		Message: message,
		URL:     url,
		Status:  status,
	}

	if err := s.runLog.AppendLog(entry); err != nil {
		s.logger.Error("failed to append run log entry", "error", err)
	}
}
