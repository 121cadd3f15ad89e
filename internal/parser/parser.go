// Package parser extracts normalized product records from listing-page
// markup. Extraction is strategy-ordered: a structured DOM walk is tried
// first, a text-pattern scan second, and the first strategy yielding any
// record wins.
package parser

import (
	"log/slog"
	"unicode/utf8"

	"github.com/oleksdev/silpo-scraper/internal/models"
)

const (
	// Markup shorter than this is treated as unparseable and skipped
	// without invoking any strategy.
	minParseableHTML = 1000

	// minSelectorMatches is the element count a selector must strictly
	// exceed before it is trusted; exactly 3 matches is not enough.
	minSelectorMatches = 3

	minTitleRunes = 5
	maxTitleRunes = 200
)

// PageMeta identifies the page a record was extracted from.
type PageMeta struct {
	URL        string
	BatchStamp string
	PageNumber int
}

// Strategy is one self-contained extraction algorithm. An empty result
// means the strategy found nothing; the caller falls through to the next.
type Strategy interface {
	Name() string
	TryExtract(html string, meta PageMeta) []models.ProductRecord
}

// Extractor evaluates strategies in priority order.
type Extractor struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewExtractor builds an extractor over the given strategies, evaluated in
// argument order. Strategies are injected so that a missing capability
// (e.g. no DOM parser) degrades the strategy count instead of the caller.
func NewExtractor(strategies ...Strategy) *Extractor {
	return &Extractor{
		strategies: strategies,
		logger:     slog.Default().With("component", "extractor"),
	}
}

// Extract produces zero or more product records from page markup. It never
// fails outward: candidate-level errors are swallowed and logged, and an
// empty slice is a valid result.
func (e *Extractor) Extract(html, pageURL, batchStamp string, pageNumber int) []models.ProductRecord {
	if utf8.RuneCountInString(html) < minParseableHTML {
		e.logger.Warn("markup too short to parse", "page", pageNumber, "chars", len(html))
		return nil
	}

	meta := PageMeta{
		URL:        pageURL,
		BatchStamp: batchStamp,
		PageNumber: pageNumber,
	}

	for _, strategy := range e.strategies {
		records := strategy.TryExtract(html, meta)
		if len(records) > 0 {
			e.logger.Info("strategy extracted products",
				"strategy", strategy.Name(), "page", pageNumber, "count", len(records))
			return records
		}
	}

	e.logger.Warn("no products extracted using any strategy", "page", pageNumber)
	return nil
}
