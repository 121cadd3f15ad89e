package parser

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/oleksdev/silpo-scraper/internal/models"
)

// Selectors tried in order of preference, most specific first. The first
// selector matching more than minSelectorMatches elements is used; if it
// yields at least one usable record, later selectors are not tried.
var productSelectors = []string{
	"h3",                      // listing wraps each product in an h3
	"[class*=product]",        // product card divs
	"[class*=item]",           // item cards
	`a[href*="/product/"]`,    // product links
	"div.product",             // generic product container
}

// DOMStrategy parses markup into a navigable tree and walks candidate
// product elements.
type DOMStrategy struct {
	fields *Fields
	logger *slog.Logger
}

func NewDOMStrategy(fields *Fields) *DOMStrategy {
	return &DOMStrategy{
		fields: fields,
		logger: slog.Default().With("component", "parser", "strategy", "dom"),
	}
}

func (s *DOMStrategy) Name() string { return "dom" }

func (s *DOMStrategy) TryExtract(html string, meta PageMeta) []models.ProductRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.logger.Warn("failed to build document tree", "error", err)
		return nil
	}

	for _, selector := range productSelectors {
		elements := doc.Find(selector)
		if elements.Length() <= minSelectorMatches {
			continue
		}

		s.logger.Debug("using selector", "selector", selector, "elements", elements.Length())

		var records []models.ProductRecord
		elements.Each(func(_ int, element *goquery.Selection) {
			if record := s.parseElement(element, meta); record != nil {
				records = append(records, *record)
			}
		})

		if len(records) > 0 {
			return records
		}
	}

	return nil
}

// parseElement converts one candidate element into a record, or nil when
// the element does not look like a product. Prices are searched in the
// element text plus its parent's text, since the price node often sits
// next to the title node rather than inside it.
func (s *DOMStrategy) parseElement(element *goquery.Selection, meta PageMeta) *models.ProductRecord {
	title := CleanTitle(element.Text())
	if utf8.RuneCountInString(title) < minTitleRunes {
		return nil
	}

	context := element.Text() + " " + element.Parent().Text()
	prices, ok := s.fields.Prices(context)
	if !ok {
		return nil
	}

	qty, unit := s.fields.Pack(title)

	return &models.ProductRecord{
		UploadTS:     meta.BatchStamp,
		PageURL:      meta.URL,
		PageNumber:   meta.PageNumber,
		Source:       models.Source,
		Title:        title,
		Brand:        s.fields.Brand(title),
		ProductType:  s.fields.ProductType(title),
		FatPct:       s.fields.FatPct(title),
		PackQty:      qty,
		PackUnit:     unit,
		PriceCurrent: prices.Current,
		PriceOld:     prices.Old,
		DiscountPct:  prices.DiscountPct,
		PricePerUnit: PricePerUnit(prices.Current, qty, unit),
		Rating:       s.fields.Rating(context),
		PriceType:    prices.Type,
	}
}
