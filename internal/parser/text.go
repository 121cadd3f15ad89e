package parser

import (
	"log/slog"
	"regexp"
	"unicode/utf8"

	"github.com/oleksdev/silpo-scraper/internal/models"
)

// titlePriceRe captures a run of word characters (Latin and Cyrillic,
// apostrophe variants included) immediately followed by a currency amount
// and marker: "Title ... 45.50 грн".
var titlePriceRe = regexp.MustCompile("([\\wА-Яа-яЁёІіЇїЄєҐґ'ʼ’`\\s.\\-]{5,200}?)\\s*(\\d{1,4}(?:[.,]\\d{2})?)\\s*(?:грн|₴)")

// TextStrategy mines the raw markup text for title+price pairs. It is the
// fallback when the DOM walk yields nothing; records it produces carry no
// old-price, discount or rating fields.
type TextStrategy struct {
	fields *Fields
	logger *slog.Logger
}

func NewTextStrategy(fields *Fields) *TextStrategy {
	return &TextStrategy{
		fields: fields,
		logger: slog.Default().With("component", "parser", "strategy", "text"),
	}
}

func (s *TextStrategy) Name() string { return "text" }

func (s *TextStrategy) TryExtract(html string, meta PageMeta) []models.ProductRecord {
	var records []models.ProductRecord
	seenTitles := make(map[string]struct{})

	for _, m := range titlePriceRe.FindAllStringSubmatch(html, -1) {
		title := CleanTitle(m[1])

		titleLen := utf8.RuneCountInString(title)
		if titleLen < minTitleRunes || titleLen > maxTitleRunes {
			continue
		}

		// Exact-title dedup within the page: the same product block tends
		// to repeat in markup.
		if _, seen := seenTitles[title]; seen {
			continue
		}
		seenTitles[title] = struct{}{}

		price := ToNum(m[2])
		if price <= 5 || price >= 2000 {
			continue
		}

		qty, unit := s.fields.Pack(title)

		records = append(records, models.ProductRecord{
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
			PriceCurrent: price,
			PricePerUnit: PricePerUnit(price, qty, unit),
			PriceType:    models.PriceTypeRegular,
		})
	}

	return records
}
