package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/oleksdev/silpo-scraper/internal/models"
)

// Category maps a product-type name to its trigger keywords. Kept as a slice
// because slice order is the matching priority.
type Category struct {
	Name     string
	Keywords []string
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	priceTextRe  = regexp.MustCompile(`\d{1,4}(?:[.,]\d{2})?\s*(?:грн|₴)`)
	priceRe      = regexp.MustCompile(`(\d{2,4}(?:[.,]\d{2})?)\s*(?:грн|₴)`)
	discountRe   = regexp.MustCompile(`-\s*(\d{1,2})%`)

	guillemetRe    = regexp.MustCompile(`«([^»]{2,30})»`)
	leadingWordRe  = regexp.MustCompile("^([A-ZА-ЯЁІЇЄҐ][\\wА-Яа-яЁёІіЇїЄєҐґ'ʼ’`\\-]{1,25})")
	fatPercentRe   = regexp.MustCompile(`([0-9]+(?:[.,][0-9]+)?)\s*%`)
	fatKeywordRe   = regexp.MustCompile(`(?i)жир[^0-9]*([0-9]+(?:[.,][0-9]+)?)`)
)

// Rating appears as a star symbol next to the value, either side.
var ratingRes = []*regexp.Regexp{
	regexp.MustCompile(`★\s*([1-5](?:[.,][0-9])?)`),
	regexp.MustCompile(`⭐\s*([1-5](?:[.,][0-9])?)`),
	regexp.MustCompile(`([1-5](?:[.,][0-9])?)\s*(?:★|⭐)`),
}

// packPattern converts a matched quantity into a canonical unit. Go regexp
// has no Unicode-aware \b, so patterns guard the unit token with a
// non-letter class instead ("900 г" matches, the "г" of "грн" does not).
type packPattern struct {
	re       *regexp.Regexp
	unit     string
	multiply float64
}

var packPatterns = []packPattern{
	{regexp.MustCompile(`(?i)([0-9]+(?:[.,][0-9]+)?)\s*л(?:[^\p{L}]|$)`), models.UnitMilliliter, 1000},
	{regexp.MustCompile(`(?i)([0-9]{2,4})\s*мл(?:[^\p{L}]|$)`), models.UnitMilliliter, 1},
	{regexp.MustCompile(`(?i)([0-9]{2,4})\s*г(?:[^\p{L}]|$)`), models.UnitGram, 1},
	{regexp.MustCompile(`([0-9]{1,3})\s*шт`), models.UnitPiece, 1},
	{regexp.MustCompile(`(?i)([0-9]+(?:[.,][0-9]+)?)\s*кг`), models.UnitGram, 1000},
}

// Generic category words that the leading-token heuristic must not mistake
// for a brand.
var brandExcluded = []string{
	"Молоко", "Вершки", "Кефір", "Сметана", "Йогурт", "Масло", "Маргарин",
}

// Fields derives normalized record fields from raw product text. All methods
// are pure functions over their input; the struct only carries the
// configured vocabulary.
type Fields struct {
	knownBrands []string
	categories  []Category
}

func NewFields(knownBrands []string, categories []Category) *Fields {
	return &Fields{
		knownBrands: knownBrands,
		categories:  categories,
	}
}

// Brand extracts the brand name from a title: quoted brand in guillemets
// first, then the known-brand list (list order wins), then the leading
// capitalized token.
func (f *Fields) Brand(title string) string {
	if m := guillemetRe.FindStringSubmatch(title); m != nil {
		return m[1]
	}

	titleLower := strings.ToLower(title)
	for _, brand := range f.knownBrands {
		if strings.Contains(titleLower, strings.ToLower(brand)) {
			return brand
		}
	}

	if m := leadingWordRe.FindStringSubmatch(title); m != nil {
		brand := strings.TrimSpace(m[1])
		if utf8.RuneCountInString(brand) > 2 && !isExcludedBrandWord(brand) {
			return brand
		}
	}

	return ""
}

func isExcludedBrandWord(word string) bool {
	for _, excluded := range brandExcluded {
		if word == excluded {
			return true
		}
	}
	return false
}

// ProductType classifies the title against the configured category
// vocabulary. First matching category wins; empty if none match.
func (f *Fields) ProductType(title string) string {
	titleLower := strings.ToLower(title)

	for _, category := range f.categories {
		for _, keyword := range category.Keywords {
			if strings.Contains(titleLower, keyword) {
				return category.Name
			}
		}
	}

	return ""
}

// FatPct extracts the fat percentage as text with a period decimal
// separator. Values outside [0,50] are rejected.
func (f *Fields) FatPct(title string) string {
	for _, re := range []*regexp.Regexp{fatPercentRe, fatKeywordRe} {
		m := re.FindStringSubmatch(title)
		if m == nil {
			continue
		}

		fat := strings.ReplaceAll(m[1], ",", ".")
		if v, err := strconv.ParseFloat(fat, 64); err == nil && v >= 0 && v <= 50 {
			return fat
		}
	}

	return ""
}

// Pack extracts the package quantity normalized into a canonical unit.
// First matching pattern wins. Returns (0, "") when no pattern matches or
// the normalized quantity is not positive.
func (f *Fields) Pack(title string) (int, string) {
	for _, p := range packPatterns {
		m := p.re.FindStringSubmatch(title)
		if m == nil {
			continue
		}

		qty := int(math.Round(ToNum(m[1]) * p.multiply))
		if qty <= 0 {
			return 0, ""
		}
		return qty, p.unit
	}

	return 0, ""
}

// PriceInfo is the price block of a candidate element's context.
type PriceInfo struct {
	Current     float64
	Old         float64
	DiscountPct int
	Type        string
}

// Prices scans text for currency amounts in the plausible (5,2000) range.
// The first match is the current price. When a "-N%" marker is present and
// a second price exists, the second match is the old price. Returns false
// when no in-range price is found.
func (f *Fields) Prices(text string) (PriceInfo, bool) {
	var prices []float64
	for _, m := range priceRe.FindAllStringSubmatch(text, -1) {
		price := ToNum(m[1])
		if price > 5 && price < 2000 {
			prices = append(prices, price)
		}
	}

	if len(prices) == 0 {
		return PriceInfo{}, false
	}

	info := PriceInfo{
		Current: prices[0],
		Type:    models.PriceTypeRegular,
	}

	if m := discountRe.FindStringSubmatch(text); m != nil && len(prices) >= 2 {
		info.Old = prices[1]
		info.DiscountPct = int(ToNum(m[1]))
		info.Type = models.PriceTypeDiscount
	}

	return info, true
}

// Rating extracts a star rating in [1,5]; 0 means absent.
func (f *Fields) Rating(text string) float64 {
	for _, re := range ratingRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		if v := ToNum(m[1]); v >= 1 && v <= 5 {
			return v
		}
	}

	return 0
}

// PricePerUnit computes the price per liter, kilogram or piece, rounded to
// 2 decimals. Quantities in мл and г represent base-1000 units. Returns 0
// when the price or quantity is absent.
func PricePerUnit(price float64, qty int, unit string) float64 {
	if price <= 0 || qty <= 0 {
		return 0
	}

	if unit == models.UnitPiece {
		return round2(price / float64(qty))
	}

	baseQty := float64(qty) / 1000
	if baseQty <= 0 {
		return 0
	}
	return round2(price / baseQty)
}

// CleanTitle collapses whitespace, strips price+currency substrings, and
// caps the result at 200 runes. Cleaning an already clean title is a no-op.
func CleanTitle(text string) string {
	cleaned := whitespaceRe.ReplaceAllString(text, " ")
	cleaned = strings.TrimSpace(priceTextRe.ReplaceAllString(cleaned, ""))

	if runes := []rune(cleaned); len(runes) > 200 {
		cleaned = strings.TrimSpace(string(runes[:200]))
	}

	return cleaned
}

// ToNum parses a number accepting comma as the decimal separator.
// Unparseable input yields 0.
func ToNum(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
