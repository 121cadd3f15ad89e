package models

import (
	"encoding/json"
	"strconv"
	"time"
)

const Source = "https://silpo.ua"

// Price type values for ProductRecord.PriceType.
const (
	PriceTypeRegular  = "regular"
	PriceTypeDiscount = "discount"
)

// Canonical package units. Every parsed quantity is normalized into one of
// these three.
const (
	UnitMilliliter = "мл"
	UnitGram       = "г"
	UnitPiece      = "шт"
)

// CSVHeaders is the fixed column order of the data CSV. The header row is
// written once at file creation and never changes.
var CSVHeaders = []string{
	"upload_ts",
	"page_url",
	"page_number",
	"source",
	"product_title",
	"brand",
	"product_type",
	"fat_pct",
	"pack_qty",
	"pack_unit",
	"price_current",
	"price_old",
	"discount_pct",
	"price_per_l_or_kg_or_piece",
	"rating",
	"price_type",
}

// ProductRecord is one normalized product entry extracted from a listing
// page. Optional numeric fields use their zero value for "absent" and are
// rendered as empty CSV cells.
type ProductRecord struct {
	UploadTS     string  `json:"upload_ts"`
	PageURL      string  `json:"page_url"`
	PageNumber   int     `json:"page_number"`
	Source       string  `json:"source"`
	Title        string  `json:"product_title"`
	Brand        string  `json:"brand"`
	ProductType  string  `json:"product_type"`
	FatPct       string  `json:"fat_pct"`
	PackQty      int     `json:"pack_qty"`
	PackUnit     string  `json:"pack_unit"`
	PriceCurrent float64 `json:"price_current"`
	PriceOld     float64 `json:"price_old"`
	DiscountPct  int     `json:"discount_pct"`
	PricePerUnit float64 `json:"price_per_unit"`
	Rating       float64 `json:"rating"`
	PriceType    string  `json:"price_type"`
}

// CSVRow renders the record in CSVHeaders order. Absent optional fields
// become empty cells.
func (r *ProductRecord) CSVRow() []string {
	return []string{
		r.UploadTS,
		r.PageURL,
		strconv.Itoa(r.PageNumber),
		r.Source,
		r.Title,
		r.Brand,
		r.ProductType,
		r.FatPct,
		intCell(r.PackQty),
		r.PackUnit,
		floatCell(r.PriceCurrent),
		floatCell(r.PriceOld),
		intCell(r.DiscountPct),
		floatCell(r.PricePerUnit),
		floatCell(r.Rating),
		r.PriceType,
	}
}

// LogEntry is one structured row of the run log.
type LogEntry struct {
	TS      time.Time
	Step    string
	Stage   string
	Message string
	URL     string
	Status  string
}

// Run log step values.
const (
	StepParse         = "PARSE"
	StepWrite         = "WRITE"
	StepError         = "ERROR"
	StepDone          = "DONE"
	StepCriticalError = "CRITICAL_ERROR"
)

// Run log status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

func (e *LogEntry) CSVRow() []string {
	return []string{
		e.TS.Format(time.RFC3339),
		e.Step,
		e.Stage,
		e.Message,
		e.URL,
		e.Status,
	}
}

// RunStats aggregates per-run counters owned by the orchestrator.
type RunStats struct {
	TotalProducts  int     `json:"total_products"`
	PagesSuccess   int     `json:"pages_success"`
	PagesFailed    int     `json:"pages_failed"`
	PagesProcessed int     `json:"pages_processed"`
	ElapsedSeconds float64 `json:"elapsed_time"`
}

func (s *RunStats) JSON() string {
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func intCell(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func floatCell(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
