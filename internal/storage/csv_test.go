package storage

import (
	"context"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleksdev/silpo-scraper/internal/models"
)

func testStore(t *testing.T) *CSVStore {
	t.Helper()

	dir := t.TempDir()
	s, err := New(dir+"/data", dir+"/logs", "raw.csv", "log.csv")
	require.NoError(t, err)
	return s
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestNewWritesHeaders(t *testing.T) {
	s := testStore(t)

	data := readCSV(t, s.dataPath)
	require.Len(t, data, 1)
	assert.Equal(t, models.CSVHeaders, data[0])

	logs := readCSV(t, s.logPath)
	require.Len(t, logs, 1)
	assert.Equal(t, logHeaders, logs[0])
}

func TestNewKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir+"/data", dir+"/logs", "raw.csv", "log.csv")
	require.NoError(t, err)
	require.NoError(t, s.AppendProducts(context.Background(), []models.ProductRecord{{
		Title: "Молоко", PriceCurrent: 45.50, PriceType: models.PriceTypeRegular,
	}}))

	// Reopening the same paths must not truncate the accumulated data.
	_, err = New(dir+"/data", dir+"/logs", "raw.csv", "log.csv")
	require.NoError(t, err)

	rows := readCSV(t, s.dataPath)
	assert.Len(t, rows, 2)
}

func TestAppendProducts(t *testing.T) {
	s := testStore(t)

	records := []models.ProductRecord{
		{
			UploadTS:     "2025-01-15T10:00:00Z",
			PageURL:      "https://silpo.ua/category/molochni?page=2",
			PageNumber:   2,
			Source:       models.Source,
			Title:        "Молоко Яготинське 2.5% 1л",
			Brand:        "Яготинське",
			ProductType:  "молоко",
			FatPct:       "2.5",
			PackQty:      1000,
			PackUnit:     models.UnitMilliliter,
			PriceCurrent: 45.50,
			PricePerUnit: 45.50,
			PriceType:    models.PriceTypeRegular,
		},
		{
			PageNumber:   2,
			Title:        "Сметана без бренду",
			PriceCurrent: 52.30,
			PriceType:    models.PriceTypeDiscount,
			PriceOld:     65.00,
			DiscountPct:  20,
			Rating:       4.8,
		},
	}

	require.NoError(t, s.AppendProducts(context.Background(), records))

	rows := readCSV(t, s.dataPath)
	require.Len(t, rows, 3)

	first := rows[1]
	require.Len(t, first, len(models.CSVHeaders))
	assert.Equal(t, "Молоко Яготинське 2.5% 1л", first[4])
	assert.Equal(t, "Яготинське", first[5])
	assert.Equal(t, "1000", first[8])
	assert.Equal(t, "мл", first[9])

	// Absent optional fields serialize as empty cells, never "0".
	second := rows[2]
	assert.Empty(t, second[7], "fat_pct")
	assert.Empty(t, second[8], "pack_qty")
	assert.Empty(t, second[13], "price_per_unit")
	assert.Equal(t, "52.3", second[10])
	assert.Equal(t, "65", second[11])
	assert.Equal(t, "20", second[12])
	assert.Equal(t, "4.8", second[14])
}

func TestAppendProductsEmptyBatch(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.AppendProducts(context.Background(), nil))

	rows := readCSV(t, s.dataPath)
	assert.Len(t, rows, 1)
}

func TestAppendLog(t *testing.T) {
	s := testStore(t)

	err := s.AppendLog(models.LogEntry{
		TS:      time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
		Step:    models.StepParse,
		Stage:   "scrape_page",
		Message: "extracted 24 products",
		URL:     "https://silpo.ua/category/molochni",
		Status:  models.StatusSuccess,
	})
	require.NoError(t, err)

	rows := readCSV(t, s.logPath)
	require.Len(t, rows, 2)

	entry := rows[1]
	assert.Equal(t, models.StepParse, entry[1])
	assert.Equal(t, "scrape_page", entry[2])
	assert.Equal(t, models.StatusSuccess, entry[5])
}
