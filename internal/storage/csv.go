// Package storage persists scraped records and the run log as append-only
// CSV files. Header rows are written once at file creation; the scraper
// never reads these files back.
package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oleksdev/silpo-scraper/internal/models"
)

var logHeaders = []string{"ts", "step", "stage", "message", "url", "status"}

type CSVStore struct {
	dataPath string
	logPath  string
	logger   *slog.Logger
}

// New ensures the data and log directories exist and creates both CSV
// files with their header rows if missing.
func New(dataDir, logsDir, dataFile, logFile string) (*CSVStore, error) {
	s := &CSVStore{
		dataPath: filepath.Join(dataDir, dataFile),
		logPath:  filepath.Join(logsDir, logFile),
		logger:   slog.Default().With("component", "storage"),
	}

	for _, dir := range []string{dataDir, logsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := s.ensureFile(s.dataPath, models.CSVHeaders); err != nil {
		return nil, err
	}
	if err := s.ensureFile(s.logPath, logHeaders); err != nil {
		return nil, err
	}

	s.logger.Info("storage ready", "data", s.dataPath, "log", s.logPath)
	return s, nil
}

// AppendProducts appends a batch of records to the data CSV.
func (s *CSVStore) AppendProducts(_ context.Context, records []models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(records))
	for i := range records {
		rows = append(rows, records[i].CSVRow())
	}

	if err := s.appendRows(s.dataPath, rows); err != nil {
		return fmt.Errorf("failed to append products: %w", err)
	}

	s.logger.Info("appended products", "count", len(records), "file", s.dataPath)
	return nil
}

// AppendLog appends one entry to the run log.
func (s *CSVStore) AppendLog(entry models.LogEntry) error {
	if err := s.appendRows(s.logPath, [][]string{entry.CSVRow()}); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

func (s *CSVStore) ensureFile(path string, headers []string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers to %s: %w", path, err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	s.logger.Info("created file", "path", path)
	return nil
}

func (s *CSVStore) appendRows(path string, rows [][]string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}

	return w.Error()
}
