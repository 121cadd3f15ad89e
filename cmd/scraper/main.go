package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/oleksdev/silpo-scraper/internal/browser"
	"github.com/oleksdev/silpo-scraper/internal/config"
	"github.com/oleksdev/silpo-scraper/internal/database"
	"github.com/oleksdev/silpo-scraper/internal/fetcher"
	"github.com/oleksdev/silpo-scraper/internal/parser"
	"github.com/oleksdev/silpo-scraper/internal/scraper"
	"github.com/oleksdev/silpo-scraper/internal/storage"
)

func main() {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLevel(cfg.Logging.Level),
		TimeFormat: time.DateTime,
	})))

	logger := slog.Default()
	logger.Info("starting silpo scraper")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	store, err := storage.New(cfg.Output.DataDir, cfg.Output.LogsDir, cfg.Output.DataFile, cfg.Output.LogFile)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	var b *browser.Browser
	if cfg.Browser.Enabled {
		b, err = browser.New(&browser.Options{
			Headless:       cfg.Browser.Headless,
			WaitTimeout:    cfg.Browser.WaitTimeout,
			UserAgent:      browser.DefaultOptions().UserAgent,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
			AcceptLanguage: cfg.Browser.AcceptLanguage,
			TimezoneID:     cfg.Browser.TimezoneID,
			Locale:         cfg.Browser.Locale,
			ExtraHeaders:   browser.DefaultOptions().ExtraHeaders,
		})
		if err != nil {
			// Degrades to the plain fetch path; not fatal.
			logger.Warn("browser unavailable, rendered fetch disabled", "error", err)
			b = nil
		}
	}

	f := fetcher.New(&fetcher.Options{
		Timeout:    cfg.Scraper.RequestTimeout,
		RetryDelay: cfg.Scraper.RetryDelay,
	}, b)
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error("failed to close fetcher", "error", err)
		}
	}()

	fields := parser.NewFields(cfg.KnownBrands, categories(cfg.ProductTypes))
	extractor := parser.NewExtractor(
		parser.NewDOMStrategy(fields),
		parser.NewTextStrategy(fields),
	)

	sinks := []scraper.RecordSink{store}
	if cfg.Output.DatabaseURL != "" {
		sink, err := database.New(ctx, cfg.Output.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		sinks = append(sinks, sink)
	}

	s := scraper.New(cfg, f, extractor, store, sinks...)
	if err := s.Run(ctx); err != nil {
		logger.Error("scraper run failed", "error", err)
		if closeErr := f.Close(); closeErr != nil {
			logger.Error("failed to close fetcher", "error", closeErr)
		}
		os.Exit(1)
	}
}

func categories(types []config.ProductType) []parser.Category {
	out := make([]parser.Category, 0, len(types))
	for _, t := range types {
		out = append(out, parser.Category{Name: t.Name, Keywords: t.Keywords})
	}
	return out
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
